// Package deploy defines the types shared by the deployment server client:
// resources and their link sets, the root document, listing pages, query
// parameters, configuration, and the outcome-classified Error returned by
// every operation.
//
// Errors carry an OutcomeKind so callers can branch without looking at HTTP
// status codes:
//
//	project, err := projects.Get(ctx, "Projects-1")
//	if errors.Is(err, deploy.ErrNotFound) {
//	  // create it
//	}
//
// Resources embed Resource, which carries the identifier, the Self link and
// the preconditions sent on modification: If-Match with the response ETag,
// or If-Unmodified-Since with the modification time.
package deploy

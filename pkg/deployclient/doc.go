// Package deployclient is the entry point for building a client for a
// deployment server's hypermedia REST API.
//
// The server publishes a root document mapping relation names ("Projects",
// "Environments", ...) to link templates. The client fetches it once per
// session, caches it, and locates every collection through it, so no
// resource paths are hard-coded. Each collection is exposed as a typed
// repository offering Get, GetMany, List, Refresh, Create, Modify and Delete.
//
// # Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/deploy-client/pkg/deploy"
//	  "github.com/fivetwenty-io/deploy-client/pkg/deployclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := deployclient.New(ctx, &deploy.Config{
//	    ServerURL: "https://deploy.example.com",
//	    APIKey:    "API-XXXXXXXXXXXXXXXX",
//	  })
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  project, err := cli.Projects().Get(ctx, "Projects-1")
//	  switch {
//	  case deploy.IsNotFound(err):
//	    log.Println("no such project")
//	  case err != nil:
//	    log.Fatal(err)
//	  default:
//	    log.Println(project.Name)
//	  }
//	}
//
// # Outcomes
//
// Every failed operation returns a *deploy.Error whose Kind is one of
// NotFound, Conflict, ValidationFailure, TransientFailure, Cancelled or
// Fatal. Use errors.Is with the deploy.Err* sentinels or the deploy.Is*
// helpers rather than inspecting status codes.
//
// # Retries
//
// Transient failures are retried with capped exponential backoff and
// jitter. Creates (POST) are sent exactly once unless the call carries an
// idempotency key:
//
//	created, err := cli.Projects().Create(ctx, draft, deploy.WithGeneratedIdempotencyKey())
//
// # Pagination
//
// List returns a lazy iterator; no page is fetched until it is advanced.
//
//	it, err := cli.Projects().List(ctx, deploy.NewQueryParams().WithTake(50))
//	for project, err := range it.Items(ctx) {
//	  if err != nil { return err }
//	  log.Println(project.Name)
//	}
//
// # Configuration
//
// LoadConfig reads a YAML file and DEPLOY_* environment variables with
// viper. A root document saved with LoadRootDocumentFile's format can be
// injected through Config.RootDocument to avoid the initial fetch.
package deployclient

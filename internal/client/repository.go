package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/fivetwenty-io/deploy-client/internal/batch"
	"github.com/fivetwenty-io/deploy-client/internal/constants"
	internalhttp "github.com/fivetwenty-io/deploy-client/internal/http"
	"github.com/fivetwenty-io/deploy-client/internal/links"
	"github.com/fivetwenty-io/deploy-client/internal/paging"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Repository provides typed access to one collection of resources. The
// collection is located through a relation of the root document, so no
// paths are hard-coded.
type Repository[T deploy.Entity] struct {
	client   *Client
	relation string

	mu    sync.Mutex
	batch *batch.Resolver[T]
}

// NewRepository creates a repository for the collection advertised under
// relation in the root document.
func NewRepository[T deploy.Entity](client *Client, relation string) *Repository[T] {
	return &Repository[T]{client: client, relation: relation}
}

// Relation returns the collection relation name.
func (r *Repository[T]) Relation() string {
	return r.relation
}

// Get retrieves a resource by identifier or by link. Links are used as is;
// identifiers are expanded into the collection template.
func (r *Repository[T]) Get(ctx context.Context, idOrLink string) (*T, error) {
	if idOrLink == "" {
		return nil, &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrEmptyIdentifier}
	}

	link, err := r.itemLink(ctx, idOrLink)
	if err != nil {
		return nil, err
	}

	return r.fetch(ctx, link)
}

// GetMany retrieves several resources. The result has one slot per
// identifier, in input order; missing resources are NotFound in their slot.
func (r *Repository[T]) GetMany(ctx context.Context, identifiers ...string) []deploy.Result[T] {
	resolver, err := r.batchResolver(ctx)
	if err != nil {
		results := make([]deploy.Result[T], len(identifiers))
		for i, identifier := range identifiers {
			results[i] = deploy.Result[T]{Identifier: identifier, Err: err}
		}

		return results
	}

	return resolver.ResolveMany(ctx, identifiers)
}

// Strategy reports how GetMany looks identifiers up, deciding it on first
// use.
func (r *Repository[T]) Strategy(ctx context.Context) (batch.Strategy, error) {
	resolver, err := r.batchResolver(ctx)
	if err != nil {
		return batch.PerItem, err
	}

	return resolver.Strategy(), nil
}

// List returns an iterator over the collection. No page is fetched until the
// iterator is advanced.
func (r *Repository[T]) List(ctx context.Context, params *deploy.QueryParams) (*paging.Iterator[T], error) {
	link, err := r.collectionLink(ctx, params.ToParameters())
	if err != nil {
		return nil, err
	}

	return paging.New(link, r.fetchPage), nil
}

// FindAll retrieves every resource in the collection.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	it, err := r.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	return it.Collect(ctx)
}

// FindOne returns the first resource matching predicate, fetching pages only
// until a match is found.
func (r *Repository[T]) FindOne(ctx context.Context, params *deploy.QueryParams, predicate func(T) bool) (*T, error) {
	it, err := r.List(ctx, params)
	if err != nil {
		return nil, err
	}

	for item, err := range it.Items(ctx) {
		if err != nil {
			return nil, err
		}

		if predicate(item) {
			return &item, nil
		}
	}

	return nil, &deploy.Error{
		Kind:       deploy.NotFound,
		StatusCode: http.StatusNotFound,
		Err:        fmt.Errorf("%w in %s", deploy.ErrNoMatch, r.relation),
	}
}

// FindByName returns the resource whose name matches exactly, ignoring
// case. The server is asked to narrow by partial name first.
func (r *Repository[T]) FindByName(ctx context.Context, name string) (*T, error) {
	params := deploy.NewQueryParams().WithPartialName(name)

	return r.FindOne(ctx, params, func(item T) bool {
		named, ok := any(item).(deploy.Named)

		return ok && strings.EqualFold(strings.TrimSpace(named.GetName()), strings.TrimSpace(name))
	})
}

// Refresh re-reads a resource through its own Self link, so it keeps
// working when the root document changes.
func (r *Repository[T]) Refresh(ctx context.Context, resource *T) (*T, error) {
	if resource == nil {
		return nil, &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrEmptyIdentifier}
	}

	self, ok := (*resource).GetLinks().Href(deploy.RelSelf)
	if !ok {
		return nil, &deploy.Error{
			Kind: deploy.Fatal,
			Err:  fmt.Errorf("%w: %s", deploy.ErrNoSelfLink, (*resource).GetID()),
		}
	}

	return r.fetch(ctx, self)
}

// Create posts a new resource to the collection. It is sent once unless an
// idempotency key is supplied.
func (r *Repository[T]) Create(ctx context.Context, draft *T, opts ...deploy.CallOption) (*T, error) {
	if draft == nil {
		return nil, &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrEmptyIdentifier}
	}

	link, err := r.collectionLink(ctx, nil)
	if err != nil {
		return nil, err
	}

	options := deploy.ApplyCallOptions(opts...)
	req := &internalhttp.Request{
		Method:  http.MethodPost,
		Path:    link,
		Body:    draft,
		Headers: headersFor(options),
	}

	var created T

	err = r.client.execute(ctx, req, options.IdempotencyKey, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

// Modify replaces a resource. The resource's preconditions are sent along,
// so a stale copy surfaces as Conflict and is never merged.
func (r *Repository[T]) Modify(ctx context.Context, resource *T, opts ...deploy.CallOption) (*T, error) {
	if resource == nil {
		return nil, &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrEmptyIdentifier}
	}

	link, err := r.resourceLink(ctx, *resource)
	if err != nil {
		return nil, err
	}

	options := deploy.ApplyCallOptions(opts...)
	headers := headersFor(options)

	if preconditioner, ok := any(*resource).(deploy.Preconditioner); ok {
		for key, value := range preconditioner.Preconditions() {
			headers[key] = value
		}
	}

	req := &internalhttp.Request{
		Method:  http.MethodPut,
		Path:    link,
		Body:    resource,
		Headers: headers,
	}

	var modified T

	err = r.client.execute(ctx, req, options.IdempotencyKey, &modified)
	if err != nil {
		return nil, err
	}

	return &modified, nil
}

// Delete removes a resource.
func (r *Repository[T]) Delete(ctx context.Context, resource *T) error {
	if resource == nil {
		return &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrEmptyIdentifier}
	}

	link, err := r.resourceLink(ctx, *resource)
	if err != nil {
		return err
	}

	return r.client.execute(ctx, &internalhttp.Request{Method: http.MethodDelete, Path: link}, "", nil)
}

// DeleteByID removes a resource by identifier or link.
func (r *Repository[T]) DeleteByID(ctx context.Context, idOrLink string) error {
	if idOrLink == "" {
		return &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrEmptyIdentifier}
	}

	link, err := r.itemLink(ctx, idOrLink)
	if err != nil {
		return err
	}

	return r.client.execute(ctx, &internalhttp.Request{Method: http.MethodDelete, Path: link}, "", nil)
}

func (r *Repository[T]) fetch(ctx context.Context, link string) (*T, error) {
	var resource T

	err := r.client.execute(ctx, &internalhttp.Request{Method: http.MethodGet, Path: link}, "", &resource)
	if err != nil {
		return nil, err
	}

	return &resource, nil
}

func (r *Repository[T]) fetchPage(ctx context.Context, link string) (*deploy.ResourceCollection[T], error) {
	var page deploy.ResourceCollection[T]

	err := r.client.execute(ctx, &internalhttp.Request{Method: http.MethodGet, Path: link}, "", &page)
	if err != nil {
		return nil, err
	}

	return &page, nil
}

func (r *Repository[T]) fetchBulk(ctx context.Context, ids []string) ([]T, error) {
	link, err := r.collectionLink(ctx, map[string]interface{}{
		constants.IDsParameter:  ids,
		constants.TakeParameter: strconv.Itoa(len(ids)),
	})
	if err != nil {
		return nil, err
	}

	return paging.New(link, r.fetchPage).Collect(ctx)
}

// batchResolver picks the GetMany strategy once per repository, from the
// variables the collection template advertises.
func (r *Repository[T]) batchResolver(ctx context.Context) (*batch.Resolver[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.batch != nil {
		return r.batch, nil
	}

	doc, err := r.client.root.Get(ctx)
	if err != nil {
		return nil, err
	}

	cfg := batch.Config[T]{Get: r.Get, Concurrency: r.client.concurrency}
	if r.client.resolver.Supports(doc.Links, r.relation, constants.IDsParameter) {
		cfg.Bulk = r.fetchBulk
	}

	r.batch = batch.New(cfg)

	r.client.logger.Debug("batch strategy selected", map[string]interface{}{
		"relation": r.relation,
		"strategy": r.batch.Strategy().String(),
	})

	return r.batch, nil
}

func (r *Repository[T]) collectionLink(ctx context.Context, params map[string]interface{}) (string, error) {
	doc, err := r.client.root.Get(ctx)
	if err != nil {
		return "", err
	}

	return r.client.resolver.Resolve(doc.Links, r.relation, params)
}

func (r *Repository[T]) itemLink(ctx context.Context, idOrLink string) (string, error) {
	if links.IsLink(idOrLink) {
		return idOrLink, nil
	}

	doc, err := r.client.root.Get(ctx)
	if err != nil {
		return "", err
	}

	tmpl, err := r.client.resolver.Template(doc.Links, r.relation)
	if err != nil {
		return "", err
	}

	if tmpl.Has(constants.IDParameter) {
		return tmpl.Expand(map[string]interface{}{constants.IDParameter: idOrLink})
	}

	// Collections without an id variable address items as a sub-path.
	base, err := tmpl.Expand(nil)
	if err != nil {
		return "", err
	}

	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(idOrLink), nil
}

// resourceLink prefers the resource's Self link and falls back to the
// collection template with its identifier.
func (r *Repository[T]) resourceLink(ctx context.Context, resource T) (string, error) {
	if self, ok := resource.GetLinks().Href(deploy.RelSelf); ok {
		return self, nil
	}

	if id := resource.GetID(); id != "" {
		return r.itemLink(ctx, id)
	}

	return "", &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrNoSelfLink}
}

func headersFor(options deploy.CallOptions) map[string]string {
	headers := make(map[string]string, len(options.Headers)+1)
	for key, value := range options.Headers {
		headers[key] = value
	}

	if options.IdempotencyKey != "" {
		headers[deploy.IdempotencyKeyHeader] = options.IdempotencyKey
	}

	return headers
}

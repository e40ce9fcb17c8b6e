// Package batch resolves many identifiers at once, preserving input order.
package batch

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/fivetwenty-io/deploy-client/internal/constants"
	"github.com/fivetwenty-io/deploy-client/internal/links"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Strategy is how a resolver looks identifiers up.
type Strategy int

const (
	// PerItem issues one lookup per identifier.
	PerItem Strategy = iota
	// Bulk fetches raw identifiers in one listing request.
	Bulk
)

// String returns the strategy name.
func (s Strategy) String() string {
	if s == Bulk {
		return "bulk"
	}

	return "per-item"
}

// GetFunc looks up a single identifier or link.
type GetFunc[T any] func(ctx context.Context, identifier string) (*T, error)

// BulkFunc returns whichever of ids exist, in any order.
type BulkFunc[T any] func(ctx context.Context, ids []string) ([]T, error)

// Config configures a Resolver. Bulk may be nil, in which case the resolver
// works per item.
type Config[T any] struct {
	Get         GetFunc[T]
	Bulk        BulkFunc[T]
	Concurrency int
}

// Resolver turns an identifier set into one result per input position.
type Resolver[T deploy.Entity] struct {
	get         GetFunc[T]
	bulk        BulkFunc[T]
	concurrency int
}

// New creates a resolver.
func New[T deploy.Entity](cfg Config[T]) *Resolver[T] {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrencyLimit
	}

	return &Resolver[T]{get: cfg.Get, bulk: cfg.Bulk, concurrency: concurrency}
}

// Strategy returns the lookup strategy in use.
func (r *Resolver[T]) Strategy() Strategy {
	if r.bulk != nil {
		return Bulk
	}

	return PerItem
}

// ResolveMany returns exactly one result per identifier, in input order.
// A failed lookup only affects its own slots.
func (r *Resolver[T]) ResolveMany(ctx context.Context, identifiers []string) []deploy.Result[T] {
	results := make([]deploy.Result[T], len(identifiers))
	if len(identifiers) == 0 {
		return results
	}

	unique := make([]string, 0, len(identifiers))
	seen := make(map[string]struct{}, len(identifiers))

	for _, identifier := range identifiers {
		if identifier == "" {
			continue
		}

		if _, ok := seen[identifier]; !ok {
			seen[identifier] = struct{}{}
			unique = append(unique, identifier)
		}
	}

	resolved := r.resolveUnique(ctx, unique)

	for i, identifier := range identifiers {
		if identifier == "" {
			results[i] = deploy.Result[T]{
				Err: &deploy.Error{Kind: deploy.Fatal, Err: deploy.ErrEmptyIdentifier},
			}

			continue
		}

		results[i] = resolved[identifier]
	}

	return results
}

func (r *Resolver[T]) resolveUnique(ctx context.Context, identifiers []string) map[string]deploy.Result[T] {
	slots := make([]deploy.Result[T], len(identifiers))

	var group errgroup.Group

	group.SetLimit(r.concurrency)

	var bulkIdx []int

	for i, identifier := range identifiers {
		if r.bulk != nil && !links.IsLink(identifier) {
			bulkIdx = append(bulkIdx, i)

			continue
		}

		group.Go(func() error {
			resource, err := r.get(ctx, identifier)
			slots[i] = deploy.Result[T]{Identifier: identifier, Resource: resource, Err: err}

			return nil
		})
	}

	if len(bulkIdx) > 0 {
		group.Go(func() error {
			r.resolveBulk(ctx, identifiers, bulkIdx, slots)

			return nil
		})
	}

	_ = group.Wait()

	out := make(map[string]deploy.Result[T], len(identifiers))
	for i, identifier := range identifiers {
		out[identifier] = slots[i]
	}

	return out
}

func (r *Resolver[T]) resolveBulk(ctx context.Context, identifiers []string, idx []int, slots []deploy.Result[T]) {
	ids := make([]string, len(idx))
	for n, i := range idx {
		ids[n] = identifiers[i]
	}

	items, err := r.bulk(ctx, ids)
	if err != nil {
		for _, i := range idx {
			slots[i] = deploy.Result[T]{Identifier: identifiers[i], Err: err}
		}

		return
	}

	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[item.GetID()] = item
	}

	for _, i := range idx {
		identifier := identifiers[i]

		item, ok := byID[identifier]
		if !ok {
			slots[i] = deploy.Result[T]{Identifier: identifier, Err: notFound(identifier)}

			continue
		}

		slots[i] = deploy.Result[T]{Identifier: identifier, Resource: &item}
	}
}

func notFound(identifier string) error {
	return &deploy.Error{
		Kind:       deploy.NotFound,
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("%s was not returned by the bulk lookup", identifier),
	}
}

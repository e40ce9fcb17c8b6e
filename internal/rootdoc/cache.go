// Package rootdoc caches the server root document for a session.
package rootdoc

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Fetcher retrieves the root document from the server.
type Fetcher func(ctx context.Context) (*deploy.RootDocument, error)

// Cache holds the current root document snapshot. Readers always see a
// complete document: a refresh swaps the snapshot atomically and never
// mutates one that has been handed out.
type Cache struct {
	fetch   Fetcher
	store   deploy.RootDocumentStore
	logger  deploy.Logger
	current atomic.Pointer[deploy.RootDocument]
	group   singleflight.Group
	fetches atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a second-tier store consulted before the server.
func WithStore(store deploy.RootDocumentStore) Option {
	return func(c *Cache) {
		if store != nil {
			c.store = store
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger deploy.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDocument seeds the cache with a fixed document.
func WithDocument(doc *deploy.RootDocument) Option {
	return func(c *Cache) {
		if doc != nil {
			c.current.Store(doc)
		}
	}
}

// New creates a cache backed by fetch.
func New(fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetch:  fetch,
		store:  deploy.NewNoOpStore(),
		logger: deploy.NoopLogger{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the current snapshot, loading it on first use. Concurrent
// first callers share a single load. The load runs detached from any one
// caller, so a caller that gives up sees Cancelled while the others keep
// waiting for the result.
func (c *Cache) Get(ctx context.Context) (*deploy.RootDocument, error) {
	if doc := c.current.Load(); doc != nil {
		return doc, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	shared := context.WithoutCancel(ctx)

	return wait(ctx, c.group.DoChan("load", func() (interface{}, error) {
		if doc := c.current.Load(); doc != nil {
			return doc, nil
		}

		doc, err := c.store.Load(shared)
		if err == nil {
			c.current.Store(doc)
			c.logger.Debug("root document loaded from store", map[string]interface{}{
				"links": len(doc.Links),
			})

			return doc, nil
		}

		if !errors.Is(err, deploy.ErrRootDocumentNotStored) {
			c.logger.Warn("root document store load failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		return c.load(shared)
	}))
}

// Refresh re-fetches the document from the server and replaces the
// snapshot. Callers already holding the previous snapshot keep it.
func (c *Cache) Refresh(ctx context.Context) (*deploy.RootDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	shared := context.WithoutCancel(ctx)

	return wait(ctx, c.group.DoChan("refresh", func() (interface{}, error) {
		return c.load(shared)
	}))
}

// wait blocks until the shared load finishes or ctx is done.
func wait(ctx context.Context, results <-chan singleflight.Result) (*deploy.RootDocument, error) {
	select {
	case <-ctx.Done():
		return nil, cancelled(ctx.Err())
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}

		return result.Val.(*deploy.RootDocument), nil
	}
}

// Invalidate drops the snapshot and clears the store; the next Get fetches
// again.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.current.Store(nil)

	return c.store.Clear(ctx)
}

// Set replaces the snapshot with doc without touching the server.
func (c *Cache) Set(doc *deploy.RootDocument) {
	c.current.Store(doc)
}

// Fetches returns how many times the server was asked for the document.
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

func cancelled(err error) error {
	return &deploy.Error{Kind: deploy.Cancelled, Err: err}
}

func (c *Cache) load(ctx context.Context) (*deploy.RootDocument, error) {
	c.fetches.Add(1)

	doc, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.current.Store(doc)

	err = c.store.Save(ctx, doc)
	if err != nil {
		c.logger.Warn("root document store save failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return doc, nil
}

// Package paging walks paginated collections by following their next-page
// links.
package paging

import (
	"context"
	"iter"
	"sync"

	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

// Fetcher retrieves the page at link.
type Fetcher[T any] func(ctx context.Context, link string) (*deploy.ResourceCollection[T], error)

// Iterator lazily yields the pages of a collection. Nothing is fetched until
// NextPage is called; a failed fetch leaves the iterator where it was so the
// page can be requested again.
type Iterator[T any] struct {
	mu    sync.Mutex
	fetch Fetcher[T]
	next  string
	done  bool
	pages int
	total int
}

// New creates an iterator starting at first.
func New[T any](first string, fetch Fetcher[T]) *Iterator[T] {
	return &Iterator[T]{fetch: fetch, next: first}
}

// HasNext reports whether another page can be requested.
func (it *Iterator[T]) HasNext() bool {
	it.mu.Lock()
	defer it.mu.Unlock()

	return !it.done
}

// NextPage fetches the next page. After the last page it returns
// deploy.ErrNoMorePages.
func (it *Iterator[T]) NextPage(ctx context.Context) (*deploy.ResourceCollection[T], error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.done {
		return nil, deploy.ErrNoMorePages
	}

	if err := ctx.Err(); err != nil {
		return nil, &deploy.Error{Kind: deploy.Cancelled, URL: it.next, Err: err}
	}

	page, err := it.fetch(ctx, it.next)
	if err != nil {
		return nil, err
	}

	it.pages++
	it.total = page.TotalResults

	next, ok := page.NextLink()
	if !ok || next == it.next {
		it.done = true
	} else {
		it.next = next
	}

	return page, nil
}

// PagesFetched returns the number of pages fetched so far.
func (it *Iterator[T]) PagesFetched() int {
	it.mu.Lock()
	defer it.mu.Unlock()

	return it.pages
}

// Total returns the total reported by the most recent page.
func (it *Iterator[T]) Total() int {
	it.mu.Lock()
	defer it.mu.Unlock()

	return it.total
}

// Pages yields each remaining page. Iteration stops after the first error,
// which is yielded with a nil page.
func (it *Iterator[T]) Pages(ctx context.Context) iter.Seq2[*deploy.ResourceCollection[T], error] {
	return func(yield func(*deploy.ResourceCollection[T], error) bool) {
		for it.HasNext() {
			page, err := it.NextPage(ctx)
			if err != nil {
				yield(nil, err)

				return
			}

			if !yield(page, nil) {
				return
			}
		}
	}
}

// Items yields each remaining item across pages.
func (it *Iterator[T]) Items(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range it.Pages(ctx) {
			if err != nil {
				var zero T

				yield(zero, err)

				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect drains the iterator. On error the items gathered so far are
// returned with it.
func (it *Iterator[T]) Collect(ctx context.Context) ([]T, error) {
	var all []T

	for item, err := range it.Items(ctx) {
		if err != nil {
			return all, err
		}

		all = append(all, item)
	}

	return all, nil
}

package batch_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/deploy-client/internal/batch"
	"github.com/fivetwenty-io/deploy-client/pkg/deploy"
)

var errUpstream = errors.New("upstream failed")

type store struct {
	mu       sync.Mutex
	items    map[string]deploy.Project
	gets     []string
	bulkIDs  [][]string
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newStore(ids ...string) *store {
	s := &store{items: make(map[string]deploy.Project)}
	for _, id := range ids {
		s.items[id] = deploy.Project{Resource: deploy.Resource{ID: id}, Name: "name-" + id}
	}

	return s
}

func (s *store) get(_ context.Context, identifier string) (*deploy.Project, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	time.Sleep(2 * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gets = append(s.gets, identifier)

	id := identifier[strings.LastIndex(identifier, "/")+1:]
	if id == "boom" {
		return nil, &deploy.Error{Kind: deploy.Fatal, Err: errUpstream}
	}

	project, ok := s.items[id]
	if !ok {
		return nil, &deploy.Error{Kind: deploy.NotFound, StatusCode: http.StatusNotFound}
	}

	return &project, nil
}

func (s *store) bulk(_ context.Context, ids []string) ([]deploy.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bulkIDs = append(s.bulkIDs, ids)

	var out []deploy.Project

	for i := len(ids) - 1; i >= 0; i-- {
		if project, ok := s.items[ids[i]]; ok {
			out = append(out, project)
		}
	}

	return out, nil
}

func assertOrder(t *testing.T, identifiers []string, results []deploy.Result[deploy.Project]) {
	t.Helper()

	require.Len(t, results, len(identifiers))

	for i, result := range results {
		if result.OK() {
			assert.True(t, strings.HasSuffix(identifiers[i], result.Resource.ID), "slot %d", i)
		}
	}
}

func TestResolver_PerItem(t *testing.T) {
	t.Parallel()

	s := newStore("P-1", "P-2", "P-3", "P-4", "P-5", "P-6")
	resolver := batch.New(batch.Config[deploy.Project]{Get: s.get, Concurrency: 2})
	assert.Equal(t, batch.PerItem, resolver.Strategy())

	identifiers := []string{"P-3", "P-1", "P-missing", "P-2", "boom", "P-1", "", "P-6", "P-5", "P-4"}
	results := resolver.ResolveMany(context.Background(), identifiers)

	assertOrder(t, identifiers, results)
	assert.Equal(t, deploy.NotFound, results[2].Kind())
	assert.Equal(t, deploy.Fatal, results[4].Kind())
	assert.ErrorIs(t, results[4].Err, errUpstream)
	assert.Equal(t, deploy.Fatal, results[6].Kind())
	assert.ErrorIs(t, results[6].Err, deploy.ErrEmptyIdentifier)
	assert.Equal(t, "P-1", results[5].Resource.ID)

	// Duplicates and empty identifiers are not fetched.
	assert.Len(t, s.gets, 8)
	assert.LessOrEqual(t, s.peak.Load(), int64(2))
}

func TestResolver_Bulk(t *testing.T) {
	t.Parallel()

	s := newStore("P-1", "P-2", "P-3")
	resolver := batch.New(batch.Config[deploy.Project]{Get: s.get, Bulk: s.bulk})
	assert.Equal(t, batch.Bulk, resolver.Strategy())

	identifiers := []string{"P-2", "/api/projects/P-3", "P-9", "P-1", "P-2"}
	results := resolver.ResolveMany(context.Background(), identifiers)

	assertOrder(t, identifiers, results)
	assert.True(t, results[0].OK())
	assert.True(t, results[1].OK())
	assert.True(t, deploy.IsNotFound(results[2].Err))
	assert.True(t, results[3].OK())
	assert.Equal(t, "name-P-2", results[4].Resource.Name)

	require.Len(t, s.bulkIDs, 1)
	assert.Equal(t, []string{"P-2", "P-9", "P-1"}, s.bulkIDs[0])
	assert.Equal(t, []string{"/api/projects/P-3"}, s.gets)
}

func TestResolver_BulkFailureFillsBulkSlots(t *testing.T) {
	t.Parallel()

	s := newStore("P-1")
	failing := func(context.Context, []string) ([]deploy.Project, error) {
		return nil, &deploy.Error{Kind: deploy.TransientFailure, Err: errUpstream}
	}

	resolver := batch.New(batch.Config[deploy.Project]{Get: s.get, Bulk: failing})
	results := resolver.ResolveMany(context.Background(), []string{"P-1", "/api/projects/P-1", "P-2"})

	assert.True(t, deploy.IsTransient(results[0].Err))
	assert.True(t, results[1].OK())
	assert.True(t, deploy.IsTransient(results[2].Err))
}

func TestResolver_Empty(t *testing.T) {
	t.Parallel()

	resolver := batch.New(batch.Config[deploy.Project]{Get: newStore().get})
	assert.Empty(t, resolver.ResolveMany(context.Background(), nil))
}

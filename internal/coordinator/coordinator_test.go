package coordinator_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchmcp/internal/apikey"
	"searchmcp/internal/coordinator"
	"searchmcp/internal/mcptools"
	"searchmcp/internal/session"
	"searchmcp/internal/upstream"
)

// fakeStore is an in-memory session.Store shared between coordinators in
// cross-process tests.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]session.Record
	counts    map[string]int64
	limit     int64
	getErr    error
	rateErr   error
	connected bool
	setCalls  int
}

func newFakeStore(limit int64) *fakeStore {
	return &fakeStore{
		records:   make(map[string]session.Record),
		counts:    make(map[string]int64),
		limit:     limit,
		connected: true,
	}
}

func (s *fakeStore) Get(_ context.Context, id string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (s *fakeStore) Set(_ context.Context, rec *session.Record, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	s.records[rec.SessionID] = *rec
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return session.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *fakeStore) CheckRateLimit(_ context.Context, key string) (session.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rateErr != nil {
		return session.RateLimitResult{}, s.rateErr
	}
	s.counts[key]++
	count := s.counts[key]
	return session.RateLimitResult{
		Allowed: count <= s.limit,
		Count:   count,
		Limit:   s.limit,
		ResetAt: time.Now().Add(time.Hour),
	}, nil
}

func (s *fakeStore) IsConnected(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStore) record(id string) (session.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// fakeClient is a canned upstream for tool discovery and search.
type fakeClient struct {
	collections []upstream.Collection
	listErr     error
	listCalls   atomic.Int32
}

func (c *fakeClient) ListCollections(context.Context) ([]upstream.Collection, error) {
	c.listCalls.Add(1)
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.collections, nil
}

func (c *fakeClient) Search(context.Context, string, string, int, string) (json.RawMessage, error) {
	return json.RawMessage(`{"results":[]}`), nil
}

func (c *fakeClient) BaseURL() string { return "https://api.test.local" }

func factory(c *fakeClient) coordinator.ClientFactory {
	return func(string) mcptools.Client { return c }
}

func newCoordinator(store session.Store, client *fakeClient) *coordinator.Coordinator {
	return coordinator.New(store, factory(client), coordinator.Config{
		DefaultCollection: "default",
		DiscoveryTimeout:  time.Second,
	})
}

func params(id, key, ip string) coordinator.ResolveParams {
	return coordinator.ResolveParams{
		SessionID: id,
		APIKey:    key,
		ClientIP:  ip,
		UserAgent: "test-agent/1.0",
	}
}

func TestCoordinator_Resolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates new session on full miss", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		client := &fakeClient{collections: []upstream.Collection{
			{ID: "docs", Name: "Docs", Status: "completed"},
		}}
		c := newCoordinator(store, client)

		entry, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		assert.Equal(t, []string{"search-docs", "get-config"}, entry.Tools())
		assert.Equal(t, 1, c.ActiveSessions())

		rec, ok := store.record("sess-1")
		require.True(t, ok)
		assert.True(t, apikey.Verify("key-1", rec.APIKeyHash))
		assert.Equal(t, "203.0.113.7", rec.ClientIP)
		assert.Equal(t, "test-agent/1.0", rec.UserAgent)
	})

	t.Run("local cache hit skips rediscovery", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		client := &fakeClient{collections: []upstream.Collection{{ID: "docs"}}}
		c := newCoordinator(store, client)

		first, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		second, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), client.listCalls.Load())
	})

	t.Run("rejects missing api key", func(t *testing.T) {
		t.Parallel()

		c := newCoordinator(newFakeStore(100), &fakeClient{})

		_, err := c.Resolve(ctx, params("sess-1", "", "203.0.113.7"))
		require.ErrorIs(t, err, coordinator.ErrMissingAPIKey)
	})

	t.Run("rejects missing session id", func(t *testing.T) {
		t.Parallel()

		c := newCoordinator(newFakeStore(100), &fakeClient{})

		_, err := c.Resolve(ctx, params("", "key-1", "203.0.113.7"))
		require.ErrorIs(t, err, session.ErrMissingSessionID)
	})

	t.Run("enforces creation rate limit per key", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(2)
		c := newCoordinator(store, &fakeClient{})

		_, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		_, err = c.Resolve(ctx, params("sess-2", "key-1", "203.0.113.7"))
		require.NoError(t, err)

		_, err = c.Resolve(ctx, params("sess-3", "key-1", "203.0.113.7"))
		require.ErrorIs(t, err, coordinator.ErrRateLimited)

		var rlErr *coordinator.RateLimitError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, int64(3), rlErr.Result.Count)
		assert.Positive(t, rlErr.Result.RetryAfter())

		// Other keys are unaffected.
		_, err = c.Resolve(ctx, params("sess-4", "key-2", "203.0.113.7"))
		require.NoError(t, err)
	})

	t.Run("rejects binding mismatch without disturbing the session", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		c := newCoordinator(store, &fakeClient{})

		_, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)

		_, err = c.Resolve(ctx, params("sess-1", "key-1", "198.51.100.9"))
		require.ErrorIs(t, err, coordinator.ErrHijackDetected)

		// The legitimate holder keeps working.
		entry, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		assert.False(t, entry.Closed())
	})

	t.Run("rotates session on api key change", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		c := newCoordinator(store, &fakeClient{})

		old, err := c.Resolve(ctx, params("sess-1", "key-old", "203.0.113.7"))
		require.NoError(t, err)

		fresh, err := c.Resolve(ctx, params("sess-1", "key-new", "203.0.113.7"))
		require.NoError(t, err)

		assert.NotSame(t, old, fresh)
		assert.True(t, old.Closed())
		assert.False(t, fresh.Closed())

		rec, ok := store.record("sess-1")
		require.True(t, ok)
		assert.True(t, apikey.Verify("key-new", rec.APIKeyHash))
		assert.False(t, apikey.Verify("key-old", rec.APIKeyHash))
	})

	t.Run("rehydrates from store in another process", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		clientA := &fakeClient{collections: []upstream.Collection{{ID: "docs"}}}
		clientB := &fakeClient{collections: []upstream.Collection{{ID: "docs"}}}
		procA := newCoordinator(store, clientA)
		procB := newCoordinator(store, clientB)

		_, err := procA.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)

		entry, err := procB.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		assert.Equal(t, []string{"search-docs", "get-config"}, entry.Tools())
		assert.Equal(t, 1, procB.ActiveSessions())
		// Rehydration is not a creation, so no rate-limit count is added.
		assert.Equal(t, int64(1), store.counts["key-1"])
	})

	t.Run("rehydration re-validates binding", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		procA := newCoordinator(store, &fakeClient{})
		procB := newCoordinator(store, &fakeClient{})

		_, err := procA.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)

		_, err = procB.Resolve(ctx, params("sess-1", "key-1", "198.51.100.9"))
		require.ErrorIs(t, err, coordinator.ErrHijackDetected)
		assert.Equal(t, 0, procB.ActiveSessions())
	})

	t.Run("fails closed when the store cannot answer", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		store.getErr = session.ErrStoreUnavailable
		c := newCoordinator(store, &fakeClient{})

		_, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.ErrorIs(t, err, coordinator.ErrStoreDegraded)
	})

	t.Run("fails closed when the rate limiter cannot answer", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		store.rateErr = session.ErrStoreUnavailable
		c := newCoordinator(store, &fakeClient{})

		_, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.ErrorIs(t, err, coordinator.ErrStoreDegraded)
	})

	t.Run("falls back to default collection when discovery fails", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		client := &fakeClient{listErr: errors.New("upstream unavailable")}
		c := newCoordinator(store, client)

		entry, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		assert.Equal(t, []string{"search-default", "get-config"}, entry.Tools())
	})
}

func TestCoordinator_Terminate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("removes local entry and distributed record", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		c := newCoordinator(store, &fakeClient{})

		entry, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)

		require.NoError(t, c.Terminate(ctx, "sess-1"))
		assert.True(t, entry.Closed())
		assert.Equal(t, 0, c.ActiveSessions())

		_, ok := store.record("sess-1")
		assert.False(t, ok)
	})

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		c := newCoordinator(store, &fakeClient{})

		_, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)

		require.NoError(t, c.Terminate(ctx, "sess-1"))
		require.NoError(t, c.Terminate(ctx, "sess-1"))
		require.NoError(t, c.Terminate(ctx, "never-existed"))
	})

	t.Run("terminated session is recreated on next use", func(t *testing.T) {
		t.Parallel()

		store := newFakeStore(100)
		c := newCoordinator(store, &fakeClient{})

		_, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		require.NoError(t, c.Terminate(ctx, "sess-1"))

		_, err = c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
		require.NoError(t, err)
		// Recreation counts against the creation rate limit again.
		assert.Equal(t, int64(2), store.counts["key-1"])
	})

	t.Run("rejects empty session id", func(t *testing.T) {
		t.Parallel()

		c := newCoordinator(newFakeStore(100), &fakeClient{})
		require.ErrorIs(t, c.Terminate(ctx, ""), session.ErrMissingSessionID)
	})
}

func TestCoordinator_Shutdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := newFakeStore(100)
	c := newCoordinator(store, &fakeClient{})

	entry, err := c.Resolve(ctx, params("sess-1", "key-1", "203.0.113.7"))
	require.NoError(t, err)

	c.Shutdown()

	assert.True(t, entry.Closed())
	assert.Equal(t, 0, c.ActiveSessions())
	// The distributed record survives so another process can resume.
	_, ok := store.record("sess-1")
	assert.True(t, ok)
}

func TestCoordinator_StoreConnected(t *testing.T) {
	t.Parallel()

	store := newFakeStore(100)
	c := newCoordinator(store, &fakeClient{})
	assert.True(t, c.StoreConnected(context.Background()))

	store.mu.Lock()
	store.connected = false
	store.mu.Unlock()
	assert.False(t, c.StoreConnected(context.Background()))
}

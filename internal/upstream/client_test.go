package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchmcp/internal/upstream"
)

func newTestConfig(baseURL string) upstream.Config {
	return upstream.Config{
		BaseURL:           baseURL,
		DefaultCollection: "default",
		DiscoveryTimeout:  time.Second,
		RequestTimeout:    time.Second,
	}
}

func TestClient_ListCollections(t *testing.T) {
	t.Parallel()

	t.Run("returns collections and sends api key header", func(t *testing.T) {
		t.Parallel()

		var gotKey string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/collections", r.URL.Path)
			gotKey = r.Header.Get("X-API-Key")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"id":"docs","name":"Documentation","status":"synced"},{"id":"kb","name":"Knowledge Base","status":"syncing"}]`))
		}))
		defer srv.Close()

		client := upstream.NewClient(newTestConfig(srv.URL), "sk-test")
		collections, err := client.ListCollections(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "sk-test", gotKey)
		require.Len(t, collections, 2)
		assert.Equal(t, "docs", collections[0].ID)
		assert.Equal(t, "Documentation", collections[0].Name)
		assert.Equal(t, "syncing", collections[1].Status)
	})

	t.Run("fails on non-200 status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		defer srv.Close()

		client := upstream.NewClient(newTestConfig(srv.URL), "sk-test")
		_, err := client.ListCollections(context.Background())

		assert.ErrorIs(t, err, upstream.ErrUnexpectedStatus)
	})

	t.Run("fails on invalid payload", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"}`))
		}))
		defer srv.Close()

		client := upstream.NewClient(newTestConfig(srv.URL), "sk-test")
		_, err := client.ListCollections(context.Background())

		assert.ErrorIs(t, err, upstream.ErrDecodeResponse)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		client := upstream.NewClient(newTestConfig(srv.URL), "sk-test")
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := client.ListCollections(ctx)
		assert.ErrorIs(t, err, upstream.ErrRequestFailed)
	})
}

func TestClient_Search(t *testing.T) {
	t.Parallel()

	t.Run("builds the search request and returns raw payload", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/collections/docs/search", r.URL.Path)
			assert.Equal(t, "how to deploy", r.URL.Query().Get("query"))
			assert.Equal(t, "25", r.URL.Query().Get("limit"))
			assert.Equal(t, "completion", r.URL.Query().Get("response_type"))
			_, _ = w.Write([]byte(`{"results":[{"title":"Deploying"}]}`))
		}))
		defer srv.Close()

		client := upstream.NewClient(newTestConfig(srv.URL), "sk-test")
		raw, err := client.Search(context.Background(), "docs", "how to deploy", 25, "completion")

		require.NoError(t, err)
		assert.JSONEq(t, `{"results":[{"title":"Deploying"}]}`, string(raw))
	})

	t.Run("omits optional params when unset", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.False(t, r.URL.Query().Has("limit"))
			assert.False(t, r.URL.Query().Has("response_type"))
			_, _ = w.Write([]byte(`{"results":[]}`))
		}))
		defer srv.Close()

		client := upstream.NewClient(newTestConfig(srv.URL), "sk-test")
		_, err := client.Search(context.Background(), "docs", "q", 0, "")
		require.NoError(t, err)
	})
}

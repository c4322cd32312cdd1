package server_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchmcp/internal/server"
)

func TestConfig_Addr(t *testing.T) {
	t.Parallel()

	cfg := server.Config{Port: 9090}
	assert.Equal(t, ":9090", cfg.Addr())
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("valid config", func(t *testing.T) {
		t.Parallel()

		srv, err := server.NewFromConfig(server.Config{Port: 8080})
		require.NoError(t, err)
		assert.NotNil(t, srv)
	})

	t.Run("rejects out-of-range port", func(t *testing.T) {
		t.Parallel()

		_, err := server.NewFromConfig(server.Config{Port: 0})
		require.ErrorIs(t, err, server.ErrInvalidPort)

		_, err = server.NewFromConfig(server.Config{Port: 70000})
		require.ErrorIs(t, err, server.ErrInvalidPort)
	})
}

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("stop without start is a no-op", func(t *testing.T) {
		t.Parallel()

		srv := server.New("127.0.0.1:0")
		require.NoError(t, srv.Stop())
	})

	t.Run("run exits cleanly on context cancellation", func(t *testing.T) {
		t.Parallel()

		srv := server.New("127.0.0.1:0")
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- srv.Run(ctx, http.NewServeMux())()
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})
}

// Command searchmcp runs the MCP session server: a stateless-HTTP protocol
// endpoint backed by a Redis session store, exposing per-key search tools
// over the Model Context Protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"searchmcp/internal/config"
	"searchmcp/internal/coordinator"
	"searchmcp/internal/httpapi"
	"searchmcp/internal/logging"
	"searchmcp/internal/mcptools"
	"searchmcp/internal/metrics"
	"searchmcp/internal/redisconn"
	"searchmcp/internal/server"
	"searchmcp/internal/session"
	"searchmcp/internal/upstream"
)

const serverName = "searchmcp"

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:          serverName,
		Short:        "MCP session server for the search API",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	var (
		logCfg   logging.Config
		srvCfg   server.Config
		redisCfg redisconn.Config
		sessCfg  session.Config
		upCfg    upstream.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&logCfg) },
		func() error { return config.Load(&srvCfg) },
		func() error { return config.Load(&redisCfg) },
		func() error { return config.Load(&sessCfg) },
		func() error { return config.Load(&upCfg) },
	} {
		if err := load(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	logger := logging.New(logCfg)
	slog.SetDefault(logger)

	redisClient, err := redisconn.Connect(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := session.NewRedisStore(redisClient, sessCfg,
		session.WithLogger(logger.With(logging.Component("session-store"))))

	collector := metrics.NewMetrics()

	coord := coordinator.New(store,
		func(apiKey string) mcptools.Client { return upstream.NewClient(upCfg, apiKey) },
		coordinator.Config{
			ServerName:        serverName,
			ServerVersion:     version,
			DefaultCollection: upCfg.DefaultCollection,
			DiscoveryTimeout:  upCfg.DiscoveryTimeout,
			TouchInterval:     sessCfg.TouchInterval,
		},
		coordinator.WithLogger(logger.With(logging.Component("coordinator"))),
		coordinator.WithMetrics(collector))

	handler := httpapi.New(coord,
		httpapi.WithLogger(logger.With(logging.Component("httpapi"))),
		httpapi.WithMetrics(collector),
		httpapi.WithServerInfo(serverName, version))

	srv, err := server.NewFromConfig(srvCfg,
		server.WithLogger(logger.With(logging.Component("server"))))
	if err != nil {
		return fmt.Errorf("failed to configure server: %w", err)
	}

	logger.InfoContext(ctx, "starting mcp session server",
		slog.String("addr", srvCfg.Addr()),
		slog.String("version", version),
		slog.String("upstream", upCfg.BaseURL))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(gctx, handler.Routes()))

	err = g.Wait()

	// Local transports are discarded; distributed records stay in Redis so
	// another process can resume the sessions.
	coord.Shutdown()
	if cerr := redisClient.Close(); cerr != nil {
		logger.Warn("failed to close redis client", logging.Error(cerr))
	}

	logger.Info("server stopped")
	return err
}

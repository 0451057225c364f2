package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/incidentfox/incidentfox/internal/config"
	"github.com/incidentfox/incidentfox/internal/handlers"
	"github.com/incidentfox/incidentfox/internal/mcp"
	"github.com/incidentfox/incidentfox/internal/metrics"
	"github.com/incidentfox/incidentfox/internal/middleware"
	"github.com/incidentfox/incidentfox/internal/notify"
	"github.com/incidentfox/incidentfox/internal/ratelimit"
	"github.com/incidentfox/incidentfox/internal/tools"
)

const (
	mcpEndpointPath = "/mcp"
	shutdownTimeout = 5 * time.Second
)

var (
	transportType string
	httpAddr      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server exposing investigation history,
discovery and catalog tools.

Supports two transport modes:
  - stdio: newline-delimited JSON-RPC on stdin/stdout (default, for agent subprocesses)
  - http:  streamable HTTP at /mcp, with /health, /metrics and a read-only /api`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&transportType, "transport", "", "Transport type: stdio or http (default from config)")
	serveCmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address for the http transport (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if transportType != "" {
		a.cfg.MCP.Transport = transportType
	}
	if httpAddr != "" {
		a.cfg.MCP.HTTPAddr = httpAddr
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	m := metrics.New()
	server := newMCPServer(a, m)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Without a watcher the cache TTL still bounds staleness
		if err := a.catalog.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("Catalog watcher disabled")
		}
		return nil
	})

	switch a.cfg.MCP.Transport {
	case config.TransportHTTP:
		srv := &http.Server{
			Addr:              a.cfg.MCP.HTTPAddr,
			Handler:           newHTTPHandler(a, server, m),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info().
				Str("addr", srv.Addr).
				Str("endpoint", mcpEndpointPath).
				Msg("MCP server listening on HTTP")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http transport: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			log.Info().Msg("Shutting down HTTP server...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})

	default:
		g.Go(func() error {
			// Closing stdin ends the session and stops the watcher with it
			defer cancel()
			return server.ServeStdio(ctx, os.Stdin, os.Stdout)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// newMCPServer registers every tool and the catalog resource
func newMCPServer(a *app, m *metrics.Metrics) *mcp.Server {
	server := mcp.NewServer("incidentfox", Version, m)
	a.notifications = notify.NewDispatcher(notify.New(a.cfg.Slack.WebhookURL, a.cfg.Slack.Channel))
	tools.NewRegistry(server, tools.Deps{
		Investigations: a.investigations,
		Discoveries:    a.discoveries,
		Catalog:        a.catalog,
		Notifications:  a.notifications,
	}).RegisterAllTools()
	return server
}

// newHTTPHandler mounts the MCP endpoint, health, metrics and the JSON API on
// one mux. Health and metrics stay reachable without an API key.
func newHTTPHandler(a *app, server *mcp.Server, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	handlers.NewHTTPHandler(a.investigations, a.discoveries, Version).SetupRoutes(mux)
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle(mcpEndpointPath, server.HTTPHandler(mcpEndpointPath))

	auth := middleware.NewAuthMiddleware(middleware.AuthConfig{
		APIKeys:   a.cfg.MCP.APIKeys,
		SkipPaths: []string{"/health", "/metrics"},
	})
	limiter := ratelimit.New(a.cfg.MCP.RateLimit, a.cfg.MCP.RateBurst)
	log.Info().
		Bool("auth", auth.IsEnabled()).
		Bool("rate_limit", limiter.Enabled()).
		Msg("HTTP middleware configured")

	return middleware.Chain(mux,
		middleware.RequestIDMiddleware,
		middleware.AccessLog,
		auth.Wrap,
		middleware.RateLimit(limiter),
	)
}

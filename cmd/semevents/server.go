package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/semevents/config"
	"github.com/c360/semevents/health"
	"github.com/c360/semevents/metric"
)

// serveHTTP serves srv on ln until ctx is done, then shuts it down gracefully
func serveHTTP(ctx context.Context, g *errgroup.Group, srv *http.Server, ln net.Listener,
	shutdownTimeout time.Duration, logger *slog.Logger) {
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown incomplete", "addr", ln.Addr().String(), "error", err)
			return err
		}
		return nil
	})
}

// startMetrics serves the registry and the monitor's health report when
// metrics are enabled
func startMetrics(ctx context.Context, g *errgroup.Group, cfg *config.Config, registry *metric.MetricsRegistry,
	monitor *health.Monitor, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if registry == nil {
		return nil
	}
	ln, err := net.Listen("tcp", cfg.Metrics.Listen)
	if err != nil {
		return err
	}
	ms := metric.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, registry)
	ms.SetHealthHandler(monitor.Handler(appName))
	srv := &http.Server{
		Handler:           ms.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveHTTP(ctx, g, srv, ln, shutdownTimeout, logger.With("server", "metrics"))
	return nil
}

package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/semevents/config"
	"github.com/c360/semevents/gateway"
	"github.com/c360/semevents/health"
	"github.com/c360/semevents/pkg/tlsutil"
)

// runServe accepts published events on the gateway listener until ctx is done
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", cfg.Gateway.Listen)
	if err != nil {
		return err
	}
	return serveGateway(ctx, cfg, logger, ln, shutdownTimeout)
}

func serveGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener,
	shutdownTimeout time.Duration) error {
	defer ln.Close()
	registry := metricsRegistry(cfg)
	monitor := health.NewMonitor()

	manager, challenge, err := buildAuthz(cfg.Authz)
	if err != nil {
		return err
	}
	tlsConfig, err := tlsutil.LoadServerConfig(cfg.Gateway.TLS)
	if err != nil {
		return err
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	pubs, closePubs, err := buildPublishers(ctx, cfg, logger, registry, monitor)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closePubs.Close(closeCtx); err != nil {
			logger.Warn("Failed to close publishers", "error", err)
		}
	}()

	opts := []gateway.Option{gateway.WithLogger(logger), gateway.WithChallenge(challenge)}
	if registry != nil {
		opts = append(opts, gateway.WithMetrics(registry))
	}
	handler, err := gateway.NewHandler(cfg.GatewayConfig(), manager, pubs, opts...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handler.RegisterHTTPHandlers("", mux)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := startMetrics(gctx, g, cfg, registry, monitor, shutdownTimeout, logger); err != nil {
		return err
	}
	serveHTTP(gctx, g, srv, ln, shutdownTimeout, logger.With("server", "gateway"))

	monitor.UpdateHealthy("gateway", "accepting events on "+handler.Path())
	logger.Info("Relay started", "path", handler.Path(), "relay_id", cfg.Gateway.RelayID,
		"authz", manager != nil, "tls", tlsConfig != nil, "publishers", len(pubs))
	err = g.Wait()
	logger.Info("Relay stopped")
	return err
}

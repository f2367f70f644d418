package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/semevents/authz"
	"github.com/c360/semevents/config"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/health"
	"github.com/c360/semevents/metric"
	"github.com/c360/semevents/natsclient"
	"github.com/c360/semevents/pkg/tlsutil"
	"github.com/c360/semevents/publisher"
	"github.com/c360/semevents/publisher/httppost"
	"github.com/c360/semevents/publisher/logpub"
	"github.com/c360/semevents/publisher/natspub"
	"github.com/c360/semevents/publisher/wspub"
	"github.com/c360/semevents/scheduler"
	"github.com/c360/semevents/source"
)

// closers releases resources in reverse creation order
type closers []func(ctx context.Context) error

func (c closers) Close(ctx context.Context) error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func metricsRegistry(cfg *config.Config) *metric.MetricsRegistry {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metric.NewMetricsRegistry()
}

// buildPublishers creates every configured publisher. On error the ones
// already created are closed.
func buildPublishers(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
) ([]publisher.Publisher, closers, error) {
	var (
		pubs []publisher.Publisher
		done closers
	)
	fail := func(err error) ([]publisher.Publisher, closers, error) {
		_ = done.Close(context.Background())
		return nil, nil, err
	}

	for i, pc := range cfg.Publishers.HTTP {
		opts := []httppost.Option{httppost.WithLogger(logger)}
		if !pc.TLS.IsZero() {
			tlsConfig, err := tlsutil.LoadClientConfig(pc.TLS)
			if err != nil {
				return fail(err)
			}
			opts = append(opts, httppost.WithTLSConfig(tlsConfig))
		}
		p, err := httppost.New(cfg.HTTPPublisherConfig(i), opts...)
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, p)
	}

	for i, pc := range cfg.Publishers.WebSocket {
		opts := []wspub.Option{wspub.WithLogger(logger)}
		if !pc.TLS.IsZero() {
			tlsConfig, err := tlsutil.LoadClientConfig(pc.TLS)
			if err != nil {
				return fail(err)
			}
			opts = append(opts, wspub.WithTLSConfig(tlsConfig))
		}
		p, err := wspub.New(cfg.WebSocketPublisherConfig(i), opts...)
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, p)
		done = append(done, func(context.Context) error { return p.Close() })
	}

	if cfg.Publishers.NATS.Enabled {
		client, err := connectNATS(ctx, cfg, logger, registry)
		if err != nil {
			return fail(err)
		}
		done = append(done, client.Close)
		if monitor != nil {
			monitor.AddCheck("nats", natsCheck(client))
		}

		p, err := natspub.New(client,
			natspub.WithPrefix(cfg.Publishers.NATS.Prefix),
			natspub.WithLogger(logger))
		if err != nil {
			return fail(err)
		}
		pubs = append(pubs, p)
	}

	if cfg.Publishers.Log.Enabled {
		level, err := config.ParseLevel(cfg.Publishers.Log.Level)
		if err != nil {
			return fail(err)
		}
		opts := []logpub.Option{logpub.WithLevel(level)}
		if cfg.Publishers.Log.Body {
			opts = append(opts, logpub.WithBody())
		}
		pubs = append(pubs, logpub.New(logger, opts...))
	}

	for _, p := range pubs {
		logger.Info("Publisher configured", "publisher", publisher.Name(p))
	}
	return pubs, done, nil
}

// connectNATS connects and waits for the connection to be ready
func connectNATS(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithClientName(cfg.NATS.ClientName),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Std()))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if registry != nil {
		opts = append(opts, natsclient.WithMetrics(registry))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

// buildAuthz combines the configured managers. It returns a nil manager
// when no authorization is configured.
func buildAuthz(cfg config.AuthzConfig) (authz.Manager, string, error) {
	if cfg.BasicFile != "" && cfg.DigestFile != "" {
		return nil, "", fmt.Errorf("authz: basic_file and digest_file are mutually exclusive")
	}

	var (
		managers  []authz.Manager
		challenge string
	)
	if cfg.IPWhitelist != "" {
		m, err := authz.LoadIPManager(cfg.IPWhitelist)
		if err != nil {
			return nil, "", err
		}
		managers = append(managers, m)
	}
	if cfg.BasicFile != "" {
		var opts []authz.BasicOption
		if cfg.Bcrypt {
			opts = append(opts, authz.WithBcrypt())
		}
		m, err := authz.LoadBasicManager(cfg.BasicFile, opts...)
		if err != nil {
			return nil, "", err
		}
		managers = append(managers, m)
		challenge = m.Challenge(cfg.BasicRealm)
	}
	if cfg.DigestFile != "" {
		var opts []authz.DigestOption
		if cfg.DigestSHA256 {
			opts = append(opts, authz.WithSHA256())
		}
		m, err := authz.LoadDigestManager(cfg.DigestFile, opts...)
		if err != nil {
			return nil, "", err
		}
		managers = append(managers, m)
		challenge = m.Challenge()
	}

	if len(managers) == 0 {
		return nil, "", nil
	}
	return authz.All(managers...), challenge, nil
}

// buildSource opens the replay source
func buildSource(cfg *config.Config, reg *event.Registry) (source.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Source.Type {
	case config.SourceFile:
		opts := []source.ReaderOption{source.WithChunkSize(cfg.Source.ChunkSize)}
		if cfg.Source.DeferBodies {
			opts = append(opts, source.WithDeferredBodies())
		}
		r, err := source.OpenFile(cfg.Source.Path, reg, opts...)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	case config.SourceSynthetic:
		s, err := source.NewSynthetic(cfg.SyntheticConfig())
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// schedulerOptions builds the scheduler options from configuration
func schedulerOptions(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) ([]scheduler.Option, error) {
	opts := []scheduler.Option{scheduler.WithLogger(logger)}
	if registry != nil {
		opts = append(opts, scheduler.WithMetrics(registry))
	}
	if cfg.Replay.Distribution != "" {
		gen, err := scheduler.ParseDistribution(cfg.Replay.Distribution)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scheduler.WithTimeGenerator(gen))
	}
	return opts, nil
}

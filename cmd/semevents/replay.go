package main

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/semevents/config"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/health"
	"github.com/c360/semevents/scheduler"
)

// runReplay publishes the configured source until it is exhausted or ctx
// is cancelled.
func runReplay(ctx context.Context, cfg *config.Config, logger *slog.Logger, shutdownTimeout time.Duration) error {
	registry := metricsRegistry(cfg)
	monitor := health.NewMonitor()

	src, closeSource, err := buildSource(cfg, event.DefaultRegistry())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSource(); err != nil {
			logger.Warn("Failed to close source", "error", err)
		}
	}()

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

	opts, err := schedulerOptions(cfg, logger, registry)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(cfg.SchedulerConfig(), src, pubs, opts...)
	if err != nil {
		return err
	}
	monitor.AddCheck("scheduler", schedulerCheck(sched))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if err := startMetrics(gctx, g, cfg, registry, monitor, shutdownTimeout, logger); err != nil {
		return err
	}

	g.Go(func() error {
		// The replay ending stops the metrics server too
		defer cancel()
		return sched.Run(gctx)
	})

	start := time.Now()
	err = g.Wait()
	logger.Info("Replay finished", "source_id", cfg.Replay.SourceID,
		"elapsed", time.Since(start).String(), "state", sched.State().String())
	return err
}

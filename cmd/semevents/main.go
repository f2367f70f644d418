// Package main implements the semevents command: replaying event streams to
// publishers and relaying events published over HTTP.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/c360/semevents/config"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semevents"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cli); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cli.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil
	}
	if cli.ShowHelp {
		return nil
	}

	cfg, err := loadConfig(cli.ConfigPaths)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}

	logger := setupLogger(stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("Starting semevents", "command", cli.Command,
		"build_time", BuildTime, "config_paths", cli.ConfigPaths)
	logger.Debug("Configuration loaded", "config", cfg.String())

	if err := validateConfig(cli.Command, cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch cli.Command {
	case cmdValidate:
		logger.Info("Configuration is valid")
		return nil
	case cmdReplay:
		err = runReplay(ctx, cfg, logger, cli.ShutdownTimeout)
	case cmdServe:
		err = runServe(ctx, cfg, logger, cli.ShutdownTimeout)
	}

	// An interrupt is a clean stop
	if err != nil && stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("Stopped by signal")
		return nil
	}
	return err
}

// validateConfig validates the sections the command needs
func validateConfig(command string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if command == cmdReplay {
		return cfg.ValidateReplay()
	}
	return nil
}

// loadConfig loads the configuration layers in order
func loadConfig(paths []string) (*config.Config, error) {
	loader := config.NewLoader()
	for _, path := range paths {
		loader.AddLayer(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

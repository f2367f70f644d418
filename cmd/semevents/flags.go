package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Commands
const (
	cmdReplay   = "replay"
	cmdServe    = "serve"
	cmdValidate = "validate"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	Command         string
	ConfigPaths     []string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
}

// configPaths collects repeated -config flags as layers
type configPaths []string

func (p *configPaths) String() string {
	return fmt.Sprint([]string(*p))
}

func (p *configPaths) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var paths configPaths
	fs.Var(&paths, "config",
		"Configuration file, JSON or YAML; repeat to layer overrides (env: SEMEVENTS_CONFIG)")
	fs.Var(&paths, "c", "Shorthand for -config")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SEMEVENTS_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error; overrides log.level (env: SEMEVENTS_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SEMEVENTS_LOG_FORMAT", ""),
		"Log format: json, text; overrides log.format (env: SEMEVENTS_LOG_FORMAT)")

	fs.BoolVar(&cfg.Debug, "debug",
		getEnvBool("SEMEVENTS_DEBUG", false),
		"Enable debug logging (env: SEMEVENTS_DEBUG)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SEMEVENTS_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SEMEVENTS_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	fs.Usage = func() {
		printDetailedHelp(stderr, fs)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ShowHelp {
		fs.Usage()
	}

	cfg.ConfigPaths = paths
	if len(cfg.ConfigPaths) == 0 {
		if env := os.Getenv("SEMEVENTS_CONFIG"); env != "" {
			cfg.ConfigPaths = []string{env}
		}
	}
	if fs.NArg() > 0 {
		cfg.Command = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("unexpected arguments after %s: %v", cfg.Command, fs.Args()[1:])
	}

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	switch cfg.Command {
	case cmdReplay, cmdServe, cmdValidate:
	case "":
		return fmt.Errorf("missing command: %s, %s or %s", cmdReplay, cmdServe, cmdValidate)
	default:
		return fmt.Errorf("unknown command: %s", cfg.Command)
	}

	if len(cfg.ConfigPaths) == 0 {
		return fmt.Errorf("no configuration file given (-config)")
	}
	for _, path := range cfg.ConfigPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func printDetailedHelp(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(w, `%s - event publishing middleware

Usage: %s [options] <command>

Commands:
  replay     Replay a recorded or synthetic event stream to the publishers
  serve      Accept published events over HTTP and relay them
  validate   Validate configuration and exit

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Replay a recording ten times faster than it happened
  export SEMEVENTS_TIME_SCALE=10
  %s -config replay.yaml replay

  # Run the relay with a production override layer
  %s -config base.yaml -config prod.yaml serve

  # Validate configuration only
  %s -config replay.yaml validate

Version: %s
Build: %s
`, appName, appName, appName, Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

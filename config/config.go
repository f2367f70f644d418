package config

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/gateway"
	"github.com/c360/semevents/pkg/tlsutil"
	"github.com/c360/semevents/publisher/httppost"
	"github.com/c360/semevents/publisher/wspub"
	"github.com/c360/semevents/scheduler"
	"github.com/c360/semevents/source"
)

// Source types
const (
	SourceFile      = "file"
	SourceSynthetic = "synthetic"
)

// Config represents the complete application configuration
type Config struct {
	Version    string           `json:"version,omitempty"`
	Source     SourceConfig     `json:"source"`
	Replay     ReplayConfig     `json:"replay"`
	Publishers PublishersConfig `json:"publishers"`
	NATS       NATSConfig       `json:"nats"`
	Gateway    GatewayConfig    `json:"gateway"`
	Authz      AuthzConfig      `json:"authz"`
	Metrics    MetricsConfig    `json:"metrics"`
	Log        LogConfig        `json:"log"`
}

// SourceConfig selects where replayed events come from
type SourceConfig struct {
	Type string `json:"type"` // file or synthetic

	// File source
	Path        string `json:"path,omitempty"`
	ChunkSize   int    `json:"chunk_size,omitempty"`
	DeferBodies bool   `json:"defer_bodies,omitempty"`

	// Synthetic source
	Synthetic SyntheticConfig `json:"synthetic"`
}

// SyntheticConfig configures generated events
type SyntheticConfig struct {
	ApplicationID string    `json:"application_id,omitempty"`
	Kind          string    `json:"kind"`
	Count         int       `json:"count"` // 0 = unbounded
	Start         time.Time `json:"start,omitempty"`
	Interval      Duration  `json:"interval"`
	Seed          int64     `json:"seed,omitempty"`
}

// ReplayConfig configures the scheduler
type ReplayConfig struct {
	SourceID     string   `json:"source_id"`
	TimeScale    float64  `json:"time_scale"`
	Period       Duration `json:"period"`
	StartupDelay Duration `json:"startup_delay"`
	AddTimestamp bool     `json:"add_timestamp"`
	// Distribution replaces recorded timestamps, e.g. "exp[0.5]" or "const[2]"
	Distribution string   `json:"distribution,omitempty"`
	Workers      int      `json:"workers"`
	QueueSize    int      `json:"queue_size"`
	StopTimeout  Duration `json:"stop_timeout"`
}

// PublishersConfig lists the publish targets
type PublishersConfig struct {
	HTTP      []HTTPPublisherConfig      `json:"http,omitempty"`
	WebSocket []WebSocketPublisherConfig `json:"websocket,omitempty"`
	NATS      NATSPublisherConfig        `json:"nats"`
	Log       LogPublisherConfig         `json:"log"`
}

// HTTPPublisherConfig configures one HTTP POST target
type HTTPPublisherConfig struct {
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timeout    Duration          `json:"timeout,omitempty"`
	RetryCount int               `json:"retry_count,omitempty"`
	Username   string            `json:"username,omitempty"`
	Password   string            `json:"password,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls"`
}

// WebSocketPublisherConfig configures one WebSocket target
type WebSocketPublisherConfig struct {
	URL              string            `json:"url"`
	Headers          map[string]string `json:"headers,omitempty"`
	HandshakeTimeout Duration          `json:"handshake_timeout,omitempty"`
	WriteTimeout     Duration          `json:"write_timeout,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls"`
}

// NATSPublisherConfig enables publishing to NATS subjects
type NATSPublisherConfig struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix,omitempty"`
}

// LogPublisherConfig enables logging every published event
type LogPublisherConfig struct {
	Enabled bool   `json:"enabled"`
	Level   string `json:"level,omitempty"`
	Body    bool   `json:"body,omitempty"`
}

// NATSConfig defines NATS connection settings
type NATSConfig struct {
	URL           string   `json:"url,omitempty"`
	ClientName    string   `json:"client_name,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Token         string   `json:"token,omitempty"`
}

// GatewayConfig configures the publish endpoint of the serve command
type GatewayConfig struct {
	Listen         string   `json:"listen"`
	Path           string   `json:"path"`
	RelayID        string   `json:"relay_id,omitempty"`
	MaxRequestSize int64    `json:"max_request_size,omitempty"`
	ChunkSize      int      `json:"chunk_size,omitempty"`
	RateLimit      float64  `json:"rate_limit,omitempty"`
	RateBurst      int      `json:"rate_burst,omitempty"`
	RelayTimeout   Duration `json:"relay_timeout,omitempty"`
	EnableCORS     bool     `json:"enable_cors"`
	CORSOrigins    []string `json:"cors_origins,omitempty"`

	TLS tlsutil.ServerConfig `json:"tls"`
}

// AuthzConfig names the authorization files. Each non-empty file enables
// its manager; all enabled managers must allow a request.
type AuthzConfig struct {
	IPWhitelist  string `json:"ip_whitelist,omitempty"`
	BasicFile    string `json:"basic_file,omitempty"`
	BasicRealm   string `json:"basic_realm,omitempty"`
	Bcrypt       bool   `json:"bcrypt,omitempty"`
	DigestFile   string `json:"digest_file,omitempty"`
	DigestSHA256 bool   `json:"digest_sha256,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen"`
	Path    string `json:"path"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or text
}

// Validate checks if the config is valid. The source and replay sections
// are only checked when a source type is set.
func (c *Config) Validate() error {
	if c.Source.Type != "" {
		if err := c.validateReplay(); err != nil {
			return err
		}
	}

	for i, p := range c.Publishers.HTTP {
		hc := c.HTTPPublisherConfig(i)
		if err := hc.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "publishers.http["+p.URL+"]")
		}
		if err := p.TLS.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "publishers.http["+p.URL+"].tls")
		}
	}
	for i, p := range c.Publishers.WebSocket {
		wc := c.WebSocketPublisherConfig(i)
		if err := wc.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "publishers.websocket["+p.URL+"]")
		}
		if err := p.TLS.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "publishers.websocket["+p.URL+"].tls")
		}
	}
	if _, err := ParseLevel(c.Publishers.Log.Level); err != nil {
		return err
	}

	if c.Publishers.NATS.Enabled {
		if err := validateURL(c.NATS.URL, "nats", "tls"); err != nil {
			return errors.Configf("nats.url: %v", err)
		}
	}

	gc := c.GatewayConfig()
	if err := gc.Validate(); err != nil {
		return err
	}
	if err := c.Gateway.TLS.Validate(); err != nil {
		return errors.Wrap(err, "Config", "Validate", "gateway.tls")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return errors.Configf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// ValidateReplay checks that the configuration describes a runnable replay
func (c *Config) ValidateReplay() error {
	if c.Source.Type == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "ValidateReplay",
			"source.type is required")
	}
	return c.validateReplay()
}

func (c *Config) validateReplay() error {
	switch c.Source.Type {
	case SourceFile:
		if c.Source.Path == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"source.path is required for file sources")
		}
	case SourceSynthetic:
		if err := c.SyntheticConfig().Validate(); err != nil {
			return err
		}
	default:
		return errors.Configf("source.type must be %q or %q, got %q", SourceFile, SourceSynthetic, c.Source.Type)
	}
	if c.Source.ChunkSize < 0 {
		return errors.Configf("source.chunk_size cannot be negative")
	}

	sc := c.SchedulerConfig()
	if err := sc.Validate(); err != nil {
		return err
	}
	if c.Replay.Distribution != "" {
		if _, err := scheduler.ParseDistribution(c.Replay.Distribution); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.ErrMissingConfig
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return errors.Configf("unsupported scheme %q", u.Scheme)
}

// ParseLevel converts a level name to a slog.Level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Configf("unknown log level %q", level)
	}
}

// SchedulerConfig returns the scheduler configuration of the replay section
func (c *Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		SourceID:     c.Replay.SourceID,
		TimeScale:    c.Replay.TimeScale,
		Period:       c.Replay.Period.Std(),
		StartupDelay: c.Replay.StartupDelay.Std(),
		AddTimestamp: c.Replay.AddTimestamp,
		Workers:      c.Replay.Workers,
		QueueSize:    c.Replay.QueueSize,
		StopTimeout:  c.Replay.StopTimeout.Std(),
	}
}

// SyntheticConfig returns the synthetic source configuration
func (c *Config) SyntheticConfig() source.SyntheticConfig {
	s := c.Source.Synthetic
	return source.SyntheticConfig{
		SourceID:      c.Replay.SourceID,
		ApplicationID: s.ApplicationID,
		Kind:          s.Kind,
		Count:         s.Count,
		Start:         s.Start,
		Interval:      s.Interval.Std(),
		Seed:          s.Seed,
	}
}

// HTTPPublisherConfig returns the i-th HTTP publisher configuration
func (c *Config) HTTPPublisherConfig(i int) httppost.Config {
	p := c.Publishers.HTTP[i]
	cfg := httppost.DefaultConfig()
	cfg.URL = p.URL
	cfg.Headers = p.Headers
	if p.Timeout != 0 {
		cfg.Timeout = p.Timeout.Std()
	}
	if p.RetryCount != 0 {
		cfg.RetryCount = p.RetryCount
	}
	cfg.Username = p.Username
	cfg.Password = p.Password
	return cfg
}

// WebSocketPublisherConfig returns the i-th WebSocket publisher configuration
func (c *Config) WebSocketPublisherConfig(i int) wspub.Config {
	p := c.Publishers.WebSocket[i]
	return wspub.Config{
		URL:              p.URL,
		Headers:          p.Headers,
		HandshakeTimeout: p.HandshakeTimeout.Std(),
		WriteTimeout:     p.WriteTimeout.Std(),
	}
}

// GatewayConfig returns the publish handler configuration
func (c *Config) GatewayConfig() gateway.Config {
	g := c.Gateway
	return gateway.Config{
		Path:           g.Path,
		RelayID:        g.RelayID,
		MaxRequestSize: g.MaxRequestSize,
		ChunkSize:      g.ChunkSize,
		RateLimit:      g.RateLimit,
		RateBurst:      g.RateBurst,
		RelayTimeout:   g.RelayTimeout.Std(),
		EnableCORS:     g.EnableCORS,
		CORSOrigins:    g.CORSOrigins,
	}
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Redacted returns a copy with passwords and tokens masked
func (c *Config) Redacted() *Config {
	r := c.Clone()
	mask := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	mask(&r.NATS.Password)
	mask(&r.NATS.Token)
	for i := range r.Publishers.HTTP {
		mask(&r.Publishers.HTTP[i].Password)
	}
	return r
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

package httppost

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/pkg/retry"
)

// ContentType is the media type of serialized event streams.
const ContentType = "application/ztreamy-event"

// Config holds configuration for the HTTP publisher
type Config struct {
	URL        string            `json:"url"         yaml:"url"`
	Headers    map[string]string `json:"headers"     yaml:"headers"`
	Timeout    time.Duration     `json:"timeout"     yaml:"timeout"`
	RetryCount int               `json:"retry_count" yaml:"retry_count"`
	// Username and Password, when set, are sent as Basic credentials.
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url scheme must be http or https")
	}
	if c.Timeout < 0 || c.Timeout > 5*time.Minute {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout must be between 0 and 5m")
	}
	if c.RetryCount < 0 || c.RetryCount > 10 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"retry_count must be between 0 and 10")
	}
	return nil
}

// DefaultConfig returns default configuration for the HTTP publisher
func DefaultConfig() Config {
	return Config{
		URL:        "http://localhost:9000/events/publish",
		Headers:    make(map[string]string),
		Timeout:    30 * time.Second,
		RetryCount: 3,
	}
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Publisher) { p.client = client }
}

// WithTLSConfig sets the configuration used for https:// targets. It
// replaces the transport of the current client, so apply it after
// WithHTTPClient.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(p *Publisher) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		p.client.Transport = transport
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBackoffUnit sets the first retry wait. Later waits double up to
// eight times the unit.
func WithBackoffUnit(unit time.Duration) Option {
	return func(p *Publisher) {
		p.backoffUnit = unit
		p.maxBackoff = 8 * unit
	}
}

// Publisher POSTs records to one stream server. It is safe for concurrent
// use.
type Publisher struct {
	cfg         Config
	client      *http.Client
	logger      *slog.Logger
	backoffUnit time.Duration
	maxBackoff  time.Duration
}

// New validates cfg and creates a publisher.
func New(cfg Config, opts ...Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	p := &Publisher{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      slog.Default(),
		backoffUnit: 100 * time.Millisecond,
		maxBackoff:  800 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "httppost", "url", cfg.URL)
	return p, nil
}

// Name identifies the publisher in logs and metrics.
func (p *Publisher) Name() string {
	return "httppost:" + p.cfg.URL
}

// Publish serializes rec and POSTs it, retrying transient failures.
func (p *Publisher) Publish(ctx context.Context, rec *event.Record) error {
	data, err := rec.Serialize()
	if err != nil {
		return errors.WrapInvalid(err, "httppost", "Publish", "serialize event")
	}

	cfg := retry.Config{
		MaxAttempts:  p.cfg.RetryCount + 1,
		InitialDelay: p.backoffUnit,
		MaxDelay:     p.maxBackoff,
		Multiplier:   2.0,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			p.logger.Debug("Retrying publish", "attempt", attempt, "wait", wait,
				"event_id", rec.EventID(), "error", err)
		},
	}
	return retry.Do(ctx, cfg, func() error { return p.send(ctx, data) })
}

// send makes a single POST request.
func (p *Publisher) send(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return errors.WrapInvalid(err, "httppost", "send", "build request")
	}
	req.Header.Set("Content-Type", ContentType)
	for key, value := range p.cfg.Headers {
		req.Header.Set(key, value)
	}
	if p.cfg.Username != "" {
		req.SetBasicAuth(p.cfg.Username, p.cfg.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrPublishFailed, err), "httppost", "send", "post event")
	}
	defer resp.Body.Close()

	// Read and discard body to reuse connection
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return errors.WrapTransient(fmt.Errorf("%w: HTTP %d", errors.ErrPublishFailed, resp.StatusCode),
			"httppost", "send", "post event")
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: HTTP %d", errors.ErrPublishFailed, resp.StatusCode),
			"httppost", "send", "post event")
	}
}

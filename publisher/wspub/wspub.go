// Package wspub publishes serialized event records as websocket text
// frames, one record per frame.
//
// The connection is dialled on the first Publish and redialled on the next
// Publish after a write failure. Writes are serialized on the connection.
package wspub

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
)

// Config holds configuration for the websocket publisher
type Config struct {
	URL              string            `json:"url"               yaml:"url"`
	Headers          map[string]string `json:"headers"           yaml:"headers"`
	HandshakeTimeout time.Duration     `json:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout     time.Duration     `json:"write_timeout"     yaml:"write_timeout"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url must be a ws:// or wss:// URL")
	}
	if c.HandshakeTimeout < 0 || c.WriteTimeout < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "timeouts cannot be negative")
	}
	return nil
}

// Publisher writes records to one websocket endpoint.
type Publisher struct {
	cfg    Config
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTLSConfig sets the configuration used to dial wss:// endpoints.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(p *Publisher) { p.dialer.TLSClientConfig = cfg }
}

// New validates cfg and creates a publisher. It does not dial.
func New(cfg Config, opts ...Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 45 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	header := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}

	p := &Publisher{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		header: header,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "wspub", "url", cfg.URL)
	return p, nil
}

// Name identifies the publisher in logs and metrics.
func (p *Publisher) Name() string {
	return "ws:" + p.cfg.URL
}

// Publish writes rec as one text frame, dialling first if needed.
func (p *Publisher) Publish(ctx context.Context, rec *event.Record) error {
	data, err := rec.Serialize()
	if err != nil {
		return errors.WrapInvalid(err, "wspub", "Publish", "serialize event")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		conn, _, err := p.dialer.DialContext(ctx, p.cfg.URL, p.header)
		if err != nil {
			return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrPublishFailed, err), "wspub", "Publish", "dial")
		}
		p.logger.Debug("Connected")
		p.conn = conn
	}

	_ = p.conn.SetWriteDeadline(time.Now().Add(p.cfg.WriteTimeout))
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		p.logger.Warn("Write failed, will redial", "error", err)
		_ = p.conn.Close()
		p.conn = nil
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrPublishFailed, err), "wspub", "Publish", "write frame")
	}
	return nil
}

// Close sends a close frame and closes the connection, if any.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := p.conn.Close()
	p.conn = nil
	return err
}

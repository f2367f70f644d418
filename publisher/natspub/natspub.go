// Package natspub publishes serialized event records on NATS subjects.
//
// Records go to "<prefix>.<source id>", so subscribers can select one
// source or use "<prefix>.>" for all of them. Characters that are not
// valid inside a subject token are replaced by '_'.
package natspub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "semevents.events"

// Conn is the part of natsclient.Client the publisher needs.
type Conn interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Publisher publishes records through a NATS connection.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" {
			p.prefix = strings.TrimSuffix(prefix, ".")
		}
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

// New creates a publisher on conn.
func New(conn Conn, opts ...Option) (*Publisher, error) {
	if conn == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natspub", "New", "connection is required")
	}
	p := &Publisher{conn: conn, prefix: DefaultPrefix, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "natspub", "prefix", p.prefix)
	return p, nil
}

// Name identifies the publisher in logs and metrics.
func (p *Publisher) Name() string {
	return "nats:" + p.prefix
}

// Subject returns the subject records of sourceID are published on.
func (p *Publisher) Subject(sourceID string) string {
	return p.prefix + "." + subjectToken(sourceID)
}

// Publish serializes rec and publishes it on its source subject.
func (p *Publisher) Publish(ctx context.Context, rec *event.Record) error {
	data, err := rec.Serialize()
	if err != nil {
		return errors.WrapInvalid(err, "natspub", "Publish", "serialize event")
	}
	subject := p.Subject(rec.SourceID())
	if err := p.conn.Publish(ctx, subject, data); err != nil {
		p.logger.Debug("Publish failed", "subject", subject, "error", err)
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrPublishFailed, err), "natspub", "Publish", "publish "+subject)
	}
	return nil
}

func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

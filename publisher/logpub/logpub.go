// Package logpub provides a dry-run publisher that logs records instead of
// delivering them.
package logpub

import (
	"context"
	"log/slog"

	"github.com/c360/semevents/event"
)

// Publisher logs every record at the configured level.
type Publisher struct {
	logger *slog.Logger
	level  slog.Level
	body   bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLevel sets the log level. The default is Info.
func WithLevel(level slog.Level) Option {
	return func(p *Publisher) { p.level = level }
}

// WithBody includes the serialized body in each entry.
func WithBody() Option {
	return func(p *Publisher) { p.body = true }
}

// New creates a publisher writing to logger. Nil selects slog.Default().
func New(logger *slog.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{logger: logger.With("component", "logpub"), level: slog.LevelInfo}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the publisher in logs and metrics.
func (p *Publisher) Name() string { return "log" }

// Publish logs rec. It fails only when the body cannot be rendered.
func (p *Publisher) Publish(ctx context.Context, rec *event.Record) error {
	attrs := []slog.Attr{
		slog.String("event_id", rec.EventID()),
		slog.String("source_id", rec.SourceID()),
		slog.String("syntax", rec.Syntax()),
		slog.String("timestamp", rec.Timestamp()),
		slog.String("kind", rec.Kind().String()),
	}
	if rec.IsCommand() {
		attrs = append(attrs, slog.String("command", rec.Command()))
	}
	if v, ok := rec.ExtraHeader(event.FloatTimestampHeader); ok {
		attrs = append(attrs, slog.String("float_timestamp", v))
	}
	if p.body {
		text, err := rec.BodyText()
		if err != nil {
			return err
		}
		attrs = append(attrs, slog.String("body", text))
	}
	p.logger.LogAttrs(ctx, p.level, "Event published", attrs...)
	return nil
}

package source

import (
	"context"
	"io"

	"github.com/c360/semevents/event"
)

// Source yields event records in order. Next returns io.EOF when the
// sequence is exhausted; any other error ends the sequence as well.
type Source interface {
	Next(ctx context.Context) (*event.Record, error)
}

// Slice replays a fixed list of records.
type Slice struct {
	records []*event.Record
	pos     int
}

// NewSlice returns a source yielding records in order.
func NewSlice(records ...*event.Record) *Slice {
	return &Slice{records: records}
}

// Next returns the next record or io.EOF.
func (s *Slice) Next(ctx context.Context) (*event.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

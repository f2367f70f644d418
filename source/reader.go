package source

import (
	"context"
	stderrors "errors"
	"io"
	"os"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/wire"
)

const defaultChunkSize = 4096

// Reader parses serialized events from an io.Reader in chunks.
type Reader struct {
	r         io.Reader
	closer    io.Closer
	deser     *wire.Deserializer
	chunk     []byte
	queue     []*event.Record
	err       error
	deferBody bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithChunkSize sets the read size. Values below 1 keep the default.
func WithChunkSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.chunk = make([]byte, n)
		}
	}
}

// WithDeferredBodies keeps bodies of lazily parsed syntaxes as raw text.
// Replays that only forward records never need the decoded form.
func WithDeferredBodies() ReaderOption {
	return func(r *Reader) { r.deferBody = true }
}

// NewReader parses events from r using reg. A nil reg selects the default
// registry.
func NewReader(r io.Reader, reg *event.Registry, opts ...ReaderOption) *Reader {
	rd := &Reader{
		r:     r,
		deser: wire.NewDeserializer(reg),
		chunk: make([]byte, defaultChunkSize),
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// OpenFile opens a file of serialized events. Close releases it.
func OpenFile(path string, reg *event.Registry, opts ...ReaderOption) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "source", "OpenFile", "open "+path)
	}
	rd := NewReader(f, reg, opts...)
	rd.closer = f
	return rd, nil
}

// Next returns the next parsed record. A truncated or malformed stream
// yields a format error; a clean end yields io.EOF.
func (r *Reader) Next(ctx context.Context) (*event.Record, error) {
	for len(r.queue) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.fill()
	}
	rec := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return rec, nil
}

func (r *Reader) fill() {
	var opts []wire.Option
	if r.deferBody {
		opts = append(opts, wire.DeferBody())
	}

	n, readErr := r.r.Read(r.chunk)
	if n > 0 {
		recs, err := r.deser.Deserialize(r.chunk[:n], opts...)
		r.queue = append(r.queue, recs...)
		if err != nil {
			r.err = errors.WrapInvalid(err, "source", "Next", "parse event stream")
			return
		}
	}

	switch {
	case readErr == nil:
	case stderrors.Is(readErr, io.EOF):
		recs, err := r.deser.Deserialize(nil, append(opts, wire.Complete())...)
		r.queue = append(r.queue, recs...)
		if err != nil {
			r.err = errors.WrapInvalid(err, "source", "Next", "parse event stream")
			return
		}
		r.err = io.EOF
	default:
		r.err = errors.Wrap(readErr, "source", "Next", "read event stream")
	}
}

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

package wire

import (
	"bytes"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
)

// Option configures a Deserialize call.
type Option func(*options)

type options struct {
	complete  bool
	deferBody bool
}

// Complete requires the buffer to be empty once every complete event has
// been extracted. Leftover bytes or a partial header block are reported as
// errors.ErrSpuriousData and the deserializer is reset.
func Complete() Option {
	return func(o *options) { o.complete = true }
}

// DeferBody keeps bodies as raw text instead of decoding them with the
// syntax codec. Syntaxes the registry marks as always parsed are decoded
// regardless.
func DeferBody() Option {
	return func(o *options) { o.deferBody = true }
}

// Deserializer incrementally extracts events from a byte stream.
type Deserializer struct {
	registry *event.Registry

	// buf[pos:] is unconsumed input.
	buf []byte
	pos int

	consumed int

	headers        *headerParser
	headerComplete bool
}

// NewDeserializer creates a deserializer building records through reg.
// A nil reg selects event.DefaultRegistry().
func NewDeserializer(reg *event.Registry) *Deserializer {
	if reg == nil {
		reg = event.DefaultRegistry()
	}
	return &Deserializer{
		registry: reg,
		headers:  newHeaderParser(),
	}
}

// Append adds data to the internal buffer. It never parses.
func (d *Deserializer) Append(data []byte) {
	d.compact()
	d.buf = append(d.buf, data...)
	d.consumed = 0
}

// Buffered returns the number of received bytes not yet consumed.
func (d *Deserializer) Buffered() int {
	return len(d.buf) - d.pos
}

// Consumed returns the number of bytes consumed since the last Append.
func (d *Deserializer) Consumed() int {
	return d.consumed
}

// Reset discards buffered data and any partially parsed event.
func (d *Deserializer) Reset() {
	d.buf = d.buf[:0]
	d.pos = 0
	d.consumed = 0
	d.resetEvent()
}

func (d *Deserializer) resetEvent() {
	d.headers.reset()
	d.headerComplete = false
}

// Deserialize appends data, when non-empty, and extracts every complete
// event available. Records extracted before a failure are returned together
// with the error.
func (d *Deserializer) Deserialize(data []byte, opts ...Option) ([]*event.Record, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(data) > 0 {
		d.Append(data)
	}

	var records []*event.Record
	for {
		rec, err := d.Next(!o.deferBody)
		if err != nil {
			return records, err
		}
		if rec == nil {
			break
		}
		records = append(records, rec)
	}

	if o.complete && d.pending() {
		d.Reset()
		return records, errors.ErrSpuriousData
	}
	return records, nil
}

// pending reports whether unconsumed input or a partial event remains.
func (d *Deserializer) pending() bool {
	return d.Buffered() > 0 || d.headerComplete || d.headers.started()
}

// Next extracts at most one event. It returns nil without error when the
// buffer does not hold a complete event yet; parsed headers are kept so the
// next call resumes where this one stopped.
func (d *Deserializer) Next(parseBody bool) (*event.Record, error) {
	for !d.headerComplete {
		idx := bytes.IndexByte(d.buf[d.pos:], '\n')
		if idx < 0 {
			return nil, nil
		}
		line := d.buf[d.pos : d.pos+idx]
		d.advance(idx + 1)

		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			d.headerComplete = true
			break
		}
		if err := d.headers.parseLine(string(line)); err != nil {
			return nil, err
		}
	}

	if err := d.headers.checkMandatory(); err != nil {
		return nil, err
	}

	h := d.headers.header
	if d.Buffered() < h.BodyLength {
		return nil, nil
	}
	body := string(d.buf[d.pos : d.pos+h.BodyLength])
	d.advance(h.BodyLength)
	d.resetEvent()
	d.maybeCompact()

	if parseBody {
		return d.registry.Create(h, body)
	}
	return d.registry.CreateDeferred(h, body)
}

func (d *Deserializer) advance(n int) {
	d.pos += n
	d.consumed += n
}

// maybeCompact drops consumed bytes once they make up most of the buffer.
func (d *Deserializer) maybeCompact() {
	if d.pos == len(d.buf) || d.pos > len(d.buf)/2 {
		d.compact()
	}
}

func (d *Deserializer) compact() {
	if d.pos == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.pos:])
	d.buf = d.buf[:n]
	d.pos = 0
}

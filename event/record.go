package event

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/pkg/timestamp"
)

// Kind identifies the record variant.
type Kind int

// Record variants
const (
	KindGeneric Kind = iota
	KindCommand
	KindTest
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindCommand:
		return "command"
	case KindTest:
		return "test"
	default:
		return "unknown"
	}
}

// Record is one event: a header set plus a body. Construct it with New,
// NewCommand, NewTestEvent or a Registry.
type Record struct {
	header Header
	kind   Kind
	body   Body

	// Command variant
	command string

	// Test variant
	sequenceNum int64
	floatTime   float64
}

// Option customizes a record under construction.
type Option func(*Header)

// WithEventID sets the event id instead of generating one.
func WithEventID(id string) Option {
	return func(h *Header) { h.EventID = id }
}

// WithApplicationID sets the producing application.
func WithApplicationID(id string) Option {
	return func(h *Header) { h.ApplicationID = id }
}

// WithAggregatorIDs sets the initial aggregator chain.
func WithAggregatorIDs(ids ...string) Option {
	return func(h *Header) { h.AggregatorIDs = append([]string{}, ids...) }
}

// WithEventType sets the free-form event classification.
func WithEventType(eventType string) Option {
	return func(h *Header) { h.EventType = eventType }
}

// WithTimestamp sets the Timestamp header value.
func WithTimestamp(ts string) Option {
	return func(h *Header) { h.Timestamp = ts }
}

// WithTime sets the timestamp from t.
func WithTime(t time.Time) Option {
	return func(h *Header) { h.Timestamp = timestamp.Format(t) }
}

// WithExtraHeader adds an extra header.
func WithExtraHeader(name, value string) Option {
	return func(h *Header) { h.Extra.Set(name, value) }
}

// New creates a generic record. body may be nil, in which case the record
// cannot be serialized until it is given one by a relay.
func New(sourceID, syntax string, body Body, opts ...Option) (*Record, error) {
	h := Header{SourceID: sourceID, Syntax: syntax}
	for _, opt := range opts {
		opt(&h)
	}
	return FromHeader(h, body)
}

// FromHeader creates a generic record from already parsed headers.
func FromHeader(h Header, body Body) (*Record, error) {
	return newRecord(h, KindGeneric, body)
}

func newRecord(h Header, kind Kind, body Body) (*Record, error) {
	if h.SourceID == "" {
		return nil, errors.Formatf(errors.ErrMissingHeader, "%s", HeaderSourceID)
	}
	if h.Syntax == "" {
		return nil, errors.Formatf(errors.ErrMissingHeader, "%s", HeaderSyntax)
	}
	for _, f := range h.Extra.fields {
		if IsCoreHeader(f.Name) {
			return nil, errors.Formatf(errors.ErrDuplicateHeader, "%s used as extra header", f.Name)
		}
	}

	if h.EventID == "" {
		h.EventID = uuid.NewString()
	}
	if h.Timestamp == "" {
		h.Timestamp = timestamp.Now()
	}
	if h.AggregatorIDs == nil {
		h.AggregatorIDs = []string{}
	} else {
		h.AggregatorIDs = append([]string{}, h.AggregatorIDs...)
	}
	h.Extra = h.Extra.Clone()
	h.BodyLength = 0

	return &Record{header: h, kind: kind, body: body}, nil
}

// EventID returns the unique event id.
func (r *Record) EventID() string { return r.header.EventID }

// SourceID returns the id of the producing source.
func (r *Record) SourceID() string { return r.header.SourceID }

// Syntax returns the syntax tag.
func (r *Record) Syntax() string { return r.header.Syntax }

// ApplicationID returns the producing application, empty when unset.
func (r *Record) ApplicationID() string { return r.header.ApplicationID }

// EventType returns the event classification, empty when unset.
func (r *Record) EventType() string { return r.header.EventType }

// Timestamp returns the Timestamp header value.
func (r *Record) Timestamp() string { return r.header.Timestamp }

// Kind returns the record variant.
func (r *Record) Kind() Kind { return r.kind }

// Body returns the payload.
func (r *Record) Body() Body { return r.body }

// IsCommand reports whether the record is a middleware control command.
func (r *Record) IsCommand() bool { return r.kind == KindCommand }

// Command returns the command name of a command record.
func (r *Record) Command() string { return r.command }

// SequenceNum returns the sequence number of a test record.
func (r *Record) SequenceNum() int64 { return r.sequenceNum }

// FloatTime returns the high resolution send time of a test record.
func (r *Record) FloatTime() float64 { return r.floatTime }

// AggregatorIDs returns a copy of the aggregator chain. Never nil.
func (r *Record) AggregatorIDs() []string {
	return append([]string{}, r.header.AggregatorIDs...)
}

// ExtraHeader returns the value of an extra header.
func (r *Record) ExtraHeader(name string) (string, bool) {
	return r.header.Extra.Get(name)
}

// ExtraHeaders returns the extra headers in serialization order.
func (r *Record) ExtraHeaders() []Field {
	return r.header.Extra.Fields()
}

// Header returns a copy of the record headers.
func (r *Record) Header() Header {
	h := r.header
	h.AggregatorIDs = r.AggregatorIDs()
	h.Extra = r.header.Extra.Clone()
	return h
}

// Time returns the timestamp as seconds since the epoch.
func (r *Record) Time() (float64, error) {
	return timestamp.Seconds(r.header.Timestamp)
}

// AppendAggregatorID appends a relay id to the aggregator chain.
func (r *Record) AppendAggregatorID(id string) {
	r.header.AggregatorIDs = append(r.header.AggregatorIDs, id)
}

// SetExtraHeader adds a new extra header. Core headers and headers already
// present cannot be set.
func (r *Record) SetExtraHeader(name, value string) error {
	if IsCoreHeader(name) || r.header.Extra.Has(name) {
		return errors.Formatf(errors.ErrDuplicateHeader, "%s", name)
	}
	r.header.Extra.Set(name, value)
	return nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	c.header = r.Header()
	return &c
}

// Restamped returns a copy of the record carrying a latency measurement
// header "seq/now". Test records also take the new sequence number and time.
func (r *Record) Restamped(seq int64, at time.Time) *Record {
	c := r.Clone()
	value, ft := floatTimestamp(seq, timestamp.ToSeconds(at))
	c.header.Extra.Set(FloatTimestampHeader, value)
	if c.kind == KindTest {
		c.sequenceNum = seq
		c.floatTime = ft
	}
	return c
}

// floatTimestamp formats a "seq/time" header value with microsecond
// precision and returns the time as the header carries it.
func floatTimestamp(seq int64, ft float64) (string, float64) {
	text := strconv.FormatFloat(ft, 'f', 6, 64)
	ft, _ = strconv.ParseFloat(text, 64)
	return strconv.FormatInt(seq, 10) + "/" + text, ft
}

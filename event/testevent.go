package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/pkg/timestamp"
)

// TestSyntax is the syntax tag of benchmark events.
const TestSyntax = "ztreamy-test"

// FloatTimestampHeader carries "sequence/float-time" for latency measurement.
const FloatTimestampHeader = "X-Float-Timestamp"

// NewTestEvent creates a benchmark record stamped with seq and the current
// time. Its body is always empty.
func NewTestEvent(sourceID string, seq int64, opts ...Option) (*Record, error) {
	h := Header{SourceID: sourceID, Syntax: TestSyntax}
	for _, opt := range opts {
		opt(&h)
	}
	value, ft := floatTimestamp(seq, timestamp.ToSeconds(time.Now()))
	h.Extra.Set(FloatTimestampHeader, value)

	r, err := newRecord(h, KindTest, RawBody(""))
	if err != nil {
		return nil, err
	}
	r.sequenceNum = seq
	r.floatTime = ft
	return r, nil
}

func testEventFromHeader(h Header, _ string) (*Record, error) {
	if h.Syntax != TestSyntax {
		return nil, errors.Formatf(errors.ErrUnsupportedSyntax, "%q in test event", h.Syntax)
	}
	value, ok := h.Extra.Get(FloatTimestampHeader)
	if !ok {
		return nil, errors.Formatf(errors.ErrMissingHeader, "%s", FloatTimestampHeader)
	}
	seq, ft, err := parseFloatTimestamp(value)
	if err != nil {
		return nil, err
	}

	r, err := newRecord(h, KindTest, RawBody(""))
	if err != nil {
		return nil, err
	}
	r.sequenceNum = seq
	r.floatTime = ft
	return r, nil
}

func parseFloatTimestamp(value string) (int64, float64, error) {
	seqPart, timePart, ok := strings.Cut(value, "/")
	if !ok {
		return 0, 0, errors.Formatf(errors.ErrHeaderSyntax, "%s: %q", FloatTimestampHeader, value)
	}
	seq, err := strconv.ParseInt(strings.TrimSpace(seqPart), 10, 64)
	if err != nil {
		return 0, 0, errors.Formatf(errors.ErrHeaderSyntax, "%s sequence: %q", FloatTimestampHeader, value)
	}
	ft, err := strconv.ParseFloat(strings.TrimSpace(timePart), 64)
	if err != nil {
		return 0, 0, errors.Formatf(errors.ErrHeaderSyntax, "%s time: %q", FloatTimestampHeader, value)
	}
	return seq, ft, nil
}

// TestVariant builds benchmark records; always parsed eagerly.
var TestVariant = Variant{
	Syntax:      TestSyntax,
	Construct:   testEventFromHeader,
	AlwaysParse: true,
}

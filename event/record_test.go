package event

import (
	stderrors "errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semevents/errors"
)

func TestNew_Defaults(t *testing.T) {
	r, err := New("source-1", "text/plain", RawBody("hello"))
	require.NoError(t, err)

	assert.NotEmpty(t, r.EventID())
	assert.Equal(t, "source-1", r.SourceID())
	assert.Equal(t, "text/plain", r.Syntax())
	assert.NotEmpty(t, r.Timestamp())
	assert.NotNil(t, r.AggregatorIDs())
	assert.Empty(t, r.AggregatorIDs())
	assert.Equal(t, KindGeneric, r.Kind())

	secs, err := r.Time()
	require.NoError(t, err)
	assert.InDelta(t, float64(time.Now().Unix()), secs, 2)
}

func TestNew_EventIDStable(t *testing.T) {
	r, err := New("s", "text/plain", RawBody("x"), WithEventID("fixed-id"))
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", r.EventID())

	c := r.Clone()
	assert.Equal(t, "fixed-id", c.EventID())
}

func TestNew_MandatoryFields(t *testing.T) {
	_, err := New("", "text/plain", RawBody("x"))
	assert.True(t, stderrors.Is(err, errors.ErrMissingHeader))

	_, err = New("s", "", RawBody("x"))
	assert.True(t, stderrors.Is(err, errors.ErrMissingHeader))

	_, err = New("s", "text/plain", RawBody("x"), WithExtraHeader(HeaderEventID, "x"))
	assert.True(t, errors.IsFormat(err))
}

func TestAppendAggregatorID(t *testing.T) {
	r, err := New("s", "text/plain", RawBody("x"), WithAggregatorIDs("relay-a"))
	require.NoError(t, err)

	r.AppendAggregatorID("relay-b")
	assert.Equal(t, []string{"relay-a", "relay-b"}, r.AggregatorIDs())

	ids := r.AggregatorIDs()
	ids[0] = "mutated"
	assert.Equal(t, "relay-a", r.AggregatorIDs()[0])
}

func TestSetExtraHeader_NeverOverwrites(t *testing.T) {
	r, err := New("s", "text/plain", RawBody("x"), WithExtraHeader("X-Origin", "a"))
	require.NoError(t, err)

	require.NoError(t, r.SetExtraHeader("X-Relay", "r1"))
	assert.Error(t, r.SetExtraHeader("X-Origin", "b"))
	assert.Error(t, r.SetExtraHeader(HeaderTimestamp, "now"))

	v, ok := r.ExtraHeader("X-Origin")
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, []Field{{"X-Origin", "a"}, {"X-Relay", "r1"}}, r.ExtraHeaders())
}

func TestSerialize_HeaderOrder(t *testing.T) {
	r, err := New("src", "text/plain", RawBody("body!"),
		WithEventID("id-1"),
		WithApplicationID("app"),
		WithAggregatorIDs("a1", "a2"),
		WithEventType("Type"),
		WithTimestamp("2012-04-23T10:31:02+02:00"),
		WithExtraHeader("X-One", "1"),
		WithExtraHeader("X-Two", "2"),
	)
	require.NoError(t, err)

	expected := strings.Join([]string{
		"Event-Id: id-1",
		"Source-Id: src",
		"Syntax: text/plain",
		"Application-Id: app",
		"Aggregator-Ids: a1,a2",
		"Event-Type: Type",
		"Timestamp: 2012-04-23T10:31:02+02:00",
		"X-One: 1",
		"X-Two: 2",
		"Body-Length: 5",
		"",
		"body!",
	}, "\n")
	assert.Equal(t, expected, r.String())
}

func TestSerialize_OptionalHeadersOmitted(t *testing.T) {
	r, err := New("src", "text/plain", RawBody(""), WithEventID("id-1"), WithTimestamp("2012-04-23T10:31:02Z"))
	require.NoError(t, err)

	assert.Equal(t, "Event-Id: id-1\nSource-Id: src\nSyntax: text/plain\nTimestamp: 2012-04-23T10:31:02Z\nBody-Length: 0\n\n", r.String())
	assert.Equal(t, "Event-Id: id-1\nSource-Id: src\nSyntax: text/plain\nTimestamp: 2012-04-23T10:31:02Z", r.SerializeHeaders())
}

func TestSerialize_BodyLengthCountsBytes(t *testing.T) {
	r, err := New("src", "text/plain", RawBody("ñandú"))
	require.NoError(t, err)
	assert.Contains(t, r.String(), "Body-Length: 7\n")
}

func TestSerialize_NilBody(t *testing.T) {
	r, err := New("src", "text/plain", nil)
	require.NoError(t, err)

	_, err = r.Serialize()
	assert.True(t, stderrors.Is(err, errors.ErrEmptyBody))
	assert.Equal(t, "", r.String())
}

func TestNewCommand(t *testing.T) {
	r, err := NewCommand("scheduler", CommandEventSourceStarted)
	require.NoError(t, err)
	assert.True(t, r.IsCommand())
	assert.Equal(t, CommandSyntax, r.Syntax())
	assert.Equal(t, CommandEventSourceStarted, r.Command())

	body, err := r.BodyText()
	require.NoError(t, err)
	assert.Equal(t, CommandEventSourceStarted, body)
}

func TestNewCommand_Invalid(t *testing.T) {
	for _, name := range []string{"", "Reboot", "event-source-started", "Set-Compression-zip"} {
		_, err := NewCommand("s", name)
		assert.True(t, stderrors.Is(err, errors.ErrUnsupportedCommand), name)
	}

	_, err := commandFromHeader(Header{SourceID: "s", Syntax: "text/plain"}, CommandStreamFinished)
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedSyntax))
}

func TestNewTestEvent(t *testing.T) {
	r, err := NewTestEvent("bench", 42)
	require.NoError(t, err)

	assert.Equal(t, KindTest, r.Kind())
	assert.Equal(t, int64(42), r.SequenceNum())
	assert.InDelta(t, float64(time.Now().Unix()), r.FloatTime(), 2)

	v, ok := r.ExtraHeader(FloatTimestampHeader)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(v, "42/"))
	assert.Contains(t, r.String(), "Body-Length: 0\n\n")

	_, timePart, _ := strings.Cut(v, "/")
	assert.Equal(t, timePart, strconv.FormatFloat(r.FloatTime(), 'f', 6, 64))
	parsed, err := testEventFromHeader(r.Header(), "")
	require.NoError(t, err)
	assert.Equal(t, r.FloatTime(), parsed.FloatTime(), "stored time matches the header")
}

func TestRestamped(t *testing.T) {
	orig, err := New("s", "text/plain", RawBody("x"))
	require.NoError(t, err)

	at := time.Unix(1335169862, 500_000_000)
	stamped := orig.Restamped(7, at)

	v, ok := stamped.ExtraHeader(FloatTimestampHeader)
	require.True(t, ok)
	assert.Equal(t, "7/1335169862.500000", v)

	_, ok = orig.ExtraHeader(FloatTimestampHeader)
	assert.False(t, ok, "original must be untouched")

	test, err := NewTestEvent("bench", 1)
	require.NoError(t, err)
	restamped := test.Restamped(9, at)
	assert.Equal(t, int64(9), restamped.SequenceNum())
	assert.InDelta(t, 1335169862.5, restamped.FloatTime(), 1e-6)
	assert.Equal(t, int64(1), test.SequenceNum())
}

func TestParseAggregatorIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseAggregatorIDs("a, b"))
	assert.Equal(t, []string{"a"}, ParseAggregatorIDs("a,,"))
	assert.Equal(t, []string{}, ParseAggregatorIDs(""))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "generic", KindGeneric.String())
	assert.Equal(t, "command", KindCommand.String())
	assert.Equal(t, "test", KindTest.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

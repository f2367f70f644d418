package wire

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
)

func sampleRecords(t *testing.T) []*event.Record {
	t.Helper()

	generic, err := event.New("sensor-7", "text/n3", event.RawBody("<a> <b> <c> ."),
		event.WithApplicationID("weather"),
		event.WithAggregatorIDs("relay-1", "relay-2"),
		event.WithEventType("Observation"),
		event.WithTimestamp("2012-04-23T10:31:02+02:00"),
		event.WithExtraHeader("X-Origin", "lab"),
		event.WithExtraHeader("X-Unit", "celsius"),
	)
	require.NoError(t, err)

	jsonRec, err := event.New("sensor-8", event.JSONSyntax,
		event.JSONBody{Value: map[string]any{"t": 21.5, "tags": []any{"a", "b"}}})
	require.NoError(t, err)

	empty, err := event.New("sensor-9", "text/plain", event.RawBody(""))
	require.NoError(t, err)

	cmd, err := event.NewCommand("scheduler", event.CommandEventSourceStarted)
	require.NoError(t, err)

	test, err := event.NewTestEvent("bench", 12)
	require.NoError(t, err)

	return []*event.Record{generic, jsonRec, empty, cmd, test}
}

func serialize(t *testing.T, rec *event.Record) []byte {
	t.Helper()
	data, err := rec.Serialize()
	require.NoError(t, err)
	return data
}

func assertSameRecord(t *testing.T, want, got *event.Record) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.EventID(), got.EventID())
	assert.Equal(t, want.SourceID(), got.SourceID())
	assert.Equal(t, want.Syntax(), got.Syntax())
	assert.Equal(t, want.ApplicationID(), got.ApplicationID())
	assert.Equal(t, want.AggregatorIDs(), got.AggregatorIDs())
	assert.Equal(t, want.EventType(), got.EventType())
	assert.Equal(t, want.Timestamp(), got.Timestamp())
	assert.Equal(t, want.ExtraHeaders(), got.ExtraHeaders())
	assert.Equal(t, want.Kind(), got.Kind())
	assert.Equal(t, want.Command(), got.Command())
	assert.Equal(t, want.SequenceNum(), got.SequenceNum())
	assert.Equal(t, want.FloatTime(), got.FloatTime())

	wantBody, err := want.BodyText()
	require.NoError(t, err)
	gotBody, err := got.BodyText()
	require.NoError(t, err)
	assert.Equal(t, wantBody, gotBody)
}

func TestDeserialize_RoundTrip(t *testing.T) {
	for _, rec := range sampleRecords(t) {
		t.Run(rec.Syntax(), func(t *testing.T) {
			d := NewDeserializer(nil)
			got, err := d.Deserialize(serialize(t, rec), Complete())
			require.NoError(t, err)
			require.Len(t, got, 1)
			assertSameRecord(t, rec, got[0])
			assert.Equal(t, 0, d.Buffered())
		})
	}
}

func TestDeserialize_DecodesJSONBody(t *testing.T) {
	rec, err := event.New("s", event.JSONSyntax, event.RawBody(`{"t":21.5}`))
	require.NoError(t, err)

	got, err := NewDeserializer(nil).Deserialize(serialize(t, rec))
	require.NoError(t, err)
	require.Len(t, got, 1)

	body, ok := got[0].Body().(event.JSONBody)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"t": 21.5}, body.Value)
}

func TestDeserialize_IncrementalEquivalence(t *testing.T) {
	for _, rec := range sampleRecords(t) {
		data := serialize(t, rec)
		for split := 0; split <= len(data); split++ {
			d := NewDeserializer(nil)

			first, err := d.Deserialize(data[:split])
			require.NoError(t, err, "split %d", split)
			second, err := d.Deserialize(data[split:], Complete())
			require.NoError(t, err, "split %d", split)

			all := append(first, second...)
			require.Len(t, all, 1, "split %d", split)
			assertSameRecord(t, rec, all[0])
		}
	}
}

func TestDeserialize_ByteByByte(t *testing.T) {
	recs := sampleRecords(t)
	var stream []byte
	for _, rec := range recs {
		stream = append(stream, serialize(t, rec)...)
	}

	d := NewDeserializer(nil)
	var got []*event.Record
	maxBuffered := 0
	for i := range stream {
		out, err := d.Deserialize(stream[i : i+1])
		require.NoError(t, err)
		got = append(got, out...)
		maxBuffered = max(maxBuffered, d.Buffered())
	}

	require.Len(t, got, len(recs))
	for i := range recs {
		assertSameRecord(t, recs[i], got[i])
	}
	assert.Equal(t, 0, d.Buffered())
	assert.Less(t, maxBuffered, len(stream), "consumed input must not accumulate")
}

func TestDeserialize_MultipleEventsOneChunk(t *testing.T) {
	recs := sampleRecords(t)
	var stream []byte
	for _, rec := range recs {
		stream = append(stream, serialize(t, rec)...)
	}

	d := NewDeserializer(nil)
	got, err := d.Deserialize(stream, Complete())
	require.NoError(t, err)
	require.Len(t, got, len(recs))
	assert.Equal(t, len(stream), d.Consumed())
}

func TestDeserialize_SpuriousData(t *testing.T) {
	rec, err := event.New("s", "text/plain", event.RawBody("hello"))
	require.NoError(t, err)
	data := append(serialize(t, rec), 'x')

	d := NewDeserializer(nil)
	got, err := d.Deserialize(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, d.Buffered())

	d = NewDeserializer(nil)
	got, err = d.Deserialize(data, Complete())
	assert.True(t, stderrors.Is(err, errors.ErrSpuriousData))
	assert.True(t, errors.IsFormat(err))
	assert.Len(t, got, 1)
	assert.Equal(t, 0, d.Buffered(), "state is reset after spurious data")
}

func TestDeserialize_PartialHeaderIsSpurious(t *testing.T) {
	d := NewDeserializer(nil)
	_, err := d.Deserialize([]byte("Event-Id: 1\n"), Complete())
	assert.True(t, stderrors.Is(err, errors.ErrSpuriousData))
}

func TestDeserialize_MandatoryHeaders(t *testing.T) {
	full := map[string]string{
		event.HeaderEventID:  "Event-Id: 1",
		event.HeaderSourceID: "Source-Id: s",
		event.HeaderSyntax:   "Syntax: text/plain",
	}
	for missing := range full {
		t.Run(missing, func(t *testing.T) {
			var lines []string
			for _, name := range []string{event.HeaderEventID, event.HeaderSourceID, event.HeaderSyntax} {
				if name != missing {
					lines = append(lines, full[name])
				}
			}
			data := strings.Join(lines, "\n") + "\nBody-Length: 0\n\n"

			_, err := NewDeserializer(nil).Deserialize([]byte(data))
			assert.True(t, stderrors.Is(err, errors.ErrMissingHeader))
		})
	}
}

func TestDeserialize_DuplicateHeader(t *testing.T) {
	data := "Event-Id: 1\nSource-Id: s\nSource-Id: t\nSyntax: text/plain\n\n"
	_, err := NewDeserializer(nil).Deserialize([]byte(data))
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateHeader))
}

func TestDeserialize_AggregatorIDsReplaced(t *testing.T) {
	data := "Event-Id: 1\nSource-Id: s\nSyntax: text/plain\nAggregator-Ids: a,b\nAggregator-Ids: c\n\n"
	got, err := NewDeserializer(nil).Deserialize([]byte(data), Complete())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"c"}, got[0].AggregatorIDs())
}

func TestDeserialize_ExtraHeaderLastWins(t *testing.T) {
	data := "Event-Id: 1\nSource-Id: s\nSyntax: text/plain\nX-A: 1\nX-A: 2\n\n"
	got, err := NewDeserializer(nil).Deserialize([]byte(data), Complete())
	require.NoError(t, err)
	require.Len(t, got, 1)
	v, _ := got[0].ExtraHeader("X-A")
	assert.Equal(t, "2", v)
}

func TestDeserialize_CRLF(t *testing.T) {
	data := "Event-Id: 1\r\nSource-Id: s\r\nSyntax: text/plain\r\nTimestamp: 2012-04-23T10:31:02Z\r\nBody-Length: 4\r\n\r\nbody"
	got, err := NewDeserializer(nil).Deserialize([]byte(data), Complete())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].EventID())
	assert.Equal(t, "2012-04-23T10:31:02Z", got[0].Timestamp())
	body, err := got[0].BodyText()
	require.NoError(t, err)
	assert.Equal(t, "body", body)
}

func TestDeserialize_MissingBodyLength(t *testing.T) {
	data := "Event-Id: 1\nSource-Id: s\nSyntax: text/plain\n\nEvent-Id: 2\nSource-Id: s\nSyntax: text/plain\n\n"
	got, err := NewDeserializer(nil).Deserialize([]byte(data), Complete())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].EventID())
}

func TestDeserialize_HeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"no colon", "Event-Id 1\n", errors.ErrHeaderSyntax},
		{"empty name", ": 1\n", errors.ErrHeaderSyntax},
		{"bad length", "Event-Id: 1\nSource-Id: s\nSyntax: x\nBody-Length: ten\n\n", errors.ErrBodyLength},
		{"negative length", "Event-Id: 1\nSource-Id: s\nSyntax: x\nBody-Length: -1\n\n", errors.ErrBodyLength},
		{"bad command", "Event-Id: 1\nSource-Id: s\nSyntax: ztreamy-command\nBody-Length: 6\n\nReboot", errors.ErrUnsupportedCommand},
		{"leading blank line", "\nEvent-Id: 1\n", errors.ErrMissingHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDeserializer(nil).Deserialize([]byte(tt.data))
			assert.True(t, stderrors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDeserialize_ResetAfterError(t *testing.T) {
	d := NewDeserializer(nil)
	_, err := d.Deserialize([]byte("garbage\n"))
	require.Error(t, err)

	d.Reset()
	rec, err := event.New("s", "text/plain", event.RawBody("ok"))
	require.NoError(t, err)
	got, err := d.Deserialize(serialize(t, rec), Complete())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.EventID(), got[0].EventID())
}

func TestDeserialize_DeferBody(t *testing.T) {
	rec, err := event.New("s", event.JSONSyntax, event.RawBody(`{"broken":`))
	require.NoError(t, err)

	_, err = NewDeserializer(nil).Deserialize(serialize(t, rec))
	assert.True(t, errors.IsFormat(err))

	got, err := NewDeserializer(nil).Deserialize(serialize(t, rec), DeferBody())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, event.RawBody(`{"broken":`), got[0].Body())

	cmd, err := event.NewCommand("s", event.CommandStreamFinished)
	require.NoError(t, err)
	got, err = NewDeserializer(nil).Deserialize(serialize(t, cmd), DeferBody())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsCommand())
}

func TestDeserializer_PartialBodyKeepsHeaders(t *testing.T) {
	rec, err := event.New("s", "text/plain", event.RawBody("0123456789"))
	require.NoError(t, err)
	data := serialize(t, rec)
	headerLen := len(data) - 10

	d := NewDeserializer(nil)
	got, err := d.Deserialize(data[:headerLen+3])
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 3, d.Buffered(), "only the body prefix stays buffered")

	d.Append(data[headerLen+3:])
	assert.Equal(t, 0, d.Consumed())
	out, err := d.Next(true)
	require.NoError(t, err)
	assertSameRecord(t, rec, out)
	assert.Equal(t, 10, d.Consumed(), "the buffered prefix counts once the body completes")
	assert.Zero(t, d.Buffered())
}

func TestDeserializeHeaders(t *testing.T) {
	h, err := DeserializeHeaders("Event-Id: 1\r\nSource-Id: s\nSyntax: text/plain\nAggregator-Ids: a, b\nX-Extra: v")
	require.NoError(t, err)
	assert.Equal(t, "1", h.EventID)
	assert.Equal(t, "s", h.SourceID)
	assert.Equal(t, []string{"a", "b"}, h.AggregatorIDs)
	v, ok := h.Extra.Get("X-Extra")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, err = DeserializeHeaders("Event-Id: 1\nSource-Id: s")
	assert.True(t, stderrors.Is(err, errors.ErrMissingHeader))

	_, err = DeserializeHeaders("Event-Id: 1\nSource-Id: s\nSyntax: x\n")
	assert.True(t, stderrors.Is(err, errors.ErrHeaderSyntax), "blank lines are not allowed")

	_, err = DeserializeHeaders("Event-Id: 1\nEvent-Id: 2\nSource-Id: s\nSyntax: x")
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateHeader))
}

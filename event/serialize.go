package event

import (
	"strconv"
	"strings"

	"github.com/c360/semevents/errors"
)

// BodyText returns the serialized body. Test records always have an empty
// body; other records fail when no body is set.
func (r *Record) BodyText() (string, error) {
	if r.kind == KindTest {
		return "", nil
	}
	if r.body == nil {
		return "", errors.ErrEmptyBody
	}
	return r.body.Text()
}

// SerializeHeaders renders the header block without Body-Length and
// without the terminating blank line.
func (r *Record) SerializeHeaders() string {
	var b strings.Builder
	r.writeHeaders(&b)
	return strings.TrimSuffix(b.String(), "\n")
}

// Serialize renders the record in wire format: headers, Body-Length, a
// blank line and exactly Body-Length bytes of body.
func (r *Record) Serialize() ([]byte, error) {
	body, err := r.BodyText()
	if err != nil {
		return nil, errors.Wrap(err, "Record", "Serialize", "serialize body")
	}

	var b strings.Builder
	r.writeHeaders(&b)
	b.WriteString(HeaderBodyLength)
	b.WriteString(": ")
	b.WriteString(strconv.Itoa(len(body)))
	b.WriteString("\n\n")
	b.WriteString(body)
	return []byte(b.String()), nil
}

// String returns the wire form, or an empty string when the body cannot be
// serialized.
func (r *Record) String() string {
	data, err := r.Serialize()
	if err != nil {
		return ""
	}
	return string(data)
}

func (r *Record) writeHeaders(b *strings.Builder) {
	h := &r.header
	writeHeader(b, HeaderEventID, h.EventID)
	writeHeader(b, HeaderSourceID, h.SourceID)
	writeHeader(b, HeaderSyntax, h.Syntax)
	if h.ApplicationID != "" {
		writeHeader(b, HeaderApplicationID, h.ApplicationID)
	}
	if len(h.AggregatorIDs) > 0 {
		writeHeader(b, HeaderAggregatorIDs, strings.Join(h.AggregatorIDs, ","))
	}
	if h.EventType != "" {
		writeHeader(b, HeaderEventType, h.EventType)
	}
	if h.Timestamp != "" {
		writeHeader(b, HeaderTimestamp, h.Timestamp)
	}
	for _, f := range h.Extra.fields {
		writeHeader(b, f.Name, f.Value)
	}
}

func writeHeader(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

package event

import "strings"

// Names of the headers with a meaning of their own. Any other header is
// kept verbatim as an extra header.
const (
	HeaderEventID       = "Event-Id"
	HeaderSourceID      = "Source-Id"
	HeaderSyntax        = "Syntax"
	HeaderApplicationID = "Application-Id"
	HeaderAggregatorIDs = "Aggregator-Ids"
	HeaderEventType     = "Event-Type"
	HeaderTimestamp     = "Timestamp"
	HeaderBodyLength    = "Body-Length"
)

var coreHeaders = map[string]struct{}{
	HeaderEventID:       {},
	HeaderSourceID:      {},
	HeaderSyntax:        {},
	HeaderApplicationID: {},
	HeaderAggregatorIDs: {},
	HeaderEventType:     {},
	HeaderTimestamp:     {},
	HeaderBodyLength:    {},
}

// IsCoreHeader reports whether name is one of the recognized event headers.
func IsCoreHeader(name string) bool {
	_, ok := coreHeaders[name]
	return ok
}

// Field is a single extra header.
type Field struct {
	Name  string
	Value string
}

// ExtraHeaders is an insertion-ordered set of extra headers with unique names.
// The zero value is empty and ready to use.
type ExtraHeaders struct {
	fields []Field
	index  map[string]int
}

// Len returns the number of extra headers.
func (h *ExtraHeaders) Len() int {
	return len(h.fields)
}

// Get returns the value of the named header.
func (h *ExtraHeaders) Get(name string) (string, bool) {
	i, ok := h.index[name]
	if !ok {
		return "", false
	}
	return h.fields[i].Value, true
}

// Has reports whether the named header is present.
func (h *ExtraHeaders) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Fields returns a copy of the headers in insertion order.
func (h *ExtraHeaders) Fields() []Field {
	out := make([]Field, len(h.fields))
	copy(out, h.fields)
	return out
}

// Set stores value under name, replacing an existing value in place.
func (h *ExtraHeaders) Set(name, value string) {
	if i, ok := h.index[name]; ok {
		h.fields[i].Value = value
		return
	}
	if h.index == nil {
		h.index = make(map[string]int)
	}
	h.index[name] = len(h.fields)
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Clone returns an independent copy.
func (h *ExtraHeaders) Clone() ExtraHeaders {
	out := ExtraHeaders{}
	for _, f := range h.fields {
		out.Set(f.Name, f.Value)
	}
	return out
}

// Header holds the parsed headers of one event. It is the hand-off between
// the wire parser and the record constructors.
type Header struct {
	EventID       string
	SourceID      string
	Syntax        string
	ApplicationID string
	AggregatorIDs []string
	EventType     string
	Timestamp     string
	// BodyLength is only meaningful on the wire; zero when absent.
	BodyLength int
	Extra      ExtraHeaders
}

// ParseAggregatorIDs splits a comma separated Aggregator-Ids value,
// trimming blanks and dropping empty items.
func ParseAggregatorIDs(value string) []string {
	ids := []string{}
	for _, part := range strings.Split(value, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

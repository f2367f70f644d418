package wire

import (
	"strconv"
	"strings"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
)

// headerParser accumulates the header lines of one event.
type headerParser struct {
	header event.Header
	seen   map[string]struct{}
}

func newHeaderParser() *headerParser {
	return &headerParser{seen: make(map[string]struct{})}
}

func (p *headerParser) reset() {
	p.header = event.Header{}
	clear(p.seen)
}

// started reports whether any header line has been accepted.
func (p *headerParser) started() bool {
	return len(p.seen) > 0 || p.header.Extra.Len() > 0
}

// parseLine applies a single "Name: value" line without its terminator.
func (p *headerParser) parseLine(line string) error {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return errors.Formatf(errors.ErrHeaderSyntax, "no colon in %q", line)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return errors.Formatf(errors.ErrHeaderSyntax, "empty header name in %q", line)
	}

	if !event.IsCoreHeader(name) {
		p.header.Extra.Set(name, value)
		return nil
	}
	if _, dup := p.seen[name]; dup && name != event.HeaderAggregatorIDs {
		return errors.Formatf(errors.ErrDuplicateHeader, "%s", name)
	}
	p.seen[name] = struct{}{}

	h := &p.header
	switch name {
	case event.HeaderEventID:
		h.EventID = value
	case event.HeaderSourceID:
		h.SourceID = value
	case event.HeaderSyntax:
		h.Syntax = value
	case event.HeaderApplicationID:
		h.ApplicationID = value
	case event.HeaderAggregatorIDs:
		h.AggregatorIDs = event.ParseAggregatorIDs(value)
	case event.HeaderEventType:
		h.EventType = value
	case event.HeaderTimestamp:
		h.Timestamp = value
	case event.HeaderBodyLength:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return errors.Formatf(errors.ErrBodyLength, "%q", value)
		}
		h.BodyLength = n
	}
	return nil
}

// checkMandatory fails unless Event-Id, Source-Id and Syntax were all seen.
func (p *headerParser) checkMandatory() error {
	for _, name := range []string{event.HeaderEventID, event.HeaderSourceID, event.HeaderSyntax} {
		if _, ok := p.seen[name]; !ok {
			return errors.Formatf(errors.ErrMissingHeader, "%s", name)
		}
	}
	return nil
}

// DeserializeHeaders parses one complete header block, such as headers that
// were already delimited by the transport. Lines are joined by LF or CRLF;
// the block carries no blank-line terminator and may not contain blank lines.
func DeserializeHeaders(text string) (event.Header, error) {
	p := newHeaderParser()
	for _, line := range strings.Split(text, "\n") {
		if err := p.parseLine(strings.TrimSuffix(line, "\r")); err != nil {
			return event.Header{}, err
		}
	}
	if err := p.checkMandatory(); err != nil {
		return event.Header{}, err
	}
	return p.header, nil
}

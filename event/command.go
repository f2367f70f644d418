package event

import (
	"github.com/c360/semevents/errors"
)

// CommandSyntax is the syntax tag of middleware control commands.
const CommandSyntax = "ztreamy-command"

// Command names accepted in command records.
const (
	CommandSetCompression      = "Set-Compression"
	CommandSetCompressionRDZ   = "Set-Compression-rdz"
	CommandTestConnection      = "Test-Connection"
	CommandEventSourceStarted  = "Event-Source-Started"
	CommandEventSourceFinished = "Event-Source-Finished"
	CommandStreamFinished      = "Stream-Finished"
)

var validCommands = map[string]struct{}{
	CommandSetCompression:      {},
	CommandSetCompressionRDZ:   {},
	CommandTestConnection:      {},
	CommandEventSourceStarted:  {},
	CommandEventSourceFinished: {},
	CommandStreamFinished:      {},
}

// ValidCommand reports whether name is an accepted command.
func ValidCommand(name string) bool {
	_, ok := validCommands[name]
	return ok
}

// NewCommand creates a command record. Commands are consumed by the
// middleware and never delivered to subscribers.
func NewCommand(sourceID, command string, opts ...Option) (*Record, error) {
	h := Header{SourceID: sourceID, Syntax: CommandSyntax}
	for _, opt := range opts {
		opt(&h)
	}
	return commandFromHeader(h, command)
}

func commandFromHeader(h Header, command string) (*Record, error) {
	if h.Syntax != CommandSyntax {
		return nil, errors.Formatf(errors.ErrUnsupportedSyntax, "%q in command", h.Syntax)
	}
	if !ValidCommand(command) {
		return nil, errors.Formatf(errors.ErrUnsupportedCommand, "%q", command)
	}
	r, err := newRecord(h, KindCommand, RawBody(command))
	if err != nil {
		return nil, err
	}
	r.command = command
	return r, nil
}

// CommandVariant builds command records; always parsed eagerly.
var CommandVariant = Variant{
	Syntax:      CommandSyntax,
	Construct:   commandFromHeader,
	AlwaysParse: true,
}

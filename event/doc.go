// Package event defines the event record exchanged by publishers, relays and
// stream servers, together with its wire serialization.
//
// A record is a set of headers plus a body:
//
//	Event-Id: 5f0b6c2e-...
//	Source-Id: sensor-1
//	Syntax: application/json
//	Timestamp: 2012-04-23T10:31:02+02:00
//	Body-Length: 13
//
//	{"temp":21.5}
//
// The Syntax header selects both the body codec and the record variant. The
// variants form a closed set (Generic, Command, Test) described by Kind. A
// Registry maps syntax tags to variant constructors; it is immutable once
// built and is handed to whoever needs to turn headers plus body text into a
// record (see package wire).
//
// Records are immutable once constructed, except that relays may append
// aggregator ids and add new extra headers. Existing headers are never
// overwritten.
package event

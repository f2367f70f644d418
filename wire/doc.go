// Package wire implements the streaming event wire format.
//
// An event on the wire is a block of "Name: value" header lines ended by a
// blank line, followed by exactly Body-Length bytes of body. Nothing separates
// one event from the next. Lines may end in LF or CRLF.
//
//	Event-Id: 6d1c...
//	Source-Id: sensor-7
//	Syntax: application/json
//	Timestamp: 2012-04-23T10:31:02+02:00
//	Body-Length: 9
//
//	{"t":21.5}
//
// A Deserializer turns an arbitrary chunking of such a stream back into
// records. Chunks need not align with event boundaries: partially received
// headers and bodies are kept between calls and each byte is consumed exactly
// once. A Deserializer holds per-connection state and is not safe for
// concurrent use; give each connection its own.
//
// Any error returned by the Deserializer is a format error (errors.IsFormat).
// The current parse attempt is lost and the owner must call Reset before
// feeding more data, or drop the connection.
package wire

// Package publisher defines the sink side of the middleware: anything that
// delivers an event record to a stream server or downstream system.
//
// A Publisher makes at most one delivery attempt per call as far as its
// callers are concerned. Implementations that reconnect or retry do so
// inside Publish; the scheduler never retries.
//
// Concrete publishers live in subpackages:
//
//   - httppost: POSTs serialized records to a stream server
//   - natspub: publishes serialized records on a NATS subject
//   - wspub: writes serialized records as websocket text frames
//   - logpub: logs records instead of sending them (dry runs)
package publisher

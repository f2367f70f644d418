// Package semevents is event-publishing middleware: sources publish events
// over HTTP, relays accept and forward them, and recorded streams can be
// replayed with their original timing.
//
// # Architecture
//
//	            ┌──────────────┐      ┌────────────────┐
//	source ───▶ │  scheduler   │ ───▶ │   publishers   │ ───▶ HTTP / NATS / WebSocket / log
//	(file,      │ (time scale, │      │ (fan-out per   │
//	 synthetic) │  look-ahead) │      │  PublishTask)  │
//	            └──────────────┘      └────────────────┘
//
//	HTTP POST ───▶ gateway (authz, Deserializer) ───▶ publishers
//
// # Packages
//
//   - event: the EventRecord model, headers, variants and the syntax registry
//   - wire: the incremental Deserializer for the text wire format
//   - source: event sources, recorded streams and synthetic generators
//   - scheduler: EventScheduler, PublishTask and time generators
//   - publisher: the Publisher interface plus httppost, natspub, wspub and logpub
//   - gateway: the HTTP publish endpoint relaying accepted events
//   - authz: IP whitelist, Basic and Digest authorization
//   - config: layered JSON/YAML configuration
//   - health: component health served next to the metrics
//   - metric, natsclient, errors, pkg/worker, pkg/retry, pkg/tlsutil, pkg/timestamp:
//     shared infrastructure
//
// # Wire Format
//
// An event is a header block followed by a body:
//
//	Event-Id: 5ad0c3b2-...
//	Source-Id: sensor-7
//	Syntax: application/json
//	Timestamp: 2012-04-23T10:31:02+02:00
//	Body-Length: 14
//
//	{"temp": 21.5}
//
// Streams are plain concatenations of events. Commands (Syntax
// "ztreamy-command") are consumed by the middleware and never delivered.
//
// # Commands
//
// cmd/semevents runs the replay and relay roles:
//
//	semevents -config replay.yaml replay
//	semevents -config relay.yaml serve
package semevents

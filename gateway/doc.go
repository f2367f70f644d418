// Package gateway provides the server side of event publishing: an HTTP
// handler accepting serialized event streams from sources and relaying the
// events downstream.
//
// # Request Flow
//
//	POST /events/publish
//	        ↓
//	method check (405) → rate limit (429) → authorization (401/403)
//	        ↓
//	body read in chunks → per-request Deserializer
//	        ↓
//	command events: consumed, never relayed
//	other events:   relay id appended to Aggregator-Ids, relayed to every publisher
//	        ↓
//	200 {"accepted": n, ...}
//
// A malformed stream answers 400. Events parsed before the malformed part
// have already been relayed. Every request owns its Deserializer, so a bad
// stream never affects other connections.
//
// # Authorization
//
// The handler asks an authz.Manager for a decision and maps it to a status:
//
//	denied, reason 0 (IP not whitelisted)       → 403
//	denied, reason 1 (missing credentials)      → 401 + WWW-Authenticate
//	denied, reason 2 (bad digest challenge)     → 401 + WWW-Authenticate
//	denied, reason 3 (credentials do not match) → 403
//
// The WWW-Authenticate value comes from WithChallenge. Credentials are
// never logged.
//
// # Relaying
//
// Each accepted event is fanned out to all publishers concurrently with a
// scheduler.PublishTask. A failing publisher is logged and counted in the
// response but does not fail the request.
package gateway

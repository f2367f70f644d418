// Package source provides the event producers the scheduler replays.
//
// A Source yields records lazily and returns io.EOF once exhausted. A
// source may be effectively infinite (Synthetic with no count). Sources are
// consumed by a single goroutine and need not be safe for concurrent use.
//
// Three producers are provided:
//
//   - Slice replays records held in memory
//   - Reader parses a serialized event stream, typically a capture file
//   - Synthetic generates timestamped JSON or test events
package source

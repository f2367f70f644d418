// Package scheduler replays a source of events to a set of publishers in
// scaled real time.
//
// A Scheduler anchors the first event's timestamp to now plus a startup
// delay and fires every later event at the same relative offset divided by
// TimeScale. With a TimeGenerator the event timestamps are ignored and fire
// times come from the generator instead (constant or exponential arrivals).
//
// Lifecycle:
//
//	not_started -> running -> draining -> stopped
//
// Run publishes an Event-Source-Started command, then pulls events on a
// periodic tick, never more than two periods ahead of the clock. When the
// source is exhausted the scheduler drains: the Event-Source-Finished
// command is published once the last scheduled event has reached every
// publisher, and Run returns when nothing is left in flight.
//
// Events due at the same instant fire in source order. Each fired event
// becomes a PublishTask fanned out on a worker pool, one job per
// publisher. A failing publisher marks the task failed and is
// logged; it never blocks the other publishers or stops the replay, and
// nothing is retried.
//
// Usage:
//
//	src, _ := source.OpenFile("capture.events", nil)
//	s, err := scheduler.New(scheduler.Config{SourceID: "replay-1", TimeScale: 10},
//	    src, []publisher.Publisher{pub}, scheduler.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	return s.Run(ctx)
package scheduler

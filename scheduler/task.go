package scheduler

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/c360/semevents/event"
	"github.com/c360/semevents/publisher"
)

// PublishTask delivers one record to a set of publishers. It finishes once
// every publisher has reported, success or failure, and cannot be reused.
//
// Start and Complete are not synchronized: the goroutine that owns the task
// must make every call. Run handles that itself.
type PublishTask struct {
	record     *event.Record
	publishers []publisher.Publisher

	pending  int
	started  bool
	failed   bool
	finished bool
	onFinish func()

	// set by the scheduler
	fireAt time.Time
}

// NewPublishTask creates a task for rec.
func NewPublishTask(rec *event.Record, publishers []publisher.Publisher) *PublishTask {
	return &PublishTask{record: rec, publishers: publishers}
}

// Record returns the record being delivered.
func (t *PublishTask) Record() *event.Record { return t.record }

// Publishers returns the target publishers.
func (t *PublishTask) Publishers() []publisher.Publisher { return t.publishers }

// Pending returns the number of publishers that have not reported.
func (t *PublishTask) Pending() int { return t.pending }

// Failed reports whether any publisher failed.
func (t *PublishTask) Failed() bool { return t.failed }

// Finished reports whether every publisher has reported.
func (t *PublishTask) Finished() bool { return t.finished }

// Started reports whether Start was called.
func (t *PublishTask) Started() bool { return t.started }

// OnFinish sets a function run once when the task finishes. Setting it on
// a finished task runs it immediately.
func (t *PublishTask) OnFinish(fn func()) {
	if t.finished {
		fn()
		return
	}
	t.onFinish = fn
}

// Start marks every publisher pending. A task without publishers finishes
// at once.
func (t *PublishTask) Start() {
	if t.started {
		return
	}
	t.started = true
	t.pending = len(t.publishers)
	if t.pending == 0 {
		t.finish()
	}
}

// Complete records one publisher report. The task finishes with the last
// report; reports after that are ignored.
func (t *PublishTask) Complete(err error) {
	if t.finished || t.pending == 0 {
		return
	}
	if err != nil {
		t.failed = true
	}
	t.pending--
	if t.pending == 0 {
		t.finish()
	}
}

func (t *PublishTask) finish() {
	t.finished = true
	if fn := t.onFinish; fn != nil {
		t.onFinish = nil
		fn()
	}
}

// Run publishes to every publisher concurrently and blocks until all have
// reported. It returns the joined publisher errors.
func (t *PublishTask) Run(ctx context.Context) error {
	t.Start()

	results := make(chan error, len(t.publishers))
	for _, p := range t.publishers {
		go func(p publisher.Publisher) {
			results <- p.Publish(ctx, t.record)
		}(p)
	}

	var errs []error
	for range t.publishers {
		err := <-results
		if err != nil {
			errs = append(errs, err)
		}
		t.Complete(err)
	}
	return stderrors.Join(errs...)
}

package scheduler

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/semevents/event"
	"github.com/c360/semevents/publisher"
)

func TestPublishTask_FanOutIndependence(t *testing.T) {
	rec := newEvent(t, 0)
	good := &recorder{}
	bad := &recorder{fail: stderrors.New("connection refused")}

	task := NewPublishTask(rec, []publisher.Publisher{good, bad})
	err := task.Run(context.Background())

	assert.ErrorIs(t, err, bad.fail)
	assert.True(t, task.Finished())
	assert.True(t, task.Failed())
	assert.Zero(t, task.Pending())
	assert.Equal(t, []*event.Record{rec}, good.records())
	assert.Equal(t, []*event.Record{rec}, bad.records())
}

func TestPublishTask_Complete(t *testing.T) {
	task := NewPublishTask(newEvent(t, 0), []publisher.Publisher{&recorder{}, &recorder{}})
	finished := 0
	task.OnFinish(func() { finished++ })

	task.Complete(nil)
	assert.False(t, task.Finished(), "not started")

	task.Start()
	assert.Equal(t, 2, task.Pending())
	task.Complete(nil)
	assert.False(t, task.Finished())
	task.Complete(stderrors.New("boom"))
	assert.True(t, task.Finished())
	assert.True(t, task.Failed())

	task.Complete(nil)
	task.Start()
	assert.Equal(t, 1, finished, "finishes exactly once")
}

func TestPublishTask_NoPublishers(t *testing.T) {
	task := NewPublishTask(newEvent(t, 0), nil)
	task.Start()
	assert.True(t, task.Finished())
	assert.False(t, task.Failed())

	called := false
	task.OnFinish(func() { called = true })
	assert.True(t, called, "callbacks set after finishing run immediately")
	assert.NoError(t, NewPublishTask(newEvent(t, 0), nil).Run(context.Background()))
}

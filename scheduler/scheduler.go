package scheduler

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/semevents/errors"
	"github.com/c360/semevents/event"
	"github.com/c360/semevents/metric"
	"github.com/c360/semevents/pkg/timestamp"
	"github.com/c360/semevents/pkg/worker"
	"github.com/c360/semevents/publisher"
	"github.com/c360/semevents/source"
)

// State is the scheduler lifecycle state.
type State int32

// Scheduler states
const (
	StateNotStarted State = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds the replay parameters.
type Config struct {
	// SourceID is set on the start and closing commands.
	SourceID string
	// TimeScale divides the original gaps between events: 2 replays twice
	// as fast. Ignored when a TimeGenerator is set.
	TimeScale float64
	// Period is the look-ahead tick. Events are pulled up to 2×Period ahead.
	Period time.Duration
	// StartupDelay separates the start from the first event's fire time.
	StartupDelay time.Duration
	// AddTimestamp stamps each outgoing event with "seq/now" for latency
	// measurement.
	AddTimestamp bool
	// Workers and QueueSize size the publish fan-out pool.
	Workers   int
	QueueSize int
	// StopTimeout bounds the wait for in-flight publishes on shutdown.
	StopTimeout time.Duration
}

// DefaultConfig returns the default replay configuration.
func DefaultConfig() Config {
	return Config{
		TimeScale:    1,
		Period:       10 * time.Second,
		StartupDelay: 2 * time.Second,
		Workers:      4,
		QueueSize:    256,
		StopTimeout:  5 * time.Second,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.SourceID == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "source_id is required")
	}
	if !(c.TimeScale > 0) {
		return errors.Configf("time_scale must be positive, got %v", c.TimeScale)
	}
	if c.Period < 0 || c.StartupDelay < 0 || c.StopTimeout < 0 {
		return errors.Configf("durations cannot be negative")
	}
	if c.Workers < 0 || c.QueueSize < 0 {
		return errors.Configf("workers and queue_size cannot be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Period == 0 {
		c.Period = d.Period
	}
	if c.StartupDelay == 0 {
		c.StartupDelay = d.StartupDelay
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize == 0 {
		c.QueueSize = d.QueueSize
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = d.StopTimeout
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimeGenerator takes fire times from g instead of event timestamps.
func WithTimeGenerator(g TimeGenerator) Option {
	return func(s *Scheduler) { s.timeGen = g }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics exports scheduler and pool metrics through registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Scheduler) { s.metricsRegistry = registry }
}

// FireTime maps an event time onto the replay clock: the original offset
// from the first event, divided by scale, after t0New.
func FireTime(t0New time.Time, t0Original, eventTime, scale float64) time.Time {
	return t0New.Add(timestamp.SecondsDuration((eventTime - t0Original) / scale))
}

// job is one publisher's share of a task.
type job struct {
	task *PublishTask
	rec  *event.Record
	pub  publisher.Publisher
}

type result struct {
	job job
	err error
}

// errDiscarded marks jobs dropped because the scheduler stopped.
var errDiscarded = stderrors.New("scheduler stopped before publish")

// Scheduler replays a source to a set of publishers, preserving the
// original gaps between events scaled by TimeScale.
//
// All scheduling state is owned by the goroutine running Run. One timer,
// armed on the earliest unfired task, drives every fire; tasks due at the
// same instant fire in the order they were scheduled. Pool workers hand
// their results back over a channel.
type Scheduler struct {
	cfg             Config
	src             source.Source
	publishers      []publisher.Publisher
	timeGen         TimeGenerator
	logger          *slog.Logger
	metricsRegistry *metric.MetricsRegistry
	metrics         *metric.Metrics

	state atomic.Int32
	pool  *worker.Pool[job]

	// Owned by Run
	pending     []*PublishTask
	unfired     []*PublishTask
	timer       *time.Timer
	armedAt     time.Time
	t0Original  float64
	t0New       time.Time
	seq         int64
	dispatched  int64
	draining    bool
	closingSent bool
	srcErr      error

	results chan result
	quit    chan struct{}
}

// New validates cfg and creates a scheduler replaying src to publishers.
func New(cfg Config, src source.Source, publishers []publisher.Publisher, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Scheduler", "New", "source is required")
	}
	cfg.applyDefaults()

	s := &Scheduler{
		cfg:        cfg,
		src:        src,
		publishers: publishers,
		logger:     slog.Default(),
		quit:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler", "source_id", cfg.SourceID)
	s.metrics = s.metricsRegistry.CoreMetrics()

	s.timer = time.NewTimer(time.Hour)
	s.timer.Stop()
	s.results = make(chan result, cfg.QueueSize)

	poolOpts := []worker.Option[job]{worker.WithResultHandler(s.onResult)}
	if s.metricsRegistry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[job](s.metricsRegistry, "scheduler_publish"))
	}
	s.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, s.publish, poolOpts...)
	return s, nil
}

// State returns the current lifecycle state. Safe for concurrent use.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run replays the source until every event and the closing command have
// been published, or until ctx is cancelled. It can be called once.
//
// Run returns ctx.Err() on cancellation and the source error when the
// source failed before exhaustion. Publish failures are logged, never
// returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateNotStarted), int32(StateRunning)) {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Scheduler", "Run", "check state")
	}
	s.recordState(StateRunning)

	// In-flight publishes run to completion even when ctx is cancelled.
	if err := s.pool.Start(context.WithoutCancel(ctx)); err != nil {
		return errors.WrapFatal(err, "Scheduler", "Run", "start worker pool")
	}
	defer s.shutdown()

	s.logger.Info("Replay started",
		"publishers", len(s.publishers),
		"time_scale", s.cfg.TimeScale,
		"period", s.cfg.Period,
		"generated_times", s.timeGen != nil)

	s.sendCommand(event.CommandEventSourceStarted)
	s.scheduleFirst(ctx)
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for s.State() != StateStopped {
		select {
		case <-ctx.Done():
			s.logger.Info("Replay cancelled", "pending", len(s.pending))
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		case <-s.timer.C:
			s.fireDue()
		case res := <-s.results:
			s.complete(res.job, res.err)
		}
	}

	s.logger.Info("Replay finished", "published", s.dispatched)
	if s.srcErr != nil {
		return errors.Wrap(s.srcErr, "Scheduler", "Run", "read source")
	}
	return nil
}

// shutdown discards unfired tasks and waits for in-flight publishes.
func (s *Scheduler) shutdown() {
	close(s.quit)
	s.timer.Stop()
	if err := s.pool.Stop(s.cfg.StopTimeout); err != nil {
		s.logger.Warn("Publish workers did not stop in time", "error", err)
	}
	s.state.Store(int32(StateStopped))
	s.recordState(StateStopped)
}

func (s *Scheduler) scheduleFirst(ctx context.Context) {
	for {
		rec, ok := s.next(ctx)
		if !ok {
			return
		}
		if s.timeGen == nil {
			t, err := rec.Time()
			if err != nil {
				s.logger.Warn("Skipping event with invalid timestamp",
					"event_id", rec.EventID(), "error", err)
				continue
			}
			s.t0Original = t
		}
		s.t0New = time.Now().Add(s.cfg.StartupDelay)
		if _, err := s.schedule(rec); err != nil {
			s.logger.Warn("Skipping event", "event_id", rec.EventID(), "error", err)
			continue
		}
		return
	}
}

// tick pulls events up to the look-ahead limit and checks for completion.
func (s *Scheduler) tick(ctx context.Context) {
	s.prune()
	if !s.draining {
		limit := time.Now().Add(2 * s.cfg.Period)
		for {
			rec, ok := s.next(ctx)
			if !ok {
				break
			}
			fireAt, err := s.schedule(rec)
			if err != nil {
				s.logger.Warn("Skipping event", "event_id", rec.EventID(), "error", err)
				continue
			}
			if fireAt.After(limit) {
				break
			}
		}
	}
	s.checkStopped()
}

// next pulls one event. On exhaustion or source failure it starts draining
// and returns false.
func (s *Scheduler) next(ctx context.Context) (*event.Record, bool) {
	if s.draining {
		return nil, false
	}
	rec, err := s.src.Next(ctx)
	switch {
	case err == nil:
		return rec, true
	case stderrors.Is(err, io.EOF):
		s.logger.Debug("Source exhausted")
	case ctx.Err() != nil:
		return nil, false
	default:
		s.logger.Error("Source failed, draining", "error", err)
		s.srcErr = err
	}
	s.drain()
	return nil, false
}

// schedule queues rec for publishing at its fire time.
func (s *Scheduler) schedule(rec *event.Record) (time.Time, error) {
	var fireAt time.Time
	if s.timeGen != nil {
		fireAt = s.timeGen.Next()
	} else {
		t, err := rec.Time()
		if err != nil {
			return time.Time{}, errors.WrapInvalid(err, "Scheduler", "schedule", "convert timestamp")
		}
		fireAt = FireTime(s.t0New, s.t0Original, t, s.cfg.TimeScale)
	}

	task := NewPublishTask(rec, s.publishers)
	task.fireAt = fireAt
	s.pending = append(s.pending, task)
	s.unfired = append(s.unfired, task)
	if s.armedAt.IsZero() || fireAt.Before(s.armedAt) {
		s.armedAt = fireAt
		s.timer.Reset(time.Until(fireAt))
	}

	if s.metrics != nil {
		s.metrics.RecordScheduled(s.cfg.SourceID)
		s.metrics.RecordPending(s.cfg.SourceID, len(s.pending))
	}
	return fireAt, nil
}

// fireDue dispatches every task whose fire time has passed, in schedule
// order, and re-arms the timer on the earliest task left.
func (s *Scheduler) fireDue() {
	now := time.Now()
	var due []*PublishTask
	waiting := s.unfired[:0]
	for _, task := range s.unfired {
		if task.fireAt.After(now) {
			waiting = append(waiting, task)
		} else {
			due = append(due, task)
		}
	}
	clear(s.unfired[len(waiting):])
	s.unfired = waiting
	s.arm()

	for _, task := range due {
		s.fire(task)
	}
}

func (s *Scheduler) arm() {
	s.armedAt = time.Time{}
	for _, task := range s.unfired {
		if s.armedAt.IsZero() || task.fireAt.Before(s.armedAt) {
			s.armedAt = task.fireAt
		}
	}
	if s.armedAt.IsZero() {
		s.timer.Stop()
		return
	}
	s.timer.Reset(time.Until(s.armedAt))
}

func (s *Scheduler) fire(task *PublishTask) {
	if s.cfg.AddTimestamp && !task.record.IsCommand() {
		task.record = task.record.Restamped(s.seq, time.Now())
		s.seq++
	}
	s.dispatched++
	s.dispatch(task)
}

// dispatch hands one job per publisher to the pool. A job the pool cannot
// accept counts as a failure for that publisher.
func (s *Scheduler) dispatch(task *PublishTask) {
	task.Start()
	for _, p := range task.publishers {
		j := job{task: task, rec: task.record, pub: p}
		if err := s.pool.Submit(j); err != nil {
			if s.metrics != nil {
				s.metrics.RecordPublish(publisher.Name(p), "dropped", 0)
			}
			s.complete(j, err)
		}
	}
	if task.Finished() {
		s.afterFinish()
	}
}

// publish runs on a pool worker.
func (s *Scheduler) publish(ctx context.Context, j job) error {
	select {
	case <-s.quit:
		return errDiscarded
	default:
	}

	start := time.Now()
	err := j.pub.Publish(ctx, j.rec)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordPublish(publisher.Name(j.pub), status, time.Since(start))
	}
	return err
}

// onResult runs on a pool worker and forwards the result to Run.
func (s *Scheduler) onResult(j job, err error) {
	select {
	case s.results <- result{job: j, err: err}:
	case <-s.quit:
	}
}

func (s *Scheduler) complete(j job, err error) {
	if err != nil {
		s.logger.Error("Publish failed",
			"publisher", publisher.Name(j.pub),
			"event_id", j.rec.EventID(),
			"error", err)
	} else {
		s.logger.Debug("Event published",
			"publisher", publisher.Name(j.pub),
			"event_id", j.rec.EventID())
	}

	wasFinished := j.task.Finished()
	j.task.Complete(err)
	if !wasFinished && j.task.Finished() {
		s.afterFinish()
	}
}

func (s *Scheduler) afterFinish() {
	s.prune()
	s.checkStopped()
}

// drain stops pulling and arranges for the closing command to follow the
// last scheduled task.
func (s *Scheduler) drain() {
	if s.draining {
		return
	}
	s.draining = true
	s.state.Store(int32(StateDraining))
	s.recordState(StateDraining)

	if n := len(s.pending); n > 0 {
		s.pending[n-1].OnFinish(s.sendClosing)
		return
	}
	s.sendClosing()
}

func (s *Scheduler) sendClosing() {
	if s.closingSent {
		return
	}
	s.closingSent = true
	s.sendCommand(event.CommandEventSourceFinished)
}

func (s *Scheduler) sendCommand(name string) {
	rec, err := event.NewCommand(s.cfg.SourceID, name)
	if err != nil {
		s.logger.Error("Cannot build command", "command", name, "error", err)
		return
	}
	task := NewPublishTask(rec, s.publishers)
	s.pending = append(s.pending, task)
	s.dispatch(task)
}

func (s *Scheduler) prune() {
	kept := s.pending[:0]
	for _, task := range s.pending {
		if !task.Finished() {
			kept = append(kept, task)
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
	if s.metrics != nil {
		s.metrics.RecordPending(s.cfg.SourceID, len(s.pending))
	}
}

func (s *Scheduler) checkStopped() {
	if s.draining && s.closingSent && len(s.pending) == 0 {
		s.state.Store(int32(StateStopped))
	}
}

func (s *Scheduler) recordState(state State) {
	if s.metrics != nil {
		s.metrics.RecordSchedulerState(s.cfg.SourceID, int(state))
	}
}

package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "semevents"

// Metrics contains the core event middleware metrics.
type Metrics struct {
	// Scheduler metrics
	EventsScheduled *prometheus.CounterVec
	PendingTasks    *prometheus.GaugeVec
	SchedulerState  *prometheus.GaugeVec

	// Publish metrics
	EventsPublished *prometheus.CounterVec
	PublishDuration *prometheus.HistogramVec

	// Gateway metrics
	GatewayRequests *prometheus.CounterVec
	GatewayEvents   *prometheus.CounterVec
	AuthDenied      *prometheus.CounterVec
	FormatErrors    prometheus.Counter

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates the core metrics. They are not registered.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsScheduled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "events_scheduled_total",
				Help:      "Total number of events scheduled for publishing",
			},
			[]string{"source"},
		),

		PendingTasks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "pending_tasks",
				Help:      "Publish tasks scheduled or in flight",
			},
			[]string{"source"},
		),

		SchedulerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "state",
				Help:      "Scheduler state (0=not started, 1=running, 2=draining, 3=stopped)",
			},
			[]string{"source"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "publish",
				Name:      "published_total",
				Help:      "Total number of publish attempts by outcome",
			},
			[]string{"publisher", "status"},
		),

		PublishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "publish",
				Name:      "duration_seconds",
				Help:      "Publish attempt duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"publisher"},
		),

		GatewayRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of publish requests by HTTP status",
			},
			[]string{"status"},
		),

		GatewayEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "events_total",
				Help:      "Total number of events accepted by kind",
			},
			[]string{"kind"},
		),

		AuthDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "auth_denied_total",
				Help:      "Total number of denied authorization checks by reason code",
			},
			[]string{"reason"},
		),

		FormatErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "format_errors_total",
				Help:      "Total number of malformed event streams",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.EventsScheduled,
		c.PendingTasks,
		c.SchedulerState,
		c.EventsPublished,
		c.PublishDuration,
		c.GatewayRequests,
		c.GatewayEvents,
		c.AuthDenied,
		c.FormatErrors,
		c.NATSConnected,
		c.NATSReconnects,
	}
}

// RecordScheduled increments the scheduled events counter
func (c *Metrics) RecordScheduled(source string) {
	c.EventsScheduled.WithLabelValues(source).Inc()
}

// RecordPending sets the number of pending publish tasks
func (c *Metrics) RecordPending(source string, n int) {
	c.PendingTasks.WithLabelValues(source).Set(float64(n))
}

// RecordSchedulerState updates the scheduler state gauge
func (c *Metrics) RecordSchedulerState(source string, state int) {
	c.SchedulerState.WithLabelValues(source).Set(float64(state))
}

// RecordPublish records one publish attempt
func (c *Metrics) RecordPublish(publisher, status string, duration time.Duration) {
	c.EventsPublished.WithLabelValues(publisher, status).Inc()
	c.PublishDuration.WithLabelValues(publisher).Observe(duration.Seconds())
}

// RecordRequest increments the gateway request counter
func (c *Metrics) RecordRequest(status int) {
	c.GatewayRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordEvent increments the accepted events counter
func (c *Metrics) RecordEvent(kind string) {
	c.GatewayEvents.WithLabelValues(kind).Inc()
}

// RecordAuthDenied increments the denied authorization counter
func (c *Metrics) RecordAuthDenied(reason int) {
	c.AuthDenied.WithLabelValues(strconv.Itoa(reason)).Inc()
}

// RecordFormatError increments the malformed stream counter
func (c *Metrics) RecordFormatError() {
	c.FormatErrors.Inc()
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

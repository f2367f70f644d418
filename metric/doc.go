// Package metric provides Prometheus metrics for the event middleware and
// an HTTP server exposing them.
//
// A MetricsRegistry owns a private Prometheus registry holding the core
// event metrics (Metrics), Go runtime collectors and any component-specific
// collectors registered through the MetricsRegistrar interface.
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry)
//	go func() {
//	    if err := server.Start(); err != nil {
//	        logger.Error("metrics server failed", "error", err)
//	    }
//	}()
//	defer server.Stop()
//
//	registry.CoreMetrics().RecordPublish("http", "ok", 12*time.Millisecond)
//
// Core metrics use the "semevents" namespace:
//
//   - scheduler: events_scheduled_total, pending_tasks, state
//   - publish: published_total{publisher,status}, duration_seconds{publisher}
//   - gateway: requests_total{status}, events_total{kind}, auth_denied_total{reason},
//     format_errors_total
//   - nats: connected, reconnects_total
package metric

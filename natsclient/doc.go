// Package natsclient manages a NATS connection for event publishers.
//
// A Client wraps a core NATS connection with status tracking, a circuit
// breaker guarding repeated connection failures, slog logging and optional
// Prometheus connection metrics.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithClientName("semevents-replay"),
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.Publish(ctx, "events.sensor-7", data)
//
// After CircuitThreshold consecutive connection failures the circuit opens
// and Connect fails fast with ErrCircuitOpen until the backoff elapses. The
// backoff doubles on each opening up to the configured maximum.
//
// TestClient starts a disposable NATS server in a container through
// testcontainers-go for integration tests.
package natsclient

// Package httppost publishes event records to a stream server over HTTP.
//
// Each record is serialized in the wire format and POSTed with Content-Type
// application/ztreamy-event, one request per record:
//
//	pub, err := httppost.New(httppost.Config{
//	    URL:        "http://streams.example.com:9000/events/publish",
//	    RetryCount: 3,
//	})
//	err = pub.Publish(ctx, rec)
//
// # Retry Logic
//
// Network errors, 5xx responses and 429 are retried up to RetryCount times
// through pkg/retry, waiting 100ms, 200ms, 400ms and then 800ms between
// attempts. Other 4xx responses are not retried. Retries stay inside Publish; callers see a single outcome.
//
// # Error Handling
//
//   - Invalid config: errors.WrapInvalid
//   - Network errors and 5xx: errors.WrapTransient
//   - HTTP 4xx: errors.WrapInvalid
//
// Every failure also wraps errors.ErrPublishFailed.
package httppost

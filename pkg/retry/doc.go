// Package retry runs an operation again after transient failures.
//
// Do keeps calling fn while it returns errors that Config.Retryable accepts.
// By default only errors classified with errors.WrapTransient are retried,
// so callers that already classify failures get the right behavior for
// free:
//
//	err := retry.Do(ctx, retry.Config{MaxAttempts: 4, InitialDelay: 100 * time.Millisecond}, func() error {
//	    return pub.send(ctx, data)
//	})
//
// Waits grow by Multiplier after every failed attempt (100ms, 200ms, 400ms
// with the defaults) and are capped at MaxDelay. AddJitter adds up to 25%
// extra to each wait.
//
// The error of the final attempt is returned unchanged, so errors.Is and
// the errors.Is* classifiers keep working on the result. Cancelling ctx
// during a wait returns a transient error wrapping ctx.Err().
package retry

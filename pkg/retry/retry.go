// Package retry runs an operation again after transient failures, waiting
// with exponential backoff between attempts.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/c360/semevents/errors"
)

// Config controls the number of attempts and the wait between them.
type Config struct {
	MaxAttempts  int           // total attempts, values below 1 mean a single attempt
	InitialDelay time.Duration // wait before the second attempt
	MaxDelay     time.Duration // cap on any single wait
	Multiplier   float64       // growth factor applied after each wait
	AddJitter    bool          // add up to 25% random extra wait

	// Retryable decides whether an error earns another attempt.
	// Nil retries errors classified as transient.
	Retryable func(error) bool

	// OnRetry is called before each wait. Attempt is the number of the
	// attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultConfig returns 3 attempts starting at 100ms and capped at 5s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "delays cannot be negative")
	}
	if c.Multiplier < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "multiplier cannot be negative")
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "retry", "Validate", "max delay must be >= initial delay")
	}
	return nil
}

func (c *Config) withDefaults() {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	if c.Retryable == nil {
		c.Retryable = errors.IsTransient
	}
}

// Delay returns the wait after the given failed attempt, without jitter.
func (c Config) Delay(attempt int) time.Duration {
	c.withDefaults()
	delay := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= c.Multiplier
		if delay >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return min(time.Duration(delay), c.MaxDelay)
}

// Do calls fn until it succeeds, returns an error that is not retryable, or
// runs out of attempts. The last error from fn is returned unchanged. When
// ctx ends during a wait the result is a transient error wrapping ctx.Err().
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.withDefaults()

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.Retryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return errors.WrapTransient(ctx.Err(), "retry", "Do", "check context")
		}

		wait := cfg.Delay(attempt)
		if cfg.AddJitter && wait >= 4 {
			wait += rand.N(wait / 4)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WrapTransient(ctx.Err(), "retry", "Do", "wait for retry")
		case <-timer.C:
		}
	}
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}

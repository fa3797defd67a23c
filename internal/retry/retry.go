// Package retry wraps provider calls in a bounded-attempts backoff loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

type Config struct {
	// MaxAttempts is the total number of tries, including the first
	// (default: 3).
	MaxAttempts int

	// InitialDelay is the wait after the first failure (default: 1s).
	InitialDelay time.Duration

	// Multiplier scales the delay after every failed attempt. 1 keeps
	// the delay constant, 2 doubles it each time (default: 2).
	Multiplier float64

	// Classify reports whether an error is worth retrying. The default
	// retries everything except context cancellation and errors marked
	// with Permanent.
	Classify func(error) bool

	// Sleep overrides the inter-attempt wait, for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.Classify == nil {
		c.Classify = DefaultClassify
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return c
}

// ExhaustedError is returned once every attempt has failed. It carries
// the last underlying error.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error so the default classifier never retries it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func DefaultClassify(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var permanent *permanentError
	return !errors.As(err, &permanent)
}

// Do runs op until it succeeds, an attempt fails with a non-retryable
// error, or the attempt budget runs out. Delay before attempt n+1 is
// InitialDelay * Multiplier^(n-1).
func Do[T any](ctx context.Context, cfg Config, op func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var result T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var err error
		result, err = op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.Classify(err) {
			return result, err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1)))

		slog.Debug("retrying after failure",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay,
			"error", err)

		if err := cfg.Sleep(ctx, delay); err != nil {
			return result, err
		}
	}

	return result, &ExhaustedError{Attempts: cfg.MaxAttempts, LastErr: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

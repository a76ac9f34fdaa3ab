// Package integration holds the failure-handling primitives used around
// engine RPCs: bounded retry with backoff, per-call timeouts and panic-safe
// goroutines.
package integration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration

	// BackoffMultiplier multiplies the delay after each attempt.
	BackoffMultiplier float64

	// AttemptTimeout bounds each individual attempt. Zero means no bound
	// beyond the caller's context.
	AttemptTimeout time.Duration

	// RetryableErrors defines which errors should trigger a retry.
	// If nil, all errors are retried.
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns the defaults used for engine calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
		AttemptTimeout:    2 * time.Second,
	}
}

// RetryError reports that every attempt failed.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Err)
}

// Unwrap returns the error of the last attempt.
func (e *RetryError) Unwrap() error {
	return e.Err
}

// Attempts returns the number of attempts recorded in err, or 1 if err
// carries no retry information.
func Attempts(err error) int {
	var re *RetryError
	if errors.As(err, &re) {
		return re.Attempts
	}
	return 1
}

// Retry executes fn with retry logic based on the config. Each attempt gets
// its own context bounded by AttemptTimeout.
// If MaxAttempts is <= 0, it defaults to 1 attempt.
//
// Errors rejected by RetryableErrors are returned unchanged after the first
// attempt. When all attempts fail the last error is wrapped in a RetryError.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := attemptOnce(ctx, cfg.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.RetryableErrors != nil && !cfg.RetryableErrors(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, &RetryError{Attempts: attempt, Err: err}
		}

		// Don't wait after last attempt
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, &RetryError{Attempts: attempt, Err: err}
		case <-time.After(delay):
		}

		if cfg.BackoffMultiplier > 0 {
			delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		}
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, &RetryError{Attempts: maxAttempts, Err: lastErr}
}

func attemptOnce[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	return Timeout(ctx, timeout, fn)
}

// SafeGo runs fn in a goroutine with panic recovery.
func SafeGo(fn func(), onPanic func(recovered any)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}

// Timeout executes fn with a timeout.
//
// fn must respect the passed context. The function returns as soon as the
// timeout expires; an fn that ignores its context keeps running in the
// background until it returns.
func Timeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)

	go func() {
		val, err := fn(ctx)
		ch <- result{val, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

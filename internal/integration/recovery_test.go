package integration

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialDelay:      5 * time.Millisecond,
		MaxDelay:          20 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetry_Success(t *testing.T) {
	result, err := Retry(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		return 42, nil
	})

	if err != nil {
		t.Errorf("Retry error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}

func TestRetry_EventualSuccess(t *testing.T) {
	var attempts int

	result, err := Retry(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})

	if err != nil {
		t.Errorf("Retry error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_AllFail(t *testing.T) {
	errBroken := errors.New("broken pipe")
	var attempts int

	_, err := Retry(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		attempts++
		return 0, errBroken
	})

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if !errors.Is(err, errBroken) {
		t.Errorf("expected wrapped last error, got %v", err)
	}
	if n := Attempts(err); n != 3 {
		t.Errorf("Attempts(err) = %d, want 3", n)
	}
}

func TestRetry_NonRetryable(t *testing.T) {
	cfg := fastRetry(5)
	cfg.RetryableErrors = func(err error) bool {
		return !errors.Is(err, errNonRetryable)
	}

	var attempts int

	_, err := Retry(context.Background(), cfg, func(context.Context) (int, error) {
		attempts++
		return 0, errNonRetryable
	})

	if err != errNonRetryable {
		t.Errorf("expected the error unchanged, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (non-retryable)", attempts)
	}
	if n := Attempts(err); n != 1 {
		t.Errorf("Attempts(err) = %d, want 1", n)
	}
}

var errNonRetryable = errors.New("non-retryable error")

func TestRetry_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{
		MaxAttempts:       10,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 1.0,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := Retry(ctx, cfg, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("retry did not stop on cancel, took %v", elapsed)
	}
}

func TestRetry_AttemptTimeout(t *testing.T) {
	cfg := fastRetry(2)
	cfg.AttemptTimeout = 20 * time.Millisecond

	var attempts atomic.Int32
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts.Add(1)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestSafeGo(t *testing.T) {
	var recovered atomic.Value

	done := make(chan bool)

	SafeGo(func() {
		panic("test panic")
	}, func(r any) {
		recovered.Store(r)
		done <- true
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for panic recovery")
	}

	if recovered.Load() != "test panic" {
		t.Errorf("recovered = %v, want 'test panic'", recovered.Load())
	}
}

func TestTimeout_Success(t *testing.T) {
	result, err := Timeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	if err != nil {
		t.Errorf("Timeout error: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %d, want 42", result)
	}
}

func TestTimeout_Exceeded(t *testing.T) {
	_, err := Timeout(context.Background(), 50*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 42, nil
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestTimeout_Error(t *testing.T) {
	_, err := Timeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, errors.New("operation failed")
	})

	if err == nil || err.Error() != "operation failed" {
		t.Errorf("expected operation error, got %v", err)
	}
}

package engine

import (
	"context"
	"errors"

	"github.com/dshills/nvimbed/internal/integration"
)

// retrying decorates a Client with bounded retry of transport failures.
type retrying struct {
	next Client
	cfg  integration.RetryConfig
}

// WithRetry returns a Client that retries transport failures of next
// according to cfg. Each attempt is bounded by cfg.AttemptTimeout. When all
// attempts fail the returned TransportError records the attempt count.
//
// Input and SetBufferLines are not idempotent: a timed-out attempt may
// still have been applied. They get a single bounded attempt.
func WithRetry(next Client, cfg integration.RetryConfig) Client {
	cfg.RetryableErrors = IsTransport
	return &retrying{next: next, cfg: cfg}
}

func call[T any](ctx context.Context, r *retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	return attempt(ctx, r.cfg, op, fn)
}

func once[T any](ctx context.Context, r *retrying, op string, fn func(context.Context) (T, error)) (T, error) {
	cfg := r.cfg
	cfg.MaxAttempts = 1
	return attempt(ctx, cfg, op, fn)
}

func attempt[T any](ctx context.Context, cfg integration.RetryConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := integration.Retry(ctx, cfg, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			err = Transport(op, err)
		}
		return v, err
	})
	if err == nil {
		return v, nil
	}

	var re *integration.RetryError
	if !errors.As(err, &re) {
		return v, err
	}
	var te *TransportError
	if errors.As(re.Err, &te) {
		cp := *te
		cp.Attempts = re.Attempts
		return v, &cp
	}
	return v, &TransportError{Op: op, Attempts: re.Attempts, Err: re.Err}
}

func (r *retrying) Input(ctx context.Context, keys string) error {
	_, err := once(ctx, r, "input", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Input(ctx, keys)
	})
	return err
}

func (r *retrying) Command(ctx context.Context, cmd string) error {
	_, err := call(ctx, r, "command", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Command(ctx, cmd)
	})
	return err
}

func (r *retrying) CurrentBuffer(ctx context.Context) (int, error) {
	return call(ctx, r, "current buffer", r.next.CurrentBuffer)
}

func (r *retrying) Cursor(ctx context.Context) (int, int, error) {
	pos, err := call(ctx, r, "cursor", func(ctx context.Context) ([2]int, error) {
		row, col, err := r.next.Cursor(ctx)
		return [2]int{row, col}, err
	})
	return pos[0], pos[1], err
}

func (r *retrying) SetCursor(ctx context.Context, row, col int) error {
	_, err := call(ctx, r, "set cursor", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.SetCursor(ctx, row, col)
	})
	return err
}

func (r *retrying) BufferLines(ctx context.Context, buf int) ([]string, error) {
	return call(ctx, r, "buffer lines", func(ctx context.Context) ([]string, error) {
		return r.next.BufferLines(ctx, buf)
	})
}

func (r *retrying) SetBufferLines(ctx context.Context, buf, start, end int, lines []string) error {
	_, err := once(ctx, r, "set buffer lines", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.SetBufferLines(ctx, buf, start, end, lines)
	})
	return err
}

func (r *retrying) OpenBuffer(ctx context.Context, path string) (int, error) {
	n, err := call(ctx, r, "open buffer", func(ctx context.Context) (int, error) {
		return r.next.OpenBuffer(ctx, path)
	})
	return n, Annotate(err, path, 0)
}

func (r *retrying) BufferPath(ctx context.Context, buf int) (string, error) {
	return call(ctx, r, "buffer path", func(ctx context.Context) (string, error) {
		return r.next.BufferPath(ctx, buf)
	})
}

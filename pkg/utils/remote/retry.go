package remote

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Policy controls how a remote call is retried while it holds the queue slot.
type Policy struct {
	// MaxAttempts is the total number of tries including the first one.
	// Values below 1 are treated as DefaultMaxAttempts.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt. It doubles on
	// every further attempt.
	InitialBackoff time.Duration

	// Spacing is an extra delay inserted after the call while the slot is
	// still held, keeping successive calls apart.
	Spacing time.Duration

	// Retryable reports whether an error is worth another attempt. When nil,
	// no error is retried.
	Retryable func(error) bool
}

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
)

// Do runs fn under q with bounded retries. The whole operation, including
// time spent waiting for the slot, is aborted when ctx is done.
func Do[T any](ctx context.Context, q *Queue, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := q.acquire(ctx); err != nil {
		return zero, err
	}
	defer q.release()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = DefaultInitialBackoff
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := sleep(ctx, backoff); err != nil {
				return zero, err
			}
			backoff *= 2
		}

		v, err := fn(ctx)
		if err == nil {
			if p.Spacing > 0 {
				if err := sleep(ctx, p.Spacing); err != nil {
					return v, nil // the call itself succeeded
				}
			}
			return v, nil
		}

		lastErr = err
		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, goerr.Wrap(ctx.Err(), "remote call aborted")
		}
	}

	return zero, goerr.Wrap(lastErr, "remote call failed after retries", goerr.V("attempts", attempts))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "remote call aborted")
	}
}

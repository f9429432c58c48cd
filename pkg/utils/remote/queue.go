package remote

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// Queue grants exclusive access to a remote resource in strict FIFO order.
// At most one guarded call runs at a time across all callers, so concurrent
// requests never amplify rate-limit pressure.
type Queue struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

func NewQueue() *Queue {
	return &Queue{}
}

// acquire blocks until the caller owns the queue slot or ctx is done. A
// caller that gives up before being dispatched is removed from the wait list.
func (q *Queue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy {
		q.busy = true
		q.mu.Unlock()
		return nil
	}

	ch := make(chan struct{})
	q.waiters = append(q.waiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return nil

	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiters {
			if w == ch {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return goerr.Wrap(ctx.Err(), "canceled while queued for remote call")
			}
		}
		q.mu.Unlock()

		// The slot was handed over concurrently with cancellation. Pass it on
		// so the next waiter is not stranded.
		q.release()
		return goerr.Wrap(ctx.Err(), "canceled while queued for remote call")
	}
}

// release hands the slot to the oldest waiter, or marks the queue idle.
func (q *Queue) release() {
	q.mu.Lock()
	if len(q.waiters) > 0 {
		ch := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.mu.Unlock()
		close(ch)
		return
	}
	q.busy = false
	q.mu.Unlock()
}

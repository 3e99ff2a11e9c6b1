// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"sync"
)

// runQueue serializes orchestration runs: strict FIFO, one active run at a
// time. Each caller waits for its predecessor to finish entirely, then runs
// its own phases, then releases the slot. Waiters can abandon the queue via
// context cancellation.
type runQueue struct {
	mu      sync.Mutex
	busy    bool
	waiters []chan struct{}
}

func newRunQueue() *runQueue {
	return &runQueue{}
}

// acquire blocks until the caller holds the single run slot or ctx is done.
func (q *runQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy {
		q.busy = true
		q.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	q.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, waiter := range q.waiters {
			if waiter == ready {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The slot was granted between ctx firing and the cleanup above;
		// hand it to the next waiter so the queue keeps draining.
		q.release()
		return ctx.Err()
	}
}

// release hands the slot to the oldest waiter, or frees it.
func (q *runQueue) release() {
	q.mu.Lock()
	if len(q.waiters) > 0 {
		ready := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.mu.Unlock()
		close(ready)
		return
	}
	q.busy = false
	q.mu.Unlock()
}

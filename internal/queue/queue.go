package queue

import (
	"context"
	"sync"
)

// Queue is the in-memory dispatch order over queued jobs. Submission order
// is preserved: jobs are handed to workers strictly first-in first-out.
// Dequeue blocks until a job is available or the queue is closed, so workers
// never poll.
type Queue struct {
	store *Store

	mu      sync.Mutex
	cond    *sync.Cond
	pending []string
	closed  bool
}

// NewQueue creates an empty dispatch queue backed by the given store.
func NewQueue(store *Store) *Queue {
	q := &Queue{store: store}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job id to the tail of the pending order and wakes one
// waiting worker.
func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, id)
	q.cond.Signal()
}

// Dequeue removes and returns the oldest pending job id, blocking while the
// queue is empty. It returns false once the queue has been closed and
// drained of nothing, signalling the caller to exit.
func (q *Queue) Dequeue() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 {
		if q.closed {
			return "", false
		}
		q.cond.Wait()
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	return id, true
}

// CancelIfPending removes a job from the pending order and marks it
// cancelled in the store, all before any worker can claim it. It reports
// whether the job was still pending.
func (q *Queue) CancelIfPending(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	found := false
	for i, pending := range q.pending {
		if pending == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			found = true
			break
		}
	}
	q.mu.Unlock()

	if !found {
		return false, nil
	}
	if _, err := q.store.FinishWithError(ctx, id, StatusQueued, StatusCancelled, "cancelled before execution"); err != nil {
		return true, err
	}
	return true, nil
}

// Depth returns the number of jobs waiting for a worker.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close wakes every blocked Dequeue caller. Jobs still pending are left in
// the store as queued for the next run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

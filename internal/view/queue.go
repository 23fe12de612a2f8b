package view

import (
	"sync"

	"github.com/stage-tech/basestar-sub001/internal/store"
)

// changeQueue is a thread-safe unbounded FIFO of store changes.
//
// Writers enqueue from the store's change handler while the Run loop
// drains whole batches. A buffered signal channel of size 1 lets the loop wait without
// missing wake-ups and still observe context cancellation.
type changeQueue struct {
	mu      sync.Mutex
	changes []store.Change
	closed  bool
	signal  chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		changes: make([]store.Change, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a change to the back of the queue.
// Returns false if the queue is closed.
func (q *changeQueue) Enqueue(c store.Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.changes = append(q.changes, c)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Drain removes and returns every pending change in arrival order, or
// nil when the queue is empty.
func (q *changeQueue) Drain() []store.Change {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.changes) == 0 {
		return nil
	}
	batch := q.changes
	q.changes = make([]store.Change, 0, cap(batch))
	return batch
}

// Wait returns a channel that signals when changes may be available.
// It is closed once the queue is closed.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}

// Close signals that no more changes will be enqueued.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close was called.
func (q *changeQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

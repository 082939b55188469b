package controller

import (
	"sync"

	"github.com/roach88/sectional/internal/fetch"
)

// batchQueue is a thread-safe FIFO queue of change-set batches.
//
// The queue is unbounded so a chatty query engine can enqueue without
// blocking its notification goroutine. The Run loop drains every pending
// batch into a single diff cycle, so bursts coalesce naturally.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop (prevents goroutine hangs on context cancellation).
type batchQueue struct {
	mu      sync.Mutex
	batches []fetch.ChangeSet
	closed  bool
	signal  chan struct{} // Signals batch availability (buffered, size 1)
}

func newBatchQueue() *batchQueue {
	return &batchQueue{
		batches: make([]fetch.ChangeSet, 0, 8),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a batch to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *batchQueue) Enqueue(cs fetch.ChangeSet) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.batches = append(q.batches, cs)

	// Signal availability (non-blocking, buffer of 1 coalesces signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Drain removes and returns every pending batch merged into one.
// Returns (zero, false) if the queue is empty.
func (q *batchQueue) Drain() (fetch.ChangeSet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.batches) == 0 {
		return fetch.ChangeSet{}, false
	}

	merged := q.batches[0]
	for _, cs := range q.batches[1:] {
		merged.Added = append(merged.Added, cs.Added...)
		merged.Removed = append(merged.Removed, cs.Removed...)
		merged.Modified = append(merged.Modified, cs.Modified...)
	}

	// Nil out the slots so the retained array does not pin object refs.
	for i := range q.batches {
		q.batches[i] = fetch.ChangeSet{}
	}
	q.batches = q.batches[:0]

	return merged, true
}

// Wait returns a channel that signals when batches may be available.
// Use with select for context-aware waiting.
func (q *batchQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether Close has been called.
func (q *batchQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current number of pending batches.
func (q *batchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batches)
}

// Close signals that no more batches will be enqueued.
// Wakes any blocked waiter by closing the signal channel.
func (q *batchQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Package revalidation queues requests whose cached responses went stale
// and refreshes them in the background with a fixed number of workers.
package revalidation

import (
	"sync"
	"sync/atomic"
)

const DefaultCapacity = 100

// SlidingQueue is a bounded FIFO queue that never blocks the producer.
// When the queue is full, the oldest element is dropped to admit the new one.
type SlidingQueue[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	size  int
	// signalled (without blocking) whenever an element is offered
	ready   chan struct{}
	dropped atomic.Int64
}

// NewSlidingQueue creates a queue holding at most capacity elements.
// A non-positive capacity means DefaultCapacity.
func NewSlidingQueue[T any](capacity int) *SlidingQueue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SlidingQueue[T]{
		items: make([]T, capacity),
		ready: make(chan struct{}, 1),
	}
}

// Offer appends v to the queue.
// It reports false if an older element had to be dropped to make room.
func (q *SlidingQueue[T]) Offer(v T) bool {
	q.mu.Lock()
	admitted := true
	if q.size == len(q.items) {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
		q.dropped.Add(1)
		admitted = false
	}
	q.items[(q.head+q.size)%len(q.items)] = v
	q.size++
	q.mu.Unlock()

	q.signal()
	return admitted
}

// Poll removes and returns the oldest element.
func (q *SlidingQueue[T]) Poll() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return v, true
}

// Len returns the number of pending elements.
func (q *SlidingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the capacity of the queue.
func (q *SlidingQueue[T]) Cap() int {
	return len(q.items)
}

// Dropped returns how many elements were discarded because the queue was full.
func (q *SlidingQueue[T]) Dropped() int64 {
	return q.dropped.Load()
}

// Ready returns a channel that receives after an Offer.
// One receive may stand for several offered elements.
func (q *SlidingQueue[T]) Ready() <-chan struct{} {
	return q.ready
}

func (q *SlidingQueue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

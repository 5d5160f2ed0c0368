// Package queue provides the bounded in-memory queues behind the event loop
// inbox and the submission outbox.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/coinboard/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultQueueName     = "default"
)

// Queue provides enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds an item to the queue without blocking.
	// Returns ErrFull or ErrClosed if the item was not enqueued.
	Enqueue(ctx context.Context, item T) error
	// EnqueueWait adds an item, waiting for space until ctx is done or the
	// queue is closed.
	EnqueueWait(ctx context.Context, item T) error
	// Dequeue returns a channel that receives items in FIFO order.
	// The channel is closed when the queue is closed and drained.
	Dequeue() <-chan T
	// Len returns the current number of queued items.
	Len() int
	// Close stops accepting items. Items already queued are still delivered.
	Close() error
	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	items    chan T
	capacity int
	name     string

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	o := options{capacity: defaultQueueCapacity, name: defaultQueueName}
	for _, opt := range opts {
		opt(&o)
	}

	q := &InMemoryQueue[T]{
		items:    make(chan T, o.capacity),
		capacity: o.capacity,
		name:     o.name,
		done:     make(chan struct{}),
	}
	metrics.UpdateQueueSize(q.name, 0)
	return q
}

// Enqueue adds an item without blocking.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError(q.name, "closed")
		return fmt.Errorf("%s: %w", q.name, ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError(q.name, "context_cancelled")
		return fmt.Errorf("%s: %w", q.name, err)
	}

	select {
	case q.items <- item:
		metrics.UpdateQueueSize(q.name, len(q.items))
		return nil
	default:
		metrics.RecordQueueEnqueueError(q.name, "queue_full")
		return fmt.Errorf("%s: %w", q.name, ErrFull)
	}
}

// EnqueueWait adds an item, blocking while the queue is full. It returns
// ErrClosed when the queue is closed before the item fits and the context
// error when ctx ends first.
func (q *InMemoryQueue[T]) EnqueueWait(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError(q.name, "closed")
		return fmt.Errorf("%s: %w", q.name, ErrClosed)
	}

	select {
	case q.items <- item:
		metrics.UpdateQueueSize(q.name, len(q.items))
		return nil
	case <-q.done:
		metrics.RecordQueueEnqueueError(q.name, "closed")
		return fmt.Errorf("%s: %w", q.name, ErrClosed)
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError(q.name, "context_cancelled")
		return fmt.Errorf("%s: %w", q.name, ctx.Err())
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue[T]) Dequeue() <-chan T {
	return q.items
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	size := len(q.items)
	metrics.UpdateQueueSize(q.name, size)
	return size
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue[T]) Capacity() int {
	return q.capacity
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue[T]) Close() error {
	// Release blocked EnqueueWait callers before taking the write lock.
	q.closeOnce.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

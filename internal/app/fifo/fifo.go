package fifo

import (
	"context"
	"sync"

	"phile/internal/app/errors"
)

// Queue is a cancellable single-reader FIFO. Close wakes a blocked
// reader; buffered values still drain in order after Close, and only
// then does Get fail with ErrClosed.
type Queue[T any] struct {
	mu     sync.Mutex
	buf    []T
	closed bool
	wake   chan struct{}
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{wake: make(chan struct{}, 1)}
}

// Put appends a value. It fails with ErrClosed after Close. The buffer
// is unbounded, so Put never blocks.
func (q *Queue[T]) Put(value T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.ErrClosed
	}

	q.buf = append(q.buf, value)

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return nil
}

// Get blocks until a value is available, the queue is closed with an
// empty buffer, or ctx is cancelled. Behaviour with concurrent readers
// is undefined.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T

	for {
		q.mu.Lock()

		if len(q.buf) > 0 {
			value := q.buf[0]
			q.buf = q.buf[1:]
			q.mu.Unlock()

			return value, nil
		}

		if q.closed {
			q.mu.Unlock()
			return zero, errors.ErrClosed
		}

		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// GetNowait pops the head of the buffer without blocking. It fails with
// ErrEmpty when nothing is buffered and ErrClosed after close and drain.
func (q *Queue[T]) GetNowait() (T, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.buf) > 0 {
		value := q.buf[0]
		q.buf = q.buf[1:]

		return value, nil
	}

	if q.closed {
		return zero, errors.ErrClosed
	}

	return zero, errors.ErrEmpty
}

// Close marks the queue closed and wakes a pending reader. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.wake)
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

package pubsub

import (
	"context"
	"fmt"
	"sync"

	"phile/internal/app/errors"
)

// node is a single cell of the broadcast log. It starts unset, then
// transitions exactly once to either a value (with a successor) or the
// terminal end marker. The transition is announced by closing ready.
type node[T any] struct {
	ready chan struct{}
	value T
	next  *node[T]
	end   bool
}

func newNode[T any]() *node[T] {
	return &node[T]{ready: make(chan struct{})}
}

// Queue is a single-writer broadcast log. Every view subscribed before
// a publish observes that publish, in publication order. Nodes stay
// reachable only while some view still references them, so memory for
// consumed events is reclaimed by the garbage collector.
type Queue[T any] struct {
	mu   sync.Mutex
	tail *node[T]
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{tail: newNode[T]()}
}

// Publish appends a value to the log and wakes every waiting view.
// Publishing to a closed queue is a programmer error and panics.
func (q *Queue[T]) Publish(value T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tail := q.tail

	select {
	case <-tail.ready:
		panic(fmt.Sprintf("pubsub: publish after close: %+v", value))
	default:
	}

	next := newNode[T]()
	tail.value = value
	tail.next = next
	q.tail = next

	close(tail.ready)
}

// Close marks the end of the log. Views that reach the end receive
// ErrEndReached. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	tail := q.tail

	select {
	case <-tail.ready:
		return
	default:
	}

	tail.end = true
	close(tail.ready)
}

// Subscribe returns a view positioned at the current tail, so it only
// observes values published after the subscription.
func (q *Queue[T]) Subscribe() *View[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	return &View[T]{node: q.tail}
}

// View is a one-way cursor into the log. Independent views advance
// independently and never miss or duplicate values.
type View[T any] struct {
	node *node[T]
}

// Next blocks until the next value is published or the log ends. It
// returns ErrEndReached past the end and ctx.Err() on cancellation.
func (v *View[T]) Next(ctx context.Context) (T, error) {
	var zero T

	select {
	case <-v.node.ready:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	if v.node.end {
		return zero, errors.ErrEndReached
	}

	value := v.node.value
	v.node = v.node.next

	return value, nil
}

// TryNext returns the next value without blocking. ok is false when no
// value has been published past the cursor yet.
func (v *View[T]) TryNext() (T, bool, error) {
	var zero T

	select {
	case <-v.node.ready:
	default:
		return zero, false, nil
	}

	if v.node.end {
		return zero, false, errors.ErrEndReached
	}

	value := v.node.value
	v.node = v.node.next

	return value, true, nil
}

package task

import (
	"context"
	"errors"
)

// Task wraps a goroutine with cancellation and completion signalling.
// It is the handle type shared by concurrent supervisor callers: one
// task per in-flight transition, any number of waiters.
type Task struct {
	cancel  context.CancelFunc
	started chan struct{}
	done    chan struct{}
	err     error
}

// Go runs fn in its own goroutine and returns its handle. The context
// passed to fn is cancelled by Cancel.
func Go(fn func(ctx context.Context) error) *Task {
	ctx, cancel := context.WithCancel(context.Background())

	t := &Task{
		cancel:  cancel,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}

	go func() {
		close(t.started)

		t.err = fn(ctx)

		close(t.done)
	}()

	return t
}

// Never returns a task that completes only when cancelled. It stands in
// for units whose main activity is a bare future.
func Never() *Task {
	return Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
}

// Started is closed once the task body has been scheduled at least once.
func (t *Task) Started() <-chan struct{} {
	return t.started
}

// Done is closed when the task body has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task result. Valid only after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel requests cancellation. It does not wait for completion.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task completes or ctx is cancelled.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAndWait cancels the task and waits for it to finish. A
// context.Canceled result is treated as a successful cancellation.
func (t *Task) CancelAndWait(ctx context.Context) error {
	t.cancel()

	err := t.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Canceled reports whether the task result was a cancellation.
func (t *Task) Canceled() bool {
	return errors.Is(t.Err(), context.Canceled)
}

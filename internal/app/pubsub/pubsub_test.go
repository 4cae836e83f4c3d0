package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phile/internal/app/errors"
)

func Test_New(t *testing.T) {
	q := New[int]()

	assert.NotNil(t, q)
}

func Test_Queue_PublishSubscribe(t *testing.T) {
	q := New[string]()
	view := q.Subscribe()

	q.Publish("first")
	q.Publish("second")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	value, err := view.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", value)

	value, err = view.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func Test_Queue_TwoViews_SeeIdenticalSequence(t *testing.T) {
	q := New[int]()
	first := q.Subscribe()
	second := q.Subscribe()

	for i := 1; i <= 5; i++ {
		q.Publish(i)
	}

	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, view := range []*View[int]{first, second} {
		var seen []int

		for {
			value, err := view.Next(ctx)
			if err != nil {
				assert.ErrorIs(t, err, errors.ErrEndReached)
				break
			}

			seen = append(seen, value)
		}

		assert.Equal(t, []int{1, 2, 3, 4, 5}, seen)
	}
}

func Test_Queue_LateSubscriber_SkipsEarlierPublishes(t *testing.T) {
	q := New[int]()

	q.Publish(1)
	q.Publish(2)

	view := q.Subscribe()

	q.Publish(3)
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	value, err := view.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, value)

	_, err = view.Next(ctx)
	assert.ErrorIs(t, err, errors.ErrEndReached)
}

func Test_View_Next_WakesOnPublish(t *testing.T) {
	q := New[string]()
	view := q.Subscribe()

	got := make(chan string, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		value, err := view.Next(ctx)
		if err == nil {
			got <- value
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Publish("wake")

	select {
	case value := <-got:
		assert.Equal(t, "wake", value)
	case <-time.After(time.Second):
		t.Fatal("Expected blocked view to wake on publish")
	}
}

func Test_View_Next_ContextCancelled(t *testing.T) {
	q := New[int]()
	view := q.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := view.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_View_TryNext_DrainsWithoutBlocking(t *testing.T) {
	q := New[string]()
	view := q.Subscribe()

	_, ok, err := view.TryNext()
	require.NoError(t, err)
	assert.False(t, ok)

	q.Publish("first")
	q.Publish("second")

	value, ok, err := view.TryNext()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first", value)

	value, ok, err = view.TryNext()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", value)

	q.Close()

	_, ok, err = view.TryNext()
	assert.False(t, ok)
	assert.ErrorIs(t, err, errors.ErrEndReached)
}

func Test_Queue_Close_Idempotent(t *testing.T) {
	q := New[int]()

	q.Close()
	q.Close()

	view := q.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := view.Next(ctx)
	assert.ErrorIs(t, err, errors.ErrEndReached)
}

func Test_Queue_PublishAfterClose_Panics(t *testing.T) {
	q := New[int]()
	q.Close()

	assert.Panics(t, func() {
		q.Publish(1)
	})
}

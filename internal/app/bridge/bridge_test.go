package bridge

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phile/internal/app/errors"
	"phile/internal/config/logger"
)

func Test_Bridge_DeliversLinesInOrder(t *testing.T) {
	b := New(strings.NewReader("first\nsecond\nthird\n"), logger.NoOp())
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, expected := range []string{"first", "second", "third"} {
		line, err := b.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, expected, line)
	}
}

func Test_Bridge_SkipsBlankLines_TrimsWhitespace(t *testing.T) {
	b := New(strings.NewReader("  padded  \n\n   \nnext\n"), logger.NoOp())
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	line, err := b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "padded", line)

	line, err = b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "next", line)
}

func Test_Bridge_EOF_ClosesQueueAfterDrain(t *testing.T) {
	b := New(strings.NewReader("only\n"), logger.NoOp())
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	line, err := b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "only", line)

	_, err = b.Next(ctx)
	assert.ErrorIs(t, err, errors.ErrClosed)

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pump should exit at EOF")
	}
}

func Test_Bridge_Close_WakesBlockedConsumer(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	b := New(reader, logger.NoOp())

	result := make(chan error, 1)

	go func() {
		_, err := b.Next(context.Background())
		result <- err
	}()

	b.Close()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, errors.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer should be woken by Close")
	}
}

func Test_Bridge_Next_ContextCancel(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	b := New(reader, logger.NoOp())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_Bridge_ReaderError_ClosesQueue(t *testing.T) {
	reader, writer := io.Pipe()

	b := New(reader, logger.NoOp())
	defer b.Close()

	require.NoError(t, writer.CloseWithError(io.ErrUnexpectedEOF))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := b.Next(ctx)
	assert.ErrorIs(t, err, errors.ErrClosed)
}

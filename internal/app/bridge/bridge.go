package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"phile/internal/app/errors"
	"phile/internal/app/fifo"
	"phile/internal/app/task"
	"phile/internal/config/logger"
)

// Bridge pumps lines from a blocking reader into a cancellable queue.
// The pump goroutine is the only place a blocking read happens, so
// consumers stay fully cancellable through the queue.
type Bridge struct {
	lines *fifo.Queue[string]
	pump  *task.Task
	log   logger.Logger
}

// New creates a bridge and starts reading from input immediately.
func New(input io.Reader, log logger.Logger) *Bridge {
	b := &Bridge{
		lines: fifo.New[string](),
		log:   log.WithComponent("BRIDGE"),
	}

	b.pump = task.Go(func(ctx context.Context) error {
		return b.run(ctx, input)
	})

	return b
}

// Lines returns the queue the bridge feeds. The queue is closed when
// the reader ends or the bridge is closed; buffered lines still drain.
func (b *Bridge) Lines() *fifo.Queue[string] {
	return b.lines
}

// Next pops the next non-empty line, blocking until one arrives, the
// bridge ends, or ctx is cancelled.
func (b *Bridge) Next(ctx context.Context) (string, error) {
	return b.lines.Get(ctx)
}

// Done is closed once the pump goroutine has exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.pump.Done()
}

// Close closes the queue and cancels the pump. A pump blocked in a
// read on a non-closable source exits at its next line.
func (b *Bridge) Close() {
	b.lines.Close()
	b.pump.Cancel()
}

func (b *Bridge) run(ctx context.Context, input io.Reader) error {
	scanner := bufio.NewScanner(input)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := b.lines.Put(line); err != nil {
			if errors.Is(err, errors.ErrClosed) {
				return nil
			}

			return err
		}

		b.log.Trace().Msgf("Bridged line: %s", line)
	}

	b.lines.Close()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	b.log.Debug().Msg("Input ended")

	return nil
}

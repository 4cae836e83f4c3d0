package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"phile/internal/app/errors"
	"phile/internal/app/fifo"
	"phile/internal/app/launcher"
	"phile/internal/app/task"
	"phile/internal/config"
	"phile/internal/config/logger"
)

// UnitName is the unit the console registers itself as. It carries
// default dependencies, so starting the shutdown target stops it.
const UnitName = "console.service"

// Console is an interactive command interpreter over the supervisor.
// It runs as a launcher unit and consumes lines from a bridged queue,
// so its blocking read lives outside the unit's cancellable main.
type Console struct {
	sup    *launcher.Supervisor
	input  *fifo.Queue[string]
	out    io.Writer
	prompt string
	log    logger.Logger
}

// New creates a console over the given supervisor and input queue.
func New(sup *launcher.Supervisor, input *fifo.Queue[string], out io.Writer, cfg *config.Config, log logger.Logger) *Console {
	return &Console{
		sup:    sup,
		input:  input,
		out:    out,
		prompt: cfg.Console.Prompt,
		log:    log.WithComponent("CONSOLE"),
	}
}

// Register adds the console to the supervisor as a simple unit.
func (c *Console) Register() error {
	return c.sup.Add(UnitName, launcher.Descriptor{
		ExecStart: []launcher.Routine{func(ctx context.Context) (*task.Task, error) {
			return nil, c.run(ctx)
		}},
	})
}

// run is the unit main: a prompt/dispatch loop that ends cleanly when
// the input queue closes and with ctx.Err() when the unit is stopped.
func (c *Console) run(ctx context.Context) error {
	c.log.Info().Msg("Console ready")

	for {
		fmt.Fprint(c.out, c.prompt)

		line, err := c.input.Get(ctx)
		if err != nil {
			if errors.Is(err, errors.ErrClosed) {
				c.log.Debug().Msg("Input closed, console exiting")
				return nil
			}

			return err
		}

		if err := c.dispatch(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			fmt.Fprintf(c.out, "%v\n", err)
		}
	}
}

// dispatch executes one command line. Errors it returns are reported
// to the user, not fatal to the loop.
func (c *Console) dispatch(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	command, args := fields[0], fields[1:]

	c.log.Debug().Msgf("Command: %s", line)

	switch command {
	case "list":
		return c.list()
	case "status":
		return c.status()
	case "start":
		return c.applyToMatches(ctx, args, c.sup.Start)
	case "stop":
		return c.applyToMatches(ctx, args, c.sup.Stop)
	case "shutdown":
		c.sup.Start(launcher.ShutdownTarget)
		return nil
	case "help":
		c.help()
		return nil
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownCommand, command)
	}
}

func (c *Console) list() error {
	for _, name := range c.sup.Names() {
		fmt.Fprintln(c.out, name)
	}

	return nil
}

func (c *Console) status() error {
	for _, name := range c.sup.Names() {
		state := "stopped"
		if c.sup.IsRunning(name) {
			state = "running"
		}

		fmt.Fprintf(c.out, "%-10s %s\n", state, name)
	}

	return nil
}

// applyToMatches fans op out over every unit whose name matches the
// glob pattern and waits for all handles.
func (c *Console) applyToMatches(ctx context.Context, args []string, op func(string) *task.Task) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one unit pattern")
	}

	pattern, err := glob.Compile(args[0])
	if err != nil {
		return fmt.Errorf("bad pattern '%s': %w", args[0], err)
	}

	var matched []string

	for _, name := range c.sup.Names() {
		if name == launcher.ShutdownTarget {
			continue
		}

		if pattern.Match(name) {
			matched = append(matched, name)
		}
	}

	if len(matched) == 0 {
		return fmt.Errorf("no units match '%s'", args[0])
	}

	sort.Strings(matched)

	group, groupCtx := errgroup.WithContext(ctx)

	for _, name := range matched {
		name := name
		handle := op(name)

		group.Go(func() error {
			if err := handle.Wait(groupCtx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	for _, name := range matched {
		fmt.Fprintln(c.out, name)
	}

	return nil
}

func (c *Console) help() {
	fmt.Fprint(c.out, `Commands:
  list             List registered units
  status           Show unit states
  start <pattern>  Start units matching a glob pattern
  stop <pattern>   Stop units matching a glob pattern
  shutdown         Start the shutdown target
  help             Show this help
`)
}

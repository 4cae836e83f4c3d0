package launcher

import (
	"context"

	"github.com/looplab/fsm"

	"phile/internal/config/logger"
)

// FSM states
const (
	Stopped  = "stopped"
	Starting = "starting"
	Running  = "running"
	Stopping = "stopping"
)

// FSM events
const (
	Start   = "start"
	Started = "started"
	Stop    = "stop"
	Ended   = "ended"
)

// newUnitFSM creates the runtime state machine for one unit. A unit
// counts as running while the machine is anywhere but stopped.
func newUnitFSM(name string, log logger.Logger) *fsm.FSM {
	return fsm.NewFSM(
		Stopped,
		fsm.Events{
			{Name: Start, Src: []string{Stopped}, Dst: Starting},
			{Name: Started, Src: []string{Starting}, Dst: Running},
			{Name: Stop, Src: []string{Starting, Running}, Dst: Stopping},
			{Name: Ended, Src: []string{Starting, Running, Stopping}, Dst: Stopped},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				log.Debug().Msgf("STATE %s: %s → %s (trigger: %s)", name, e.Src, e.Dst, e.Event)
			},
		},
	)
}

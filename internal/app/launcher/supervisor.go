package launcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
	"golang.org/x/sync/errgroup"

	"phile/internal/app/capability"
	"phile/internal/app/errors"
	"phile/internal/app/pubsub"
	"phile/internal/app/task"
	"phile/internal/config/logger"
)

// ShutdownTarget is always registered. Every unit with default
// dependencies declares it in both before and conflicts, so starting it
// stops those units and waits for them before its never-completing main
// takes over.
const ShutdownTarget = "phile_shutdown.target"

// runningUnit is the supervisor-owned runtime record of a started unit.
type runningUnit struct {
	runner *task.Task
	main   *task.Task
}

// Supervisor owns unit lifecycles: it reconciles the ordering, binding
// and conflict relations declared in the database, runs the
// type-specific readiness gates, and publishes added/removed/started/
// stopped events on its bus. Concurrent start or stop calls for one
// unit share a single in-flight handle.
type Supervisor struct {
	mu       sync.Mutex
	db       *Database
	caps     *capability.Registry
	events   *pubsub.Queue[Event]
	starting map[string]*task.Task
	stopping map[string]*task.Task
	running  map[string]*runningUnit
	states   map[string]*fsm.FSM
	log      logger.Logger
}

// NewSupervisor creates a supervisor with an empty database and the
// shutdown target pre-registered.
func NewSupervisor(caps *capability.Registry, log logger.Logger) *Supervisor {
	s := &Supervisor{
		db:       NewDatabase(),
		caps:     caps,
		events:   pubsub.New[Event](),
		starting: make(map[string]*task.Task),
		stopping: make(map[string]*task.Task),
		running:  make(map[string]*runningUnit),
		states:   make(map[string]*fsm.FSM),
		log:      log.WithComponent("LAUNCHER"),
	}

	disabled := false

	// the target's main is a bare future: it never completes on its own
	_ = s.Add(ShutdownTarget, Descriptor{
		ExecStart: []Routine{func(ctx context.Context) (*task.Task, error) {
			return task.Never(), nil
		}},
		Type:                TypeForking,
		DefaultDependencies: &disabled,
	})

	return s
}

// Database returns the declaration layer.
func (s *Supervisor) Database() *Database {
	return s.db
}

// Capabilities returns the capability registry CAPABILITY units wait on.
func (s *Supervisor) Capabilities() *capability.Registry {
	return s.caps
}

// Events returns the supervisor event bus. Events are published after
// the corresponding state change is committed.
func (s *Supervisor) Events() *pubsub.Queue[Event] {
	return s.events
}

// Add registers a unit and publishes its added event. Registration
// never suspends, so there is no separate nowait variant.
func (s *Supervisor) Add(name string, descriptor Descriptor) error {
	if err := s.db.Add(name, descriptor); err != nil {
		return err
	}

	s.mu.Lock()
	s.states[name] = newUnitFSM(name, s.log)
	s.events.Publish(Event{Type: EventUnitAdded, Name: name})
	s.mu.Unlock()

	s.log.Debug().Msgf("Added unit '%s'", name)

	return nil
}

// Remove stops a unit if needed, forgets it, and publishes its removed
// event. Removing an unregistered name is a no-op.
func (s *Supervisor) Remove(ctx context.Context, name string) error {
	if !s.db.Contains(name) {
		return nil
	}

	if err := s.Stop(name).Wait(ctx); err != nil {
		return fmt.Errorf("stopping unit '%s' for removal: %w", name, err)
	}

	s.forget(name)

	return nil
}

// RemoveNowait removes a unit without stopping it. It fails with
// ErrUnitRunning when the unit is not stopped.
func (s *Supervisor) RemoveNowait(name string) error {
	if !s.db.Contains(name) {
		return nil
	}

	if s.IsRunning(name) {
		return fmt.Errorf("%w: %s", errors.ErrUnitRunning, name)
	}

	s.forget(name)

	return nil
}

func (s *Supervisor) forget(name string) {
	s.db.Remove(name)

	s.mu.Lock()
	delete(s.states, name)
	s.events.Publish(Event{Type: EventUnitRemoved, Name: name})
	s.mu.Unlock()

	s.log.Debug().Msgf("Removed unit '%s'", name)
}

// Contains reports whether name is registered.
func (s *Supervisor) Contains(name string) bool {
	return s.db.Contains(name)
}

// Names returns every registered unit name, sorted.
func (s *Supervisor) Names() []string {
	return s.db.Names()
}

// IsRunning reports whether the unit is anywhere between starting and
// stopped.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	machine, ok := s.states[name]

	return ok && machine.Current() != Stopped
}

// Start returns the in-flight start handle for the unit, creating one
// if none exists. Concurrent callers share the same handle.
func (s *Supervisor) Start(name string) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle, ok := s.starting[name]; ok {
		return handle
	}

	var handle *task.Task

	handle = task.Go(func(ctx context.Context) error {
		err := s.runStart(ctx, name)

		s.mu.Lock()
		if s.starting[name] == handle {
			delete(s.starting, name)
		}
		s.mu.Unlock()

		return err
	})

	s.starting[name] = handle

	return handle
}

// Stop returns the in-flight stop handle for the unit, creating one if
// none exists. Stopping a stopped unit is a no-op. A start in flight at
// this instant is claimed by the stop and cancelled; Start calls made
// after this point get a fresh handle that waits for the stop first.
func (s *Supervisor) Stop(name string) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if handle, ok := s.stopping[name]; ok {
		return handle
	}

	start := s.starting[name]
	delete(s.starting, name)

	var handle *task.Task

	handle = task.Go(func(ctx context.Context) error {
		err := s.runStop(ctx, name, start)

		s.mu.Lock()
		if s.stopping[name] == handle {
			delete(s.stopping, name)
		}
		s.mu.Unlock()

		return err
	})

	s.stopping[name] = handle

	return handle
}

// StopAll stops every unit that is currently running and waits for the
// stops to finish.
func (s *Supervisor) StopAll(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, name := range s.db.Names() {
		if !s.IsRunning(name) {
			continue
		}

		handle := s.Stop(name)

		group.Go(func() error {
			return handle.Wait(groupCtx)
		})
	}

	return group.Wait()
}

// runStart is the body of a start handle.
func (s *Supervisor) runStart(ctx context.Context, name string) error {
	// a stop in progress completes first, giving start-after-stop
	// restart semantics
	for {
		s.mu.Lock()
		stop := s.stopping[name]
		s.mu.Unlock()

		if stop == nil {
			break
		}

		if err := waitDone(ctx, stop); err != nil {
			return err
		}
	}

	s.mu.Lock()

	if !s.db.Contains(name) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", errors.ErrUnitNotFound, name)
	}

	if _, ok := s.running[name]; ok {
		s.mu.Unlock()
		return nil
	}

	s.transitionLocked(name, Start)
	s.mu.Unlock()

	if err := s.startUnit(ctx, name); err != nil {
		s.mu.Lock()
		s.transitionLocked(name, Ended)
		s.mu.Unlock()

		return err
	}

	return nil
}

// startUnit performs the dependency reconciliation and readiness gate
// for one start attempt.
func (s *Supervisor) startUnit(ctx context.Context, name string) error {
	// stop conflicting units, both declared and declaring
	var conflictStops []*task.Task

	for _, conflict := range union(s.db.Conflicts(name), s.db.ConflictedBy(name)) {
		if conflict == name {
			continue
		}

		conflictStops = append(conflictStops, s.Stop(conflict))
	}

	// pull up bound units
	var bindStarts []*task.Task

	for _, bound := range s.db.BindsTo(name) {
		if bound == name {
			continue
		}

		bindStarts = append(bindStarts, s.Start(bound))
	}

	// ordering: units in afterSet must finish starting, units in either
	// set must finish stopping, before this unit proceeds
	afterSet := union(s.db.After(name), s.db.ReverseBefore(name))
	beforeSet := union(s.db.Before(name), s.db.ReverseAfter(name))

	var orderingWaits []*task.Task

	s.mu.Lock()

	for _, other := range union(afterSet, beforeSet) {
		if other == name {
			continue
		}

		if handle, ok := s.stopping[other]; ok {
			orderingWaits = append(orderingWaits, handle)
		}
	}

	for _, other := range afterSet {
		if other == name {
			continue
		}

		if handle, ok := s.starting[other]; ok {
			orderingWaits = append(orderingWaits, handle)
		}
	}

	s.mu.Unlock()

	for _, handle := range append(conflictStops, orderingWaits...) {
		if err := waitDone(ctx, handle); err != nil {
			return err
		}
	}

	// a failed bound start fails this start; ordering waits above never
	// propagate errors
	for _, handle := range bindStarts {
		if err := handle.Wait(ctx); err != nil {
			return fmt.Errorf("binds_to start failed: %w", err)
		}
	}

	main, err := s.execStart(ctx, name)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		_ = main.CancelAndWait(context.WithoutCancel(ctx))
		return err
	}

	s.install(name, main)

	return nil
}

// execStart runs the unit's start routines and applies the
// type-specific readiness gate, returning the unit's main task.
func (s *Supervisor) execStart(ctx context.Context, name string) (*task.Task, error) {
	routines := s.db.ExecStart(name)
	if len(routines) == 0 {
		return nil, fmt.Errorf("%w: %s", errors.ErrUnitNotFound, name)
	}

	// all routines but the last are setup steps and run to completion
	for _, routine := range routines[:len(routines)-1] {
		if _, err := routine(ctx); err != nil {
			return nil, err
		}
	}

	last := routines[len(routines)-1]

	unitType, _ := s.db.Type(name)

	switch unitType {
	case TypeForking:
		main, err := last(ctx)
		if err != nil {
			return nil, err
		}

		if main == nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrNoMainTask, name)
		}

		return main, nil

	case TypeExec:
		main := spawn(last)

		select {
		case <-main.Started():
		case <-ctx.Done():
			_ = main.CancelAndWait(context.WithoutCancel(ctx))
			return nil, ctx.Err()
		}

		return main, nil

	case TypeCapability:
		key := s.db.CapabilityName(name)

		// subscribe before invoking exec_start so the SET cannot be missed
		view := s.caps.Events().Subscribe()
		main := spawn(last)

		if err := s.awaitCapability(ctx, view, key, main); err != nil {
			_ = main.CancelAndWait(context.WithoutCancel(ctx))
			return nil, err
		}

		return main, nil

	default:
		return spawn(last), nil
	}
}

// awaitCapability consumes capability events until a SET for key is
// observed. An ended event stream, or a main task that finishes without
// the key appearing, fails the start.
func (s *Supervisor) awaitCapability(ctx context.Context, view *pubsub.View[capability.Event], key capability.Key, main *task.Task) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-main.Done():
			cancel()
		case <-watchCtx.Done():
		}
	}()

	for {
		event, err := view.Next(watchCtx)
		if err != nil {
			if errors.Is(err, errors.ErrEndReached) {
				return fmt.Errorf("%w: %s", errors.ErrCapabilityNotSet, key)
			}

			// the SET may already be in the log even though the watch
			// lost the wakeup race to the cancellation
			if drainForSet(view, key) {
				return nil
			}

			select {
			case <-main.Done():
				if mainErr := main.Err(); mainErr != nil && !errors.Is(mainErr, context.Canceled) {
					return mainErr
				}

				return fmt.Errorf("%w: %s", errors.ErrCapabilityNotSet, key)
			default:
			}

			return err
		}

		if event.Type == capability.Set && event.Key == key {
			return nil
		}
	}
}

// drainForSet consumes already-published capability events without
// blocking, reporting whether a SET for key was among them.
func drainForSet(view *pubsub.View[capability.Event], key capability.Key) bool {
	for {
		event, ok, err := view.TryNext()
		if !ok || err != nil {
			return false
		}

		if event.Type == capability.Set && event.Key == key {
			return true
		}
	}
}

// install creates the runner task and commits the running record. The
// started event is published under the same critical section so it
// always precedes the runner's stopped event.
func (s *Supervisor) install(name string, main *task.Task) {
	s.mu.Lock()

	runner := task.Go(func(ctx context.Context) error {
		return s.superviseUnit(ctx, name, main)
	})

	s.running[name] = &runningUnit{runner: runner, main: main}
	s.transitionLocked(name, Started)
	s.events.Publish(Event{Type: EventUnitStarted, Name: name})

	s.mu.Unlock()

	s.log.Debug().Msgf("Started unit '%s'", name)
}

// superviseUnit is the runner task: it shields main from the runner's
// own cancellation, then performs ordered teardown when either main
// finishes or a stop cancels the runner.
func (s *Supervisor) superviseUnit(ctx context.Context, name string, main *task.Task) error {
	select {
	case <-main.Done():
	case <-ctx.Done():
	}

	cleanupCtx := context.WithoutCancel(ctx)

	// schedule bound dependents to stop
	for _, dependent := range s.db.BoundBy(name) {
		if dependent != name {
			s.Stop(dependent)
		}
	}

	// units ordered after this one finish stopping first
	reverseSet := union(s.db.Before(name), s.db.ReverseAfter(name))

	var waits []*task.Task

	s.mu.Lock()

	for _, other := range reverseSet {
		if other == name {
			continue
		}

		if handle, ok := s.stopping[other]; ok {
			waits = append(waits, handle)
		}
	}

	s.mu.Unlock()

	for _, handle := range waits {
		_ = waitDone(cleanupCtx, handle)
	}

	// stop must make forward progress: exec_stop failures are logged
	for _, routine := range s.db.ExecStop(name) {
		if _, err := routine(cleanupCtx); err != nil {
			s.log.Error().Err(err).Msgf("exec_stop failed for unit '%s'", name)
		}
	}

	_ = main.CancelAndWait(cleanupCtx)

	s.mu.Lock()

	if record, ok := s.running[name]; ok && record.main == main {
		delete(s.running, name)
	}

	s.transitionLocked(name, Ended)
	s.events.Publish(Event{Type: EventUnitStopped, Name: name})

	s.mu.Unlock()

	s.log.Debug().Msgf("Stopped unit '%s'", name)

	if mainErr := main.Err(); mainErr != nil && !errors.Is(mainErr, context.Canceled) {
		return mainErr
	}

	return nil
}

// runStop is the body of a stop handle: cancel the start that was in
// flight when the stop was issued, then cancel the runner and let its
// teardown run.
func (s *Supervisor) runStop(ctx context.Context, name string, start *task.Task) error {
	s.mu.Lock()
	s.transitionLocked(name, Stop)
	s.mu.Unlock()

	if start != nil {
		_ = start.CancelAndWait(ctx)
	}

	s.mu.Lock()
	record := s.running[name]
	s.mu.Unlock()

	if record != nil {
		// a main task failure is surfaced on the runner, not on stop
		if err := record.runner.CancelAndWait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			s.log.Debug().Msgf("Unit '%s' main ended with: %v", name, err)
		}
	}

	return nil
}

// transitionLocked fires an FSM event for the unit, ignoring
// transitions that do not apply to the current state. Callers hold s.mu.
func (s *Supervisor) transitionLocked(name string, event string) {
	machine, ok := s.states[name]
	if !ok {
		return
	}

	if err := machine.Event(context.Background(), event); err != nil {
		s.log.Debug().Msgf("STATE %s: event '%s' ignored: %v", name, event, err)
	}
}

// spawn runs a routine as the unit's main task, discarding any task a
// non-forking routine happens to return.
func spawn(routine Routine) *task.Task {
	return task.Go(func(ctx context.Context) error {
		_, err := routine(ctx)
		return err
	})
}

// waitDone waits for a handle to complete, ignoring its result.
func waitDone(ctx context.Context, handle *task.Task) error {
	select {
	case <-handle.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// union merges name slices, dropping duplicates.
func union(sets ...[]string) []string {
	seen := make(map[string]struct{})

	var merged []string

	for _, set := range sets {
		for _, name := range set {
			if _, ok := seen[name]; ok {
				continue
			}

			seen[name] = struct{}{}
			merged = append(merged, name)
		}
	}

	return merged
}

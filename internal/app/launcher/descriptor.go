package launcher

import (
	"context"

	"phile/internal/app/capability"
	"phile/internal/app/task"
)

// Type selects the readiness semantics applied to a unit's exec_start.
type Type int

const (
	// TypeSimple counts the unit as started as soon as its last
	// exec_start routine is scheduled.
	TypeSimple Type = iota
	// TypeExec additionally waits until the routine has been scheduled
	// at least once.
	TypeExec
	// TypeForking awaits the exec_start call itself; the task it
	// returns becomes the unit's main task.
	TypeForking
	// TypeCapability waits until the capability registry publishes a
	// SET event for the descriptor's capability name.
	TypeCapability
)

// String returns a string representation of the unit type
func (t Type) String() string {
	switch t {
	case TypeSimple:
		return "simple"
	case TypeExec:
		return "exec"
	case TypeForking:
		return "forking"
	case TypeCapability:
		return "capability"
	default:
		return "unknown"
	}
}

// Routine is a start or stop step of a unit. Start routines of forking
// units return the task to adopt as the unit's main task; every other
// routine returns nil and is itself run as a task when it is the last
// exec_start entry.
type Routine func(ctx context.Context) (*task.Task, error)

// Descriptor declares a unit. It is copied on registration and
// immutable afterwards.
type Descriptor struct {
	ExecStart      []Routine
	ExecStop       []Routine
	Type           Type
	CapabilityName capability.Key

	After     []string
	Before    []string
	BindsTo   []string
	Conflicts []string

	// DefaultDependencies adds ShutdownTarget to both Before and
	// Conflicts when true. nil means true.
	DefaultDependencies *bool
}

// unit is the normalized, database-owned form of a descriptor.
type unit struct {
	execStart      []Routine
	execStop       []Routine
	unitType       Type
	capabilityName capability.Key
	defaultDeps    bool

	after     map[string]struct{}
	before    map[string]struct{}
	bindsTo   map[string]struct{}
	conflicts map[string]struct{}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	return set
}

func setToSlice(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}

	return names
}

// normalize populates descriptor defaults: empty relation sets, default
// dependencies on, and capability type inference when a capability name
// is present without an explicit type.
func normalize(descriptor Descriptor) *unit {
	u := &unit{
		execStart:      descriptor.ExecStart,
		execStop:       descriptor.ExecStop,
		unitType:       descriptor.Type,
		capabilityName: descriptor.CapabilityName,
		defaultDeps:    descriptor.DefaultDependencies == nil || *descriptor.DefaultDependencies,
		after:          toSet(descriptor.After),
		before:         toSet(descriptor.Before),
		bindsTo:        toSet(descriptor.BindsTo),
		conflicts:      toSet(descriptor.Conflicts),
	}

	if u.unitType == TypeSimple && u.capabilityName != "" {
		u.unitType = TypeCapability
	}

	if u.defaultDeps {
		u.before[ShutdownTarget] = struct{}{}
		u.conflicts[ShutdownTarget] = struct{}{}
	}

	return u
}

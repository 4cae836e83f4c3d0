package launcher

import (
	"fmt"
	"sort"
	"sync"

	"phile/internal/app/capability"
	"phile/internal/app/errors"
)

// Database is the declaration layer: descriptors plus two-way indexes
// for the four relationship sets. It carries no lifecycle state.
// Relations may reference names that are not registered; the supervisor
// treats missing names as already satisfied.
type Database struct {
	mu    sync.Mutex
	units map[string]*unit

	afterInv     map[string]map[string]struct{}
	beforeInv    map[string]map[string]struct{}
	bindsToInv   map[string]map[string]struct{}
	conflictsInv map[string]map[string]struct{}
}

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		units:        make(map[string]*unit),
		afterInv:     make(map[string]map[string]struct{}),
		beforeInv:    make(map[string]map[string]struct{}),
		bindsToInv:   make(map[string]map[string]struct{}),
		conflictsInv: make(map[string]map[string]struct{}),
	}
}

// Add registers a descriptor under name. It fails with ErrNameInUse for
// duplicate names and ErrMissingDescriptorData when the descriptor has
// no exec_start. Forward and inverse indexes are updated together.
func (db *Database) Add(name string, descriptor Descriptor) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", errors.ErrMissingDescriptorData)
	}

	if len(descriptor.ExecStart) == 0 {
		return fmt.Errorf("%w: %s", errors.ErrMissingDescriptorData, name)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.units[name]; ok {
		return fmt.Errorf("%w: %s", errors.ErrNameInUse, name)
	}

	u := normalize(descriptor)
	db.units[name] = u

	indexInto(db.afterInv, name, u.after)
	indexInto(db.beforeInv, name, u.before)
	indexInto(db.bindsToInv, name, u.bindsTo)
	indexInto(db.conflictsInv, name, u.conflicts)

	return nil
}

// Remove forgets a unit and purges its inverse references. Idempotent.
func (db *Database) Remove(name string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.units[name]
	if !ok {
		return
	}

	delete(db.units, name)

	unindexFrom(db.afterInv, name, u.after)
	unindexFrom(db.beforeInv, name, u.before)
	unindexFrom(db.bindsToInv, name, u.bindsTo)
	unindexFrom(db.conflictsInv, name, u.conflicts)
}

// Contains reports whether name is registered.
func (db *Database) Contains(name string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, ok := db.units[name]

	return ok
}

// Names returns all registered unit names, sorted.
func (db *Database) Names() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	names := make([]string, 0, len(db.units))
	for name := range db.units {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// After returns the names the unit declared in its after set.
func (db *Database) After(name string) []string {
	return db.forward(name, func(u *unit) map[string]struct{} { return u.after })
}

// Before returns the names the unit declared in its before set.
func (db *Database) Before(name string) []string {
	return db.forward(name, func(u *unit) map[string]struct{} { return u.before })
}

// BindsTo returns the names the unit declared in its binds_to set.
func (db *Database) BindsTo(name string) []string {
	return db.forward(name, func(u *unit) map[string]struct{} { return u.bindsTo })
}

// Conflicts returns the names the unit declared in its conflicts set.
func (db *Database) Conflicts(name string) []string {
	return db.forward(name, func(u *unit) map[string]struct{} { return u.conflicts })
}

// ReverseAfter returns the units that declared name in their after set.
func (db *Database) ReverseAfter(name string) []string {
	return db.inverse(db.afterInv, name)
}

// ReverseBefore returns the units that declared name in their before set.
func (db *Database) ReverseBefore(name string) []string {
	return db.inverse(db.beforeInv, name)
}

// BoundBy returns the units that declared name in their binds_to set.
func (db *Database) BoundBy(name string) []string {
	return db.inverse(db.bindsToInv, name)
}

// ConflictedBy returns the units that declared name in their conflicts set.
func (db *Database) ConflictedBy(name string) []string {
	return db.inverse(db.conflictsInv, name)
}

// ExecStart returns the unit's start routines.
func (db *Database) ExecStart(name string) []Routine {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u, ok := db.units[name]; ok {
		return u.execStart
	}

	return nil
}

// ExecStop returns the unit's stop routines.
func (db *Database) ExecStop(name string) []Routine {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u, ok := db.units[name]; ok {
		return u.execStop
	}

	return nil
}

// Type returns the unit's activation type.
func (db *Database) Type(name string) (Type, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u, ok := db.units[name]; ok {
		return u.unitType, true
	}

	return TypeSimple, false
}

// CapabilityName returns the key a CAPABILITY unit waits on.
func (db *Database) CapabilityName(name string) capability.Key {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u, ok := db.units[name]; ok {
		return u.capabilityName
	}

	return ""
}

// DefaultDependencies reports whether the unit opted into the implicit
// shutdown target edges.
func (db *Database) DefaultDependencies(name string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if u, ok := db.units[name]; ok {
		return u.defaultDeps
	}

	return false
}

func (db *Database) forward(name string, pick func(*unit) map[string]struct{}) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.units[name]
	if !ok {
		return nil
	}

	return setToSlice(pick(u))
}

func (db *Database) inverse(index map[string]map[string]struct{}, name string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	return setToSlice(index[name])
}

// indexInto records name as a referrer of every target in set.
func indexInto(index map[string]map[string]struct{}, name string, set map[string]struct{}) {
	for target := range set {
		referrers, ok := index[target]
		if !ok {
			referrers = make(map[string]struct{})
			index[target] = referrers
		}

		referrers[name] = struct{}{}
	}
}

// unindexFrom removes name from every target's referrer set, dropping
// sets that drain completely.
func unindexFrom(index map[string]map[string]struct{}, name string, set map[string]struct{}) {
	for target := range set {
		referrers, ok := index[target]
		if !ok {
			continue
		}

		delete(referrers, name)

		if len(referrers) == 0 {
			delete(index, target)
		}
	}
}

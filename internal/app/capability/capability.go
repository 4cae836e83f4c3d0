package capability

import (
	"sync"

	"phile/internal/app/errors"
	"phile/internal/app/pubsub"
)

// Key identifies a capability slot. Providers and CAPABILITY-type units
// rendezvous on the key, not on the stored value.
type Key string

// EventType distinguishes registry mutations on the event queue.
type EventType string

const (
	Set EventType = "set"
	Del EventType = "del"
)

// Event is published for every mutation of the registry.
type Event struct {
	Type EventType
	Key  Key
}

// Registry is a typed key to value store that announces every mutation
// on a pub/sub queue. Callers synchronize on SET events rather than on
// value diffs, so Set republishes even when the value is unchanged.
type Registry struct {
	mu     sync.Mutex
	values map[Key]any
	events *pubsub.Queue[Event]
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		values: make(map[Key]any),
		events: pubsub.New[Event](),
	}
}

// Events returns the registry's event queue.
func (r *Registry) Events() *pubsub.Queue[Event] {
	return r.events
}

// Get returns the value stored under key.
func (r *Registry) Get(key Key) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.values[key]

	return value, ok
}

// Set assigns key to value and publishes a SET event.
func (r *Registry) Set(key Key, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = value
	r.publish(Event{Type: Set, Key: key})
}

// Delete removes key if present and publishes a DEL event.
func (r *Registry) Delete(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.values[key]; !ok {
		return
	}

	delete(r.values, key)
	r.publish(Event{Type: Del, Key: key})
}

// Pop removes key and returns its prior value. It fails with
// ErrCapabilityMissing when the key is absent.
func (r *Registry) Pop(key Key) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.values[key]
	if !ok {
		return nil, errors.ErrCapabilityMissing
	}

	delete(r.values, key)
	r.publish(Event{Type: Del, Key: key})

	return value, nil
}

// Provide sets key to value for the lifetime of the returned provision.
// It fails with ErrAlreadyEnabled when the key is already present.
// Releasing the provision pops the key and publishes the DEL event; a
// release after Close is safe.
func (r *Registry) Provide(key Key, value any) (*Provision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.values[key]; ok {
		return nil, errors.ErrAlreadyEnabled
	}

	r.values[key] = value
	r.publish(Event{Type: Set, Key: key})

	return &Provision{registry: r, key: key}, nil
}

// Close ends the event queue. Later mutations still update the map but
// no longer publish.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.closed = true
	r.events.Close()
}

// publish emits an event unless the queue has ended. Callers hold r.mu.
func (r *Registry) publish(event Event) {
	if r.closed {
		return
	}

	r.events.Publish(event)
}

// Provision is the scoped handle returned by Provide.
type Provision struct {
	once     sync.Once
	registry *Registry
	key      Key
}

// Release deletes the provided key. Idempotent.
func (p *Provision) Release() {
	p.once.Do(func() {
		p.registry.Delete(p.key)
	})
}

package launcher

// EventType represents the type of supervisor event
type EventType string

const (
	EventUnitAdded   EventType = "unit_added"
	EventUnitRemoved EventType = "unit_removed"
	EventUnitStarted EventType = "unit_started"
	EventUnitStopped EventType = "unit_stopped"
)

// Event is published on the supervisor bus after the corresponding
// state change has been committed. For a single unit the order over any
// lifetime segment is added < started < stopped < removed.
type Event struct {
	Type EventType
	Name string
}

package room

import (
	"context"
	"time"
)

// EventType names a committed room state change.
type EventType string

const (
	EventCreated         EventType = "room.created"
	EventJoined          EventType = "room.joined"
	EventLeft            EventType = "room.left"
	EventHostChanged     EventType = "room.host_changed"
	EventStarted         EventType = "room.started"
	EventResultSubmitted EventType = "room.result_submitted"
	EventResultsReady    EventType = "room.results_ready"
	EventDissolved       EventType = "room.dissolved"
)

// Event describes a state change after it has been committed.  UserID is
// the member the change is about (the new host for EventHostChanged).
type Event struct {
	Type     EventType
	RoomID   uint64
	LiveID   uint64
	UserID   uint64
	Occupied int
	At       time.Time
}

// AffectsListing reports whether the lobby list may change because of e.
func (e Event) AffectsListing() bool {
	switch e.Type {
	case EventCreated, EventJoined, EventLeft, EventStarted, EventDissolved, EventResultsReady:
		return true
	}
	return false
}

// Observer is notified of committed events.  Implementations must not
// block for long; they run on the request path.
type Observer interface {
	RoomChanged(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) RoomChanged(ctx context.Context, e Event) { f(ctx, e) }

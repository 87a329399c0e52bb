// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into an audit log.
package queue

import (
    "time"

    "github.com/iliyamo/live-room-coordinator/internal/room"
)

// RoomEventsQueue is the durable queue carrying room lifecycle events.
const RoomEventsQueue = "room.events"

// RoomEvent is published after a room change commits.  It carries enough
// for downstream consumers to log or aggregate without querying the store.
type RoomEvent struct {
    Type       string `json:"type"`
    RoomID     uint64 `json:"room_id"`
    LiveID     uint64 `json:"live_id"`
    UserID     uint64 `json:"user_id,omitempty"`
    Occupied   int    `json:"occupied"`
    OccurredAt string `json:"occurred_at"`
}

// FromRoomEvent converts a coordinator event into its wire form.
func FromRoomEvent(e room.Event) RoomEvent {
    return RoomEvent{
        Type:       string(e.Type),
        RoomID:     e.RoomID,
        LiveID:     e.LiveID,
        UserID:     e.UserID,
        Occupied:   e.Occupied,
        OccurredAt: e.At.UTC().Format(time.RFC3339Nano),
    }
}

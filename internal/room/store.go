// Package room coordinates short-lived multiplayer rooms: creating them,
// placing members into a bounded number of seats, moving the room through
// its lifecycle, migrating host authority when members leave and releasing
// the aggregated results once every seated member has reported.
//
// All read-modify-write operations on a room run inside Store.WithRoomLock,
// which serializes mutations of one room without contending with others.
// Display reads use Store.Snapshot and recompute everything from the
// current seats.
package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// ErrRoomNotFound is returned by a Store when the room id is unknown.
var ErrRoomNotFound = errors.New("room not found")

// StoreError wraps a persistence failure.  It is the only error the
// coordinator returns; every business outcome is a typed result.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("room store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// Store is the transactional row store the coordinator runs on.  Every
// method is scoped to a single room except CreateRoom, ListRooms and
// RoomsSeating, which never lock.
type Store interface {
	// CreateRoom inserts r and its first seat atomically and returns the
	// new room id.  r.ID and host.RoomID are ignored.
	CreateRoom(ctx context.Context, r model.Room, host model.Seat) (uint64, error)

	// ListRooms returns every room with stored status Waiting together with
	// its live seat count, ordered by room id.  liveID 0 means all lives.
	ListRooms(ctx context.Context, liveID uint64) ([]RoomOccupancy, error)

	// Snapshot reads a room and its seats, ordered by seat index, as one
	// consistent view.  Unknown ids yield ErrRoomNotFound.
	Snapshot(ctx context.Context, roomID uint64) (model.Room, []model.Seat, error)

	// WithRoomLock locks the room row and runs fn.  Writes made through tx
	// are applied only if fn returns nil.  Unknown ids yield ErrRoomNotFound
	// without calling fn.
	WithRoomLock(ctx context.Context, roomID uint64, fn func(tx RoomTx) error) error

	// RoomsSeating returns every seat userID holds, ordered by room id.
	RoomsSeating(ctx context.Context, userID uint64) ([]Placement, error)
}

// Placement locates one seat held by a participant.  SeatIndex and
// JoinedAt identify the placement, so a seat vacated and taken again is a
// different placement.
type Placement struct {
	RoomID    uint64
	SeatIndex int
	JoinedAt  time.Time
}

// RoomOccupancy pairs a stored room with its live seat count.
type RoomOccupancy struct {
	Room     model.Room
	Occupied int
}

// RoomTx is the locked view of one room handed to WithRoomLock callbacks.
// Room and Seats reflect writes already made through the same tx.
type RoomTx interface {
	Room() model.Room
	Seats() []model.Seat
	WriteRoom(ctx context.Context, r model.Room) error
	// WriteSeat inserts or replaces the seat at s.SeatIndex.
	WriteSeat(ctx context.Context, s model.Seat) error
	DeleteSeat(ctx context.Context, seatIndex int) error
}

// ProfileSource resolves public member profiles for the waiting-room view.
// Missing ids are simply absent from the returned map.
type ProfileSource interface {
	Profiles(ctx context.Context, userIDs []uint64) (map[uint64]model.Profile, error)
}

// Package memstore keeps rooms and users in process memory.  It backs the
// server when STORE_DRIVER=memory and gives tests a real concurrent store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/live-room-coordinator/internal/model"
	"github.com/iliyamo/live-room-coordinator/internal/room"
)

type roomEntry struct {
	mu    sync.Mutex
	room  model.Room
	seats []model.Seat // ordered by SeatIndex
}

// RoomStore implements room.Store.  The map itself is guarded by mu; each
// room has its own lock so operations on different rooms never contend.
type RoomStore struct {
	mu     sync.RWMutex
	rooms  map[uint64]*roomEntry
	nextID uint64
}

// NewRoomStore returns an empty store.
func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[uint64]*roomEntry)}
}

var _ room.Store = (*RoomStore)(nil)

func (s *RoomStore) CreateRoom(ctx context.Context, r model.Room, host model.Seat) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	host.RoomID = r.ID
	host.Result = host.Result.Clone()
	s.rooms[r.ID] = &roomEntry{room: r, seats: []model.Seat{host}}
	return r.ID, nil
}

func (s *RoomStore) ListRooms(ctx context.Context, liveID uint64) ([]room.RoomOccupancy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*roomEntry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]room.RoomOccupancy, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		r, n := e.room, len(e.seats)
		e.mu.Unlock()
		if r.Status != model.StatusWaiting {
			continue
		}
		if liveID != 0 && r.LiveID != liveID {
			continue
		}
		out = append(out, room.RoomOccupancy{Room: r, Occupied: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room.ID < out[j].Room.ID })
	return out, nil
}

func (s *RoomStore) Snapshot(ctx context.Context, roomID uint64) (model.Room, []model.Seat, error) {
	if err := ctx.Err(); err != nil {
		return model.Room{}, nil, err
	}
	e := s.entry(roomID)
	if e == nil {
		return model.Room{}, nil, room.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room, cloneSeats(e.seats), nil
}

func (s *RoomStore) WithRoomLock(ctx context.Context, roomID uint64, fn func(tx room.RoomTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := s.entry(roomID)
	if e == nil {
		return room.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &roomTx{room: e.room, seats: cloneSeats(e.seats)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.room = tx.room
	e.seats = tx.seats
	return nil
}

func (s *RoomStore) RoomsSeating(ctx context.Context, userID uint64) ([]room.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	entries := make([]*roomEntry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var held []room.Placement
	for _, e := range entries {
		e.mu.Lock()
		for _, st := range e.seats {
			if st.UserID == userID {
				held = append(held, room.Placement{RoomID: e.room.ID, SeatIndex: st.SeatIndex, JoinedAt: st.JoinedAt})
				break
			}
		}
		e.mu.Unlock()
	}
	sort.Slice(held, func(i, j int) bool { return held[i].RoomID < held[j].RoomID })
	return held, nil
}

func (s *RoomStore) entry(id uint64) *roomEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[id]
}

// roomTx stages writes on private copies; WithRoomLock swaps them in only
// when the callback succeeds.
type roomTx struct {
	room  model.Room
	seats []model.Seat
}

func (t *roomTx) Room() model.Room { return t.room }

func (t *roomTx) Seats() []model.Seat { return cloneSeats(t.seats) }

func (t *roomTx) WriteRoom(ctx context.Context, r model.Room) error {
	r.ID = t.room.ID
	t.room = r
	return nil
}

func (t *roomTx) WriteSeat(ctx context.Context, st model.Seat) error {
	st.RoomID = t.room.ID
	st.Result = st.Result.Clone()
	for i := range t.seats {
		if t.seats[i].SeatIndex == st.SeatIndex {
			t.seats[i] = st
			return nil
		}
	}
	t.seats = append(t.seats, st)
	sort.Slice(t.seats, func(i, j int) bool { return t.seats[i].SeatIndex < t.seats[j].SeatIndex })
	return nil
}

func (t *roomTx) DeleteSeat(ctx context.Context, seatIndex int) error {
	for i := range t.seats {
		if t.seats[i].SeatIndex == seatIndex {
			t.seats = append(t.seats[:i], t.seats[i+1:]...)
			return nil
		}
	}
	return nil
}

func cloneSeats(in []model.Seat) []model.Seat {
	out := make([]model.Seat, len(in))
	for i, st := range in {
		st.Result = st.Result.Clone()
		out[i] = st
	}
	return out
}

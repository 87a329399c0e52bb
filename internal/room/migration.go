package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// Leave frees userID's seat in roomID.  When the host leaves a room that
// still has members, the member in the lowest seat index becomes host;
// when the last member leaves, the room is dissolved.  Leaving a room one
// is not seated in, or an unknown room, does nothing.
//
// Completeness of results is always judged against the seats still
// occupied, so a member leaving mid-live lowers the bar for Collect.
func (s *Service) Leave(ctx context.Context, roomID, userID uint64) error {
	return s.leave(ctx, roomID, userID, nil)
}

// leavePlacement is Leave restricted to the seat described by p.  A seat
// vacated and taken again since p was read is left alone.
func (s *Service) leavePlacement(ctx context.Context, userID uint64, p Placement) error {
	return s.leave(ctx, p.RoomID, userID, func(st model.Seat) bool {
		return st.SeatIndex == p.SeatIndex && st.JoinedAt.Equal(p.JoinedAt)
	})
}

func (s *Service) leave(ctx context.Context, roomID, userID uint64, match func(model.Seat) bool) error {
	var events []Event
	err := s.store.WithRoomLock(ctx, roomID, func(tx RoomTx) error {
		events = events[:0]
		r := tx.Room()
		seats := tx.Seats()
		seat, ok := seatOf(seats, userID)
		if !ok || (match != nil && !match(seat)) {
			return nil
		}
		if err := tx.DeleteSeat(ctx, seat.SeatIndex); err != nil {
			return err
		}
		remaining := make([]model.Seat, 0, len(seats)-1)
		for _, st := range seats {
			if st.SeatIndex != seat.SeatIndex {
				remaining = append(remaining, st)
			}
		}
		events = append(events, Event{Type: EventLeft, RoomID: roomID, LiveID: r.LiveID, UserID: userID, Occupied: len(remaining)})

		if len(remaining) == 0 {
			if r.Status != model.StatusDissolved {
				r.Status = model.StatusDissolved
				if err := tx.WriteRoom(ctx, r); err != nil {
					return err
				}
			}
			events = append(events, Event{Type: EventDissolved, RoomID: roomID, LiveID: r.LiveID, UserID: userID})
			return nil
		}
		if r.HostUserID != userID {
			return nil
		}
		next := promoteHost(remaining)
		r.HostUserID = next.UserID
		if err := tx.WriteRoom(ctx, r); err != nil {
			return err
		}
		events = append(events, Event{Type: EventHostChanged, RoomID: roomID, LiveID: r.LiveID, UserID: next.UserID, Occupied: len(remaining)})
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		return nil
	}
	if err != nil {
		s.log.Error("leave room failed", zap.Uint64("room_id", roomID), zap.Uint64("user_id", userID), zap.Error(err))
		return storeErr("leave room", err)
	}
	s.emit(ctx, events...)
	return nil
}

// promoteHost picks the remaining member with the lowest seat index.
// remaining must not be empty.
func promoteHost(remaining []model.Seat) model.Seat {
	best := remaining[0]
	for _, st := range remaining[1:] {
		if st.SeatIndex < best.SeatIndex {
			best = st
		}
	}
	return best
}

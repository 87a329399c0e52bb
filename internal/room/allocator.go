package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// Join places userID into roomID.  The capacity check and the seat write
// happen under the room lock, so two joiners racing for the last seat
// cannot both be accepted.
//
// A member already seated in the room is accepted again without a second
// seat.  After a fresh placement, only the member's latest placement is
// kept and seats in other rooms are released.  Release failures do not
// change the outcome; the placement is already committed.
func (s *Service) Join(ctx context.Context, roomID, userID uint64, difficulty model.Difficulty) (JoinResult, error) {
	var (
		result   = JoinNotFound
		placed   bool
		occupied int
		liveID   uint64
	)
	err := s.store.WithRoomLock(ctx, roomID, func(tx RoomTx) error {
		r := tx.Room()
		seats := tx.Seats()
		liveID = r.LiveID
		occupied = len(seats)
		if _, ok := seatOf(seats, userID); ok {
			result = JoinAccepted
			return nil
		}
		switch {
		case occupied == 0 || r.Status == model.StatusDissolved:
			result = JoinDisbanded
			return nil
		case occupied >= r.MaxUserCount || r.Status == model.StatusLiveStarted:
			result = JoinRoomFull
			return nil
		}
		idx := firstFreeIndex(seats, r.MaxUserCount)
		if idx < 0 {
			result = JoinRoomFull
			return nil
		}
		if err := tx.WriteSeat(ctx, model.Seat{
			RoomID:     roomID,
			SeatIndex:  idx,
			UserID:     userID,
			Difficulty: difficulty,
			JoinedAt:   s.placedAt(),
		}); err != nil {
			return err
		}
		result = JoinAccepted
		placed = true
		occupied++
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		return JoinNotFound, nil
	}
	if err != nil {
		s.log.Error("join room failed", zap.Uint64("room_id", roomID), zap.Uint64("user_id", userID), zap.Error(err))
		return 0, storeErr("join room", err)
	}
	if !placed {
		return result, nil
	}
	s.emit(ctx, Event{Type: EventJoined, RoomID: roomID, LiveID: liveID, UserID: userID, Occupied: occupied})
	s.settleSeats(ctx, userID)
	return result, nil
}

// firstFreeIndex returns the lowest seat index in [0, capacity) not taken
// by seats, or -1 when every index is used.
func firstFreeIndex(seats []model.Seat, capacity int) int {
	taken := make(map[int]bool, len(seats))
	for _, st := range seats {
		taken[st.SeatIndex] = true
	}
	for i := 0; i < capacity; i++ {
		if !taken[i] {
			return i
		}
	}
	return -1
}

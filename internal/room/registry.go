package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// CreateRoom opens a Waiting room for liveID with userID as host seated at
// index 0.  Seats the creator held in other rooms are released afterwards;
// a failed release is logged and retried by the creator's next placement.
func (s *Service) CreateRoom(ctx context.Context, liveID, userID uint64, difficulty model.Difficulty) (uint64, error) {
	now := s.placedAt()
	r := model.Room{
		LiveID:       liveID,
		MaxUserCount: s.capacity,
		Status:       model.StatusWaiting,
		HostUserID:   userID,
		CreatedAt:    now,
	}
	host := model.Seat{
		SeatIndex:  0,
		UserID:     userID,
		Difficulty: difficulty,
		JoinedAt:   now,
	}
	id, err := s.store.CreateRoom(ctx, r, host)
	if err != nil {
		s.log.Error("create room failed", zap.Uint64("live_id", liveID), zap.Error(err))
		return 0, storeErr("create room", err)
	}
	s.emit(ctx, Event{Type: EventCreated, RoomID: id, LiveID: liveID, UserID: userID, Occupied: 1})
	s.settleSeats(ctx, userID)
	return id, nil
}

// ListRooms returns joinable rooms: stored status Waiting with at least one
// and fewer than capacity occupants.  liveID 0 lists every live.  The order
// is by room id, which follows creation order.
func (s *Service) ListRooms(ctx context.Context, liveID uint64) ([]model.RoomSummary, error) {
	rows, err := s.store.ListRooms(ctx, liveID)
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	out := make([]model.RoomSummary, 0, len(rows))
	for _, ro := range rows {
		if ro.Room.Status != model.StatusWaiting {
			continue
		}
		if ro.Occupied == 0 || ro.Occupied >= ro.Room.MaxUserCount {
			continue
		}
		if liveID != 0 && ro.Room.LiveID != liveID {
			continue
		}
		out = append(out, model.RoomSummary{
			RoomID:          ro.Room.ID,
			LiveID:          ro.Room.LiveID,
			JoinedUserCount: ro.Occupied,
			MaxUserCount:    ro.Room.MaxUserCount,
		})
	}
	return out, nil
}

// settleSeats keeps only the latest of userID's placements and leaves the
// rest.  Each leave is its own atomic unit and only removes the exact seat
// that was read, so concurrent settles for the same user converge on the
// same survivor.  Rooms are never locked together.
func (s *Service) settleSeats(ctx context.Context, userID uint64) {
	held, err := s.store.RoomsSeating(ctx, userID)
	if err != nil {
		s.log.Warn("release other seats failed", zap.Uint64("user_id", userID), zap.Error(err))
		return
	}
	if len(held) < 2 {
		return
	}
	keep := latestPlacement(held)
	for _, p := range held {
		if p.RoomID == keep.RoomID {
			continue
		}
		if err := s.leavePlacement(ctx, userID, p); err != nil {
			s.log.Warn("release seat failed",
				zap.Uint64("user_id", userID), zap.Uint64("room_id", p.RoomID), zap.Error(err))
		}
	}
}

// latestPlacement orders by JoinedAt, then by room id.  held must not be
// empty.
func latestPlacement(held []Placement) Placement {
	best := held[0]
	for _, p := range held[1:] {
		if p.JoinedAt.After(best.JoinedAt) || (p.JoinedAt.Equal(best.JoinedAt) && p.RoomID > best.RoomID) {
			best = p
		}
	}
	return best
}

// placedAt stamps a new seat.  Stores keep microseconds, and placements are
// compared by this value after a round trip.
func (s *Service) placedAt() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

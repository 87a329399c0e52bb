package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// ResultView is one member's submitted result.
type ResultView struct {
	UserID      uint64
	JudgeCounts []int
	Score       int64
}

// Submit records userID's result on their seat in roomID.  A seat keeps
// its first result; later submissions report SubmitAlreadySubmitted and
// change nothing.
func (s *Service) Submit(ctx context.Context, roomID, userID uint64, score int64, judgeCounts []int) (SubmitResult, error) {
	result := SubmitNotInRoom
	var (
		recorded bool
		liveID   uint64
		occupied int
	)
	err := s.store.WithRoomLock(ctx, roomID, func(tx RoomTx) error {
		r := tx.Room()
		seats := tx.Seats()
		liveID, occupied = r.LiveID, len(seats)
		seat, ok := seatOf(seats, userID)
		if !ok {
			result = SubmitNotInRoom
			return nil
		}
		if seat.HasResult() {
			result = SubmitAlreadySubmitted
			return nil
		}
		jc := make([]int, len(judgeCounts))
		copy(jc, judgeCounts)
		seat.Result = &model.SeatResult{Score: score, JudgeCounts: jc}
		if err := tx.WriteSeat(ctx, seat); err != nil {
			return err
		}
		result = SubmitOK
		recorded = true
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		return SubmitNotInRoom, nil
	}
	if err != nil {
		s.log.Error("submit result failed", zap.Uint64("room_id", roomID), zap.Uint64("user_id", userID), zap.Error(err))
		return 0, storeErr("submit result", err)
	}
	if recorded {
		s.emit(ctx, Event{Type: EventResultSubmitted, RoomID: roomID, LiveID: liveID, UserID: userID, Occupied: occupied})
	}
	return result, nil
}

// Collect returns one ResultView per occupied seat, in seat order, once
// every occupied seat has a result.  Until then it returns an empty slice.
// The first complete read dissolves the room; members can keep reading
// the same result set afterwards.
func (s *Service) Collect(ctx context.Context, roomID uint64) ([]ResultView, error) {
	_, seats, err := s.store.Snapshot(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return []ResultView{}, nil
	}
	if err != nil {
		return nil, storeErr("collect results", err)
	}
	if !complete(seats) {
		return []ResultView{}, nil
	}

	var (
		views     []ResultView
		dissolved bool
		liveID    uint64
		occupied  int
	)
	err = s.store.WithRoomLock(ctx, roomID, func(tx RoomTx) error {
		r := tx.Room()
		seats := tx.Seats()
		views, dissolved = nil, false
		liveID, occupied = r.LiveID, len(seats)
		if !complete(seats) {
			return nil
		}
		views = resultViews(seats)
		if r.Status == model.StatusDissolved {
			return nil
		}
		r.Status = model.StatusDissolved
		if err := tx.WriteRoom(ctx, r); err != nil {
			return err
		}
		dissolved = true
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		return []ResultView{}, nil
	}
	if err != nil {
		s.log.Error("collect results failed", zap.Uint64("room_id", roomID), zap.Error(err))
		return nil, storeErr("collect results", err)
	}
	if views == nil {
		return []ResultView{}, nil
	}
	if dissolved {
		s.emit(ctx,
			Event{Type: EventResultsReady, RoomID: roomID, LiveID: liveID, Occupied: occupied},
			Event{Type: EventDissolved, RoomID: roomID, LiveID: liveID, Occupied: occupied},
		)
	}
	return views, nil
}

// complete is the completion barrier: at least one occupied seat and a
// result on every one of them.
func complete(seats []model.Seat) bool {
	if len(seats) == 0 {
		return false
	}
	for _, st := range seats {
		if !st.HasResult() {
			return false
		}
	}
	return true
}

func resultViews(seats []model.Seat) []ResultView {
	out := make([]ResultView, 0, len(seats))
	for _, st := range seats {
		jc := make([]int, len(st.Result.JudgeCounts))
		copy(jc, st.Result.JudgeCounts)
		out = append(out, ResultView{UserID: st.UserID, JudgeCounts: jc, Score: st.Result.Score})
	}
	return out
}

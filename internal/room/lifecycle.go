package room

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// SeatView is one occupied seat as seen by a polling member.
type SeatView struct {
	UserID       uint64
	Name         string
	LeaderCardID uint64
	Difficulty   model.Difficulty
	IsRequester  bool
	IsHost       bool
}

// Status returns the externally visible state of roomID.  A room with no
// occupants, including an unknown one, reports Dissolved.
func (s *Service) Status(ctx context.Context, roomID uint64) (model.RoomStatus, error) {
	r, seats, err := s.store.Snapshot(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return model.StatusDissolved, nil
	}
	if err != nil {
		return 0, storeErr("room status", err)
	}
	return visibleStatus(r, len(seats)), nil
}

// Members lists the occupied seats of roomID in seat order, flagging the
// requester and the host.  Each call reads the seats afresh.
func (s *Service) Members(ctx context.Context, roomID, requesterID uint64) ([]SeatView, error) {
	_, views, err := s.Poll(ctx, roomID, requesterID)
	return views, err
}

// Poll returns the visible status and the member list from one snapshot,
// which is what a waiting client asks for on every tick.
func (s *Service) Poll(ctx context.Context, roomID, requesterID uint64) (model.RoomStatus, []SeatView, error) {
	r, seats, err := s.store.Snapshot(ctx, roomID)
	if errors.Is(err, ErrRoomNotFound) {
		return model.StatusDissolved, []SeatView{}, nil
	}
	if err != nil {
		return 0, nil, storeErr("poll room", err)
	}
	profiles, err := s.lookupProfiles(ctx, seats)
	if err != nil {
		return 0, nil, err
	}
	views := make([]SeatView, 0, len(seats))
	for _, st := range seats {
		p := profiles[st.UserID]
		views = append(views, SeatView{
			UserID:       st.UserID,
			Name:         p.Name,
			LeaderCardID: p.LeaderCardID,
			Difficulty:   st.Difficulty,
			IsRequester:  st.UserID == requesterID,
			IsHost:       st.UserID == r.HostUserID,
		})
	}
	return visibleStatus(r, len(seats)), views, nil
}

func (s *Service) lookupProfiles(ctx context.Context, seats []model.Seat) (map[uint64]model.Profile, error) {
	if s.profiles == nil || len(seats) == 0 {
		return map[uint64]model.Profile{}, nil
	}
	ids := make([]uint64, 0, len(seats))
	for _, st := range seats {
		ids = append(ids, st.UserID)
	}
	profiles, err := s.profiles.Profiles(ctx, ids)
	if err != nil {
		return nil, storeErr("member profiles", err)
	}
	return profiles, nil
}

// Start moves roomID from Waiting to LiveStarted.  Only the current host,
// while seated, may start; starting an already started room is a no-op.
func (s *Service) Start(ctx context.Context, roomID, requesterID uint64) (StartResult, error) {
	result := StartForbidden
	var (
		started  bool
		liveID   uint64
		occupied int
	)
	err := s.store.WithRoomLock(ctx, roomID, func(tx RoomTx) error {
		r := tx.Room()
		seats := tx.Seats()
		occupied = len(seats)
		if r.HostUserID != requesterID {
			return nil
		}
		if _, seated := seatOf(seats, requesterID); !seated {
			return nil
		}
		switch r.Status {
		case model.StatusLiveStarted:
			result = StartOK
			return nil
		case model.StatusWaiting:
		default:
			return nil
		}
		r.Status = model.StatusLiveStarted
		if err := tx.WriteRoom(ctx, r); err != nil {
			return err
		}
		started, liveID = true, r.LiveID
		result = StartOK
		return nil
	})
	if errors.Is(err, ErrRoomNotFound) {
		return StartNotFound, nil
	}
	if err != nil {
		s.log.Error("start room failed", zap.Uint64("room_id", roomID), zap.Error(err))
		return 0, storeErr("start room", err)
	}
	if started {
		s.emit(ctx, Event{Type: EventStarted, RoomID: roomID, LiveID: liveID, UserID: requesterID, Occupied: occupied})
	}
	return result, nil
}

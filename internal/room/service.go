package room

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// Service is the room coordinator.  It is safe for concurrent use; all
// state lives in the Store.
type Service struct {
	store     Store
	profiles  ProfileSource
	capacity  int
	log       *zap.Logger
	observers []Observer
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCapacity sets the seat count of newly created rooms.  Values below 1
// are ignored.
func WithCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithProfiles sets the source of member names shown by Members.
func WithProfiles(p ProfileSource) Option {
	return func(s *Service) { s.profiles = p }
}

// WithObserver registers an observer for committed events.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service backed by store.
func New(store Store, opts ...Option) *Service {
	if store == nil {
		panic("nil store passed to room.New")
	}
	s := &Service{
		store:    store,
		capacity: model.DefaultMaxUserCount,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Capacity returns the seat count used for new rooms.
func (s *Service) Capacity() int { return s.capacity }

func (s *Service) emit(ctx context.Context, events ...Event) {
	for _, e := range events {
		if e.At.IsZero() {
			e.At = s.now().UTC()
		}
		s.log.Debug("room event",
			zap.String("type", string(e.Type)),
			zap.Uint64("room_id", e.RoomID),
			zap.Uint64("user_id", e.UserID),
			zap.Int("occupied", e.Occupied),
		)
		for _, o := range s.observers {
			o.RoomChanged(ctx, e)
		}
	}
}

// seatOf returns the seat held by userID, if any.
func seatOf(seats []model.Seat, userID uint64) (model.Seat, bool) {
	for _, st := range seats {
		if st.UserID == userID {
			return st, true
		}
	}
	return model.Seat{}, false
}

// visibleStatus derives the externally visible state: an empty room is
// dissolved no matter what is stored.
func visibleStatus(r model.Room, occupied int) model.RoomStatus {
	if occupied == 0 {
		return model.StatusDissolved
	}
	return r.Status
}

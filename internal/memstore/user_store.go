package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/live-room-coordinator/internal/model"
	"github.com/iliyamo/live-room-coordinator/internal/repository"
)

// UserStore is the in-memory counterpart of repository.UserRepo.
type UserStore struct {
	mu     sync.RWMutex
	users  map[uint64]model.User
	nextID uint64
}

// NewUserStore returns an empty user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uint64]model.User)}
}

func (s *UserStore) Create(ctx context.Context, name string, leaderCardID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	s.users[s.nextID] = model.User{ID: s.nextID, Name: name, LeaderCardID: leaderCardID, CreatedAt: now, UpdatedAt: now}
	return s.nextID, nil
}

func (s *UserStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) Update(ctx context.Context, id uint64, name string, leaderCardID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Name = name
	u.LeaderCardID = leaderCardID
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return nil
}

// Profiles implements room.ProfileSource.
func (s *UserStore) Profiles(ctx context.Context, ids []uint64) (map[uint64]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint64]model.Profile, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Profile()
		}
	}
	return out, nil
}

package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/live-room-coordinator/internal/model"
	"github.com/iliyamo/live-room-coordinator/internal/repository"
)

func TestUserStore_Lifecycle(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	id, err := s.Create(ctx, "alice", 7)
	require.NoError(t, err)

	u, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, uint64(7), u.LeaderCardID)

	require.NoError(t, s.Update(ctx, id, "alice2", 8))
	u, err = s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Name)

	_, err = s.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
	assert.ErrorIs(t, s.Update(ctx, 999, "x", 1), repository.ErrUserNotFound)
}

func TestUserStore_ProfilesSkipsUnknown(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	id, err := s.Create(ctx, "bob", 3)
	require.NoError(t, err)

	got, err := s.Profiles(ctx, []uint64{id, 404})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]model.Profile{id: {UserID: id, Name: "bob", LeaderCardID: 3}}, got)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/live-room-coordinator/internal/model"
)

// UserRepo persists players in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, name string, leaderCardID uint64) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, leader_card_id) VALUES (?,?)",
		strings.TrimSpace(name), leaderCardID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,name,leader_card_id,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Name, &u.LeaderCardID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}

// Update changes the display name and leader card of a user.
func (r *UserRepo) Update(ctx context.Context, id uint64, name string, leaderCardID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, leader_card_id=? WHERE id=?",
		strings.TrimSpace(name), leaderCardID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 affected rows for a no-op update, so confirm the row exists.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Profiles implements room.ProfileSource with a single IN query.
func (r *UserRepo) Profiles(ctx context.Context, ids []uint64) (map[uint64]model.Profile, error) {
	out := make(map[uint64]model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,name,leader_card_id FROM users WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.UserID, &p.Name, &p.LeaderCardID); err != nil {
			return nil, err
		}
		out[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

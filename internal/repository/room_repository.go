package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/live-room-coordinator/internal/model"
	"github.com/iliyamo/live-room-coordinator/internal/room"
)

// RoomRepo implements room.Store on MySQL.  A room is one `rooms` row and
// up to max_user_count `room_seats` rows keyed by (room_id, seat_index).
// Mutations lock the room row with SELECT ... FOR UPDATE for the lifetime
// of the transaction, which serializes every writer of that room.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying handle so callers can share the pool.
func (r *RoomRepo) DB() *sql.DB { return r.db }

var _ room.Store = (*RoomRepo)(nil)

const seatColumns = `room_id, seat_index, user_id, select_difficulty, score, judge_counts, joined_at`

// CreateRoom inserts the room row and the host's seat in one transaction.
func (r *RoomRepo) CreateRoom(ctx context.Context, rm model.Room, host model.Seat) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (live_id, max_user_count, status, host_user_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		rm.LiveID, rm.MaxUserCount, int(rm.Status), rm.HostUserID, rm.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	host.RoomID = uint64(id)
	if err := upsertSeatTx(ctx, tx, host); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// ListRooms returns Waiting rooms with their live seat counts, ordered by id.
// liveID 0 lists all lives.
func (r *RoomRepo) ListRooms(ctx context.Context, liveID uint64) ([]room.RoomOccupancy, error) {
	q := `SELECT r.id, r.live_id, r.max_user_count, r.status, r.host_user_id, r.created_at, COUNT(s.seat_index)
	      FROM rooms r
	      LEFT JOIN room_seats s ON s.room_id = r.id
	      WHERE r.status = ?`
	args := []interface{}{int(model.StatusWaiting)}
	if liveID != 0 {
		q += ` AND r.live_id = ?`
		args = append(args, liveID)
	}
	q += ` GROUP BY r.id, r.live_id, r.max_user_count, r.status, r.host_user_id, r.created_at ORDER BY r.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []room.RoomOccupancy
	for rows.Next() {
		var (
			ro     room.RoomOccupancy
			status int
		)
		if err := rows.Scan(&ro.Room.ID, &ro.Room.LiveID, &ro.Room.MaxUserCount, &status, &ro.Room.HostUserID, &ro.Room.CreatedAt, &ro.Occupied); err != nil {
			return nil, err
		}
		ro.Room.Status = model.RoomStatus(status)
		out = append(out, ro)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot reads the room and its seats inside one read-only transaction so
// the seat list is never a mix of two commits.
func (r *RoomRepo) Snapshot(ctx context.Context, roomID uint64) (model.Room, []model.Seat, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return model.Room{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()
	rm, err := getRoomTx(ctx, tx, roomID, false)
	if err != nil {
		return model.Room{}, nil, err
	}
	seats, err := listSeatsTx(ctx, tx, roomID)
	if err != nil {
		return model.Room{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return model.Room{}, nil, err
	}
	return rm, seats, nil
}

// WithRoomLock opens a transaction, locks the room row and hands fn a view
// of the room.  The transaction commits only when fn returns nil.
func (r *RoomRepo) WithRoomLock(ctx context.Context, roomID uint64, fn func(tx room.RoomTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	rm, err := getRoomTx(ctx, tx, roomID, true)
	if err != nil {
		return err
	}
	seats, err := listSeatsTx(ctx, tx, roomID)
	if err != nil {
		return err
	}
	if err := fn(&lockedRoom{tx: tx, room: rm, seats: seats}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// RoomsSeating returns every seat userID holds.  The unique (room_id,
// user_id) key means at most one row per room.
func (r *RoomRepo) RoomsSeating(ctx context.Context, userID uint64) ([]room.Placement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room_id, seat_index, joined_at FROM room_seats WHERE user_id = ? ORDER BY room_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var held []room.Placement
	for rows.Next() {
		var p room.Placement
		if err := rows.Scan(&p.RoomID, &p.SeatIndex, &p.JoinedAt); err != nil {
			return nil, err
		}
		held = append(held, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return held, nil
}

// getRoomTx loads one room row, optionally locking it.
func getRoomTx(ctx context.Context, tx *sql.Tx, roomID uint64, forUpdate bool) (model.Room, error) {
	q := `SELECT id, live_id, max_user_count, status, host_user_id, created_at FROM rooms WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var (
		rm     model.Room
		status int
	)
	err := tx.QueryRowContext(ctx, q, roomID).
		Scan(&rm.ID, &rm.LiveID, &rm.MaxUserCount, &status, &rm.HostUserID, &rm.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Room{}, room.ErrRoomNotFound
	}
	if err != nil {
		return model.Room{}, err
	}
	rm.Status = model.RoomStatus(status)
	return rm, nil
}

// listSeatsTx loads the seats of a room ordered by seat index.
func listSeatsTx(ctx context.Context, tx *sql.Tx, roomID uint64) ([]model.Seat, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM room_seats WHERE room_id = ? ORDER BY seat_index`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := []model.Seat{}
	for rows.Next() {
		var (
			st          model.Seat
			difficulty  int
			score       sql.NullInt64
			judgeCounts []byte
		)
		if err := rows.Scan(&st.RoomID, &st.SeatIndex, &st.UserID, &difficulty, &score, &judgeCounts, &st.JoinedAt); err != nil {
			return nil, err
		}
		st.Difficulty = model.Difficulty(difficulty)
		if score.Valid {
			res := &model.SeatResult{Score: score.Int64, JudgeCounts: []int{}}
			if len(judgeCounts) > 0 {
				if err := json.Unmarshal(judgeCounts, &res.JudgeCounts); err != nil {
					return nil, fmt.Errorf("decode judge_counts for room %d seat %d: %w", roomID, st.SeatIndex, err)
				}
			}
			st.Result = res
		}
		seats = append(seats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// upsertSeatTx writes a seat row, replacing whatever occupies the index.
func upsertSeatTx(ctx context.Context, tx *sql.Tx, st model.Seat) error {
	var (
		score       interface{}
		judgeCounts interface{}
	)
	if st.Result != nil {
		score = st.Result.Score
		jc := st.Result.JudgeCounts
		if jc == nil {
			jc = []int{}
		}
		b, err := json.Marshal(jc)
		if err != nil {
			return err
		}
		judgeCounts = string(b)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO room_seats (`+seatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), select_difficulty = VALUES(select_difficulty),
		 score = VALUES(score), judge_counts = VALUES(judge_counts), joined_at = VALUES(joined_at)`,
		st.RoomID, st.SeatIndex, st.UserID, int(st.Difficulty), score, judgeCounts, st.JoinedAt.UTC())
	return err
}

// lockedRoom is the room.RoomTx handed out by WithRoomLock.  It mirrors
// every write in memory so later reads in the same callback see them.
type lockedRoom struct {
	tx    *sql.Tx
	room  model.Room
	seats []model.Seat
}

func (l *lockedRoom) Room() model.Room { return l.room }

func (l *lockedRoom) Seats() []model.Seat {
	out := make([]model.Seat, len(l.seats))
	for i, st := range l.seats {
		st.Result = st.Result.Clone()
		out[i] = st
	}
	return out
}

func (l *lockedRoom) WriteRoom(ctx context.Context, rm model.Room) error {
	if _, err := l.tx.ExecContext(ctx,
		`UPDATE rooms SET status = ?, host_user_id = ? WHERE id = ?`,
		int(rm.Status), rm.HostUserID, l.room.ID); err != nil {
		return err
	}
	l.room.Status = rm.Status
	l.room.HostUserID = rm.HostUserID
	return nil
}

func (l *lockedRoom) WriteSeat(ctx context.Context, st model.Seat) error {
	st.RoomID = l.room.ID
	if err := upsertSeatTx(ctx, l.tx, st); err != nil {
		return err
	}
	st.Result = st.Result.Clone()
	for i := range l.seats {
		if l.seats[i].SeatIndex == st.SeatIndex {
			l.seats[i] = st
			return nil
		}
	}
	pos := len(l.seats)
	for i := range l.seats {
		if l.seats[i].SeatIndex > st.SeatIndex {
			pos = i
			break
		}
	}
	l.seats = append(l.seats, model.Seat{})
	copy(l.seats[pos+1:], l.seats[pos:])
	l.seats[pos] = st
	return nil
}

func (l *lockedRoom) DeleteSeat(ctx context.Context, seatIndex int) error {
	if _, err := l.tx.ExecContext(ctx,
		`DELETE FROM room_seats WHERE room_id = ? AND seat_index = ?`, l.room.ID, seatIndex); err != nil {
		return err
	}
	for i := range l.seats {
		if l.seats[i].SeatIndex == seatIndex {
			l.seats = append(l.seats[:i], l.seats[i+1:]...)
			break
		}
	}
	return nil
}

package model

import "time"

// DefaultMaxUserCount is the number of seats a room offers unless the
// deployment configures otherwise.
const DefaultMaxUserCount = 4

// RoomStatus is the stored lifecycle state of a room.  The numeric values
// are part of the wire format (WaitRoomStatus) and must not be reordered.
type RoomStatus int

const (
    StatusWaiting     RoomStatus = 1 // host has not pressed start yet
    StatusLiveStarted RoomStatus = 2 // members may move to the live screen
    StatusDissolved   RoomStatus = 3 // terminal; no further joins or starts
)

func (s RoomStatus) String() string {
    switch s {
    case StatusWaiting:
        return "waiting"
    case StatusLiveStarted:
        return "live_started"
    case StatusDissolved:
        return "dissolved"
    }
    return "unknown"
}

// Valid reports whether s is one of the known statuses.
func (s RoomStatus) Valid() bool {
    return s >= StatusWaiting && s <= StatusDissolved
}

// Difficulty is the chart difficulty a member picks when taking a seat.
type Difficulty int

const (
    DifficultyNormal Difficulty = 1
    DifficultyHard   Difficulty = 2
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
    return d == DifficultyNormal || d == DifficultyHard
}

// Room represents a row in the `rooms` table.  Occupancy is not stored on
// the row; it is always derived from the room's seats so that a room with
// no seats reads as dissolved whatever its Status column says.
//
// Fields:
//  ID           – primary key identifier.
//  LiveID       – the live (song) the room plays.
//  MaxUserCount – seat capacity, fixed at creation.
//  Status       – stored lifecycle status.
//  HostUserID   – user holding start authority.
//  CreatedAt    – creation timestamp.
type Room struct {
    ID           uint64     // rooms.id
    LiveID       uint64     // rooms.live_id
    MaxUserCount int        // rooms.max_user_count
    Status       RoomStatus // rooms.status
    HostUserID   uint64     // rooms.host_user_id
    CreatedAt    time.Time  // rooms.created_at
}

// Seat is one occupied slot of a room, stored in `room_seats` keyed by
// (room_id, seat_index).  SeatIndex ranges over 0..MaxUserCount-1.
type Seat struct {
    RoomID     uint64      // room_seats.room_id
    SeatIndex  int         // room_seats.seat_index
    UserID     uint64      // room_seats.user_id
    Difficulty Difficulty  // room_seats.select_difficulty
    Result     *SeatResult // nil until the member submits
    JoinedAt   time.Time   // room_seats.joined_at
}

// HasResult reports whether the seat's member has submitted.
func (s Seat) HasResult() bool { return s.Result != nil }

// SeatResult is a member's submitted outcome.  JudgeCounts is ordered by
// judgement grade, best first.
type SeatResult struct {
    Score       int64
    JudgeCounts []int
}

// Clone returns a deep copy so callers never share the JudgeCounts slice.
func (r *SeatResult) Clone() *SeatResult {
    if r == nil {
        return nil
    }
    jc := make([]int, len(r.JudgeCounts))
    copy(jc, r.JudgeCounts)
    return &SeatResult{Score: r.Score, JudgeCounts: jc}
}

// RoomSummary is a joinable room as shown in the lobby list.
type RoomSummary struct {
    RoomID          uint64 `json:"room_id"`
    LiveID          uint64 `json:"live_id"`
    JoinedUserCount int    `json:"joined_user_count"`
    MaxUserCount    int    `json:"max_user_count"`
}

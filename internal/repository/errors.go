// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.  Room
// lookups report room.ErrRoomNotFound instead, since the room coordinator
// owns that contract.
package repository

import "errors"

// ErrUserNotFound is returned when no user row matches the id.  Handlers
// should translate this into an HTTP 404 (or 401 when the id came from
// a token).
var ErrUserNotFound = errors.New("user not found")

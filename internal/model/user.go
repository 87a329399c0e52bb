package model

import "time"

// User represents an application user record as stored in the
// `users` table.  Users carry no credentials; the access token issued at
// creation is the only proof of identity.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name shown to other room members.
//  LeaderCardID – card shown next to the name in the waiting room.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Name         string    // users.name
    LeaderCardID uint64    // users.leader_card_id
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// Profile is the public part of a user shown to other members.
type Profile struct {
    UserID       uint64
    Name         string
    LeaderCardID uint64
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
    return Profile{UserID: u.ID, Name: u.Name, LeaderCardID: u.LeaderCardID}
}

package models

import "time"

// Account is a registered listener's stored identity and credential hash.
// Accounts are created once on successful registration and never mutated
// afterwards; email uniqueness is enforced by the repository before insertion.
type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Song is a playable media record owned by the catalog store. AlbumID is zero
// for singles that do not belong to an album.
type Song struct {
	SongID  int64  `json:"songId"`
	AlbumID int64  `json:"albumId,omitempty"`
	Title   string `json:"title,omitempty"`
	Link    string `json:"link"`
}

package storage

import (
	"context"
	"errors"

	"tunehall/internal/models"
)

// ErrInvalidCredentials is returned when a password does not match the stored
// hash. It is the only authentication failure exposed to callers; every other
// error from the credential path is an operational failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailInUse is returned when an account insert collides with an existing
// email address.
var ErrEmailInUse = errors.New("email already in use")

// CreateAccountParams captures the attributes required to register an account.
// Password is the plaintext credential; the repository hashes it before
// persisting and never stores or logs the plaintext.
type CreateAccountParams struct {
	Username string
	Email    string
	Password string
}

// CreateSongParams captures the attributes of a catalog entry. SongID zero
// lets the repository assign the next identifier.
type CreateSongParams struct {
	SongID  int64
	AlbumID int64
	Title   string
	Link    string
}

// Repository exposes the datastore operations required by the API handlers
// and the media lookup service. Implementations serialize concurrent access
// internally; callers issue independent queries without client-side locking.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (models.Account, error)
	GetAccount(ctx context.Context, id int64) (models.Account, bool, error)
	FindAccountByEmail(ctx context.Context, email string) (models.Account, bool, error)
	AccountEmailExists(ctx context.Context, email string) (bool, error)
	AuthenticateAccount(ctx context.Context, email, password string) (models.Account, error)

	CreateSong(ctx context.Context, params CreateSongParams) (models.Song, error)
	UpsertSong(ctx context.Context, params CreateSongParams) (models.Song, error)
	GetSongByID(ctx context.Context, songID int64) (models.Song, bool, error)
	ListSongsByAlbum(ctx context.Context, albumID int64) ([]models.Song, error)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tunehall/internal/models"
)

// PostgresConfig tunes the Postgres-backed repository connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ApplicationName string
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository opens a Postgres-backed repository and ensures the
// schema exists.
func NewPostgresRepository(cfg PostgresConfig) (Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &postgresRepository{pool: pool}, nil
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("postgres pool not configured")
	}
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *postgresRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (models.Account, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.Account{}, errors.New("username is required")
	}
	email := normalizeEmail(params.Email)
	if email == "" {
		return models.Account{}, errors.New("email is required")
	}
	if params.Password == "" {
		return models.Account{}, errors.New("password is required")
	}
	hashed, err := HashPassword(params.Password)
	if err != nil {
		return models.Account{}, err
	}

	account := models.Account{Username: username, Email: email, PasswordHash: hashed}
	row := r.pool.QueryRow(ctx, `
INSERT INTO accounts (username, email, password_hash)
VALUES ($1, $2, $3)
RETURNING id, created_at
`, username, email, hashed)
	if err := row.Scan(&account.ID, &account.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, fmt.Errorf("account %s: %w", email, ErrEmailInUse)
		}
		return models.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return account, nil
}

func (r *postgresRepository) GetAccount(ctx context.Context, id int64) (models.Account, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, username, email, password_hash, created_at
FROM accounts
WHERE id = $1
`, id)
	return scanAccount(row)
}

func (r *postgresRepository) FindAccountByEmail(ctx context.Context, email string) (models.Account, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, username, email, password_hash, created_at
FROM accounts
WHERE email = $1
`, normalizeEmail(email))
	return scanAccount(row)
}

func (r *postgresRepository) AccountEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	row := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1)`, normalizeEmail(email))
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check account email: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) AuthenticateAccount(ctx context.Context, email, password string) (models.Account, error) {
	if password == "" {
		return models.Account{}, ErrInvalidCredentials
	}
	account, ok, err := r.FindAccountByEmail(ctx, email)
	if err != nil {
		return models.Account{}, err
	}
	if !ok {
		return models.Account{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (r *postgresRepository) CreateSong(ctx context.Context, params CreateSongParams) (models.Song, error) {
	link := strings.TrimSpace(params.Link)
	if link == "" {
		return models.Song{}, errors.New("song link is required")
	}
	song := models.Song{AlbumID: params.AlbumID, Title: strings.TrimSpace(params.Title), Link: link}
	var row pgx.Row
	if params.SongID > 0 {
		row = r.pool.QueryRow(ctx, `
INSERT INTO songs (song_id, album_id, title, link)
VALUES ($1, $2, $3, $4)
RETURNING song_id
`, params.SongID, params.AlbumID, song.Title, link)
	} else {
		row = r.pool.QueryRow(ctx, `
INSERT INTO songs (song_id, album_id, title, link)
VALUES (COALESCE((SELECT MAX(song_id) FROM songs), 0) + 1, $1, $2, $3)
RETURNING song_id
`, params.AlbumID, song.Title, link)
	}
	if err := row.Scan(&song.SongID); err != nil {
		return models.Song{}, fmt.Errorf("insert song: %w", err)
	}
	return song, nil
}

func (r *postgresRepository) UpsertSong(ctx context.Context, params CreateSongParams) (models.Song, error) {
	if params.SongID <= 0 {
		return models.Song{}, errors.New("song id is required")
	}
	link := strings.TrimSpace(params.Link)
	if link == "" {
		return models.Song{}, errors.New("song link is required")
	}
	song := models.Song{AlbumID: params.AlbumID, Title: strings.TrimSpace(params.Title), Link: link}
	row := r.pool.QueryRow(ctx, `
INSERT INTO songs (song_id, album_id, title, link)
VALUES ($1, $2, $3, $4)
ON CONFLICT (song_id) DO UPDATE SET album_id = EXCLUDED.album_id, title = EXCLUDED.title, link = EXCLUDED.link
RETURNING song_id
`, params.SongID, params.AlbumID, song.Title, link)
	if err := row.Scan(&song.SongID); err != nil {
		return models.Song{}, fmt.Errorf("upsert song: %w", err)
	}
	return song, nil
}

func (r *postgresRepository) GetSongByID(ctx context.Context, songID int64) (models.Song, bool, error) {
	row := r.pool.QueryRow(ctx, `
SELECT song_id, album_id, title, link
FROM songs
WHERE song_id = $1
`, songID)
	var song models.Song
	if err := row.Scan(&song.SongID, &song.AlbumID, &song.Title, &song.Link); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Song{}, false, nil
		}
		return models.Song{}, false, fmt.Errorf("select song: %w", err)
	}
	return song, true, nil
}

func (r *postgresRepository) ListSongsByAlbum(ctx context.Context, albumID int64) ([]models.Song, error) {
	rows, err := r.pool.Query(ctx, `
SELECT song_id, album_id, title, link
FROM songs
WHERE album_id = $1
ORDER BY song_id
`, albumID)
	if err != nil {
		return nil, fmt.Errorf("select album songs: %w", err)
	}
	defer rows.Close()

	songs := make([]models.Song, 0)
	for rows.Next() {
		var song models.Song
		if err := rows.Scan(&song.SongID, &song.AlbumID, &song.Title, &song.Link); err != nil {
			return nil, fmt.Errorf("scan album song: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate album songs: %w", err)
	}
	return songs, nil
}

func scanAccount(row pgx.Row) (models.Account, bool, error) {
	var account models.Account
	if err := row.Scan(&account.ID, &account.Username, &account.Email, &account.PasswordHash, &account.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, false, nil
		}
		return models.Account{}, false, fmt.Errorf("select account: %w", err)
	}
	return account, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

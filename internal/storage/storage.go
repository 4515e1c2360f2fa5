package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tunehall/internal/models"
)

type dataset struct {
	Accounts      map[int64]models.Account `json:"accounts"`
	Songs         map[int64]models.Song    `json:"songs"`
	NextAccountID int64                    `json:"nextAccountId"`
	NextSongID    int64                    `json:"nextSongId"`
}

func newDataset() dataset {
	return dataset{
		Accounts:      make(map[int64]models.Account),
		Songs:         make(map[int64]models.Song),
		NextAccountID: 1,
		NextSongID:    1,
	}
}

// Storage is a JSON-file backed repository intended for development and
// single-instance deployments. All mutations are flushed to disk before they
// become visible; a failed flush rolls the in-memory state back.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

// NewStorage loads (or initialises) a JSON datastore at the provided path.
func NewStorage(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	store := &Storage{filePath: path, data: newDataset()}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) load() error {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read datastore: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	var data dataset
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode datastore: %w", err)
	}
	if data.Accounts == nil {
		data.Accounts = make(map[int64]models.Account)
	}
	if data.Songs == nil {
		data.Songs = make(map[int64]models.Song)
	}
	if data.NextAccountID <= 0 {
		data.NextAccountID = 1
	}
	if data.NextSongID <= 0 {
		data.NextSongID = 1
	}
	s.data = data
	return nil
}

func (s *Storage) persist() error {
	if s.persistOverride != nil {
		return s.persistOverride(s.data)
	}
	payload, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode datastore: %w", err)
	}
	dir := filepath.Dir(s.filePath)
	tmp, err := os.CreateTemp(dir, ".tunehall-*.json")
	if err != nil {
		return fmt.Errorf("create datastore temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write datastore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close datastore temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.filePath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace datastore: %w", err)
	}
	return nil
}

// Ping reports whether the backing file's directory is still accessible.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(filepath.Dir(s.filePath))
	return err
}

// Close flushes nothing; the JSON store persists on every mutation.
func (s *Storage) Close(ctx context.Context) error {
	return nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, params CreateAccountParams) (models.Account, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.data.Accounts {
		if account.Email == email {
			return models.Account{}, fmt.Errorf("account %s: %w", email, ErrEmailInUse)
		}
	}

	id := s.data.NextAccountID
	account := models.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	s.data.Accounts[id] = account
	s.data.NextAccountID = id + 1
	if err := s.persist(); err != nil {
		delete(s.data.Accounts, id)
		s.data.NextAccountID = id
		return models.Account{}, err
	}
	return account, nil
}

func (s *Storage) GetAccount(ctx context.Context, id int64) (models.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.data.Accounts[id]
	return account, ok, nil
}

// FindAccountByEmail looks up an account by its normalized email address.
func (s *Storage) FindAccountByEmail(ctx context.Context, email string) (models.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	normalized := normalizeEmail(email)
	for _, account := range s.data.Accounts {
		if account.Email == normalized {
			return account, true, nil
		}
	}
	return models.Account{}, false, nil
}

// AccountEmailExists reports whether any account already claims the email.
func (s *Storage) AccountEmailExists(ctx context.Context, email string) (bool, error) {
	_, ok, err := s.FindAccountByEmail(ctx, email)
	return ok, err
}

// AuthenticateAccount verifies credentials and returns the matching account.
func (s *Storage) AuthenticateAccount(ctx context.Context, email, password string) (models.Account, error) {
	if password == "" {
		return models.Account{}, ErrInvalidCredentials
	}
	account, ok, err := s.FindAccountByEmail(ctx, email)
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

// Song operations

func (s *Storage) CreateSong(ctx context.Context, params CreateSongParams) (models.Song, error) {
	link := strings.TrimSpace(params.Link)
	if link == "" {
		return models.Song{}, errors.New("song link is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := params.SongID
	if id <= 0 {
		id = s.data.NextSongID
	} else if _, exists := s.data.Songs[id]; exists {
		return models.Song{}, fmt.Errorf("song %d already exists", id)
	}

	song := models.Song{
		SongID:  id,
		AlbumID: params.AlbumID,
		Title:   strings.TrimSpace(params.Title),
		Link:    link,
	}
	s.data.Songs[id] = song
	previousNext := s.data.NextSongID
	if id >= s.data.NextSongID {
		s.data.NextSongID = id + 1
	}
	if err := s.persist(); err != nil {
		delete(s.data.Songs, id)
		s.data.NextSongID = previousNext
		return models.Song{}, err
	}
	return song, nil
}

// UpsertSong creates the song or replaces an existing record with the same
// explicit id.
func (s *Storage) UpsertSong(ctx context.Context, params CreateSongParams) (models.Song, error) {
	if params.SongID <= 0 {
		return models.Song{}, errors.New("song id is required")
	}
	link := strings.TrimSpace(params.Link)
	if link == "" {
		return models.Song{}, errors.New("song link is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := params.SongID
	previous, existed := s.data.Songs[id]
	song := models.Song{
		SongID:  id,
		AlbumID: params.AlbumID,
		Title:   strings.TrimSpace(params.Title),
		Link:    link,
	}
	s.data.Songs[id] = song
	previousNext := s.data.NextSongID
	if id >= s.data.NextSongID {
		s.data.NextSongID = id + 1
	}
	if err := s.persist(); err != nil {
		if existed {
			s.data.Songs[id] = previous
		} else {
			delete(s.data.Songs, id)
		}
		s.data.NextSongID = previousNext
		return models.Song{}, err
	}
	return song, nil
}

func (s *Storage) GetSongByID(ctx context.Context, songID int64) (models.Song, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	song, ok := s.data.Songs[songID]
	return song, ok, nil
}

// ListSongsByAlbum returns the album's songs ordered by ascending song id,
// the stable order the JSON store exposes to callers.
func (s *Storage) ListSongsByAlbum(ctx context.Context, albumID int64) ([]models.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	songs := make([]models.Song, 0)
	for _, song := range s.data.Songs {
		if song.AlbumID == albumID {
			songs = append(songs, song)
		}
	}
	sort.Slice(songs, func(i, j int) bool {
		return songs[i].SongID < songs[j].SongID
	})
	return songs, nil
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "datastore.json"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return store
}

func TestCreateAccountAssignsSequentialIDs(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "art",
		Email:    "art@example.com",
		Password: "listen-now",
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	second, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "bea",
		Email:    "bea@example.com",
		Password: "listen-later",
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.PasswordHash == "" || first.PasswordHash == "listen-now" {
		t.Fatalf("password was not hashed: %q", first.PasswordHash)
	}
}

func TestCreateAccountRejectsDuplicateEmail(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "art",
		Email:    "art@example.com",
		Password: "listen-now",
	}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	_, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "imposter",
		Email:    "ART@Example.com",
		Password: "other-secret",
	})
	if !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected ErrEmailInUse, got %v", err)
	}
}

func TestCreateAccountRollsBackOnPersistFailure(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	store.persistOverride = func(dataset) error { return errors.New("disk full") }
	if _, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "art",
		Email:    "art@example.com",
		Password: "listen-now",
	}); err == nil {
		t.Fatal("expected persist failure to surface")
	}

	store.persistOverride = nil
	account, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "art",
		Email:    "art@example.com",
		Password: "listen-now",
	})
	if err != nil {
		t.Fatalf("CreateAccount after rollback: %v", err)
	}
	if account.ID != 1 {
		t.Fatalf("expected rolled-back id 1 to be reused, got %d", account.ID)
	}
}

func TestAuthenticateAccount(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	created, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "art",
		Email:    "art@example.com",
		Password: "listen-now",
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	account, err := store.AuthenticateAccount(ctx, "Art@Example.com", "listen-now")
	if err != nil {
		t.Fatalf("AuthenticateAccount: %v", err)
	}
	if account.ID != created.ID {
		t.Fatalf("expected account %d, got %d", created.ID, account.ID)
	}

	if _, err := store.AuthenticateAccount(ctx, "art@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := store.AuthenticateAccount(ctx, "unknown@example.com", "listen-now"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := store.AuthenticateAccount(ctx, "art@example.com", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty password, got %v", err)
	}
}

func TestStorageSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "datastore.json")
	ctx := context.Background()

	store, err := NewStorage(path)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if _, err := store.CreateAccount(ctx, CreateAccountParams{
		Username: "art",
		Email:    "art@example.com",
		Password: "listen-now",
	}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if _, err := store.CreateSong(ctx, CreateSongParams{SongID: 7, AlbumID: 2, Title: "Seven", Link: "https://cdn.example.com/7.mp3"}); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	reloaded, err := NewStorage(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok, _ := reloaded.FindAccountByEmail(ctx, "art@example.com"); !ok {
		t.Fatal("account missing after reload")
	}
	song, ok, err := reloaded.GetSongByID(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("song missing after reload: ok=%v err=%v", ok, err)
	}
	if song.Link != "https://cdn.example.com/7.mp3" {
		t.Fatalf("unexpected link %q", song.Link)
	}
}

func TestCreateSongIDAllocation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	explicit, err := store.CreateSong(ctx, CreateSongParams{SongID: 10, AlbumID: 1, Link: "https://cdn.example.com/10.mp3"})
	if err != nil {
		t.Fatalf("CreateSong explicit: %v", err)
	}
	if explicit.SongID != 10 {
		t.Fatalf("expected song id 10, got %d", explicit.SongID)
	}

	next, err := store.CreateSong(ctx, CreateSongParams{AlbumID: 1, Link: "https://cdn.example.com/next.mp3"})
	if err != nil {
		t.Fatalf("CreateSong auto: %v", err)
	}
	if next.SongID != 11 {
		t.Fatalf("expected auto id 11 after explicit 10, got %d", next.SongID)
	}

	if _, err := store.CreateSong(ctx, CreateSongParams{SongID: 10, AlbumID: 1, Link: "https://cdn.example.com/dup.mp3"}); err == nil {
		t.Fatal("expected duplicate song id to be rejected")
	}
}

func TestUpsertSongReplacesExistingRecord(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.CreateSong(ctx, CreateSongParams{SongID: 10, AlbumID: 1, Title: "Old", Link: "https://cdn.example.com/old.mp3"}); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	replaced, err := store.UpsertSong(ctx, CreateSongParams{SongID: 10, AlbumID: 2, Title: "New", Link: "https://cdn.example.com/new.mp3"})
	if err != nil {
		t.Fatalf("UpsertSong existing: %v", err)
	}
	if replaced.Link != "https://cdn.example.com/new.mp3" || replaced.AlbumID != 2 {
		t.Fatalf("unexpected replacement %+v", replaced)
	}
	song, ok, _ := store.GetSongByID(ctx, 10)
	if !ok || song.Title != "New" {
		t.Fatalf("replacement not visible: ok=%v song=%+v", ok, song)
	}

	if _, err := store.UpsertSong(ctx, CreateSongParams{SongID: 11, AlbumID: 2, Link: "https://cdn.example.com/11.mp3"}); err != nil {
		t.Fatalf("UpsertSong new: %v", err)
	}
	if _, ok, _ := store.GetSongByID(ctx, 11); !ok {
		t.Fatal("upsert of a new id must create the record")
	}

	if _, err := store.UpsertSong(ctx, CreateSongParams{AlbumID: 2, Link: "https://cdn.example.com/x.mp3"}); err == nil {
		t.Fatal("upsert without an explicit id must be rejected")
	}
}

func TestUpsertSongRollsBackOnPersistFailure(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if _, err := store.CreateSong(ctx, CreateSongParams{SongID: 10, AlbumID: 1, Title: "Old", Link: "https://cdn.example.com/old.mp3"}); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	store.persistOverride = func(dataset) error { return errors.New("disk full") }
	if _, err := store.UpsertSong(ctx, CreateSongParams{SongID: 10, AlbumID: 2, Title: "New", Link: "https://cdn.example.com/new.mp3"}); err == nil {
		t.Fatal("expected persist failure to surface")
	}
	store.persistOverride = nil

	song, ok, _ := store.GetSongByID(ctx, 10)
	if !ok || song.Title != "Old" {
		t.Fatalf("failed upsert must keep the previous record, got ok=%v song=%+v", ok, song)
	}
}

func TestListSongsByAlbumOrdersBySongID(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20} {
		if _, err := store.CreateSong(ctx, CreateSongParams{SongID: id, AlbumID: 5, Link: "https://cdn.example.com/a.mp3"}); err != nil {
			t.Fatalf("CreateSong %d: %v", id, err)
		}
	}
	if _, err := store.CreateSong(ctx, CreateSongParams{SongID: 40, AlbumID: 6, Link: "https://cdn.example.com/b.mp3"}); err != nil {
		t.Fatalf("CreateSong other album: %v", err)
	}

	songs, err := store.ListSongsByAlbum(ctx, 5)
	if err != nil {
		t.Fatalf("ListSongsByAlbum: %v", err)
	}
	if len(songs) != 3 {
		t.Fatalf("expected 3 songs, got %d", len(songs))
	}
	for i, want := range []int64{10, 20, 30} {
		if songs[i].SongID != want {
			t.Fatalf("slot %d: expected song %d, got %d", i, want, songs[i].SongID)
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"tunehall/internal/models"
	"tunehall/internal/storage"
)

func seedSong(t *testing.T, store storage.Repository, songID, albumID int64) {
	t.Helper()
	if _, err := store.CreateSong(context.Background(), storage.CreateSongParams{
		SongID:  songID,
		AlbumID: albumID,
		Title:   fmt.Sprintf("Track %d", songID),
		Link:    fmt.Sprintf("https://cdn.example.com/%d.mp3", songID),
	}); err != nil {
		t.Fatalf("CreateSong %d: %v", songID, err)
	}
}

func getPlaying(t *testing.T, handler *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	recorder := httptest.NewRecorder()
	handler.Playing(recorder, req)
	return recorder
}

func decodePlaying(t *testing.T, recorder *httptest.ResponseRecorder) playingResponse {
	t.Helper()
	var payload playingResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, recorder.Body.String())
	}
	return payload
}

func TestPlayingRequiresExactlyOneMode(t *testing.T) {
	handler, _ := newTestHandler(t)

	for name, target := range map[string]string{
		"neither": "/api/playing",
		"both":    "/api/playing?song_id=1&album_id=2",
	} {
		if recorder := getPlaying(t, handler, target); recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, recorder.Code)
		}
	}
}

func TestPlayingRejectsMalformedIdentifiers(t *testing.T) {
	handler, _ := newTestHandler(t)

	for name, target := range map[string]string{
		"non-numeric song":   "/api/playing?song_id=abc",
		"zero song":          "/api/playing?song_id=0",
		"negative album":     "/api/playing?album_id=-4",
		"song near max int":  "/api/playing?song_id=9223372036854775807",
		"song past max int":  "/api/playing?song_id=9223372036854775808",
	} {
		if recorder := getPlaying(t, handler, target); recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, recorder.Code)
		}
	}
}

func TestPlayingSongWindowWithGaps(t *testing.T) {
	handler, store := newTestHandler(t)
	seedSong(t, store, 10, 1)
	seedSong(t, store, 11, 1)
	seedSong(t, store, 13, 1)

	recorder := getPlaying(t, handler, "/api/playing?song_id=10")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodePlaying(t, recorder)
	want := []string{
		"https://cdn.example.com/10.mp3",
		"https://cdn.example.com/11.mp3",
		"",
		"https://cdn.example.com/13.mp3",
		"",
	}
	if !reflect.DeepEqual(payload.Links, want) {
		t.Fatalf("expected %v, got %v", want, payload.Links)
	}
	if payload.SongID != 10 {
		t.Fatalf("expected song id 10 echoed, got %d", payload.SongID)
	}
}

func TestPlayingSongWindowAllMissing(t *testing.T) {
	handler, _ := newTestHandler(t)

	recorder := getPlaying(t, handler, "/api/playing?song_id=500")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for all-missing window, got %d", recorder.Code)
	}
	payload := decodePlaying(t, recorder)
	if !reflect.DeepEqual(payload.Links, []string{"", "", "", "", ""}) {
		t.Fatalf("expected five empty slots, got %v", payload.Links)
	}
}

func TestPlayingAlbumPadsToTenSlots(t *testing.T) {
	handler, store := newTestHandler(t)
	for i := int64(0); i < 3; i++ {
		seedSong(t, store, 100+i, 4)
	}

	recorder := getPlaying(t, handler, "/api/playing?album_id=4")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodePlaying(t, recorder)
	if len(payload.Links) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(payload.Links))
	}
	for i := 0; i < 3; i++ {
		if payload.Links[i] == "" {
			t.Fatalf("slot %d should hold a link", i)
		}
	}
	for i := 3; i < 10; i++ {
		if payload.Links[i] != "" {
			t.Fatalf("slot %d should be padding, got %q", i, payload.Links[i])
		}
	}
}

func TestPlayingAlbumTruncatesPastTen(t *testing.T) {
	handler, store := newTestHandler(t)
	for i := int64(0); i < 13; i++ {
		seedSong(t, store, 200+i, 4)
	}

	recorder := getPlaying(t, handler, "/api/playing?album_id=4")
	payload := decodePlaying(t, recorder)
	if len(payload.Links) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(payload.Links))
	}
	if payload.Links[9] != "https://cdn.example.com/209.mp3" {
		t.Fatalf("expected tenth song in last slot, got %q", payload.Links[9])
	}
}

func TestPlayingCatalogFailure(t *testing.T) {
	handler := NewHandler(erroringCatalogRepo{}, nil)

	recorder := getPlaying(t, handler, "/api/playing?song_id=10")
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "an error occurred while fetching the song data" {
		t.Fatalf("unexpected error message %q", payload["error"])
	}
}

// erroringCatalogRepo fails every catalog read to exercise the fatal path.
type erroringCatalogRepo struct{}

var errCatalogDown = errors.New("catalog unavailable")

func (erroringCatalogRepo) Ping(context.Context) error  { return errCatalogDown }
func (erroringCatalogRepo) Close(context.Context) error { return nil }

func (erroringCatalogRepo) CreateAccount(context.Context, storage.CreateAccountParams) (models.Account, error) {
	return models.Account{}, errCatalogDown
}

func (erroringCatalogRepo) GetAccount(context.Context, int64) (models.Account, bool, error) {
	return models.Account{}, false, errCatalogDown
}

func (erroringCatalogRepo) FindAccountByEmail(context.Context, string) (models.Account, bool, error) {
	return models.Account{}, false, errCatalogDown
}

func (erroringCatalogRepo) AccountEmailExists(context.Context, string) (bool, error) {
	return false, errCatalogDown
}

func (erroringCatalogRepo) AuthenticateAccount(context.Context, string, string) (models.Account, error) {
	return models.Account{}, errCatalogDown
}

func (erroringCatalogRepo) CreateSong(context.Context, storage.CreateSongParams) (models.Song, error) {
	return models.Song{}, errCatalogDown
}

func (erroringCatalogRepo) UpsertSong(context.Context, storage.CreateSongParams) (models.Song, error) {
	return models.Song{}, errCatalogDown
}

func (erroringCatalogRepo) GetSongByID(context.Context, int64) (models.Song, bool, error) {
	return models.Song{}, false, errCatalogDown
}

func (erroringCatalogRepo) ListSongsByAlbum(context.Context, int64) ([]models.Song, error) {
	return nil, errCatalogDown
}

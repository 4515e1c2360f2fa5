package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"tunehall/internal/media"
)

type playingResponse struct {
	SongID  int64    `json:"songId,omitempty"`
	AlbumID int64    `json:"albumId,omitempty"`
	Links   []string `json:"links"`
}

// Playing resolves playable links for a starting song id or an album id.
// Exactly one of the two query parameters selects the addressing mode; no
// session is required.
func (h *Handler) Playing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	query := r.URL.Query()
	songParam := query.Get("song_id")
	albumParam := query.Get("album_id")
	if (songParam == "") == (albumParam == "") {
		writeError(w, http.StatusBadRequest, errors.New("exactly one of song_id or album_id is required"))
		return
	}

	if songParam != "" {
		songID, err := parseRecordID(songParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid song_id: %w", err))
			return
		}
		if songID > media.MaxSongWindowStart {
			writeError(w, http.StatusBadRequest, errors.New("invalid song_id: out of range"))
			return
		}
		result, err := h.mediaResolver().SongWindow(r.Context(), songID)
		if err != nil {
			slog.Error("song window lookup failed", "song_id", songID, "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("an error occurred while fetching the song data"))
			return
		}
		writeJSON(w, http.StatusOK, playingResponse{SongID: songID, Links: result.Links})
		return
	}

	albumID, err := parseRecordID(albumParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid album_id: %w", err))
		return
	}
	result, err := h.mediaResolver().Album(r.Context(), albumID)
	if err != nil {
		slog.Error("album lookup failed", "album_id", albumID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("an error occurred while fetching the song data"))
		return
	}
	writeJSON(w, http.StatusOK, playingResponse{AlbumID: albumID, Links: result.Links})
}

func parseRecordID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if id <= 0 {
		return 0, errors.New("must be positive")
	}
	return id, nil
}

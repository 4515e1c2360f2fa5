// Package media resolves song and album identifiers into ordered sets of
// playable links.
package media

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"tunehall/internal/models"
)

const (
	// SongWindowSize is the number of sequential song ids fetched when
	// resolving by starting song id.
	SongWindowSize = 5
	// AlbumSlotCount is the fixed number of positional slots returned when
	// resolving by album id.
	AlbumSlotCount = 10
)

// MaxSongWindowStart is the largest starting id whose window of
// SongWindowSize sequential ids stays within int64 range.
const MaxSongWindowStart = math.MaxInt64 - SongWindowSize + 1

// Catalog is the media record gateway the resolver reads from.
type Catalog interface {
	GetSongByID(ctx context.Context, songID int64) (models.Song, bool, error)
	ListSongsByAlbum(ctx context.Context, albumID int64) ([]models.Song, error)
}

// LookupResult is a fixed-size ordered collection of resolved links. An empty
// string marks a slot whose record is missing; slot positions never shift.
type LookupResult struct {
	Links []string `json:"links"`
}

// Resolver turns a starting identifier into a LookupResult.
type Resolver struct {
	catalog Catalog
}

// NewResolver constructs a Resolver over the provided catalog gateway.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// SongWindow fetches the songs startID..startID+4 concurrently and assembles
// their links positionally: slot i always corresponds to startID+i. A missing
// record leaves its slot empty; a catalog failure on any id fails the whole
// lookup after all in-flight fetches have settled.
func (r *Resolver) SongWindow(ctx context.Context, startID int64) (LookupResult, error) {
	if startID < 1 || startID > MaxSongWindowStart {
		return LookupResult{}, fmt.Errorf("song window start %d out of range", startID)
	}
	links := make([]string, SongWindowSize)
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < SongWindowSize; i++ {
		slot := i
		id := startID + int64(i)
		group.Go(func() error {
			song, ok, err := r.catalog.GetSongByID(groupCtx, id)
			if err != nil {
				return fmt.Errorf("fetch song %d: %w", id, err)
			}
			if ok {
				links[slot] = song.Link
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return LookupResult{}, err
	}
	return LookupResult{Links: links}, nil
}

// Album fetches the album's songs in store order and returns exactly
// AlbumSlotCount slots, padding with empty strings past the available count.
func (r *Resolver) Album(ctx context.Context, albumID int64) (LookupResult, error) {
	songs, err := r.catalog.ListSongsByAlbum(ctx, albumID)
	if err != nil {
		return LookupResult{}, fmt.Errorf("fetch album %d: %w", albumID, err)
	}
	links := make([]string, AlbumSlotCount)
	for i, song := range songs {
		if i >= AlbumSlotCount {
			break
		}
		links[i] = song.Link
	}
	return LookupResult{Links: links}, nil
}

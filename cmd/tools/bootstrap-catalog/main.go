// Command bootstrap-catalog loads an initial song catalog into the datastore.
// The input file is a JSON array of songs with songId, albumId, title, and
// link fields; existing song ids are skipped unless -overwrite is set.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"tunehall/internal/storage"
)

type catalogEntry struct {
	SongID  int64  `json:"songId"`
	AlbumID int64  `json:"albumId"`
	Title   string `json:"title"`
	Link    string `json:"link"`
}

func main() {
	var (
		input       = flag.String("input", "", "path to the JSON catalog file (required)")
		dataPath    = flag.String("data", "data/tunehall.json", "path to the JSON datastore file")
		postgresDSN = flag.String("postgres-dsn", "", "PostgreSQL connection string; overrides the JSON datastore")
		overwrite   = flag.Bool("overwrite", false, "replace songs whose ids already exist")
		timeout     = flag.Duration("timeout", 30*time.Second, "overall operation timeout")
	)
	flag.Parse()

	if strings.TrimSpace(*input) == "" {
		fmt.Fprintln(os.Stderr, "bootstrap-catalog: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, *input, *dataPath, *postgresDSN, *overwrite); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap-catalog: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, input, dataPath, postgresDSN string, overwrite bool) error {
	entries, err := loadCatalog(input)
	if err != nil {
		return err
	}

	var repo storage.Repository
	if dsn := firstNonEmpty(postgresDSN, os.Getenv("TUNEHALL_POSTGRES_DSN")); dsn != "" {
		repo, err = storage.NewPostgresRepository(storage.PostgresConfig{DSN: dsn})
	} else {
		repo, err = storage.NewStorage(dataPath)
	}
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}
	defer repo.Close(context.Background())

	written, skipped := 0, 0
	for _, entry := range entries {
		params := storage.CreateSongParams{
			SongID:  entry.SongID,
			AlbumID: entry.AlbumID,
			Title:   entry.Title,
			Link:    entry.Link,
		}
		if overwrite {
			if _, err := repo.UpsertSong(ctx, params); err != nil {
				return fmt.Errorf("upsert song %d: %w", entry.SongID, err)
			}
			written++
			continue
		}
		if _, exists, err := repo.GetSongByID(ctx, entry.SongID); err != nil {
			return fmt.Errorf("check song %d: %w", entry.SongID, err)
		} else if exists {
			skipped++
			continue
		}
		if _, err := repo.CreateSong(ctx, params); err != nil {
			return fmt.Errorf("create song %d: %w", entry.SongID, err)
		}
		written++
	}

	fmt.Printf("catalog loaded: %d written, %d skipped\n", written, skipped)
	return nil
}

func loadCatalog(path string) ([]catalogEntry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []catalogEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	valid := make([]catalogEntry, 0, len(entries))
	for i, entry := range entries {
		if entry.SongID <= 0 {
			return nil, fmt.Errorf("catalog entry %d: songId must be positive", i)
		}
		if strings.TrimSpace(entry.Link) == "" {
			return nil, fmt.Errorf("catalog entry %d: link is required", i)
		}
		valid = append(valid, entry)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("catalog %s contains no songs", path)
	}
	return valid, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

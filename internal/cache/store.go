// Package cache provides the two caching tiers: a persistent per-user
// snapshot store backed by JSON files, and an ephemeral in-memory slot for
// the catalog dump.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/logger"
	"github.com/shelfgrab/shelfgrab/internal/scrape"
)

// Snapshot is one cached reading list, as stored on disk.
type Snapshot struct {
	Username  string          `json:"username"`
	FetchedAt time.Time       `json:"fetched_at"`
	Books     []scrape.Record `json:"books"`
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// Store persists per-user list snapshots as JSON files under a directory.
// One file per user, written atomically. Unreadable or corrupt files count
// as cache misses, never as errors.
type Store struct {
	dir    string
	mu     sync.Mutex
	now    func() time.Time
	logger *logger.Logger
}

// NewStore creates a snapshot store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{
		dir:    dir,
		now:    time.Now,
		logger: logger.Get().WithComponent("snapshot_store"),
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// path maps a username to its snapshot file. Characters outside a safe set
// are replaced so keys can never escape the cache directory.
func (s *Store) path(username string) string {
	safe := unsafeKeyChars.ReplaceAllString(username, "_")
	return filepath.Join(s.dir, safe+".json")
}

// Get loads a user's snapshot. The second result is false on miss, which
// covers missing, unreadable and corrupt files alike.
func (s *Store) Get(username string) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(username))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("username", username).Msg("Failed to read snapshot file")
		}
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn().Err(err).Str("username", username).Msg("Discarding corrupt snapshot file")
		return nil, false
	}
	return &snap, true
}

// Put writes a user's snapshot atomically: temp file in the same directory,
// then rename. A crash mid-write leaves the previous snapshot intact.
func (s *Store) Put(username string, books []scrape.Record) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Username:  username,
		FetchedAt: s.now().UTC(),
		Books:     books,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	target := s.path(username)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("failed to replace snapshot: %w", err)
	}

	s.logger.Debug().Str("username", username).Int("books", len(books)).Msg("Snapshot written")
	return snap, nil
}

// FetchFunc produces a fresh reading list for a user.
type FetchFunc func() ([]scrape.Record, error)

// GetOrFetch returns a user's list, serving from the snapshot store when the
// cached copy is younger than ttl and refetching otherwise. forceRefresh
// bypasses the freshness check. The bool result reports whether the data came
// from cache.
func (s *Store) GetOrFetch(username string, ttl time.Duration, forceRefresh bool, fetch FetchFunc) (*Snapshot, bool, error) {
	if !forceRefresh {
		if snap, ok := s.Get(username); ok {
			age := s.now().UTC().Sub(snap.FetchedAt)
			if age < ttl {
				s.logger.Debug().
					Str("username", username).
					Dur("age", age).
					Msg("Serving cached list")
				return snap, true, nil
			}
		}
	}

	books, err := fetch()
	if err != nil {
		return nil, false, err
	}

	snap, err := s.Put(username, books)
	if err != nil {
		// the fetch itself succeeded, so serve the data even if persisting
		// it failed
		s.logger.Warn().Err(err).Str("username", username).Msg("Failed to persist snapshot")
		return &Snapshot{Username: username, FetchedAt: s.now().UTC(), Books: books}, false, nil
	}
	return snap, false, nil
}

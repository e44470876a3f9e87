package cache

import (
	"sync"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/logger"
)

// CatalogFetchFunc produces a fresh catalog dump.
type CatalogFetchFunc func() ([]catalog.Item, error)

// Slot is the ephemeral single-value cache for the catalog dump. It holds at
// most one snapshot in memory and refreshes it when the TTL lapses. When a
// refresh fails and a stale snapshot exists, the stale copy is served rather
// than the error.
type Slot struct {
	mu        sync.Mutex
	items     []catalog.Item
	fetchedAt time.Time
	populated bool
	ttl       time.Duration
	now       func() time.Time
	logger    *logger.Logger
}

// NewSlot creates an empty catalog slot with the given TTL.
func NewSlot(ttl time.Duration) *Slot {
	return &Slot{
		ttl:    ttl,
		now:    time.Now,
		logger: logger.Get().WithComponent("catalog_slot"),
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Slot) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the cached catalog, refreshing via fetch when the slot is empty
// or expired. The bool result reports whether the returned data is stale
// (served because a refresh failed).
func (s *Slot) Get(fetch CatalogFetchFunc) ([]catalog.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.populated && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.items, false, nil
	}

	items, err := fetch()
	if err != nil {
		if s.populated {
			s.logger.Warn().Err(err).Msg("Catalog refresh failed, serving stale snapshot")
			return s.items, true, nil
		}
		return nil, false, err
	}

	s.items = items
	s.fetchedAt = s.now()
	s.populated = true
	s.logger.Debug().Int("items", len(items)).Msg("Catalog slot refreshed")
	return s.items, false, nil
}

// Invalidate drops the cached snapshot so the next Get refetches.
func (s *Slot) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.populated = false
}

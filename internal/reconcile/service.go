// Package reconcile orchestrates a reconciliation run: fetch the user's
// reading list (through the snapshot cache), fetch the catalog (through the
// ephemeral slot), match the two and summarize per-format availability.
package reconcile

import (
	"context"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/cache"
	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/logger"
	"github.com/shelfgrab/shelfgrab/internal/match"
	"github.com/shelfgrab/shelfgrab/internal/normalize"
	"github.com/shelfgrab/shelfgrab/internal/scrape"
)

// ListSource fetches a user's reading list.
type ListSource interface {
	Fetch(ctx context.Context, username string) ([]scrape.Record, error)
}

// CatalogSource fetches the full catalog dump.
type CatalogSource interface {
	GetAllBooks(ctx context.Context) ([]catalog.Item, error)
}

// AudioChecker reports the audiobook titles present on the media server.
// Optional; a nil checker disables the cross-check.
type AudioChecker interface {
	TitleSet(ctx context.Context) (map[string]struct{}, error)
}

// CollectorSource adapts a scrape.Collector to ListSource, owning a proxy
// session for the duration of each fetch.
type CollectorSource struct {
	Collector *scrape.Collector
}

// Fetch opens a session, walks the user's list and tears the session down.
func (s CollectorSource) Fetch(ctx context.Context, username string) ([]scrape.Record, error) {
	session, err := s.Collector.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Collector.CloseSession(ctx, session)
	return s.Collector.FetchList(ctx, session, username)
}

// Options tune a single reconciliation run.
type Options struct {
	// ForceRefresh bypasses the list snapshot cache
	ForceRefresh bool
	// MaxBooks truncates the report; zero means no limit
	MaxBooks int
}

// Service wires the caches and sources together.
type Service struct {
	lists   ListSource
	library CatalogSource
	audio   AudioChecker
	store   *cache.Store
	slot    *cache.Slot
	listTTL time.Duration
	logger  *logger.Logger
}

// NewService creates a reconciliation service. audio may be nil.
func NewService(lists ListSource, library CatalogSource, audio AudioChecker, store *cache.Store, slot *cache.Slot, listTTL time.Duration) *Service {
	return &Service{
		lists:   lists,
		library: library,
		audio:   audio,
		store:   store,
		slot:    slot,
		listTTL: listTTL,
		logger:  logger.Get().WithComponent("reconcile"),
	}
}

// Report runs one reconciliation for a user.
func (s *Service) Report(ctx context.Context, username string, opts Options) (*Report, error) {
	snap, fromCache, err := s.store.GetOrFetch(username, s.listTTL, opts.ForceRefresh, func() ([]scrape.Record, error) {
		return s.lists.Fetch(ctx, username)
	})
	if err != nil {
		return nil, err
	}

	items, stale, err := s.slot.Get(func() ([]catalog.Item, error) {
		return s.library.GetAllBooks(ctx)
	})
	if err != nil {
		return nil, err
	}
	idx := catalog.BuildIndex(items)

	var audioTitles map[string]struct{}
	if s.audio != nil {
		audioTitles, err = s.audio.TitleSet(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Audio server check unavailable, skipping")
			audioTitles = nil
		}
	}

	books := snap.Books
	if opts.MaxBooks > 0 && len(books) > opts.MaxBooks {
		books = books[:opts.MaxBooks]
	}

	report := &Report{
		Username:     snap.Username,
		FetchedAt:    snap.FetchedAt,
		FromCache:    fromCache,
		CatalogStale: stale,
		Total:        len(books),
		Books:        make([]BookReport, 0, len(books)),
	}
	titleKey := func(r scrape.Record) string { return normalize.String(r.Title) }
	for _, record := range books {
		result := match.Resolve(record, idx)
		report.Books = append(report.Books, buildBookReport(result, audioTitles, titleKey))
	}

	s.logger.Info().
		Str("username", username).
		Int("books", len(report.Books)).
		Bool("from_cache", fromCache).
		Msg("Reconciliation complete")
	return report, nil
}

// CachedReport builds a report from the stored snapshot only, without
// touching the rendering proxy. The bool result is false when no snapshot
// exists for the user.
func (s *Service) CachedReport(ctx context.Context, username string, opts Options) (*Report, bool, error) {
	snap, ok := s.store.Get(username)
	if !ok {
		return nil, false, nil
	}

	items, stale, err := s.slot.Get(func() ([]catalog.Item, error) {
		return s.library.GetAllBooks(ctx)
	})
	if err != nil {
		return nil, false, err
	}
	idx := catalog.BuildIndex(items)

	books := snap.Books
	if opts.MaxBooks > 0 && len(books) > opts.MaxBooks {
		books = books[:opts.MaxBooks]
	}

	report := &Report{
		Username:     snap.Username,
		FetchedAt:    snap.FetchedAt,
		FromCache:    true,
		Expired:      time.Since(snap.FetchedAt) >= s.listTTL,
		CatalogStale: stale,
		Total:        len(books),
		Books:        make([]BookReport, 0, len(books)),
	}
	titleKey := func(r scrape.Record) string { return normalize.String(r.Title) }
	for _, record := range books {
		result := match.Resolve(record, idx)
		report.Books = append(report.Books, buildBookReport(result, nil, titleKey))
	}
	return report, true, nil
}

// Candidates resolves a free-text title query against the cached catalog.
func (s *Service) Candidates(ctx context.Context, query string) ([]match.Candidate, error) {
	items, _, err := s.slot.Get(func() ([]catalog.Item, error) {
		return s.library.GetAllBooks(ctx)
	})
	if err != nil {
		return nil, err
	}
	return match.FindCandidates(query, catalog.BuildIndex(items)), nil
}

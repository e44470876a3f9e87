package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/match"
	"github.com/shelfgrab/shelfgrab/internal/scrape"
)

const (
	statusInLibrary = "In Library"
	statusMissing   = "Missing"
)

// FormatAvailability summarizes one format for one book. Matched means a
// file for that format exists in the library.
type FormatAvailability struct {
	Matched bool   `json:"matched"`
	Status  string `json:"status"`
}

// BookReport is the per-book reconciliation result.
type BookReport struct {
	Title       string `json:"title"`
	Author      string `json:"author,omitempty"`
	URL         string `json:"url,omitempty"`
	MatchMethod string `json:"match_method"`
	// BookIDs lists the matched catalog ids, in catalog order
	BookIDs []string `json:"book_ids,omitempty"`

	EBook     FormatAvailability `json:"ebook"`
	AudioBook FormatAvailability `json:"audiobook"`

	// OnAudioServer is set when the audiobook exists on the media server
	// even though the catalog has no audio file for it
	OnAudioServer bool `json:"on_audio_server,omitempty"`
	// SearchPossible marks books absent from the catalog entirely
	SearchPossible bool `json:"search_possible,omitempty"`
}

// Report is one full reconciliation run for a user.
type Report struct {
	Username  string    `json:"username"`
	FetchedAt time.Time `json:"fetched_at"`
	FromCache bool      `json:"from_cache"`
	// Expired marks a cached-only report older than the list TTL
	Expired      bool         `json:"expired,omitempty"`
	CatalogStale bool         `json:"catalog_stale,omitempty"`
	Total        int          `json:"total"`
	Books        []BookReport `json:"books"`
}

// formatAvailability summarizes one format across the matched catalog items:
// a present file wins outright, otherwise the distinct remote statuses are
// reported sorted and comma-joined, otherwise the book counts as missing.
func formatAvailability(items []catalog.Item, format catalog.Format) FormatAvailability {
	statuses := make(map[string]struct{})
	for _, item := range items {
		if item.HasFile(format) {
			return FormatAvailability{Matched: true, Status: statusInLibrary}
		}
		if s := item.StatusText(format); s != "" {
			statuses[s] = struct{}{}
		}
	}
	if len(statuses) == 0 {
		return FormatAvailability{Status: statusMissing}
	}

	sorted := make([]string, 0, len(statuses))
	for s := range statuses {
		sorted = append(sorted, s)
	}
	sort.Strings(sorted)
	return FormatAvailability{Status: strings.Join(sorted, ", ")}
}

// buildBookReport folds one match result into its report row.
func buildBookReport(result match.Result, audioTitles map[string]struct{}, titleKey func(scrape.Record) string) BookReport {
	report := BookReport{
		Title:       result.Record.Title,
		Author:      result.Record.Author,
		URL:         result.Record.URL,
		MatchMethod: string(result.Method),
	}

	if !result.Matched() {
		report.EBook = FormatAvailability{Status: statusMissing}
		report.AudioBook = FormatAvailability{Status: statusMissing}
		report.SearchPossible = true
	} else {
		for _, item := range result.Items {
			report.BookIDs = append(report.BookIDs, item.BookID)
		}
		report.EBook = formatAvailability(result.Items, catalog.FormatEBook)
		report.AudioBook = formatAvailability(result.Items, catalog.FormatAudioBook)
	}

	if audioTitles != nil && !report.AudioBook.Matched {
		if _, ok := audioTitles[titleKey(result.Record)]; ok {
			report.OnAudioServer = true
		}
	}
	return report
}

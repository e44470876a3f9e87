// Package catalog holds the library catalog model and the normalized lookup
// index built from a full catalog dump.
package catalog

import (
	"github.com/shelfgrab/shelfgrab/internal/normalize"
)

// Format identifies a media format tracked per catalog item.
type Format string

const (
	// FormatEBook is the ebook format
	FormatEBook Format = "eBook"
	// FormatAudioBook is the audiobook format
	FormatAudioBook Format = "AudioBook"
)

// Item is one record from the library-management service's catalog dump.
// Field names follow the remote API's capitalization.
type Item struct {
	BookID       string `json:"BookID"`
	BookName     string `json:"BookName"`
	AuthorID     string `json:"AuthorID"`
	AuthorName   string `json:"AuthorName"`
	BookISBN     string `json:"BookIsbn,omitempty"`
	BookLink     string `json:"BookLink,omitempty"`
	Status       string `json:"Status,omitempty"`
	AudioStatus  string `json:"AudioStatus,omitempty"`
	BookLibrary  string `json:"BookLibrary,omitempty"`
	AudioLibrary string `json:"AudioLibrary,omitempty"`
}

// HasFile reports whether the library holds a file for the given format.
func (i Item) HasFile(format Format) bool {
	switch format {
	case FormatAudioBook:
		return i.AudioLibrary != ""
	default:
		return i.BookLibrary != ""
	}
}

// StatusText returns the remote status string for the given format.
func (i Item) StatusText(format Format) string {
	switch format {
	case FormatAudioBook:
		return i.AudioStatus
	default:
		return i.Status
	}
}

// Index is the pair of lookup mappings built from one catalog snapshot.
// Both preserve insertion order of keys so fuzzy matching has a stable
// tie-break. An Index is rebuilt wholesale on every catalog refresh and never
// patched in place.
type Index struct {
	byTitle       map[string][]Item
	byTitleAuthor map[string][]Item
	titleOrder    []string
}

// BuildIndex builds the lookup index for a catalog snapshot. Items whose
// normalized title is empty are indexed nowhere.
func BuildIndex(items []Item) *Index {
	idx := &Index{
		byTitle:       make(map[string][]Item),
		byTitleAuthor: make(map[string][]Item),
	}

	for _, item := range items {
		title := normalize.String(item.BookName)
		if title == "" {
			continue
		}
		if _, exists := idx.byTitle[title]; !exists {
			idx.titleOrder = append(idx.titleOrder, title)
		}
		idx.byTitle[title] = append(idx.byTitle[title], item)

		author := normalize.String(item.AuthorName)
		if author != "" {
			idx.byTitleAuthor[title+" "+author] = append(idx.byTitleAuthor[title+" "+author], item)
		}
	}

	return idx
}

// ByTitle returns the items indexed under a normalized title.
func (idx *Index) ByTitle(normalizedTitle string) []Item {
	return idx.byTitle[normalizedTitle]
}

// ByTitleAuthor returns the items indexed under a normalized title+author key.
func (idx *Index) ByTitleAuthor(key string) []Item {
	return idx.byTitleAuthor[key]
}

// EachTitle visits every title key in insertion order until fn returns false.
func (idx *Index) EachTitle(fn func(title string, items []Item) bool) {
	for _, title := range idx.titleOrder {
		if !fn(title, idx.byTitle[title]) {
			return
		}
	}
}

// Len returns the number of distinct title keys.
func (idx *Index) Len() int {
	return len(idx.titleOrder)
}

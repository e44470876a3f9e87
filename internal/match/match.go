// Package match resolves scraped reading-list records against the catalog
// index. Two lookup modes exist: Resolve walks a tiered exact-then-fuzzy
// ladder and answers "is this specific book in the catalog", while
// FindCandidates scores every title and answers "what could this query mean".
package match

import (
	"sort"

	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/normalize"
	"github.com/shelfgrab/shelfgrab/internal/scrape"
)

// Method names the tier that produced a match.
type Method string

const (
	// MethodExactKey matched on normalized title plus author
	MethodExactKey Method = "exact_key"
	// MethodExactTitle matched on normalized title alone
	MethodExactTitle Method = "exact_title"
	// MethodFuzzy matched on word-subset containment
	MethodFuzzy Method = "fuzzy"
	// MethodNone found nothing
	MethodNone Method = "none"
)

// Result pairs a scraped record with the catalog items it resolved to.
type Result struct {
	Record scrape.Record
	Items  []catalog.Item
	Method Method
}

// Matched reports whether any catalog item was found.
func (r Result) Matched() bool {
	return r.Method != MethodNone
}

// Resolve looks a record up in the index. Tiers are tried in order of
// confidence: exact title+author key, exact title, then fuzzy word-subset
// containment against every indexed title. The fuzzy tier takes the first
// title (in index insertion order) whose word set contains, or is contained
// by, the record's title words.
func Resolve(record scrape.Record, idx *catalog.Index) Result {
	title := normalize.String(record.Title)
	if title == "" {
		return Result{Record: record, Method: MethodNone}
	}

	if author := normalize.String(record.Author); author != "" {
		if items := idx.ByTitleAuthor(title + " " + author); len(items) > 0 {
			return Result{Record: record, Items: items, Method: MethodExactKey}
		}
	}

	if items := idx.ByTitle(title); len(items) > 0 {
		return Result{Record: record, Items: items, Method: MethodExactTitle}
	}

	recordWords := normalize.Words(title)
	var fuzzy []catalog.Item
	idx.EachTitle(func(candidate string, items []catalog.Item) bool {
		if wordsOverlap(recordWords, normalize.Words(candidate)) {
			fuzzy = items
			return false
		}
		return true
	})
	if len(fuzzy) > 0 {
		return Result{Record: record, Items: fuzzy, Method: MethodFuzzy}
	}

	return Result{Record: record, Method: MethodNone}
}

// wordsOverlap reports whether one word set is a subset of the other.
func wordsOverlap(a, b map[string]struct{}) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for word := range small {
		if _, ok := large[word]; !ok {
			return false
		}
	}
	return true
}

const (
	// minCandidateScore filters out weak overlaps in candidate search
	minCandidateScore = 0.5
	// maxCandidates caps the candidate list
	maxCandidates = 10
)

// Candidate is one scored catalog title from a free-text lookup.
type Candidate struct {
	Title string
	Score float64
	Items []catalog.Item
}

// FindCandidates scores every indexed title against a free-text query by word
// overlap (shared words over the larger word count) and returns the top
// matches, best first. Ties keep index insertion order.
func FindCandidates(query string, idx *catalog.Index) []Candidate {
	queryWords := normalize.Words(normalize.String(query))
	if len(queryWords) == 0 {
		return nil
	}

	var candidates []Candidate
	idx.EachTitle(func(title string, items []catalog.Item) bool {
		titleWords := normalize.Words(title)
		if len(titleWords) == 0 {
			return true
		}

		shared := 0
		for word := range queryWords {
			if _, ok := titleWords[word]; ok {
				shared++
			}
		}
		if shared == 0 {
			return true
		}

		denom := len(queryWords)
		if len(titleWords) > denom {
			denom = len(titleWords)
		}
		score := float64(shared) / float64(denom)
		if score >= minCandidateScore {
			candidates = append(candidates, Candidate{Title: title, Score: score, Items: items})
		}
		return true
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

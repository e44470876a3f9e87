package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/scrape"
)

func testIndex() *catalog.Index {
	return catalog.BuildIndex([]catalog.Item{
		{BookID: "1", BookName: "The Waif", AuthorName: "Samantha Kolesnik"},
		{BookID: "2", BookName: "True Crime", AuthorName: "Samantha Kolesnik"},
		{BookID: "3", BookName: "The Long Way to a Small, Angry Planet", AuthorName: "Becky Chambers"},
		{BookID: "4", BookName: "Planet", AuthorName: "Someone Else"},
	})
}

func TestResolveExactKey(t *testing.T) {
	t.Parallel()

	result := Resolve(scrape.Record{Title: "The Waif", Author: "Samantha Kolesnik"}, testIndex())
	assert.Equal(t, MethodExactKey, result.Method)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "1", result.Items[0].BookID)
	assert.True(t, result.Matched())
}

func TestResolveExactTitleWhenAuthorDiffers(t *testing.T) {
	t.Parallel()

	result := Resolve(scrape.Record{Title: "The Waif", Author: "Wrong Person"}, testIndex())
	assert.Equal(t, MethodExactTitle, result.Method)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "1", result.Items[0].BookID)
}

func TestResolveExactTitleWithoutAuthor(t *testing.T) {
	t.Parallel()

	result := Resolve(scrape.Record{Title: "True Crime"}, testIndex())
	assert.Equal(t, MethodExactTitle, result.Method)
}

func TestResolveFuzzySubset(t *testing.T) {
	t.Parallel()

	// scraped title is a word subset of the catalog title
	result := Resolve(scrape.Record{Title: "Long Way Small Angry Planet"}, testIndex())
	assert.Equal(t, MethodFuzzy, result.Method)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "3", result.Items[0].BookID)
}

func TestResolveFuzzySuperset(t *testing.T) {
	t.Parallel()

	// catalog title is a word subset of the scraped one
	result := Resolve(scrape.Record{Title: "The Waif Special Edition"}, testIndex())
	assert.Equal(t, MethodFuzzy, result.Method)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "1", result.Items[0].BookID)
}

func TestResolveFuzzyFirstHitWins(t *testing.T) {
	t.Parallel()

	// "planet" is a subset of both "the long way..." and "planet"; the earlier
	// indexed title wins
	result := Resolve(scrape.Record{Title: "Angry Planet"}, testIndex())
	assert.Equal(t, MethodFuzzy, result.Method)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "3", result.Items[0].BookID)
}

func TestResolveNoMatch(t *testing.T) {
	t.Parallel()

	result := Resolve(scrape.Record{Title: "Completely Unrelated Novel"}, testIndex())
	assert.Equal(t, MethodNone, result.Method)
	assert.Empty(t, result.Items)
	assert.False(t, result.Matched())

	// near-miss words never count: "wait" is not a subset of "the waif"
	result = Resolve(scrape.Record{Title: "Wait"}, testIndex())
	assert.Equal(t, MethodNone, result.Method)
}

func TestResolveEmptyTitle(t *testing.T) {
	t.Parallel()

	result := Resolve(scrape.Record{Title: "???"}, testIndex())
	assert.Equal(t, MethodNone, result.Method)
}

func TestFindCandidatesScoring(t *testing.T) {
	t.Parallel()

	candidates := FindCandidates("the waif", testIndex())
	require.NotEmpty(t, candidates)
	assert.Equal(t, "the waif", candidates[0].Title)
	assert.InDelta(t, 1.0, candidates[0].Score, 0.001)
}

func TestFindCandidatesThreshold(t *testing.T) {
	t.Parallel()

	// one shared word out of eight does not clear the threshold
	candidates := FindCandidates("planet", testIndex())
	require.Len(t, candidates, 1)
	assert.Equal(t, "planet", candidates[0].Title)
}

func TestFindCandidatesCap(t *testing.T) {
	t.Parallel()

	items := make([]catalog.Item, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, catalog.Item{
			BookID:   string(rune('a' + i)),
			BookName: "shared title " + string(rune('a'+i)),
		})
	}
	idx := catalog.BuildIndex(items)

	candidates := FindCandidates("shared title", idx)
	assert.Len(t, candidates, 10)
}

func TestFindCandidatesEmptyQuery(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FindCandidates("  ", testIndex()))
}

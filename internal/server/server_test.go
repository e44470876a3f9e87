package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfgrab/shelfgrab/internal/cache"
	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/history"
	"github.com/shelfgrab/shelfgrab/internal/lazylibrarian"
	"github.com/shelfgrab/shelfgrab/internal/reconcile"
	"github.com/shelfgrab/shelfgrab/internal/scrape"
)

type fakeLists struct {
	records []scrape.Record
}

func (f *fakeLists) Fetch(ctx context.Context, username string) ([]scrape.Record, error) {
	return f.records, nil
}

type fakeLibrary struct {
	items []catalog.Item

	added        []string
	queued       []string
	unqueued     []string
	searched     []string
	found        []string
	queueOutcome *lazylibrarian.Response
}

func (f *fakeLibrary) GetAllBooks(ctx context.Context) ([]catalog.Item, error) {
	return f.items, nil
}

func (f *fakeLibrary) FindBook(ctx context.Context, name string) (json.RawMessage, error) {
	f.found = append(f.found, name)
	return json.RawMessage(`[{"bookid": "remote-1"}]`), nil
}

func (f *fakeLibrary) AddBook(ctx context.Context, bookID string) (*lazylibrarian.Response, error) {
	f.added = append(f.added, bookID)
	return &lazylibrarian.Response{OK: true, Message: "OK"}, nil
}

func (f *fakeLibrary) QueueBook(ctx context.Context, bookID string, format catalog.Format) (*lazylibrarian.Response, error) {
	f.queued = append(f.queued, bookID+":"+string(format))
	if f.queueOutcome != nil {
		return f.queueOutcome, nil
	}
	return &lazylibrarian.Response{OK: true, Message: "OK"}, nil
}

func (f *fakeLibrary) UnqueueBook(ctx context.Context, bookID string, format catalog.Format) (*lazylibrarian.Response, error) {
	f.unqueued = append(f.unqueued, bookID+":"+string(format))
	return &lazylibrarian.Response{OK: true, Message: "OK"}, nil
}

func (f *fakeLibrary) SearchBook(ctx context.Context, bookID string, format catalog.Format, wait bool) (*lazylibrarian.Response, error) {
	f.searched = append(f.searched, bookID)
	return &lazylibrarian.Response{OK: true, Message: "OK"}, nil
}

func newTestServer(t *testing.T, lists *fakeLists, library *fakeLibrary, withHistory bool) (*httptest.Server, *fakeLibrary, *history.Log) {
	t.Helper()

	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	reconciler := reconcile.NewService(lists, library, nil, store, cache.NewSlot(time.Minute), 15*time.Minute)

	var events *history.Log
	if withHistory {
		events, err = history.Open(filepath.Join(t.TempDir(), "events.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = events.Close() })
	}

	srv := New(":0", reconciler, library, events)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, library, events
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func postJSON(t *testing.T, url, body string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(t, &fakeLists{}, &fakeLibrary{}, false)

	var body map[string]string
	resp := getJSON(t, ts.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestBooksEndpoint(t *testing.T) {
	lists := &fakeLists{records: []scrape.Record{
		{URL: "/books/1", Title: "Waif", Author: "Samantha Kolesnik"},
	}}
	library := &fakeLibrary{items: []catalog.Item{
		{BookID: "10", BookName: "Waif", AuthorName: "Samantha Kolesnik", BookLibrary: "/b/waif.epub"},
	}}
	ts, _, _ := newTestServer(t, lists, library, false)

	var report reconcile.Report
	resp := getJSON(t, ts.URL+"/api/books/alice", &report)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", report.Username)
	require.Len(t, report.Books, 1)
	assert.True(t, report.Books[0].EBook.Matched)
	assert.Equal(t, "In Library", report.Books[0].EBook.Status)
}

func TestCachedEndpointMissesWithoutSnapshot(t *testing.T) {
	ts, _, _ := newTestServer(t, &fakeLists{}, &fakeLibrary{}, false)

	resp := getJSON(t, ts.URL+"/api/cached/nobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCachedEndpointAfterFetch(t *testing.T) {
	lists := &fakeLists{records: []scrape.Record{{Title: "Waif"}}}
	ts, _, _ := newTestServer(t, lists, &fakeLibrary{}, false)

	resp := getJSON(t, ts.URL+"/api/books/alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report reconcile.Report
	resp = getJSON(t, ts.URL+"/api/cached/alice", &report)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, report.FromCache)
}

func TestFindEndpoint(t *testing.T) {
	library := &fakeLibrary{items: []catalog.Item{{BookID: "1", BookName: "The Waif"}}}
	ts, _, _ := newTestServer(t, &fakeLists{}, library, false)

	var body struct {
		Query      string `json:"query"`
		Candidates []struct {
			Title string  `json:"title"`
			Score float64 `json:"score"`
		} `json:"candidates"`
	}
	resp := getJSON(t, ts.URL+"/api/find?q=waif+the", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Candidates, 1)
	assert.Equal(t, "the waif", body.Candidates[0].Title)

	resp = getJSON(t, ts.URL+"/api/find", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFindEndpointRemoteFallthrough(t *testing.T) {
	library := &fakeLibrary{}
	ts, _, _ := newTestServer(t, &fakeLists{}, library, false)

	// local index is empty; remote=1 consults the library manager
	var body struct {
		Remote json.RawMessage `json:"remote"`
	}
	resp := getJSON(t, ts.URL+"/api/find?q=waif&remote=1", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"bookid": "remote-1"}]`, string(body.Remote))
	assert.Equal(t, []string{"waif"}, library.found)

	// without remote the miss stays local
	resp = getJSON(t, ts.URL+"/api/find?q=waif", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, library.found, 1)
}

func TestQueueEndpointRecordsHistory(t *testing.T) {
	ts, library, events := newTestServer(t, &fakeLists{}, &fakeLibrary{}, true)

	var body map[string]interface{}
	resp := postJSON(t, ts.URL+"/api/queue", `{"book_id": "42", "format": "audiobook"}`, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"42:AudioBook"}, library.queued)

	recorded, err := events.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, history.ActionQueue, recorded[0].Action)
	assert.Equal(t, "42", recorded[0].BookID)
	assert.False(t, recorded[0].Skipped)
}

func TestQueueEndpointMarksSkipped(t *testing.T) {
	library := &fakeLibrary{queueOutcome: &lazylibrarian.Response{OK: true, Message: "Already wanted"}}
	ts, _, events := newTestServer(t, &fakeLists{}, library, true)

	resp := postJSON(t, ts.URL+"/api/queue", `{"book_id": "42"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	recorded, err := events.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.True(t, recorded[0].Skipped)
}

func TestQueueEndpointValidation(t *testing.T) {
	ts, library, _ := newTestServer(t, &fakeLists{}, &fakeLibrary{}, false)

	resp := postJSON(t, ts.URL+"/api/queue", `{"format": "eBook"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/queue", `{"book_id": "1", "format": "vinyl"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, library.queued)
}

func TestAddAndUnqueueAndSearch(t *testing.T) {
	ts, library, _ := newTestServer(t, &fakeLists{}, &fakeLibrary{}, false)

	resp := postJSON(t, ts.URL+"/api/add", `{"book_id": "7"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"7"}, library.added)

	resp = postJSON(t, ts.URL+"/api/unqueue", `{"book_id": "7", "format": "ebook"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"7:eBook"}, library.unqueued)

	resp = postJSON(t, ts.URL+"/api/search", `{"book_id": "7", "wait": true}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"7"}, library.searched)
}

func TestHistoryEndpoint(t *testing.T) {
	ts, _, events := newTestServer(t, &fakeLists{}, &fakeLibrary{}, true)

	require.NoError(t, events.Record(context.Background(), history.Event{Action: history.ActionAdd, BookID: "1"}))
	require.NoError(t, events.Record(context.Background(), history.Event{Action: history.ActionQueue, BookID: "2"}))

	var body struct {
		Events []history.Event `json:"events"`
	}
	resp := getJSON(t, ts.URL+"/api/history", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Events, 2)

	resp = getJSON(t, ts.URL+"/api/history?book_id=2", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Events, 1)
	assert.Equal(t, "2", body.Events[0].BookID)
}

func TestHistoryEndpointDisabled(t *testing.T) {
	ts, _, _ := newTestServer(t, &fakeLists{}, &fakeLibrary{}, false)

	resp := getJSON(t, ts.URL+"/api/history", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

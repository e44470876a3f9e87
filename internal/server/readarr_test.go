package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfgrab/shelfgrab/internal/cache"
	"github.com/shelfgrab/shelfgrab/internal/readarr"
	"github.com/shelfgrab/shelfgrab/internal/reconcile"
)

type fakeAcquirer struct {
	added []string
}

func (f *fakeAcquirer) Lookup(ctx context.Context, term string) ([]readarr.Book, error) {
	return []readarr.Book{{Title: "The Waif", ForeignBookID: "gr-1"}}, nil
}

func (f *fakeAcquirer) AddBook(ctx context.Context, foreignBookID string) error {
	f.added = append(f.added, foreignBookID)
	return nil
}

func newReadarrTestServer(t *testing.T, acquirer ReadarrActions) *httptest.Server {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	require.NoError(t, err)
	library := &fakeLibrary{}
	reconciler := reconcile.NewService(&fakeLists{}, library, nil, store, cache.NewSlot(time.Minute), 15*time.Minute)

	srv := New(":0", reconciler, library, nil)
	if acquirer != nil {
		srv.WithReadarr(acquirer)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestReadarrEndpointsDisabled(t *testing.T) {
	ts := newReadarrTestServer(t, nil)

	resp := getJSON(t, ts.URL+"/api/readarr/lookup?term=waif", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/readarr/add", `{"foreign_book_id": "gr-1"}`, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReadarrLookup(t *testing.T) {
	ts := newReadarrTestServer(t, &fakeAcquirer{})

	var body struct {
		Term  string `json:"term"`
		Books []struct {
			Title         string `json:"title"`
			ForeignBookID string `json:"foreignBookId"`
		} `json:"books"`
	}
	resp := getJSON(t, ts.URL+"/api/readarr/lookup?term=waif", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Books, 1)
	assert.Equal(t, "gr-1", body.Books[0].ForeignBookID)

	resp = getJSON(t, ts.URL+"/api/readarr/lookup", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadarrAdd(t *testing.T) {
	acquirer := &fakeAcquirer{}
	ts := newReadarrTestServer(t, acquirer)

	var body map[string]string
	resp := postJSON(t, ts.URL+"/api/readarr/add", `{"foreign_book_id": "gr-1"}`, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "added", body["outcome"])
	assert.Equal(t, []string{"gr-1"}, acquirer.added)

	resp = postJSON(t, ts.URL+"/api/readarr/add", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

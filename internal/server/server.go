// Package server exposes the reconciliation service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/history"
	"github.com/shelfgrab/shelfgrab/internal/lazylibrarian"
	"github.com/shelfgrab/shelfgrab/internal/logger"
	"github.com/shelfgrab/shelfgrab/internal/readarr"
	"github.com/shelfgrab/shelfgrab/internal/reconcile"
)

// LibraryActions is the subset of the library-management client the mutation
// endpoints need.
type LibraryActions interface {
	FindBook(ctx context.Context, name string) (json.RawMessage, error)
	AddBook(ctx context.Context, bookID string) (*lazylibrarian.Response, error)
	QueueBook(ctx context.Context, bookID string, format catalog.Format) (*lazylibrarian.Response, error)
	UnqueueBook(ctx context.Context, bookID string, format catalog.Format) (*lazylibrarian.Response, error)
	SearchBook(ctx context.Context, bookID string, format catalog.Format, wait bool) (*lazylibrarian.Response, error)
}

// ReadarrActions is the subset of the Readarr client the alternative
// acquisition endpoints need.
type ReadarrActions interface {
	Lookup(ctx context.Context, term string) ([]readarr.Book, error)
	AddBook(ctx context.Context, foreignBookID string) error
}

// Server represents the HTTP server
type Server struct {
	server     *http.Server
	reconciler *reconcile.Service
	library    LibraryActions
	acquirer   ReadarrActions
	events     *history.Log
	logger     *logger.Logger
}

// New creates the HTTP server. events may be nil to disable the audit log.
func New(addr string, reconciler *reconcile.Service, library LibraryActions, events *history.Log) *Server {
	s := &Server{
		server:     &http.Server{Addr: addr},
		reconciler: reconciler,
		library:    library,
		events:     events,
		logger:     logger.Get().WithComponent("server"),
	}

	handler := http.NewServeMux()
	handler.HandleFunc("GET /healthz", s.handleHealthCheck)
	handler.HandleFunc("GET /api/books/{username}", s.handleBooks)
	handler.HandleFunc("GET /api/cached/{username}", s.handleCachedBooks)
	handler.HandleFunc("GET /api/find", s.handleFind)
	handler.HandleFunc("POST /api/add", s.handleAdd)
	handler.HandleFunc("POST /api/queue", s.handleQueue)
	handler.HandleFunc("POST /api/unqueue", s.handleUnqueue)
	handler.HandleFunc("POST /api/search", s.handleSearch)
	handler.HandleFunc("GET /api/history", s.handleHistory)
	handler.HandleFunc("GET /api/readarr/lookup", s.handleReadarrLookup)
	handler.HandleFunc("POST /api/readarr/add", s.handleReadarrAdd)

	s.server.Handler = logger.HTTPMiddleware(handler)
	s.server.ReadTimeout = 10 * time.Second
	s.server.WriteTimeout = 5 * time.Minute
	s.server.IdleTimeout = 120 * time.Second

	return s
}

// WithReadarr enables the alternative acquisition endpoints. Returns the
// server for chaining.
func (s *Server) WithReadarr(acquirer ReadarrActions) *Server {
	s.acquirer = acquirer
	return s
}

// Handler returns the configured handler chain. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// reportOptions reads the shared query parameters of the report endpoints.
func reportOptions(r *http.Request) reconcile.Options {
	opts := reconcile.Options{}
	q := r.URL.Query()
	if isTruthy(q.Get("refresh")) {
		opts.ForceRefresh = true
	}
	if n, err := strconv.Atoi(q.Get("max_books")); err == nil && n > 0 {
		opts.MaxBooks = n
	}
	return opts
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "yes":
		return true
	}
	return false
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	report, err := s.reconciler.Report(r.Context(), username, reportOptions(r))
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Reconciliation failed")
		writeError(w, http.StatusBadGateway, "reconciliation failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCachedBooks(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	report, ok, err := s.reconciler.CachedReport(r.Context(), username, reportOptions(r))
	if err != nil {
		s.logger.Error().Err(err).Str("username", username).Msg("Cached report failed")
		writeError(w, http.StatusBadGateway, "cached report failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no cached list for user")
		return
	}
	if report.Expired {
		writeJSON(w, http.StatusGone, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	candidates, err := s.reconciler.Candidates(r.Context(), query)
	if err != nil {
		s.logger.Error().Err(err).Msg("Candidate lookup failed")
		writeError(w, http.StatusBadGateway, "candidate lookup failed")
		return
	}

	type candidateJSON struct {
		Title string         `json:"title"`
		Score float64        `json:"score"`
		Items []catalog.Item `json:"items"`
	}
	out := make([]candidateJSON, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateJSON{Title: c.Title, Score: c.Score, Items: c.Items})
	}

	response := map[string]interface{}{"query": query, "candidates": out}

	// with remote=1, a local miss falls through to the library manager's
	// own metadata search
	if len(out) == 0 && isTruthy(r.URL.Query().Get("remote")) {
		remote, err := s.library.FindBook(r.Context(), query)
		if err != nil {
			s.logger.Warn().Err(err).Str("query", query).Msg("Remote lookup failed")
		} else {
			response["remote"] = remote
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}

	q := r.URL.Query()
	var (
		events []history.Event
		err    error
	)
	if bookID := q.Get("book_id"); bookID != "" {
		events, err = s.events.ForBook(r.Context(), bookID)
	} else {
		limit, _ := strconv.Atoi(q.Get("limit"))
		events, err = s.events.Recent(r.Context(), limit)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("History lookup failed")
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

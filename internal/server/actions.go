package server

import (
	"encoding/json"
	"net/http"

	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/history"
	"github.com/shelfgrab/shelfgrab/internal/lazylibrarian"
)

// actionRequest is the shared body of the mutation endpoints.
type actionRequest struct {
	BookID string `json:"book_id"`
	Format string `json:"format,omitempty"`
	Wait   bool   `json:"wait,omitempty"`
}

// parseFormat maps the request format to a catalog format, defaulting to
// ebook. Unknown values are rejected.
func parseFormat(v string) (catalog.Format, bool) {
	switch v {
	case "", "eBook", "ebook":
		return catalog.FormatEBook, true
	case "AudioBook", "audiobook", "audio":
		return catalog.FormatAudioBook, true
	}
	return "", false
}

func (s *Server) decodeAction(w http.ResponseWriter, r *http.Request) (actionRequest, catalog.Format, bool) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, "", false
	}
	if req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return req, "", false
	}
	format, ok := parseFormat(req.Format)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown format")
		return req, "", false
	}
	return req, format, true
}

// record writes the audit event when the log is enabled.
func (s *Server) record(r *http.Request, event history.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(r.Context(), event); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record event")
	}
}

// actionOutcome summarizes a remote response for the audit log and the client.
func actionOutcome(resp *lazylibrarian.Response) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.OK {
		return "OK"
	}
	return "accepted"
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	req, _, ok := s.decodeAction(w, r)
	if !ok {
		return
	}

	resp, err := s.library.AddBook(r.Context(), req.BookID)
	if err != nil {
		s.logger.Error().Err(err).Str("book_id", req.BookID).Msg("Add failed")
		writeError(w, http.StatusBadGateway, "add failed")
		return
	}

	outcome := actionOutcome(resp)
	s.record(r, history.Event{
		Action:  history.ActionAdd,
		BookID:  req.BookID,
		Outcome: outcome,
		Skipped: outcome == "Book already exists",
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"book_id": req.BookID, "outcome": outcome})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	req, format, ok := s.decodeAction(w, r)
	if !ok {
		return
	}

	resp, err := s.library.QueueBook(r.Context(), req.BookID, format)
	if err != nil {
		s.logger.Error().Err(err).Str("book_id", req.BookID).Msg("Queue failed")
		writeError(w, http.StatusBadGateway, "queue failed")
		return
	}

	outcome := actionOutcome(resp)
	s.record(r, history.Event{
		Action:  history.ActionQueue,
		BookID:  req.BookID,
		Format:  string(format),
		Outcome: outcome,
		Skipped: outcome == "Already wanted",
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"book_id": req.BookID, "format": format, "outcome": outcome})
}

func (s *Server) handleUnqueue(w http.ResponseWriter, r *http.Request) {
	req, format, ok := s.decodeAction(w, r)
	if !ok {
		return
	}

	resp, err := s.library.UnqueueBook(r.Context(), req.BookID, format)
	if err != nil {
		s.logger.Error().Err(err).Str("book_id", req.BookID).Msg("Unqueue failed")
		writeError(w, http.StatusBadGateway, "unqueue failed")
		return
	}

	outcome := actionOutcome(resp)
	s.record(r, history.Event{
		Action:  history.ActionUnqueue,
		BookID:  req.BookID,
		Format:  string(format),
		Outcome: outcome,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"book_id": req.BookID, "format": format, "outcome": outcome})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, format, ok := s.decodeAction(w, r)
	if !ok {
		return
	}

	resp, err := s.library.SearchBook(r.Context(), req.BookID, format, req.Wait)
	if err != nil {
		s.logger.Error().Err(err).Str("book_id", req.BookID).Msg("Search failed")
		writeError(w, http.StatusBadGateway, "search failed")
		return
	}

	outcome := actionOutcome(resp)
	s.record(r, history.Event{
		Action:  history.ActionSearch,
		BookID:  req.BookID,
		Format:  string(format),
		Outcome: outcome,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"book_id": req.BookID, "format": format, "outcome": outcome})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

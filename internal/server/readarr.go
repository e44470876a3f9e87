package server

import (
	"encoding/json"
	"net/http"

	"github.com/shelfgrab/shelfgrab/internal/history"
)

func (s *Server) handleReadarrLookup(w http.ResponseWriter, r *http.Request) {
	if s.acquirer == nil {
		writeError(w, http.StatusNotFound, "readarr is not configured")
		return
	}

	term := r.URL.Query().Get("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "term is required")
		return
	}

	books, err := s.acquirer.Lookup(r.Context(), term)
	if err != nil {
		s.logger.Error().Err(err).Str("term", term).Msg("Readarr lookup failed")
		writeError(w, http.StatusBadGateway, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"term": term, "books": books})
}

func (s *Server) handleReadarrAdd(w http.ResponseWriter, r *http.Request) {
	if s.acquirer == nil {
		writeError(w, http.StatusNotFound, "readarr is not configured")
		return
	}

	var req struct {
		ForeignBookID string `json:"foreign_book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ForeignBookID == "" {
		writeError(w, http.StatusBadRequest, "foreign_book_id is required")
		return
	}

	if err := s.acquirer.AddBook(r.Context(), req.ForeignBookID); err != nil {
		s.logger.Error().Err(err).Str("foreign_book_id", req.ForeignBookID).Msg("Readarr add failed")
		writeError(w, http.StatusBadGateway, "add failed")
		return
	}

	s.record(r, history.Event{
		Action:  history.ActionAdd,
		BookID:  req.ForeignBookID,
		Outcome: "sent to readarr",
	})
	writeJSON(w, http.StatusOK, map[string]string{"foreign_book_id": req.ForeignBookID, "outcome": "added"})
}

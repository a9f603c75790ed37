package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voicegate/voicegate/internal/database"
	"github.com/voicegate/voicegate/internal/database/models"
)

// handleListCalls returns a page of the call log, newest first.
// Supported query parameters: exit_reason, search, from, to, limit, offset.
func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	p, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	q := r.URL.Query()
	filter := database.CallListFilter{
		ExitReason: q.Get("exit_reason"),
		Search:     q.Get("search"),
		StartDate:  q.Get("from"),
		EndDate:    q.Get("to"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	}

	calls, total, err := s.calls.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing calls failed")
		return
	}
	if calls == nil {
		calls = []models.Call{}
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  calls,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// handleGetCall returns a single call record by ID.
func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	call, err := s.calls.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetching call failed")
		return
	}
	if call == nil {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}

	writeJSON(w, http.StatusOK, call)
}

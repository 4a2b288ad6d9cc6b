package web

import (
	"net/http"
	"slices"
	"strconv"

	"coursebook/internal/application/projections"
	"coursebook/internal/domain/outbox"
)

// Rows listed per status.
const (
	outboxDefaultLimit = 50
	outboxMaxLimit     = 200
)

// handleAdminOutbox handles GET /api/admin/outbox?status=&limit=
// Without a status it lists the undelivered entries.
func (s *Server) handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !slices.Contains(outbox.ValidStatuses, status) {
		s.badRequest(w, r, "status")
		return
	}
	limit := outboxDefaultLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > outboxMaxLimit {
			s.badRequest(w, r, "limit")
			return
		}
		limit = n
	}

	rows, err := projections.QueryGetOutbox(r.Context(), status, limit, projections.GetOutboxDeps{Outbox: s.stores.Outbox})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, map[string]any{"entries": rows}, notice{})
}

// handleAdminOutboxRetry handles POST /api/admin/outbox/{id}/retry: one
// immediate delivery attempt regardless of backoff.
func (s *Server) handleAdminOutboxRetry(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		s.deny(w, r, http.StatusNotFound, "request.not_found")
		return
	}
	entry, err := s.outbox.ProcessSingle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, map[string]any{
		"id":       entry.ID,
		"status":   entry.Status,
		"attempts": entry.Attempts,
		"error":    entry.ErrorMessage,
	}, noticeOf("notice.outbox_sent"))
}

// handleAdminOutboxAbandon handles POST /api/admin/outbox/{id}/abandon
func (s *Server) handleAdminOutboxAbandon(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		s.deny(w, r, http.StatusNotFound, "request.not_found")
		return
	}
	if err := s.outbox.AbandonEntry(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, map[string]string{"id": r.PathValue("id"), "status": outbox.StatusAbandoned}, noticeOf("notice.outbox_abandoned"))
}

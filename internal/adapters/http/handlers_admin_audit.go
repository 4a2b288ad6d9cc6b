package web

import (
	"net/http"

	"coursebook/internal/application/listutil"
	"coursebook/internal/application/projections"
)

// handleAdminAuditTrail handles GET /api/admin/audit
// PRE: admin session
// POST: One page of audit events, newest first, filtered by category,
// action, actor_id, resource_id and a from/to date range
func (s *Server) handleAdminAuditTrail(w http.ResponseWriter, r *http.Request) {
	params := listutil.ParseListParams(r.URL.Query(), nil, projections.AuditFilterKeys)
	res, err := projections.QueryGetAuditLog(r.Context(), params, projections.GetAuditLogDeps{
		Audit: s.stores.Audit,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}

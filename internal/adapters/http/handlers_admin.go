package web

import (
	"net/http"
	"strconv"
	"time"

	"coursebook/internal/application/projections"
)

const perfDefaultTopN = 10

// handleDashboard handles GET /api/admin/dashboard
// PRE: staff session
// POST: Figures for the coming week plus email queue health
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := projections.QueryGetDashboard(r.Context(), projections.GetDashboardDeps{
		Courses: s.stores.Courses,
		Lessons: s.stores.Lessons,
		Outbox:  s.stores.Outbox,
		Now:     s.now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}

// handlePerf handles GET /api/admin/perf?minutes=&top=
// Without minutes the window starts at server start.
func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since := s.started
	if v := q.Get("minutes"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 {
			s.badRequest(w, r, "minutes")
			return
		}
		since = s.now().Add(-time.Duration(m) * time.Minute)
	}
	topN := perfDefaultTopN
	if v := q.Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			s.badRequest(w, r, "top")
			return
		}
		topN = n
	}
	s.ok(w, r, http.StatusOK, s.perf.Snapshot(since, topN), notice{})
}

package web

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"coursebook/internal/application/listutil"
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/application/projections"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/lesson"
)

func (s *Server) viewCourse(c course.Course, lessons []lesson.Lesson) projections.CourseDetail {
	now := s.now()
	detail := projections.CourseDetail{
		CourseSummary: projections.SummarizeCourse(c, lessons, now),
		Lessons:       make([]projections.LessonView, 0, len(lessons)),
	}
	for _, l := range lessons {
		detail.Lessons = append(detail.Lessons, projections.ViewLesson(l, now))
	}
	return detail
}

// handleListCourses handles GET /api/courses: the public catalogue of active courses.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := projections.QueryGetCourseList(r.Context(), projections.GetCourseListQuery{
		Status: course.StatusActive,
		Search: strings.TrimSpace(q.Get("q")),
		Page:   listutil.ParsePageParams(q),
	}, s.courseListDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}

// handleAdminListCourses handles GET /api/admin/courses with an optional status filter.
func (s *Server) handleAdminListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !slices.Contains(course.ValidStatuses, status) {
		s.badRequest(w, r, "status")
		return
	}
	res, err := projections.QueryGetCourseList(r.Context(), projections.GetCourseListQuery{
		Status: status,
		Search: strings.TrimSpace(q.Get("q")),
		Page:   listutil.ParsePageParams(q),
	}, s.courseListDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}

// handleGetCourse handles GET /api/courses/{id}
func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	s.courseDetail(w, r, r.PathValue("id"))
}

func (s *Server) courseDetail(w http.ResponseWriter, r *http.Request, courseID string) {
	detail, err := projections.QueryGetCourseDetail(r.Context(), courseID, projections.GetCourseDetailDeps{
		Courses: s.stores.Courses,
		Lessons: s.stores.Lessons,
		Now:     s.now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, detail, notice{})
}

// handleCreateCourse handles POST /api/admin/courses
// PRE: staff session
// POST: 201 with the course and its generated lessons; 409 course.schedule_conflict lists overlaps
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := orchestrators.ExecuteCreateCourse(r.Context(), orchestrators.CreateCourseInput{
		Actor:        actorOf(r),
		CourseFields: fields,
	}, orchestrators.CreateCourseDeps{
		Courses:    s.stores.Courses,
		Audit:      s.stores.Audit,
		Location:   s.cfg.Location,
		Now:        s.now,
		GenerateID: s.newID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusCreated, s.viewCourse(res.Course, res.Lessons), noticeOf("notice.course_created"))
}

// handleUpdateCourse handles PUT (and form POST) /api/admin/courses/{id}.
// The body replaces every editable field.
func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := orchestrators.ExecuteUpdateCourse(r.Context(), orchestrators.UpdateCourseInput{
		Actor:        actorOf(r),
		ID:           r.PathValue("id"),
		CourseFields: fields,
	}, orchestrators.UpdateCourseDeps{
		Courses:    s.stores.Courses,
		Lessons:    s.stores.Lessons,
		Outbox:     s.stores.Outbox,
		Audit:      s.stores.Audit,
		Location:   s.cfg.Location,
		Now:        s.now,
		GenerateID: s.newID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, map[string]any{
		"course":      s.viewCourse(res.Course, res.Lessons),
		"regenerated": res.Regenerated,
		"promoted":    len(res.Promoted),
	}, noticeOf("notice.course_updated"))
}

// handleCancelCourse handles POST /api/admin/courses/{id}/cancel
func (s *Server) handleCancelCourse(w http.ResponseWriter, r *http.Request) {
	res, err := orchestrators.ExecuteCancelCourse(r.Context(), orchestrators.CancelCourseInput{
		Actor: actorOf(r),
		ID:    r.PathValue("id"),
	}, orchestrators.CancelCourseDeps{
		Courses:    s.stores.Courses,
		Lessons:    s.stores.Lessons,
		Outbox:     s.stores.Outbox,
		Audit:      s.stores.Audit,
		Location:   s.cfg.Location,
		Now:        s.now,
		GenerateID: s.newID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, map[string]any{
		"course":             projections.SummarizeCourse(res.Course, nil, s.now()),
		"cancelled_bookings": res.CancelledBookings,
		"notified":           res.Notified,
	}, noticeOf("notice.course_cancelled", res.Notified))
}

// handleDeleteCourse handles DELETE /api/admin/courses/{id} and its form twin.
func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	err := orchestrators.ExecuteDeleteCourse(r.Context(), orchestrators.DeleteCourseInput{
		Actor: actorOf(r),
		ID:    r.PathValue("id"),
	}, orchestrators.DeleteCourseDeps{
		Courses: s.stores.Courses,
		Audit:   s.stores.Audit,
		Now:     s.now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, map[string]string{"id": r.PathValue("id")}, noticeOf("notice.course_deleted"))
}

// handleCheckConflicts handles POST /api/admin/courses/check-conflicts.
// It answers 200 with the overlapping courses; an empty list means the slot is free.
func (s *Server) handleCheckConflicts(w http.ResponseWriter, r *http.Request) {
	var req conflictRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.checkConflicts(w, r, req)
}

func (s *Server) checkConflicts(w http.ResponseWriter, r *http.Request, req conflictRequest) {
	candidate, err := req.candidate()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	conflicts, err := orchestrators.FindScheduleConflicts(r.Context(), candidate, s.stores.Courses)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]projections.CourseSummary, 0, len(conflicts))
	for _, c := range conflicts {
		views = append(views, projections.SummarizeCourse(c, nil, s.now()))
	}
	s.ok(w, r, http.StatusOK, map[string]any{
		"conflict":  len(views) > 0,
		"conflicts": views,
	}, notice{})
}

// handleExportCourseBookings handles GET /api/admin/courses/{id}/bookings.csv
func (s *Server) handleExportCourseBookings(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	c, err := projections.ExportCourseBookingsCSV(r.Context(), r.PathValue("id"), &buf, projections.ExportCourseBookingsDeps{
		Courses:  s.stores.Courses,
		Lessons:  s.stores.Lessons,
		Bookings: s.stores.Bookings,
		Location: s.cfg.Location,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "course-"+c.ID+"-bookings.csv"))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("export_write_failed", "course_id", c.ID, "error", err)
	}
}

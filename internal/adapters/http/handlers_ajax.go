package web

import (
	"log/slog"
	"net/http"
	"net/url"

	"coursebook/internal/adapters/http/middleware"
)

// ajaxRequest is the union of the fields any /ajax action reads.
type ajaxRequest struct {
	Action         string `json:"action"`
	LessonID       string `json:"lesson_id"`
	BookingID      string `json:"booking_id"`
	CourseID       string `json:"course_id"`
	CustomerID     string `json:"customer_id"`
	Waitlist       bool   `json:"waitlist"`
	DayOfWeek      int    `json:"day_of_week"`
	StartTime      string `json:"start_time"`
	LessonDuration int    `json:"lesson_duration"`
	customerRequest
}

func (req *ajaxRequest) bindForm(f url.Values) error {
	req.Action = f.Get("action")
	req.LessonID = f.Get("lesson_id")
	req.BookingID = f.Get("booking_id")
	req.CourseID = f.Get("course_id")
	req.CustomerID = f.Get("customer_id")
	req.Waitlist = formBool(f, "waitlist")
	req.StartTime = f.Get("start_time")
	var err error
	if req.DayOfWeek, err = formInt(f, "day_of_week"); err != nil {
		return err
	}
	if req.LessonDuration, err = formInt(f, "lesson_duration"); err != nil {
		return err
	}
	return req.customerRequest.bindForm(f)
}

// ajaxAccess is who may call an action.
type ajaxAccess int

const (
	ajaxPublic ajaxAccess = iota
	ajaxSession
	ajaxStaff
)

type ajaxAction struct {
	access ajaxAccess
	run    func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest)
}

var ajaxActions = map[string]ajaxAction{
	"book_lesson": {ajaxPublic, func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest) {
		s.createBooking(w, r, bookingRequest{
			LessonID:        req.LessonID,
			CustomerID:      req.CustomerID,
			customerRequest: req.customerRequest,
			Waitlist:        req.Waitlist,
		})
	}},
	"cancel_booking": {ajaxSession, func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest) {
		s.cancelBooking(w, r, req.BookingID)
	}},
	"enroll_course": {ajaxPublic, func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest) {
		s.enroll(w, r, req.CourseID, enrollRequest{CustomerID: req.CustomerID, customerRequest: req.customerRequest})
	}},
	"unenroll_course": {ajaxSession, func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest) {
		s.unenroll(w, r, req.CourseID, enrollRequest{CustomerID: req.CustomerID, customerRequest: req.customerRequest})
	}},
	"course_lessons": {ajaxPublic, func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest) {
		s.courseDetail(w, r, req.CourseID)
	}},
	"lesson_bookings": {ajaxStaff, func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest) {
		s.lessonBookings(w, r, req.LessonID)
	}},
	"check_conflicts": {ajaxStaff, func(s *Server, w http.ResponseWriter, r *http.Request, req ajaxRequest) {
		s.checkConflicts(w, r, conflictRequest{
			CourseID:       req.CourseID,
			DayOfWeek:      req.DayOfWeek,
			StartTime:      req.StartTime,
			LessonDuration: req.LessonDuration,
		})
	}},
}

// handleAjax handles POST /ajax, dispatching on the action field the way
// the booking widgets post to it.
func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	var req ajaxRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	action, ok := ajaxActions[req.Action]
	if !ok {
		slog.Warn("ajax_unknown_action", "action", req.Action)
		s.deny(w, r, http.StatusBadRequest, "request.unknown_action")
		return
	}

	sess, loggedIn := middleware.GetSessionFromContext(r.Context())
	switch {
	case action.access >= ajaxSession && !loggedIn:
		s.deny(w, r, http.StatusUnauthorized, "auth.required")
		return
	case action.access == ajaxStaff && !sess.CanManage():
		s.deny(w, r, http.StatusForbidden, "auth.forbidden")
		return
	}
	action.run(s, w, r, req)
}

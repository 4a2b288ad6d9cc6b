package web

import (
	"net/http"

	"coursebook/internal/adapters/http/middleware"
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/application/projections"
	"coursebook/internal/domain/account"
	"coursebook/internal/domain/apperr"
)

type bookingResultView struct {
	Booking         projections.BookingView `json:"booking"`
	Lesson          projections.LessonView  `json:"lesson"`
	Waitlisted      bool                    `json:"waitlisted"`
	CustomerCreated bool                    `json:"customer_created"`
}

type cancelResultView struct {
	Booking          projections.BookingView  `json:"booking"`
	AlreadyCancelled bool                     `json:"already_cancelled"`
	Promoted         *projections.BookingView `json:"promoted,omitempty"`
}

type lessonFailureView struct {
	LessonID string `json:"lesson_id"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

type enrollmentView struct {
	RegistrationID string              `json:"registration_id,omitempty"`
	CourseID       string              `json:"course_id"`
	CustomerID     string              `json:"customer_id"`
	Succeeded      []string            `json:"succeeded"`
	Failed         []lessonFailureView `json:"failed"`
}

// party is the customer a booking request acts for.
type party struct {
	customerID string
	fields     orchestrators.CustomerFields
	ownerID    string // set when the caller may only act for this customer
	guest      bool   // no session; may not act for a customer with a login
}

// resolveParty applies the booking permissions: staff act for anyone,
// customers only for themselves, guests for the details they submit as long
// as the email does not belong to a customer with a login.
func resolveParty(r *http.Request, customerID string, fields orchestrators.CustomerFields) party {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	switch {
	case !ok:
		return party{fields: fields, guest: true}
	case sess.CanManage():
		return party{customerID: customerID, fields: fields}
	case sess.Role == account.RoleCustomer && sess.CustomerID != "":
		return party{customerID: sess.CustomerID, ownerID: sess.CustomerID}
	default:
		fields.Email = sess.Email
		return party{fields: fields}
	}
}

func (s *Server) viewEnrollment(r *http.Request, res orchestrators.EnrollmentResult) enrollmentView {
	tag := s.catalog.Resolve(r)
	v := enrollmentView{
		RegistrationID: res.RegistrationID,
		CourseID:       res.CourseID,
		CustomerID:     res.CustomerID,
		Succeeded:      res.Succeeded,
		Failed:         make([]lessonFailureView, 0, len(res.Failed)),
	}
	if v.Succeeded == nil {
		v.Succeeded = []string{}
	}
	for _, f := range res.Failed {
		v.Failed = append(v.Failed, lessonFailureView{
			LessonID: f.LessonID,
			Reason:   f.Reason,
			Message:  s.catalog.Translate(tag, f.Reason),
		})
	}
	return v
}

// handleCreateBooking handles POST /api/bookings
// PRE: lesson_id and either a session, customer_id (staff) or name and email
// POST: 201 with the booking; a full lesson answers 409 lesson.full unless waitlist is set
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.createBooking(w, r, req)
}

func (s *Server) createBooking(w http.ResponseWriter, r *http.Request, req bookingRequest) {
	if req.LessonID == "" {
		s.fail(w, r, apperr.Validation("booking.lesson_required", "lesson_id is required"))
		return
	}
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fields.Notes = ""
	p := resolveParty(r, req.CustomerID, fields)

	res, err := orchestrators.ExecuteCreateBooking(r.Context(), orchestrators.CreateBookingInput{
		Actor:      actorOf(r),
		LessonID:   req.LessonID,
		CustomerID: p.customerID,
		Customer:   p.fields,
		Notes:      req.Notes,
		Waitlist:   req.Waitlist,
		Guest:      p.guest,
	}, s.bookingDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	key := "notice.booking_created"
	if res.Waitlisted {
		key = "notice.booking_waitlisted"
	}
	s.ok(w, r, http.StatusCreated, bookingResultView{
		Booking:         projections.ViewBooking(res.Booking),
		Lesson:          projections.ViewLesson(res.Lesson, s.now()),
		Waitlisted:      res.Waitlisted,
		CustomerCreated: res.CustomerCreated,
	}, noticeOf(key))
}

// handleCancelBooking handles POST /api/bookings/{id}/cancel
// Cancelling an already-cancelled booking succeeds without side effects.
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	s.cancelBooking(w, r, r.PathValue("id"))
}

func (s *Server) cancelBooking(w http.ResponseWriter, r *http.Request, bookingID string) {
	if bookingID == "" {
		s.badRequest(w, r, "booking_id")
		return
	}
	p := resolveParty(r, "", orchestrators.CustomerFields{})
	res, err := orchestrators.ExecuteCancelBooking(r.Context(), orchestrators.CancelBookingInput{
		Actor:     actorOf(r),
		BookingID: bookingID,
		OwnerID:   p.ownerID,
	}, s.bookingDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := cancelResultView{Booking: projections.ViewBooking(res.Booking), AlreadyCancelled: res.AlreadyCancelled}
	if res.Promoted != nil {
		promoted := projections.ViewBooking(*res.Promoted)
		view.Promoted = &promoted
	}
	s.ok(w, r, http.StatusOK, view, noticeOf("notice.booking_cancelled"))
}

// handleMyBookings handles GET /api/me/bookings for customer sessions.
func (s *Server) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	if sess.CustomerID == "" {
		s.fail(w, r, apperr.ErrCustomerNotFound)
		return
	}
	res, err := projections.QueryGetCustomerBookings(r.Context(), sess.CustomerID, s.customerBookingsDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}

// handleLessonBookings handles GET /api/admin/lessons/{id}/bookings
func (s *Server) handleLessonBookings(w http.ResponseWriter, r *http.Request) {
	s.lessonBookings(w, r, r.PathValue("id"))
}

func (s *Server) lessonBookings(w http.ResponseWriter, r *http.Request, lessonID string) {
	res, err := projections.QueryGetLessonBookings(r.Context(), lessonID, projections.GetLessonBookingsDeps{
		Lessons:  s.stores.Lessons,
		Bookings: s.stores.Bookings,
		Now:      s.now,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, res, notice{})
}

// handleEnroll handles POST /api/courses/{id}/enroll: book every open lesson
// of the course. Partial success answers 200 with the failed lessons listed.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.enroll(w, r, r.PathValue("id"), req)
}

func (s *Server) enroll(w http.ResponseWriter, r *http.Request, courseID string, req enrollRequest) {
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := resolveParty(r, req.CustomerID, fields)
	res, err := orchestrators.ExecuteEnrollCustomer(r.Context(), orchestrators.EnrollmentInput{
		Actor:      actorOf(r),
		CourseID:   courseID,
		CustomerID: p.customerID,
		Customer:   p.fields,
		OwnerID:    p.ownerID,
		Guest:      p.guest,
	}, s.enrollmentDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	total := len(res.Succeeded) + len(res.Failed)
	s.ok(w, r, http.StatusOK, s.viewEnrollment(r, res), noticeOf("notice.enrolled", len(res.Succeeded), total))
}

// handleUnenroll handles POST /api/courses/{id}/unenroll: cancel every
// active booking the customer holds in the course.
func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.unenroll(w, r, r.PathValue("id"), req)
}

func (s *Server) unenroll(w http.ResponseWriter, r *http.Request, courseID string, req enrollRequest) {
	fields, err := req.fields()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := resolveParty(r, req.CustomerID, fields)
	res, err := orchestrators.ExecuteUnenrollCustomer(r.Context(), orchestrators.EnrollmentInput{
		Actor:      actorOf(r),
		CourseID:   courseID,
		CustomerID: p.customerID,
		Customer:   p.fields,
		OwnerID:    p.ownerID,
	}, s.enrollmentDeps())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, http.StatusOK, s.viewEnrollment(r, res), noticeOf("notice.unenrolled", len(res.Succeeded)))
}

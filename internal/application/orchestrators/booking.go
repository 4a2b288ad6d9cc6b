package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/booking"
	"coursebook/internal/domain/customer"
	"coursebook/internal/domain/lesson"
)

// CreateBookingInput carries input for ExecuteCreateBooking.
// CustomerID wins over the Customer snapshot when both are set.
type CreateBookingInput struct {
	Actor      audit.Actor
	LessonID   string
	CustomerID string
	Customer   CustomerFields
	Notes      string
	Waitlist   bool // join the waitlist instead of failing when full
	Guest      bool // caller has no session
}

// BookingDeps holds dependencies for the booking commands.
type BookingDeps struct {
	Courses    CourseStore
	Lessons    LessonStore
	Customers  CustomerStore
	Bookings   BookingStore
	Outbox     OutboxWriter
	Audit      AuditWriter
	Location   *time.Location
	Now        func() time.Time
	GenerateID func() string
}

// BookingResult describes a created booking.
type BookingResult struct {
	Booking         booking.Booking
	Lesson          lesson.Lesson // state after the seat was taken
	Waitlisted      bool
	CustomerCreated bool
}

// ExecuteCreateBooking books a customer into one lesson.
// PRE: LessonID set; CustomerID or a customer email given
// POST: Booking confirmed and lesson.current_bookings incremented by one,
// or booking waitlisted with the counter untouched
// INVARIANT: current_bookings <= max_capacity and one active booking per (lesson, email)
func ExecuteCreateBooking(ctx context.Context, input CreateBookingInput, deps BookingDeps) (BookingResult, error) {
	now := clock(deps.Now)
	newID := idGen(deps.GenerateID)

	l, err := openLesson(ctx, deps, input.LessonID, now)
	if err != nil {
		return BookingResult{}, err
	}
	cust, isNew, err := resolveCustomer(ctx, deps.Customers, input.CustomerID, input.Customer, input.Guest, newID, now)
	if err != nil {
		return BookingResult{}, err
	}
	if err := checkBookable(ctx, deps, l, cust.Email, input.Waitlist); err != nil {
		slog.Info("booking_event", "event", "booking_rejected", "lesson_id", l.ID, "reason", apperr.KeyOf(err))
		return BookingResult{}, err
	}
	if isNew {
		if cust, err = persistCustomer(ctx, deps.Customers, cust); err != nil {
			return BookingResult{}, err
		}
	}

	res, err := placeBooking(ctx, deps, l, cust, input.Notes, input.Waitlist, newID, now)
	if err != nil {
		slog.Info("booking_event", "event", "booking_rejected", "lesson_id", l.ID, "reason", apperr.KeyOf(err))
		return BookingResult{}, err
	}
	res.CustomerCreated = isNew

	if res.Waitlisted {
		queueEmail(ctx, deps.Outbox, newID, now, waitlistEmail(res.Booking, res.Lesson, deps.Location))
	} else {
		queueEmail(ctx, deps.Outbox, newID, now, bookingConfirmedEmail(res.Booking, res.Lesson, deps.Location))
	}
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryBooking, audit.ActionCreate, now).
		WithResource("booking", res.Booking.ID).
		WithDescription(fmt.Sprintf("%s booked %s (%s)", cust.Name, l.Title, res.Booking.Status)))
	return res, nil
}

// openLesson loads a lesson and checks it can take bookings at all.
func openLesson(ctx context.Context, deps BookingDeps, lessonID string, now time.Time) (lesson.Lesson, error) {
	if lessonID == "" {
		return lesson.Lesson{}, invalid(booking.ErrEmptyLessonID)
	}
	l, err := deps.Lessons.GetByID(ctx, lessonID)
	if err != nil {
		return lesson.Lesson{}, err
	}
	if !l.IsActive() {
		return lesson.Lesson{}, apperr.ErrLessonInactive
	}
	if l.HasStarted(now) {
		return lesson.Lesson{}, apperr.ErrLessonStarted
	}
	if deps.Courses != nil {
		c, err := deps.Courses.GetByID(ctx, l.CourseID)
		if err != nil {
			return lesson.Lesson{}, err
		}
		if !c.IsActive() {
			return lesson.Lesson{}, apperr.ErrCourseNotActive
		}
	}
	return l, nil
}

// checkBookable gives the precise rejection for a lesson before anything is
// written: a full lesson (unless joining the waitlist) first, then an
// existing active booking for the email.
func checkBookable(ctx context.Context, deps BookingDeps, l lesson.Lesson, email string, waitlist bool) error {
	if l.IsFull() && !waitlist {
		return apperr.ErrLessonFull
	}
	if _, found, err := deps.Bookings.FindActive(ctx, l.ID, email); err != nil {
		return fmt.Errorf("find booking: %w", err)
	} else if found {
		return apperr.ErrDuplicateBooking
	}
	return nil
}

// placeBooking writes the booking, falling back to the waitlist when asked.
// Reserve repeats the checkBookable rules atomically.
func placeBooking(ctx context.Context, deps BookingDeps, l lesson.Lesson, cust customer.Customer, notes string, waitlist bool, newID func() string, now time.Time) (BookingResult, error) {
	b := booking.Booking{
		ID:            newID(),
		LessonID:      l.ID,
		CustomerID:    cust.ID,
		CustomerEmail: cust.Email,
		CustomerName:  cust.Name,
		CustomerPhone: cust.Phone,
		Status:        booking.StatusConfirmed,
		Notes:         notes,
		CreatedAt:     now,
	}
	if err := b.Validate(); err != nil {
		return BookingResult{}, invalid(err)
	}

	if !l.IsFull() {
		after, err := deps.Bookings.Reserve(ctx, b)
		if err == nil {
			slog.Info("booking_event", "event", "booking_created", "booking_id", b.ID, "lesson_id", l.ID,
				"current_bookings", after.CurrentBookings, "max_capacity", after.MaxCapacity)
			return BookingResult{Booking: b, Lesson: after}, nil
		}
		if !errors.Is(err, apperr.ErrLessonFull) {
			return BookingResult{}, err
		}
	}
	if !waitlist {
		return BookingResult{}, apperr.ErrLessonFull
	}

	b.Status = booking.StatusWaitlist
	if err := deps.Bookings.AddToWaitlist(ctx, b); err != nil {
		return BookingResult{}, err
	}
	slog.Info("booking_event", "event", "booking_waitlisted", "booking_id", b.ID, "lesson_id", l.ID)
	return BookingResult{Booking: b, Lesson: l, Waitlisted: true}, nil
}

// CancelBookingInput carries input for ExecuteCancelBooking.
// When OwnerID is set the booking must belong to that customer.
type CancelBookingInput struct {
	Actor     audit.Actor
	BookingID string
	OwnerID   string
}

// CancelBookingResult describes the outcome of a cancellation.
type CancelBookingResult struct {
	Booking          booking.Booking
	AlreadyCancelled bool
	Promoted         *booking.Booking
}

// ExecuteCancelBooking cancels a booking and frees its seat.
// Cancelling an already-cancelled booking is a no-op reported through
// AlreadyCancelled.
// PRE: BookingID set
// POST: Booking cancelled; counter decremented by one (floored at 0) if it held a seat;
// the oldest waitlisted booking takes the seat when the lesson is still open
func ExecuteCancelBooking(ctx context.Context, input CancelBookingInput, deps BookingDeps) (CancelBookingResult, error) {
	now := clock(deps.Now)
	newID := idGen(deps.GenerateID)

	b, err := deps.Bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return CancelBookingResult{}, err
	}
	if input.OwnerID != "" && b.CustomerID != input.OwnerID {
		return CancelBookingResult{}, apperr.ErrForbidden
	}

	rel, err := deps.Bookings.Release(ctx, b.ID, now)
	if err != nil {
		return CancelBookingResult{}, err
	}
	result := CancelBookingResult{Booking: rel.Booking, AlreadyCancelled: rel.AlreadyCancelled, Promoted: rel.Promoted}
	if rel.AlreadyCancelled {
		slog.Info("booking_event", "event", "booking_already_cancelled", "booking_id", b.ID)
		return result, nil
	}

	slog.Info("booking_event", "event", "booking_cancelled", "booking_id", b.ID, "lesson_id", b.LessonID,
		"promoted", rel.Promoted != nil)
	notifyRelease(ctx, deps, rel.Booking, rel.Promoted, true, newID, now)
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryBooking, audit.ActionCancel, now).
		WithResource("booking", b.ID).
		WithDescription(fmt.Sprintf("Cancelled booking of %s", b.CustomerName)))
	return result, nil
}

// notifyRelease queues the emails that follow a released seat.
func notifyRelease(ctx context.Context, deps BookingDeps, cancelled booking.Booking, promoted *booking.Booking, notifyCustomer bool, newID func() string, now time.Time) {
	if deps.Outbox == nil {
		return
	}
	l, err := deps.Lessons.GetByID(ctx, cancelled.LessonID)
	if err != nil {
		slog.Error("email_event", "event", "lesson_lookup_failed", "lesson_id", cancelled.LessonID, "error", err)
		return
	}
	if notifyCustomer {
		queueEmail(ctx, deps.Outbox, newID, now, bookingCancelledEmail(cancelled, l, deps.Location))
	}
	if promoted != nil {
		queueEmail(ctx, deps.Outbox, newID, now, waitlistPromotedEmail(*promoted, l, deps.Location))
	}
}

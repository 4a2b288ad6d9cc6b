package orchestrators

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/lesson"
	"coursebook/internal/domain/registration"
)

// EnrollmentInput carries input for ExecuteEnrollCustomer and ExecuteUnenrollCustomer.
type EnrollmentInput struct {
	Actor      audit.Actor
	CourseID   string
	CustomerID string
	Customer   CustomerFields // used when CustomerID is empty
	OwnerID    string         // when set, the resolved customer must match
	Guest      bool           // caller has no session
}

// EnrollmentDeps holds dependencies for the enrollment commands.
type EnrollmentDeps struct {
	BookingDeps
	Registrations RegistrationWriter
}

// EnrollmentResult is the per-lesson accounting of a bulk operation.
type EnrollmentResult struct {
	RegistrationID string
	CourseID       string
	CustomerID     string
	Succeeded      []string
	Failed         []registration.LessonFailure
}

// ExecuteEnrollCustomer books a customer into every open lesson of a course.
// The operation is best-effort: each lesson is booked independently and
// failures are collected rather than rolled back.
// PRE: course exists and is active
// POST: One booking per succeeded lesson; a CourseRegistration records the outcome;
// one summary email is queued when anything was booked
func ExecuteEnrollCustomer(ctx context.Context, input EnrollmentInput, deps EnrollmentDeps) (EnrollmentResult, error) {
	now := clock(deps.Now)
	newID := idGen(deps.GenerateID)

	c, err := deps.Courses.GetByID(ctx, input.CourseID)
	if err != nil {
		return EnrollmentResult{}, err
	}
	if !c.IsActive() {
		return EnrollmentResult{}, apperr.ErrCourseNotActive
	}
	cust, isNew, err := resolveCustomer(ctx, deps.Customers, input.CustomerID, input.Customer, input.Guest, newID, now)
	if err != nil {
		return EnrollmentResult{}, err
	}
	if input.OwnerID != "" && cust.ID != input.OwnerID {
		return EnrollmentResult{}, apperr.ErrForbidden
	}

	lessons, err := deps.Lessons.ListByCourse(ctx, c.ID)
	if err != nil {
		return EnrollmentResult{}, fmt.Errorf("list lessons: %w", err)
	}
	var open []lesson.Lesson
	for _, l := range lessons {
		if l.IsActive() && !l.HasStarted(now) {
			open = append(open, l)
		}
	}
	if len(open) == 0 {
		return EnrollmentResult{}, apperr.ErrNoOpenLessons
	}
	if isNew {
		if cust, err = persistCustomer(ctx, deps.Customers, cust); err != nil {
			return EnrollmentResult{}, err
		}
	}

	result := EnrollmentResult{CourseID: c.ID, CustomerID: cust.ID}
	var booked []lesson.Lesson
	for _, l := range open {
		err := checkBookable(ctx, deps.BookingDeps, l, cust.Email, false)
		var res BookingResult
		if err == nil {
			res, err = placeBooking(ctx, deps.BookingDeps, l, cust, "", false, newID, now)
		}
		if err != nil {
			result.Failed = append(result.Failed, registration.LessonFailure{LessonID: l.ID, Reason: apperr.KeyOf(err)})
			continue
		}
		result.Succeeded = append(result.Succeeded, l.ID)
		booked = append(booked, res.Lesson)
	}

	result.RegistrationID = saveRegistration(ctx, deps.Registrations, registration.KindEnroll, result, newID, now)
	if len(booked) > 0 {
		queueEmail(ctx, deps.Outbox, newID, now,
			enrollmentSummaryEmail(c, cust.Name, cust.Email, booked, len(result.Failed), deps.Location))
	}

	slog.Info("booking_event", "event", "customer_enrolled", "course_id", c.ID, "customer_id", cust.ID,
		"succeeded", len(result.Succeeded), "failed", len(result.Failed))
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryBooking, audit.ActionEnroll, now).
		WithResource("course", c.ID).
		WithDescription(fmt.Sprintf("Enrolled %s in %q: %d booked, %d failed", cust.Name, c.Title, len(result.Succeeded), len(result.Failed))).
		WithMetadata(failuresJSON(result.Failed)))
	return result, nil
}

// ExecuteUnenrollCustomer cancels every active booking a customer holds on
// a course's lessons, with the same per-lesson accounting as enrollment.
// PRE: customer has at least one active booking in the course
// POST: Bookings cancelled and seats released; waitlisted customers promoted and notified
func ExecuteUnenrollCustomer(ctx context.Context, input EnrollmentInput, deps EnrollmentDeps) (EnrollmentResult, error) {
	now := clock(deps.Now)
	newID := idGen(deps.GenerateID)

	c, err := deps.Courses.GetByID(ctx, input.CourseID)
	if err != nil {
		return EnrollmentResult{}, err
	}
	cust, err := findCustomer(ctx, deps.Customers, input.CustomerID, input.Customer.Email)
	if err != nil {
		return EnrollmentResult{}, err
	}
	if input.OwnerID != "" && cust.ID != input.OwnerID {
		return EnrollmentResult{}, apperr.ErrForbidden
	}

	active, err := deps.Bookings.ListActiveByCourseAndCustomer(ctx, c.ID, cust.ID)
	if err != nil {
		return EnrollmentResult{}, fmt.Errorf("list bookings: %w", err)
	}
	if len(active) == 0 {
		return EnrollmentResult{}, apperr.ErrNotEnrolled
	}

	result := EnrollmentResult{CourseID: c.ID, CustomerID: cust.ID}
	for _, b := range active {
		rel, err := deps.Bookings.Release(ctx, b.ID, now)
		if err != nil {
			result.Failed = append(result.Failed, registration.LessonFailure{LessonID: b.LessonID, Reason: apperr.KeyOf(err)})
			continue
		}
		result.Succeeded = append(result.Succeeded, b.LessonID)
		if rel.Promoted != nil {
			notifyRelease(ctx, deps.BookingDeps, rel.Booking, rel.Promoted, false, newID, now)
		}
	}

	result.RegistrationID = saveRegistration(ctx, deps.Registrations, registration.KindUnenroll, result, newID, now)

	slog.Info("booking_event", "event", "customer_unenrolled", "course_id", c.ID, "customer_id", cust.ID,
		"succeeded", len(result.Succeeded), "failed", len(result.Failed))
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryBooking, audit.ActionUnenroll, now).
		WithResource("course", c.ID).
		WithDescription(fmt.Sprintf("Unenrolled %s from %q: %d cancelled, %d failed", cust.Name, c.Title, len(result.Succeeded), len(result.Failed))).
		WithMetadata(failuresJSON(result.Failed)))
	return result, nil
}

// saveRegistration writes the CourseRegistration record and returns its ID,
// or "" when it could not be stored.
func saveRegistration(ctx context.Context, w RegistrationWriter, kind string, r EnrollmentResult, newID func() string, now time.Time) string {
	if w == nil {
		return ""
	}
	rec := registration.CourseRegistration{
		ID:            newID(),
		CourseID:      r.CourseID,
		CustomerID:    r.CustomerID,
		Kind:          kind,
		Succeeded:     len(r.Succeeded),
		Failed:        len(r.Failed),
		FailedLessons: r.Failed,
		CreatedAt:     now,
	}
	if err := rec.Validate(); err != nil {
		slog.Error("registration_event", "event", "invalid_record", "course_id", r.CourseID, "error", err)
		return ""
	}
	if err := w.Save(ctx, rec); err != nil {
		slog.Error("registration_event", "event", "save_failed", "course_id", r.CourseID, "error", err)
		return ""
	}
	return rec.ID
}

func failuresJSON(failed []registration.LessonFailure) string {
	if len(failed) == 0 {
		return ""
	}
	b, err := json.Marshal(map[string]any{"failed_lessons": failed})
	if err != nil {
		return ""
	}
	return string(b)
}

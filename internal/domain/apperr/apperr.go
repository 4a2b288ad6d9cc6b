// Package apperr classifies business failures so the HTTP boundary can turn
// them into status codes and localized messages.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is the coarse failure class of an error.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindCapacity   Kind = "capacity"
	KindDuplicate  Kind = "duplicate"
	KindPermission Kind = "permission"
	KindAuth       Kind = "unauthenticated"
	KindConflict   Kind = "conflict"
	KindDatabase   Kind = "database"
)

// Error is a classified application error.
// Key is the stable message key used for localization (e.g. "lesson.full").
type Error struct {
	Kind    Kind
	Key     string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind and Key.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Key == t.Key
}

// New creates a classified error.
func New(kind Kind, key, message string) *Error {
	return &Error{Kind: kind, Key: key, Message: message}
}

// Wrap classifies cause under the given sentinel, keeping the sentinel's kind and key.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Key: sentinel.Key, Message: sentinel.Message, Cause: cause}
}

// Validation creates a validation error with a specific key.
func Validation(key, message string) *Error {
	return New(KindValidation, key, message)
}

// Database wraps a storage failure.
func Database(cause error) *Error {
	return &Error{Kind: KindDatabase, Key: "database.error", Message: "database operation failed", Cause: cause}
}

// KindOf returns the kind of err, or KindDatabase for unclassified errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindDatabase
}

// KeyOf returns the message key of err, or "database.error" for unclassified errors.
func KeyOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Key
	}
	return "database.error"
}

// HTTPStatus maps a kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindCapacity, KindDuplicate, KindConflict:
		return http.StatusConflict
	case KindPermission:
		return http.StatusForbidden
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels shared across the application layer.
var (
	ErrCourseNotFound   = New(KindNotFound, "course.not_found", "course not found")
	ErrLessonNotFound   = New(KindNotFound, "lesson.not_found", "lesson not found")
	ErrCustomerNotFound = New(KindNotFound, "customer.not_found", "customer not found")
	ErrBookingNotFound  = New(KindNotFound, "booking.not_found", "booking not found")
	ErrAccountNotFound  = New(KindNotFound, "account.not_found", "account not found")
	ErrOutboxNotFound   = New(KindNotFound, "outbox.not_found", "outbox entry not found")

	ErrLessonInactive   = New(KindValidation, "lesson.inactive", "lesson is not open for booking")
	ErrLessonStarted    = New(KindValidation, "lesson.started", "lesson has already started")
	ErrLessonFull       = New(KindCapacity, "lesson.full", "lesson is fully booked")
	ErrCapacityBelowUse = New(KindCapacity, "course.capacity_below_bookings", "capacity is below existing bookings")

	ErrDuplicateBooking = New(KindDuplicate, "booking.duplicate", "customer already booked this lesson")
	ErrEmailTaken       = New(KindDuplicate, "customer.email_taken", "email is already registered")

	ErrScheduleConflict    = New(KindConflict, "course.schedule_conflict", "course overlaps an existing course")
	ErrCourseHasBookings   = New(KindConflict, "course.has_bookings", "course has active bookings")
	ErrCustomerHasBookings = New(KindConflict, "customer.has_bookings", "customer has active bookings")
	ErrCourseNotActive     = New(KindValidation, "course.inactive", "course is not active")
	ErrNoOpenLessons       = New(KindValidation, "course.no_open_lessons", "course has no lessons open for booking")
	ErrNotEnrolled         = New(KindNotFound, "registration.not_enrolled", "customer has no active bookings in this course")

	ErrForbidden          = New(KindPermission, "auth.forbidden", "not allowed")
	ErrUnauthenticated    = New(KindAuth, "auth.required", "login required")
	ErrInvalidCredentials = New(KindAuth, "auth.invalid_credentials", "invalid email or password")
	ErrAccountLocked      = New(KindAuth, "auth.locked", "account is temporarily locked")
)

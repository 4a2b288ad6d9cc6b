package registration

import (
	"errors"
	"time"
)

// Kind constants
const (
	KindEnroll   = "enroll"
	KindUnenroll = "unenroll"
)

// Domain errors
var (
	ErrEmptyCourseID   = errors.New("course ID cannot be empty")
	ErrEmptyCustomerID = errors.New("customer ID cannot be empty")
	ErrInvalidKind     = errors.New("kind must be enroll or unenroll")
)

// LessonFailure records why one lesson of a bulk operation was skipped.
type LessonFailure struct {
	LessonID string `json:"lesson_id"`
	Reason   string `json:"reason"`
}

// CourseRegistration is the audit record of one bulk enroll/unenroll attempt.
type CourseRegistration struct {
	ID            string
	CourseID      string
	CustomerID    string
	Kind          string
	Succeeded     int
	Failed        int
	FailedLessons []LessonFailure
	CreatedAt     time.Time
}

// Validate checks if the CourseRegistration has valid data.
// PRE: struct is populated
// POST: Returns nil if valid
// INVARIANT: Failed == len(FailedLessons)
func (r *CourseRegistration) Validate() error {
	if r.CourseID == "" {
		return ErrEmptyCourseID
	}
	if r.CustomerID == "" {
		return ErrEmptyCustomerID
	}
	if r.Kind != KindEnroll && r.Kind != KindUnenroll {
		return ErrInvalidKind
	}
	if r.Failed != len(r.FailedLessons) {
		return errors.New("failed count must match failed lessons")
	}
	return nil
}

// Outcome returns "complete", "partial" or "failed" for display.
func (r *CourseRegistration) Outcome() string {
	switch {
	case r.Failed == 0:
		return "complete"
	case r.Succeeded == 0:
		return "failed"
	default:
		return "partial"
	}
}

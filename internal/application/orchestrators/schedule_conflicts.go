package orchestrators

import (
	"context"
	"fmt"
	"strings"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/course"
)

// ConflictError reports the courses a schedule overlaps.
// It unwraps to apperr.ErrScheduleConflict.
type ConflictError struct {
	Conflicts []course.Course
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	titles := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		titles[i] = fmt.Sprintf("%s (%s)", c.Title, c.StartTime)
	}
	return apperr.ErrScheduleConflict.Message + ": " + strings.Join(titles, ", ")
}

// Unwrap returns the classified sentinel.
func (e *ConflictError) Unwrap() error {
	return apperr.ErrScheduleConflict
}

// CheckScheduleConflicts returns the existing courses whose weekly window
// overlaps the candidate's. Two windows on the same day overlap when
// start1 < end2 and end1 > start2.
// PRE: candidate has a parseable StartTime
// POST: Returns conflicts in input order; empty means no conflict
// INVARIANT: the candidate itself (same ID) and non-active courses never conflict
func CheckScheduleConflicts(candidate course.Course, existing []course.Course) []course.Course {
	w := candidate.Window()
	var out []course.Course
	for _, other := range existing {
		if other.ID == candidate.ID || !other.IsActive() {
			continue
		}
		if w.Overlaps(other.Window()) {
			out = append(out, other)
		}
	}
	return out
}

// CourseLister lists the active courses held on a weekday.
type CourseLister interface {
	ListActiveByDay(ctx context.Context, dayOfWeek int) ([]course.Course, error)
}

// FindScheduleConflicts loads the active courses on the candidate's day and
// checks them against it.
func FindScheduleConflicts(ctx context.Context, candidate course.Course, store CourseLister) ([]course.Course, error) {
	sameDay, err := store.ListActiveByDay(ctx, candidate.DayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("list courses on day %d: %w", candidate.DayOfWeek, err)
	}
	return CheckScheduleConflicts(candidate, sameDay), nil
}

func ensureNoConflicts(ctx context.Context, c course.Course, store CourseLister) error {
	if !c.IsActive() {
		return nil
	}
	conflicts, err := FindScheduleConflicts(ctx, c, store)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

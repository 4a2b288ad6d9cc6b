package projections

import (
	"context"
	"time"

	coursestore "coursebook/internal/adapters/storage/course"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/outbox"
)

// DashboardHorizon is how far ahead the dashboard looks for lessons.
const DashboardHorizon = 7 * 24 * time.Hour

// dashboardLessonLimit caps the lessons read for the horizon.
const dashboardLessonLimit = 500

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	Courses CourseStore
	Lessons LessonStore
	Outbox  OutboxStore // optional: nil skips the email queue figures
	Now     func() time.Time
}

// DashboardResult carries the output of the dashboard projection.
type DashboardResult struct {
	ActiveCourses     int          `json:"active_courses"`
	UpcomingLessons   int          `json:"upcoming_lessons"`
	ConfirmedBookings int          `json:"confirmed_bookings"`
	Capacity          int          `json:"capacity"`
	FillRate          float64      `json:"fill_rate"` // 0..1 over upcoming lessons
	FullLessons       int          `json:"full_lessons"`
	NextLessons       []LessonView `json:"next_lessons"`
	PendingEmails     int          `json:"pending_emails"`
	FailedEmails      int          `json:"failed_emails"`
}

// QueryGetDashboard aggregates staff dashboard figures for the coming week.
// PRE: none
// POST: FillRate is ConfirmedBookings / Capacity, or 0 without capacity
func QueryGetDashboard(ctx context.Context, deps GetDashboardDeps) (DashboardResult, error) {
	now := clock(deps.Now)
	var result DashboardResult

	active, err := deps.Courses.Count(ctx, coursestore.ListFilter{Status: course.StatusActive})
	if err != nil {
		return DashboardResult{}, err
	}
	result.ActiveCourses = active

	lessons, err := deps.Lessons.ListUpcoming(ctx, now, dashboardLessonLimit)
	if err != nil {
		return DashboardResult{}, err
	}
	horizon := now.Add(DashboardHorizon)
	result.NextLessons = []LessonView{}
	for _, l := range lessons {
		if l.DateTime.After(horizon) {
			break
		}
		result.UpcomingLessons++
		result.ConfirmedBookings += l.CurrentBookings
		result.Capacity += l.MaxCapacity
		if l.IsFull() {
			result.FullLessons++
		}
		if len(result.NextLessons) < 5 {
			result.NextLessons = append(result.NextLessons, ViewLesson(l, now))
		}
	}
	if result.Capacity > 0 {
		result.FillRate = float64(result.ConfirmedBookings) / float64(result.Capacity)
	}

	// Queue figures are informational; a read failure leaves them at zero.
	if deps.Outbox != nil {
		if pending, err := deps.Outbox.ListByStatus(ctx, outbox.StatusPending, dashboardLessonLimit); err == nil {
			result.PendingEmails = len(pending)
		}
		if retrying, err := deps.Outbox.ListByStatus(ctx, outbox.StatusRetrying, dashboardLessonLimit); err == nil {
			result.PendingEmails += len(retrying)
		}
		if failed, err := deps.Outbox.ListByStatus(ctx, outbox.StatusFailed, dashboardLessonLimit); err == nil {
			result.FailedEmails = len(failed)
		}
	}
	return result, nil
}

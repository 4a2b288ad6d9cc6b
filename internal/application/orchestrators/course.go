package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/booking"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/lesson"
)

// CourseFields are the editable attributes of a course.
type CourseFields struct {
	Title          string
	Description    string
	StartDate      time.Time
	LessonCount    int
	DayOfWeek      int
	StartTime      string
	LessonDuration int
	MaxCapacity    int
	Price          int64
	Status         string // empty means active
}

// CreateCourseInput carries input for ExecuteCreateCourse.
type CreateCourseInput struct {
	Actor audit.Actor
	CourseFields
}

// CreateCourseDeps holds dependencies for ExecuteCreateCourse.
type CreateCourseDeps struct {
	Courses    CourseStore
	Audit      AuditWriter
	Location   *time.Location
	Now        func() time.Time
	GenerateID func() string
}

// CourseResult is returned by commands that write a course.
type CourseResult struct {
	Course      course.Course
	Lessons     []lesson.Lesson
	Regenerated bool
	Promoted    []booking.Booking // waitlisted bookings seated by a capacity raise
}

// ExecuteCreateCourse validates a course, rejects schedule conflicts and
// stores it together with its generated lessons.
// PRE: Actor may manage courses
// POST: Course and LessonCount lessons are persisted atomically
// INVARIANT: an active course never overlaps another active course's weekly window
func ExecuteCreateCourse(ctx context.Context, input CreateCourseInput, deps CreateCourseDeps) (CourseResult, error) {
	now := clock(deps.Now)
	newID := idGen(deps.GenerateID)

	c := course.Course{ID: newID(), CreatedAt: now, UpdatedAt: now}
	applyCourseFields(&c, input.CourseFields)
	if err := c.Validate(); err != nil {
		return CourseResult{}, invalid(err)
	}
	if err := ensureNoConflicts(ctx, c, deps.Courses); err != nil {
		return CourseResult{}, err
	}

	lessons := lesson.Generate(c, deps.Location, newID, now)
	if err := deps.Courses.SaveWithLessons(ctx, c, lessons); err != nil {
		return CourseResult{}, fmt.Errorf("save course: %w", err)
	}

	slog.Info("course_event", "event", "course_created", "course_id", c.ID, "lessons", len(lessons))
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryCourse, audit.ActionCreate, now).
		WithResource("course", c.ID).
		WithDescription(fmt.Sprintf("Created course %q with %d lessons", c.Title, len(lessons))))
	return CourseResult{Course: c, Lessons: lessons, Regenerated: true}, nil
}

// UpdateCourseInput carries input for ExecuteUpdateCourse.
type UpdateCourseInput struct {
	Actor audit.Actor
	ID    string
	CourseFields
}

// UpdateCourseDeps holds dependencies for ExecuteUpdateCourse.
type UpdateCourseDeps struct {
	Courses    CourseStore
	Lessons    LessonStore
	Outbox     OutboxWriter
	Audit      AuditWriter
	Location   *time.Location
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteUpdateCourse applies edits to a course.
// Schedule edits regenerate all lessons and are refused while any lesson
// holds an active booking. Without a schedule edit, capacity and title
// changes are pushed to the existing lessons in place, and seats freed by a
// capacity raise go to the waitlist.
// PRE: course exists and is not cancelled
// POST: Course updated; lessons regenerated, resized or retitled as needed
// INVARIANT: no lesson's max_capacity drops below its current_bookings
func ExecuteUpdateCourse(ctx context.Context, input UpdateCourseInput, deps UpdateCourseDeps) (CourseResult, error) {
	now := clock(deps.Now)

	old, err := deps.Courses.GetByID(ctx, input.ID)
	if err != nil {
		return CourseResult{}, err
	}
	if old.Status == course.StatusCancelled {
		return CourseResult{}, invalid(course.ErrAlreadyCancelled)
	}
	if input.Status == course.StatusCancelled {
		return CourseResult{}, apperr.Validation("course.use_cancel", "use the cancel action to cancel a course")
	}

	fields := input.CourseFields
	if fields.Status == "" {
		fields.Status = old.Status
	}
	updated := old
	applyCourseFields(&updated, fields)
	updated.UpdatedAt = now
	if err := updated.Validate(); err != nil {
		return CourseResult{}, invalid(err)
	}
	if err := ensureNoConflicts(ctx, updated, deps.Courses); err != nil {
		return CourseResult{}, err
	}

	result := CourseResult{Course: updated}
	if old.ScheduleChanged(updated) {
		n, err := deps.Courses.CountActiveBookings(ctx, old.ID)
		if err != nil {
			return CourseResult{}, fmt.Errorf("count bookings: %w", err)
		}
		if n > 0 {
			return CourseResult{}, apperr.ErrCourseHasBookings
		}
		result.Lessons = lesson.Generate(updated, deps.Location, idGen(deps.GenerateID), now)
		result.Regenerated = true
		if err := deps.Courses.SaveWithLessons(ctx, updated, result.Lessons); err != nil {
			return CourseResult{}, fmt.Errorf("save course: %w", err)
		}
	} else {
		promoted, err := deps.Courses.UpdateInPlace(ctx, updated, now)
		if err != nil {
			return CourseResult{}, err
		}
		result.Promoted = promoted
		if len(promoted) > 0 {
			notifyPromoted(ctx, deps, promoted, idGen(deps.GenerateID), now)
		}
	}

	slog.Info("course_event", "event", "course_updated", "course_id", updated.ID,
		"regenerated", result.Regenerated, "promoted", len(result.Promoted))
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryCourse, audit.ActionUpdate, now).
		WithResource("course", updated.ID).
		WithDescription(fmt.Sprintf("Updated course %q", updated.Title)).
		WithMetadata(fmt.Sprintf(`{"regenerated":%t}`, result.Regenerated)))
	return result, nil
}

// notifyPromoted queues a promotion email for each waitlisted booking that got a seat.
func notifyPromoted(ctx context.Context, deps UpdateCourseDeps, promoted []booking.Booking, newID func() string, now time.Time) {
	byID := make(map[string]lesson.Lesson)
	for _, b := range promoted {
		l, ok := byID[b.LessonID]
		if !ok {
			var err error
			if l, err = deps.Lessons.GetByID(ctx, b.LessonID); err != nil {
				slog.Error("email_event", "event", "promotion_notice_skipped", "booking_id", b.ID, "error", err)
				continue
			}
			byID[l.ID] = l
		}
		slog.Info("booking_event", "event", "waitlist_promoted", "booking_id", b.ID, "lesson_id", b.LessonID)
		queueEmail(ctx, deps.Outbox, newID, now, waitlistPromotedEmail(b, l, deps.Location))
	}
}

// CancelCourseInput carries input for ExecuteCancelCourse.
type CancelCourseInput struct {
	Actor audit.Actor
	ID    string
}

// CancelCourseDeps holds dependencies for ExecuteCancelCourse.
type CancelCourseDeps struct {
	Courses    CourseStore
	Lessons    LessonStore
	Outbox     OutboxWriter
	Audit      AuditWriter
	Location   *time.Location
	Now        func() time.Time
	GenerateID func() string
}

// CancelCourseResult summarises a course cancellation.
type CancelCourseResult struct {
	Course            course.Course
	CancelledBookings int
	Notified          int
}

// ExecuteCancelCourse cancels a course, its open lessons and every active
// booking on them in one transaction, then queues one notification per
// affected customer.
// PRE: course exists
// POST: Course and open lessons cancelled; seat counters are zero; on error nothing changed
func ExecuteCancelCourse(ctx context.Context, input CancelCourseInput, deps CancelCourseDeps) (CancelCourseResult, error) {
	now := clock(deps.Now)
	newID := idGen(deps.GenerateID)

	c, err := deps.Courses.GetByID(ctx, input.ID)
	if err != nil {
		return CancelCourseResult{}, err
	}
	if err := c.Cancel(now); err != nil {
		return CancelCourseResult{}, invalid(err)
	}
	cancelled, err := deps.Courses.CancelWithBookings(ctx, c, now)
	if err != nil {
		return CancelCourseResult{}, fmt.Errorf("cancel course: %w", err)
	}

	lessons, err := deps.Lessons.ListByCourse(ctx, c.ID)
	if err != nil {
		return CancelCourseResult{}, fmt.Errorf("list lessons: %w", err)
	}
	byID := make(map[string]lesson.Lesson, len(lessons))
	for _, l := range lessons {
		byID[l.ID] = l
	}

	type recipient struct {
		name    string
		lessons []lesson.Lesson
	}
	var order []string
	recipients := make(map[string]*recipient)
	for _, b := range cancelled {
		r, ok := recipients[b.CustomerEmail]
		if !ok {
			r = &recipient{name: b.CustomerName}
			recipients[b.CustomerEmail] = r
			order = append(order, b.CustomerEmail)
		}
		if l, ok := byID[b.LessonID]; ok {
			r.lessons = append(r.lessons, l)
		}
	}
	for _, email := range order {
		r := recipients[email]
		queueEmail(ctx, deps.Outbox, newID, now, courseCancelledEmail(c, r.name, email, r.lessons, deps.Location))
	}

	slog.Info("course_event", "event", "course_cancelled", "course_id", c.ID,
		"bookings_cancelled", len(cancelled), "customers_notified", len(order))
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryCourse, audit.ActionCancel, now).
		WithSeverity(audit.SeverityWarning).
		WithResource("course", c.ID).
		WithDescription(fmt.Sprintf("Cancelled course %q and %d bookings", c.Title, len(cancelled))))
	return CancelCourseResult{Course: c, CancelledBookings: len(cancelled), Notified: len(order)}, nil
}

// DeleteCourseInput carries input for ExecuteDeleteCourse.
type DeleteCourseInput struct {
	Actor audit.Actor
	ID    string
}

// DeleteCourseDeps holds dependencies for ExecuteDeleteCourse.
type DeleteCourseDeps struct {
	Courses CourseStore
	Audit   AuditWriter
	Now     func() time.Time
}

// ExecuteDeleteCourse removes a course and its lessons.
// PRE: course exists
// POST: Course deleted, lessons and cancelled bookings cascade
// INVARIANT: a course with active bookings is never deleted
func ExecuteDeleteCourse(ctx context.Context, input DeleteCourseInput, deps DeleteCourseDeps) error {
	c, err := deps.Courses.GetByID(ctx, input.ID)
	if err != nil {
		return err
	}
	n, err := deps.Courses.CountActiveBookings(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	if n > 0 {
		return apperr.ErrCourseHasBookings
	}
	if err := deps.Courses.Delete(ctx, c.ID); err != nil {
		return err
	}

	slog.Info("course_event", "event", "course_deleted", "course_id", c.ID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryCourse, audit.ActionDelete, clock(deps.Now)).
		WithSeverity(audit.SeverityWarning).
		WithResource("course", c.ID).
		WithDescription(fmt.Sprintf("Deleted course %q", c.Title)))
	return nil
}

func applyCourseFields(c *course.Course, f CourseFields) {
	c.Title = strings.TrimSpace(f.Title)
	c.Description = f.Description
	c.StartDate = f.StartDate
	c.LessonCount = f.LessonCount
	c.DayOfWeek = f.DayOfWeek
	c.StartTime = f.StartTime
	c.LessonDuration = f.LessonDuration
	if c.LessonDuration == 0 {
		c.LessonDuration = course.DefaultDurationMn
	}
	c.MaxCapacity = f.MaxCapacity
	c.Price = f.Price
	c.Status = f.Status
	if c.Status == "" {
		c.Status = course.StatusActive
	}
}

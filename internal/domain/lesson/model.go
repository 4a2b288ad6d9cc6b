package lesson

import (
	"errors"
	"fmt"
	"time"

	"coursebook/internal/domain/course"
)

// Status constants
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Domain errors
var (
	ErrEmptyCourseID        = errors.New("course ID cannot be empty")
	ErrInvalidLessonNumber  = errors.New("lesson number must be positive")
	ErrMissingDateTime      = errors.New("lesson date/time is required")
	ErrInvalidCapacity      = errors.New("max capacity must be between 1 and 100")
	ErrCounterOutOfRange    = errors.New("current bookings must be between 0 and max capacity")
	ErrInvalidStatus        = errors.New("status must be active, cancelled or completed")
	ErrCapacityBelowBooking = errors.New("capacity cannot drop below current bookings")
)

// Lesson is one dated occurrence of a Course.
// CurrentBookings mirrors the number of confirmed bookings for the lesson.
type Lesson struct {
	ID              string
	CourseID        string
	LessonNumber    int
	Title           string
	DateTime        time.Time
	Duration        int // minutes
	MaxCapacity     int
	CurrentBookings int
	Status          string
	CreatedAt       time.Time
}

// Validate checks if the Lesson has valid data.
// PRE: Lesson struct is populated
// POST: Returns nil if valid, error otherwise
// INVARIANT: 0 <= CurrentBookings <= MaxCapacity
func (l *Lesson) Validate() error {
	if l.CourseID == "" {
		return ErrEmptyCourseID
	}
	if l.LessonNumber < 1 {
		return ErrInvalidLessonNumber
	}
	if l.DateTime.IsZero() {
		return ErrMissingDateTime
	}
	if l.MaxCapacity < course.MinCapacity || l.MaxCapacity > course.MaxCapacity {
		return ErrInvalidCapacity
	}
	if l.CurrentBookings < 0 || l.CurrentBookings > l.MaxCapacity {
		return ErrCounterOutOfRange
	}
	if l.Status != StatusActive && l.Status != StatusCancelled && l.Status != StatusCompleted {
		return ErrInvalidStatus
	}
	return nil
}

// Available returns the number of free seats, never negative.
func (l *Lesson) Available() int {
	if n := l.MaxCapacity - l.CurrentBookings; n > 0 {
		return n
	}
	return 0
}

// IsFull returns true if no seats are left.
func (l *Lesson) IsFull() bool {
	return l.CurrentBookings >= l.MaxCapacity
}

// IsActive returns true if the lesson is open.
func (l *Lesson) IsActive() bool {
	return l.Status == StatusActive
}

// HasStarted returns true if the lesson start is at or before now.
func (l *Lesson) HasStarted(now time.Time) bool {
	return !l.DateTime.After(now)
}

// EndsAt returns the lesson end time.
func (l *Lesson) EndsAt() time.Time {
	return l.DateTime.Add(time.Duration(l.Duration) * time.Minute)
}

// IsBookable returns true if the lesson is active, not started and has a free seat.
func (l *Lesson) IsBookable(now time.Time) bool {
	return l.IsActive() && !l.HasStarted(now) && !l.IsFull()
}

// SetCapacity changes the seat limit.
// PRE: capacity in [1,100]
// POST: MaxCapacity updated unless it would drop below CurrentBookings
func (l *Lesson) SetCapacity(capacity int) error {
	if capacity < course.MinCapacity || capacity > course.MaxCapacity {
		return ErrInvalidCapacity
	}
	if capacity < l.CurrentBookings {
		return ErrCapacityBelowBooking
	}
	l.MaxCapacity = capacity
	return nil
}

// GenerateDates produces count calendar dates spaced one week apart,
// starting at the first date on or after startDate whose weekday is dayOfWeek
// (1=Monday..7=Sunday). A startDate already on that weekday is lesson 1.
// PRE: dayOfWeek in [1,7], count in [1,52]
// POST: len(result) == count; result[i+1] - result[i] == 7 days
func GenerateDates(startDate time.Time, dayOfWeek, count int) []time.Time {
	if dayOfWeek < 1 || dayOfWeek > 7 || count < 1 {
		return nil
	}
	y, m, d := startDate.Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, startDate.Location())

	target := course.Weekday(dayOfWeek)
	shift := (int(target) - int(first.Weekday()) + 7) % 7
	first = first.AddDate(0, 0, shift)

	dates := make([]time.Time, count)
	for i := range dates {
		dates[i] = first.AddDate(0, 0, 7*i)
	}
	return dates
}

// Generate builds the lessons for a course, numbered 1..LessonCount.
// Dates come from GenerateDates; the wall-clock start time is applied in loc.
// IDs are assigned by newID.
// PRE: c has been validated
// POST: Returns LessonCount active lessons with zero bookings
func Generate(c course.Course, loc *time.Location, newID func() string, now time.Time) []Lesson {
	if loc == nil {
		loc = time.UTC
	}
	clock, _ := time.Parse(course.TimeLayout, c.StartTime)
	dates := GenerateDates(c.StartDate, c.DayOfWeek, c.LessonCount)

	lessons := make([]Lesson, 0, len(dates))
	for i, d := range dates {
		y, m, day := d.Date()
		lessons = append(lessons, Lesson{
			ID:           newID(),
			CourseID:     c.ID,
			LessonNumber: i + 1,
			Title:        Title(c.Title, i+1),
			DateTime:     time.Date(y, m, day, clock.Hour(), clock.Minute(), 0, 0, loc),
			Duration:     c.LessonDuration,
			MaxCapacity:  c.MaxCapacity,
			Status:       StatusActive,
			CreatedAt:    now,
		})
	}
	return lessons
}

// Title returns the display title for lesson n of a course.
func Title(courseTitle string, n int) string {
	return fmt.Sprintf("%s - Lesson %d", courseTitle, n)
}

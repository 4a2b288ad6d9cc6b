package course

import (
	"errors"
	"strings"
	"time"
)

// Status constants
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Bounds for schedule and capacity fields.
const (
	MinLessonCount    = 1
	MaxLessonCount    = 52
	MinCapacity       = 1
	MaxCapacity       = 100
	MinDuration       = 15  // minutes
	MaxDuration       = 480 // minutes
	MaxTitleLength    = 200
	DateLayout        = "2006-01-02"
	TimeLayout        = "15:04"
	DefaultDurationMn = 60
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []string{StatusActive, StatusInactive, StatusCompleted, StatusCancelled}

// Domain errors
var (
	ErrEmptyTitle         = errors.New("course title cannot be empty")
	ErrTitleTooLong       = errors.New("course title cannot exceed 200 characters")
	ErrMissingStartDate   = errors.New("start date is required")
	ErrInvalidLessonCount = errors.New("lesson count must be between 1 and 52")
	ErrInvalidDayOfWeek   = errors.New("day of week must be between 1 (Monday) and 7 (Sunday)")
	ErrInvalidStartTime   = errors.New("start time must be in HH:MM format")
	ErrInvalidDuration    = errors.New("lesson duration must be between 15 and 480 minutes")
	ErrInvalidCapacity    = errors.New("max capacity must be between 1 and 100")
	ErrNegativePrice      = errors.New("price cannot be negative")
	ErrInvalidStatus      = errors.New("status must be active, inactive, completed or cancelled")
	ErrAlreadyCancelled   = errors.New("course is already cancelled")
)

// Course is a recurring weekly class offering. It is the template from
// which lessons are generated.
type Course struct {
	ID             string
	Title          string
	Description    string // markdown
	StartDate      time.Time
	LessonCount    int
	DayOfWeek      int    // 1=Monday .. 7=Sunday
	StartTime      string // HH:MM
	LessonDuration int    // minutes
	MaxCapacity    int
	Price          int64 // cents
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks if the Course has valid data.
// PRE: Course struct is populated
// POST: Returns nil if valid, the first violated rule otherwise
func (c *Course) Validate() error {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if c.StartDate.IsZero() {
		return ErrMissingStartDate
	}
	if c.LessonCount < MinLessonCount || c.LessonCount > MaxLessonCount {
		return ErrInvalidLessonCount
	}
	if c.DayOfWeek < 1 || c.DayOfWeek > 7 {
		return ErrInvalidDayOfWeek
	}
	if _, err := time.Parse(TimeLayout, c.StartTime); err != nil {
		return ErrInvalidStartTime
	}
	if c.LessonDuration < MinDuration || c.LessonDuration > MaxDuration {
		return ErrInvalidDuration
	}
	if c.MaxCapacity < MinCapacity || c.MaxCapacity > MaxCapacity {
		return ErrInvalidCapacity
	}
	if c.Price < 0 {
		return ErrNegativePrice
	}
	if !isValidStatus(c.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// IsActive returns true if the course accepts bookings.
func (c *Course) IsActive() bool {
	return c.Status == StatusActive
}

// Cancel marks the course as cancelled.
// PRE: Course is not already cancelled
// POST: Status is cancelled
func (c *Course) Cancel(now time.Time) error {
	if c.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	c.Status = StatusCancelled
	c.UpdatedAt = now
	return nil
}

// Window is a weekly time window on one day, in minutes since midnight.
// The interval is half-open: [Start, End).
type Window struct {
	Day   int
	Start int
	End   int
}

// Window returns the course's weekly time window.
// PRE: StartTime is valid HH:MM
// POST: End = Start + LessonDuration; may exceed 1440 for late lessons
func (c *Course) Window() Window {
	t, _ := time.Parse(TimeLayout, c.StartTime)
	start := t.Hour()*60 + t.Minute()
	return Window{Day: c.DayOfWeek, Start: start, End: start + c.LessonDuration}
}

// Overlaps reports whether two windows share any minute on the same day.
// INVARIANT: start1 < end2 AND end1 > start2, same day only
func (w Window) Overlaps(o Window) bool {
	if w.Day != o.Day {
		return false
	}
	return w.Start < o.End && w.End > o.Start
}

// ScheduleChanged reports whether any field that drives lesson generation differs.
func (c *Course) ScheduleChanged(other Course) bool {
	return !c.StartDate.Equal(other.StartDate) ||
		c.DayOfWeek != other.DayOfWeek ||
		c.LessonCount != other.LessonCount ||
		c.StartTime != other.StartTime ||
		c.LessonDuration != other.LessonDuration
}

// ParseDate parses a YYYY-MM-DD calendar date at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// Weekday converts a 1..7 (Monday..Sunday) day number to time.Weekday.
func Weekday(dayOfWeek int) time.Weekday {
	return time.Weekday(dayOfWeek % 7)
}

// DayNumber converts a time.Weekday to the 1..7 (Monday..Sunday) numbering.
func DayNumber(w time.Weekday) int {
	if w == time.Sunday {
		return 7
	}
	return int(w)
}

func isValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

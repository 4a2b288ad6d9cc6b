package course_test

import (
	"testing"
	"time"

	"coursebook/internal/domain/course"
)

func validCourse() course.Course {
	return course.Course{
		ID:             "c-1",
		Title:          "Babymassage",
		StartDate:      time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		LessonCount:    6,
		DayOfWeek:      1,
		StartTime:      "10:00",
		LessonDuration: 60,
		MaxCapacity:    8,
		Price:          9000,
		Status:         course.StatusActive,
	}
}

// TestCourse_Validate tests validation of Course.
func TestCourse_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *course.Course)
		wantErr error
	}{
		{"valid course", func(c *course.Course) {}, nil},
		{"empty title", func(c *course.Course) { c.Title = "  " }, course.ErrEmptyTitle},
		{"missing start date", func(c *course.Course) { c.StartDate = time.Time{} }, course.ErrMissingStartDate},
		{"zero lessons", func(c *course.Course) { c.LessonCount = 0 }, course.ErrInvalidLessonCount},
		{"53 lessons", func(c *course.Course) { c.LessonCount = 53 }, course.ErrInvalidLessonCount},
		{"52 lessons", func(c *course.Course) { c.LessonCount = 52 }, nil},
		{"day zero", func(c *course.Course) { c.DayOfWeek = 0 }, course.ErrInvalidDayOfWeek},
		{"day eight", func(c *course.Course) { c.DayOfWeek = 8 }, course.ErrInvalidDayOfWeek},
		{"sunday", func(c *course.Course) { c.DayOfWeek = 7 }, nil},
		{"bad time", func(c *course.Course) { c.StartTime = "25:00" }, course.ErrInvalidStartTime},
		{"short duration", func(c *course.Course) { c.LessonDuration = 10 }, course.ErrInvalidDuration},
		{"capacity zero", func(c *course.Course) { c.MaxCapacity = 0 }, course.ErrInvalidCapacity},
		{"capacity 101", func(c *course.Course) { c.MaxCapacity = 101 }, course.ErrInvalidCapacity},
		{"capacity 100", func(c *course.Course) { c.MaxCapacity = 100 }, nil},
		{"negative price", func(c *course.Course) { c.Price = -1 }, course.ErrNegativePrice},
		{"unknown status", func(c *course.Course) { c.Status = "paused" }, course.ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCourse()
			tt.mutate(&c)
			if err := c.Validate(); err != tt.wantErr {
				t.Errorf("Course.Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestWindow_Overlaps tests the half-open interval overlap rule.
func TestWindow_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b course.Window
		want bool
	}{
		{"same slot", course.Window{Day: 1, Start: 600, End: 660}, course.Window{Day: 1, Start: 600, End: 660}, true},
		{"partial overlap", course.Window{Day: 1, Start: 600, End: 660}, course.Window{Day: 1, Start: 630, End: 690}, true},
		{"contained", course.Window{Day: 1, Start: 600, End: 720}, course.Window{Day: 1, Start: 630, End: 650}, true},
		{"back to back", course.Window{Day: 1, Start: 600, End: 660}, course.Window{Day: 1, Start: 660, End: 720}, false},
		{"before", course.Window{Day: 1, Start: 540, End: 600}, course.Window{Day: 1, Start: 600, End: 660}, false},
		{"different day", course.Window{Day: 1, Start: 600, End: 660}, course.Window{Day: 2, Start: 600, End: 660}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCourse_Window tests window computation from start time and duration.
func TestCourse_Window(t *testing.T) {
	c := validCourse()
	c.StartTime = "09:30"
	c.LessonDuration = 45
	w := c.Window()
	if w.Day != 1 || w.Start != 570 || w.End != 615 {
		t.Errorf("Window() = %+v, want {1 570 615}", w)
	}
}

// TestCourse_ScheduleChanged tests detection of schedule-affecting edits.
func TestCourse_ScheduleChanged(t *testing.T) {
	a := validCourse()
	b := a
	b.Title = "Renamed"
	b.Price = 1
	if a.ScheduleChanged(b) {
		t.Error("title/price edit should not count as schedule change")
	}
	b.StartTime = "11:00"
	if !a.ScheduleChanged(b) {
		t.Error("start time edit should count as schedule change")
	}
}

// TestCourse_Cancel tests the cancel transition.
func TestCourse_Cancel(t *testing.T) {
	c := validCourse()
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	if err := c.Cancel(now); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if c.Status != course.StatusCancelled || !c.UpdatedAt.Equal(now) {
		t.Errorf("unexpected course after cancel: %+v", c)
	}
	if err := c.Cancel(now); err != course.ErrAlreadyCancelled {
		t.Errorf("second Cancel() error = %v, want ErrAlreadyCancelled", err)
	}
}

// TestWeekdayConversions tests the 1..7 <-> time.Weekday mapping.
func TestWeekdayConversions(t *testing.T) {
	for n := 1; n <= 7; n++ {
		if got := course.DayNumber(course.Weekday(n)); got != n {
			t.Errorf("round trip of %d = %d", n, got)
		}
	}
	if course.Weekday(7) != time.Sunday || course.Weekday(1) != time.Monday {
		t.Error("unexpected weekday mapping")
	}
}

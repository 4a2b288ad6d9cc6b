package projections

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"coursebook/internal/domain/course"
)

// CourseBookingsCSVHeader is the fixed first row of the booking export.
var CourseBookingsCSVHeader = []string{
	"lesson_number", "lesson_date", "lesson_time", "lesson_title",
	"customer_name", "customer_email", "customer_phone", "status", "booked_at", "notes",
}

// ExportCourseBookingsDeps holds dependencies for ExportCourseBookingsCSV.
type ExportCourseBookingsDeps struct {
	Courses  CourseStore
	Lessons  LessonStore
	Bookings BookingStore
	Location *time.Location // lesson times are written in this zone
}

// ExportCourseBookingsCSV writes every booking of a course as CSV, one row
// per booking in lesson order. Cancelled bookings are included so the export
// doubles as an attendance history.
// PRE: courseID is non-empty; w is writable
// POST: Header row followed by booking rows; returns the course for naming the file
func ExportCourseBookingsCSV(ctx context.Context, courseID string, w io.Writer, deps ExportCourseBookingsDeps) (course.Course, error) {
	c, err := deps.Courses.GetByID(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	lessons, err := deps.Lessons.ListByCourse(ctx, c.ID)
	if err != nil {
		return course.Course{}, fmt.Errorf("list lessons: %w", err)
	}

	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CourseBookingsCSVHeader); err != nil {
		return course.Course{}, err
	}
	for _, l := range lessons {
		bookings, err := deps.Bookings.ListByLesson(ctx, l.ID)
		if err != nil {
			return course.Course{}, fmt.Errorf("list bookings of %s: %w", l.ID, err)
		}
		start := l.DateTime.In(loc)
		for _, b := range bookings {
			row := []string{
				strconv.Itoa(l.LessonNumber),
				start.Format(course.DateLayout),
				start.Format(course.TimeLayout),
				l.Title,
				csvSafe(b.CustomerName),
				b.CustomerEmail,
				csvSafe(b.CustomerPhone),
				b.Status,
				b.CreatedAt.In(loc).Format("2006-01-02 15:04"),
				csvSafe(b.Notes),
			}
			if err := cw.Write(row); err != nil {
				return course.Course{}, err
			}
		}
	}
	cw.Flush()
	return c, cw.Error()
}

// csvSafe neutralises values a spreadsheet would evaluate as formulas.
func csvSafe(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

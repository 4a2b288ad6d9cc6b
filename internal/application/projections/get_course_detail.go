package projections

import (
	"context"
	"fmt"
	"time"

	"coursebook/internal/domain/lesson"
)

// LessonView is a lesson with its seat figures resolved for display.
type LessonView struct {
	ID              string    `json:"id"`
	LessonNumber    int       `json:"lesson_number"`
	Title           string    `json:"title"`
	DateTime        time.Time `json:"date_time"`
	Duration        int       `json:"duration"`
	MaxCapacity     int       `json:"max_capacity"`
	CurrentBookings int       `json:"current_bookings"`
	Available       int       `json:"available"`
	Status          string    `json:"status"`
	Bookable        bool      `json:"bookable"`
}

// CourseDetail carries a course and all of its lessons.
type CourseDetail struct {
	CourseSummary
	Lessons []LessonView `json:"lessons"`
}

// GetCourseDetailDeps holds dependencies for QueryGetCourseDetail.
type GetCourseDetailDeps struct {
	Courses CourseStore
	Lessons LessonStore
	Now     func() time.Time
}

// QueryGetCourseDetail loads a course with its lessons in date order.
// PRE: courseID is non-empty
// POST: Returns apperr.ErrCourseNotFound for unknown IDs
func QueryGetCourseDetail(ctx context.Context, courseID string, deps GetCourseDetailDeps) (CourseDetail, error) {
	now := clock(deps.Now)
	c, err := deps.Courses.GetByID(ctx, courseID)
	if err != nil {
		return CourseDetail{}, err
	}
	lessons, err := deps.Lessons.ListByCourse(ctx, c.ID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("list lessons: %w", err)
	}
	detail := CourseDetail{CourseSummary: SummarizeCourse(c, lessons, now), Lessons: make([]LessonView, 0, len(lessons))}
	for _, l := range lessons {
		detail.Lessons = append(detail.Lessons, ViewLesson(l, now))
	}
	return detail, nil
}

// ViewLesson resolves a lesson's seat figures as of now.
func ViewLesson(l lesson.Lesson, now time.Time) LessonView {
	return LessonView{
		ID:              l.ID,
		LessonNumber:    l.LessonNumber,
		Title:           l.Title,
		DateTime:        l.DateTime,
		Duration:        l.Duration,
		MaxCapacity:     l.MaxCapacity,
		CurrentBookings: l.CurrentBookings,
		Available:       l.Available(),
		Status:          l.Status,
		Bookable:        l.IsBookable(now),
	}
}

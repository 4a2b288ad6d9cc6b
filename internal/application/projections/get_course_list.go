package projections

import (
	"context"
	"fmt"
	"time"

	"coursebook/internal/adapters/markdown"
	coursestore "coursebook/internal/adapters/storage/course"
	"coursebook/internal/application/listutil"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/lesson"
)

// GetCourseListQuery carries query parameters.
type GetCourseListQuery struct {
	Status string // empty lists every status
	Search string
	Page   listutil.PageParams
}

// CourseSummary is one row of the course catalogue.
type CourseSummary struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	DescriptionHTML string    `json:"description_html"`
	StartDate       string    `json:"start_date"`
	DayOfWeek       int       `json:"day_of_week"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	LessonCount     int       `json:"lesson_count"`
	MaxCapacity     int       `json:"max_capacity"`
	Price           int64     `json:"price"`
	Status          string    `json:"status"`
	OpenLessons     int       `json:"open_lessons"`
	FreeSeats       int       `json:"free_seats"`
	NextLesson      time.Time `json:"next_lesson,omitzero"`
}

// GetCourseListResult carries the query result.
type GetCourseListResult struct {
	Courses []CourseSummary   `json:"courses"`
	Page    listutil.PageInfo `json:"page"`
}

// GetCourseListDeps holds dependencies for QueryGetCourseList.
type GetCourseListDeps struct {
	Courses CourseStore
	Lessons LessonStore
	Now     func() time.Time
}

// QueryGetCourseList lists courses with an availability summary per course.
// PRE: none
// POST: Courses ordered by start date; seat figures cover upcoming active lessons only
func QueryGetCourseList(ctx context.Context, query GetCourseListQuery, deps GetCourseListDeps) (GetCourseListResult, error) {
	now := clock(deps.Now)
	page := query.Page
	if page.PerPage == 0 {
		page = listutil.PageParams{Page: 1, PerPage: listutil.DefaultPerPage}
	}
	filter := coursestore.ListFilter{Status: query.Status, Search: query.Search}

	total, err := deps.Courses.Count(ctx, filter)
	if err != nil {
		return GetCourseListResult{}, fmt.Errorf("count courses: %w", err)
	}
	info := listutil.NewPageInfo(page.Page, page.PerPage, total)
	filter.Limit = info.PerPage
	filter.Offset = info.Offset()

	courses, err := deps.Courses.List(ctx, filter)
	if err != nil {
		return GetCourseListResult{}, fmt.Errorf("list courses: %w", err)
	}

	out := GetCourseListResult{Courses: make([]CourseSummary, 0, len(courses)), Page: info}
	for _, c := range courses {
		lessons, err := deps.Lessons.ListByCourse(ctx, c.ID)
		if err != nil {
			return GetCourseListResult{}, fmt.Errorf("list lessons of %s: %w", c.ID, err)
		}
		out.Courses = append(out.Courses, SummarizeCourse(c, lessons, now))
	}
	return out, nil
}

// SummarizeCourse condenses a course and its lessons into a list entry.
// Open lessons are active and not yet started.
func SummarizeCourse(c course.Course, lessons []lesson.Lesson, now time.Time) CourseSummary {
	w := c.Window()
	s := CourseSummary{
		ID:              c.ID,
		Title:           c.Title,
		DescriptionHTML: markdown.ToHTMLOrEscaped(c.Description),
		StartDate:       c.StartDate.Format(course.DateLayout),
		DayOfWeek:       c.DayOfWeek,
		StartTime:       c.StartTime,
		EndTime:         fmt.Sprintf("%02d:%02d", (w.End/60)%24, w.End%60),
		LessonCount:     c.LessonCount,
		MaxCapacity:     c.MaxCapacity,
		Price:           c.Price,
		Status:          c.Status,
	}
	for _, l := range lessons {
		if !l.IsActive() || l.HasStarted(now) {
			continue
		}
		s.OpenLessons++
		s.FreeSeats += l.Available()
		if s.NextLesson.IsZero() || l.DateTime.Before(s.NextLesson) {
			s.NextLesson = l.DateTime
		}
	}
	return s
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}

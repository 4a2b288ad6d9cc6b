package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// LessonCompleter marks finished lessons completed.
type LessonCompleter interface {
	CompletePast(ctx context.Context, now time.Time) (int, error)
}

// CourseCompleter marks courses with no open lessons completed.
type CourseCompleter interface {
	CompleteFinished(ctx context.Context, now time.Time) (int, error)
}

// CompletePastLessonsDeps holds dependencies for ExecuteCompletePastLessons.
type CompletePastLessonsDeps struct {
	Lessons LessonCompleter
	Courses CourseCompleter
	Now     func() time.Time
}

// CompletePastLessonsResult counts what a sweep changed.
type CompletePastLessonsResult struct {
	Lessons int
	Courses int
}

// ExecuteCompletePastLessons sweeps lessons whose end time has passed into
// completed, then completes active courses that have no active lessons left.
// PRE: none
// POST: No active lesson ends before now; courses follow their lessons
func ExecuteCompletePastLessons(ctx context.Context, deps CompletePastLessonsDeps) (CompletePastLessonsResult, error) {
	now := clock(deps.Now)
	lessons, err := deps.Lessons.CompletePast(ctx, now)
	if err != nil {
		return CompletePastLessonsResult{}, fmt.Errorf("complete lessons: %w", err)
	}
	courses, err := deps.Courses.CompleteFinished(ctx, now)
	if err != nil {
		return CompletePastLessonsResult{Lessons: lessons}, fmt.Errorf("complete courses: %w", err)
	}
	if lessons > 0 || courses > 0 {
		slog.Info("lesson_event", "event", "lessons_completed", "lessons", lessons, "courses", courses)
	}
	return CompletePastLessonsResult{Lessons: lessons, Courses: courses}, nil
}

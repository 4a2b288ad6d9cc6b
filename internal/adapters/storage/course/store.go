package course

import (
	"context"
	"time"

	"coursebook/internal/domain/booking"
	domain "coursebook/internal/domain/course"
	"coursebook/internal/domain/lesson"
)

// Store persists Course state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Course, error)
	Save(ctx context.Context, value domain.Course) error
	SaveWithLessons(ctx context.Context, value domain.Course, lessons []lesson.Lesson) error
	UpdateInPlace(ctx context.Context, value domain.Course, now time.Time) ([]booking.Booking, error)
	CancelWithBookings(ctx context.Context, value domain.Course, now time.Time) ([]booking.Booking, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Course, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	ListActiveByDay(ctx context.Context, dayOfWeek int) ([]domain.Course, error)
	CountActiveBookings(ctx context.Context, courseID string) (int, error)
	CompleteFinished(ctx context.Context, now time.Time) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
	Status string // empty means any
	Search string // matches title
}

var _ Store = (*SQLiteStore)(nil)

package lesson

import (
	"context"
	"time"

	domain "coursebook/internal/domain/lesson"
)

// Store persists Lesson state. Lessons are created, resized and cancelled
// through the course store, which runs SetCapacity, Retitle and SetStatus
// inside its own transactions.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Lesson, error)
	ListByCourse(ctx context.Context, courseID string) ([]domain.Lesson, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.Lesson, error)
	CompletePast(ctx context.Context, now time.Time) (int, error)
}

var _ Store = (*SQLiteStore)(nil)

package booking

import (
	"context"
	"time"

	domain "coursebook/internal/domain/booking"
	"coursebook/internal/domain/lesson"
)

// Store persists Booking state and owns the lesson seat counter.
// Every write that touches lesson.current_bookings runs in a single
// transaction with the booking row change.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Booking, error)
	ListByLesson(ctx context.Context, lessonID string) ([]domain.Booking, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error)
	ListActiveByCourseAndCustomer(ctx context.Context, courseID, customerID string) ([]domain.Booking, error)
	FindActive(ctx context.Context, lessonID, email string) (domain.Booking, bool, error)
	CountConfirmed(ctx context.Context, lessonID string) (int, error)
	Reserve(ctx context.Context, b domain.Booking) (lesson.Lesson, error)
	AddToWaitlist(ctx context.Context, b domain.Booking) error
	Release(ctx context.Context, bookingID string, now time.Time) (ReleaseResult, error)
}

// ReleaseResult describes what a Release changed.
type ReleaseResult struct {
	Booking          domain.Booking  // state after the call
	AlreadyCancelled bool            // nothing changed
	Promoted         *domain.Booking // waitlisted booking that took the freed seat
}

var _ Store = (*SQLiteStore)(nil)

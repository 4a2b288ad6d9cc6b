package registration

import (
	"context"

	domain "coursebook/internal/domain/registration"
)

// Store persists CourseRegistration records.
type Store interface {
	Save(ctx context.Context, value domain.CourseRegistration) error
	ListByCustomer(ctx context.Context, customerID string) ([]domain.CourseRegistration, error)
	ListByCourse(ctx context.Context, courseID string) ([]domain.CourseRegistration, error)
}

var _ Store = (*SQLiteStore)(nil)

package projections

import (
	"context"
	"time"

	auditstore "coursebook/internal/adapters/storage/audit"
	coursestore "coursebook/internal/adapters/storage/course"
	customerstore "coursebook/internal/adapters/storage/customer"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/booking"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/customer"
	"coursebook/internal/domain/lesson"
	"coursebook/internal/domain/outbox"
	"coursebook/internal/domain/registration"
)

// CourseStore interface for course queries.
type CourseStore interface {
	GetByID(ctx context.Context, id string) (course.Course, error)
	List(ctx context.Context, filter coursestore.ListFilter) ([]course.Course, error)
	Count(ctx context.Context, filter coursestore.ListFilter) (int, error)
}

// LessonStore interface for lesson queries.
type LessonStore interface {
	GetByID(ctx context.Context, id string) (lesson.Lesson, error)
	ListByCourse(ctx context.Context, courseID string) ([]lesson.Lesson, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]lesson.Lesson, error)
}

// BookingStore interface for booking queries.
type BookingStore interface {
	ListByLesson(ctx context.Context, lessonID string) ([]booking.Booking, error)
	ListByCustomer(ctx context.Context, customerID string) ([]booking.Booking, error)
}

// CustomerStore interface for customer queries.
type CustomerStore interface {
	GetByID(ctx context.Context, id string) (customer.Customer, error)
	List(ctx context.Context, filter customerstore.ListFilter) ([]customer.Customer, error)
	Count(ctx context.Context, filter customerstore.ListFilter) (int, error)
}

// RegistrationStore interface for enrollment history queries.
type RegistrationStore interface {
	ListByCustomer(ctx context.Context, customerID string) ([]registration.CourseRegistration, error)
}

// AuditStore interface for audit log queries.
type AuditStore interface {
	List(ctx context.Context, filter auditstore.Filter, limit, offset int) ([]audit.Event, error)
	Count(ctx context.Context, filter auditstore.Filter) (int, error)
}

// OutboxStore interface for notification queue queries.
type OutboxStore interface {
	ListByStatus(ctx context.Context, status string, limit int) ([]outbox.Entry, error)
}

package orchestrators

import (
	"context"
	"time"

	bookingstore "coursebook/internal/adapters/storage/booking"
	"coursebook/internal/domain/account"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/booking"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/customer"
	"coursebook/internal/domain/lesson"
	"coursebook/internal/domain/outbox"
	"coursebook/internal/domain/registration"
)

// CourseStore is the course persistence the commands need.
type CourseStore interface {
	GetByID(ctx context.Context, id string) (course.Course, error)
	SaveWithLessons(ctx context.Context, c course.Course, lessons []lesson.Lesson) error
	UpdateInPlace(ctx context.Context, c course.Course, now time.Time) ([]booking.Booking, error)
	CancelWithBookings(ctx context.Context, c course.Course, now time.Time) ([]booking.Booking, error)
	Delete(ctx context.Context, id string) error
	ListActiveByDay(ctx context.Context, dayOfWeek int) ([]course.Course, error)
	CountActiveBookings(ctx context.Context, courseID string) (int, error)
}

// LessonStore is the lesson persistence the commands need.
type LessonStore interface {
	GetByID(ctx context.Context, id string) (lesson.Lesson, error)
	ListByCourse(ctx context.Context, courseID string) ([]lesson.Lesson, error)
}

// BookingStore is the booking persistence the commands need.
type BookingStore interface {
	GetByID(ctx context.Context, id string) (booking.Booking, error)
	FindActive(ctx context.Context, lessonID, email string) (booking.Booking, bool, error)
	ListActiveByCourseAndCustomer(ctx context.Context, courseID, customerID string) ([]booking.Booking, error)
	Reserve(ctx context.Context, b booking.Booking) (lesson.Lesson, error)
	AddToWaitlist(ctx context.Context, b booking.Booking) error
	Release(ctx context.Context, bookingID string, now time.Time) (bookingstore.ReleaseResult, error)
}

// CustomerStore is the customer persistence the commands need.
type CustomerStore interface {
	GetByID(ctx context.Context, id string) (customer.Customer, error)
	GetByEmail(ctx context.Context, email string) (customer.Customer, error)
	Save(ctx context.Context, c customer.Customer) error
	Delete(ctx context.Context, id string) error
	CountActiveBookings(ctx context.Context, customerID string) (int, error)
}

// AccountStore is the account persistence used by login and seeding.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
	Count(ctx context.Context) (int, error)
}

// RegistrationWriter records bulk enrollment attempts.
type RegistrationWriter interface {
	Save(ctx context.Context, r registration.CourseRegistration) error
}

// AuditWriter records audit events.
type AuditWriter interface {
	Save(ctx context.Context, e audit.Event) error
}

// OutboxWriter queues notification emails.
type OutboxWriter interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// OutboxStore is the outbox persistence used by the delivery job.
type OutboxStore interface {
	OutboxWriter
	GetByID(ctx context.Context, id string) (outbox.Entry, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.Entry, error)
}

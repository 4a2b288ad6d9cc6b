package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/booking"
	"coursebook/internal/domain/course"
	"coursebook/internal/domain/customer"
	"coursebook/internal/domain/lesson"
	"coursebook/internal/domain/outbox"
)

// validationKeys maps domain validation errors to message keys.
var validationKeys = map[error]string{
	course.ErrEmptyTitle:          "course.title_required",
	course.ErrTitleTooLong:        "course.title_too_long",
	course.ErrMissingStartDate:    "course.start_date_required",
	course.ErrInvalidLessonCount:  "course.invalid_lesson_count",
	course.ErrInvalidDayOfWeek:    "course.invalid_day_of_week",
	course.ErrInvalidStartTime:    "course.invalid_start_time",
	course.ErrInvalidDuration:     "course.invalid_duration",
	course.ErrInvalidCapacity:     "course.invalid_capacity",
	course.ErrNegativePrice:       "course.negative_price",
	course.ErrInvalidStatus:       "course.invalid_status",
	course.ErrAlreadyCancelled:    "course.already_cancelled",
	customer.ErrEmptyName:         "customer.name_required",
	customer.ErrNameTooLong:       "customer.name_too_long",
	customer.ErrInvalidEmail:      "customer.invalid_email",
	customer.ErrNotesTooLong:      "customer.notes_too_long",
	customer.ErrBirthDateInFuture: "customer.birth_date_in_future",
	booking.ErrEmptyLessonID:      "booking.lesson_required",
	booking.ErrInvalidEmail:       "customer.invalid_email",
	booking.ErrEmptyName:          "customer.name_required",
	booking.ErrInvalidStatus:      "booking.invalid_status",
	lesson.ErrInvalidCapacity:     "course.invalid_capacity",
}

// invalid classifies a domain validation error.
func invalid(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	key, ok := validationKeys[err]
	if !ok {
		key = "validation.invalid"
	}
	return apperr.Wrap(apperr.Validation(key, err.Error()), err)
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now()
}

func idGen(fn func() string) func() string {
	if fn != nil {
		return fn
	}
	return func() string { return uuid.New().String() }
}

// recordAudit saves an audit event. Failures are logged, never returned.
func recordAudit(ctx context.Context, w AuditWriter, e audit.Event) {
	if w == nil {
		return
	}
	if err := w.Save(ctx, e); err != nil {
		slog.Error("audit_event", "event", "save_failed", "category", e.Category, "action", e.Action,
			"resource_id", e.ResourceID, "error", err)
	}
}

// queueEmail stores a notification in the outbox for later delivery.
// A failed enqueue is logged; the command that triggered it still succeeds.
func queueEmail(ctx context.Context, w OutboxWriter, newID func() string, now time.Time, p outbox.EmailPayload) {
	if w == nil {
		return
	}
	entry, err := outbox.NewEmailEntry(newID(), p, now)
	if err != nil {
		slog.Warn("email_event", "event", "queue_skipped", "template", p.Template, "error", err)
		return
	}
	if err := w.Save(ctx, entry); err != nil {
		slog.Error("email_event", "event", "queue_failed", "template", p.Template, "to", p.To, "error", err)
		return
	}
	slog.Info("email_event", "event", "queued", "template", p.Template, "entry_id", entry.ID)
}

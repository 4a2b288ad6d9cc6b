package audit

import (
	"context"
	"time"

	domain "coursebook/internal/domain/audit"
)

// Store defines the interface for audit event persistence.
type Store interface {
	// Save persists an audit event.
	// PRE: event is valid
	// POST: Event is persisted
	Save(ctx context.Context, event domain.Event) error

	// List returns audit events matching the filter, newest first.
	// PRE: limit > 0
	List(ctx context.Context, filter Filter, limit, offset int) ([]domain.Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)

	// GetByID retrieves a specific audit event.
	// PRE: id is non-empty
	GetByID(ctx context.Context, id string) (domain.Event, error)
}

// Filter defines query parameters for listing audit events. Zero values match anything.
type Filter struct {
	Category   domain.Category
	Action     domain.Action
	ActorID    string
	ResourceID string
	From       time.Time
	To         time.Time
}

var _ Store = (*SQLiteStore)(nil)

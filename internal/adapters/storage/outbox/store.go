package outbox

import (
	"context"
	"time"

	domain "coursebook/internal/domain/outbox"
)

// Store defines the interface for outbox entry persistence.
type Store interface {
	// GetByID retrieves an outbox entry by its ID.
	// PRE: id is non-empty
	// POST: Returns the entry or an error if not found
	GetByID(ctx context.Context, id string) (domain.Entry, error)

	// Save persists an outbox entry to the database.
	// PRE: entity has been validated
	// POST: Entity is persisted (insert or update)
	Save(ctx context.Context, e domain.Entry) error

	// ListDue returns pending or retrying entries whose next attempt is at or before now.
	// PRE: limit > 0
	// POST: Returns up to limit entries ordered by created_at
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error)

	// ListByStatus returns entries in the given status, newest first; empty status matches all.
	ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error)

	// Delete removes an outbox entry.
	// PRE: entry is in a terminal state
	Delete(ctx context.Context, id string) error
}

var _ Store = (*SQLiteStore)(nil)

package projections

import (
	"context"
	"time"

	"coursebook/internal/domain/outbox"
)

// OutboxRow is a queued notification as shown to admins.
type OutboxRow struct {
	ID            string    `json:"id"`
	Template      string    `json:"template"`
	To            string    `json:"to"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	MaxAttempts   int       `json:"max_attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitzero"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetOutboxDeps holds dependencies for QueryGetOutbox.
type GetOutboxDeps struct {
	Outbox OutboxStore
}

// QueryGetOutbox lists notifications in one status, or the undelivered ones
// (pending, retrying, failed) when status is empty.
// PRE: limit > 0
func QueryGetOutbox(ctx context.Context, status string, limit int, deps GetOutboxDeps) ([]OutboxRow, error) {
	statuses := []string{status}
	if status == "" {
		statuses = []string{outbox.StatusPending, outbox.StatusRetrying, outbox.StatusFailed}
	}
	rows := []OutboxRow{}
	for _, s := range statuses {
		entries, err := deps.Outbox.ListByStatus(ctx, s, limit)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			p, _ := e.EmailPayload()
			rows = append(rows, OutboxRow{
				ID:            e.ID,
				Template:      p.Template,
				To:            p.To,
				Subject:       p.Subject,
				Status:        e.Status,
				Attempts:      e.Attempts,
				MaxAttempts:   e.MaxAttempts,
				NextAttemptAt: e.NextAttemptAt,
				Error:         e.ErrorMessage,
				CreatedAt:     e.CreatedAt,
			})
		}
	}
	return rows, nil
}

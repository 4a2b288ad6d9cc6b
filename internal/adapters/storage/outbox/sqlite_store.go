package outbox

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coursebook/internal/adapters/storage"
	"coursebook/internal/domain/apperr"
	domain "coursebook/internal/domain/outbox"
)

const entryColumns = "id, action_type, payload, status, attempts, max_attempts, last_attempted_at, next_attempt_at, created_at, external_id, error_message"

// SQLiteStore implements the outbox Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new outbox store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an outbox entry by its ID.
// PRE: id is non-empty
// POST: Returns the entry or an error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM outbox WHERE id = ?", id)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, apperr.ErrOutboxNotFound
	}
	return e, err
}

// Save persists an outbox entry to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, e domain.Entry) error {
	var next any
	if !e.NextAttemptAt.IsZero() {
		next = storage.FormatUTC(e.NextAttemptAt)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO outbox ("+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   action_type=excluded.action_type, payload=excluded.payload, status=excluded.status,
		   attempts=excluded.attempts, max_attempts=excluded.max_attempts,
		   last_attempted_at=excluded.last_attempted_at, next_attempt_at=excluded.next_attempt_at,
		   external_id=excluded.external_id, error_message=excluded.error_message`,
		e.ID, e.ActionType, e.Payload, e.Status, e.Attempts, e.MaxAttempts,
		storage.NullTime(e.LastAttemptedAt), next, e.CreatedAt.Format(storage.TimeLayout),
		e.ExternalID, e.ErrorMessage)
	return err
}

// ListDue returns entries ready for another delivery attempt.
// PRE: limit > 0
// POST: Returns up to limit entries ordered by created_at
func (s *SQLiteStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Entry, error) {
	return s.query(ctx,
		"SELECT "+entryColumns+` FROM outbox
		 WHERE status IN (?, ?) AND attempts < max_attempts
		   AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		 ORDER BY created_at ASC LIMIT ?`,
		domain.StatusPending, domain.StatusRetrying, storage.FormatUTC(now), limit)
}

// ListByStatus returns entries in a status, newest first.
// PRE: limit > 0
func (s *SQLiteStore) ListByStatus(ctx context.Context, status string, limit int) ([]domain.Entry, error) {
	if status == "" {
		return s.query(ctx, "SELECT "+entryColumns+" FROM outbox ORDER BY created_at DESC LIMIT ?", limit)
	}
	return s.query(ctx,
		"SELECT "+entryColumns+" FROM outbox WHERE status = ? ORDER BY created_at DESC LIMIT ?", status, limit)
}

// Delete removes an outbox entry.
// PRE: id is non-empty and entry is in terminal state
// POST: Entry is removed from database
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scanEntry extracts an Entry from a row scanner function.
func scanEntry(scan func(dest ...any) error) (domain.Entry, error) {
	var e domain.Entry
	var createdAt string
	var lastAttemptedAt, nextAttemptAt sql.NullString
	err := scan(&e.ID, &e.ActionType, &e.Payload, &e.Status, &e.Attempts, &e.MaxAttempts,
		&lastAttemptedAt, &nextAttemptAt, &createdAt, &e.ExternalID, &e.ErrorMessage)
	if err != nil {
		return domain.Entry{}, err
	}
	e.CreatedAt, _ = storage.ParseTime(createdAt)
	e.LastAttemptedAt = storage.ParseNullTime(lastAttemptedAt)
	e.NextAttemptAt = storage.ParseNullTime(nextAttemptAt)
	return e, nil
}

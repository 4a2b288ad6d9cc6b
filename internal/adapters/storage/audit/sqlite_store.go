package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"coursebook/internal/adapters/storage"
	domain "coursebook/internal/domain/audit"
)

const eventColumns = "id, timestamp, category, action, severity, actor_id, actor_email, actor_role, resource_id, resource_type, description, metadata"

// SQLiteStore implements the audit Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists an audit event.
// PRE: event is valid
// POST: Event is persisted
func (s *SQLiteStore) Save(ctx context.Context, event domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		event.ID, storage.FormatUTC(event.Timestamp), string(event.Category), string(event.Action),
		string(event.Severity), event.ActorID, event.ActorEmail, event.ActorRole,
		event.ResourceID, event.ResourceType, event.Description, event.Metadata)
	return err
}

// List returns audit events with optional filtering.
// PRE: limit > 0
// POST: Returns events ordered by timestamp desc
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit, offset int) ([]domain.Event, error) {
	where, args := buildWhere(filter)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM audit_log"+where+" ORDER BY timestamp DESC, id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of events matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := buildWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log"+where, args...).Scan(&n)
	return n, err
}

// GetByID retrieves a specific audit event.
// PRE: id is non-empty
// POST: Returns the event or error if not found
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+eventColumns+" FROM audit_log WHERE id = ?", id)
	e, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Event{}, fmt.Errorf("audit event not found: %w", err)
	}
	return e, err
}

func buildWhere(f Filter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, v any) {
		clauses = append(clauses, clause)
		args = append(args, v)
	}
	if f.Category != "" {
		add("category = ?", string(f.Category))
	}
	if f.Action != "" {
		add("action = ?", string(f.Action))
	}
	if f.ActorID != "" {
		add("actor_id = ?", f.ActorID)
	}
	if f.ResourceID != "" {
		add("resource_id = ?", f.ResourceID)
	}
	if !f.From.IsZero() {
		add("timestamp >= ?", storage.FormatUTC(f.From))
	}
	if !f.To.IsZero() {
		add("timestamp <= ?", storage.FormatUTC(f.To))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// scanEvent extracts an Event from a row scanner function.
func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var e domain.Event
	var timestamp string
	err := scan(&e.ID, &timestamp, &e.Category, &e.Action, &e.Severity, &e.ActorID, &e.ActorEmail,
		&e.ActorRole, &e.ResourceID, &e.ResourceType, &e.Description, &e.Metadata)
	if err != nil {
		return domain.Event{}, err
	}
	e.Timestamp, _ = storage.ParseTime(timestamp)
	return e, nil
}

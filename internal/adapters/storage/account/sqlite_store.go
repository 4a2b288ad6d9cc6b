package account

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"coursebook/internal/adapters/storage"
	domain "coursebook/internal/domain/account"
	"coursebook/internal/domain/apperr"
)

const accountColumns = "id, email, password_hash, role, created_at, failed_logins, locked_until"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new AccountStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or apperr.ErrAccountNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE id = ?", id)
	entity, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Account{}, apperr.Wrap(apperr.ErrAccountNotFound, err)
	}
	return entity, err
}

// GetByEmail retrieves an Account by email, case-insensitively.
// PRE: email is non-empty
// POST: Returns the entity or apperr.ErrAccountNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM account WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)))
	entity, err := scanAccount(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Account{}, apperr.Wrap(apperr.ErrAccountNotFound, err)
	}
	return entity, err
}

// Save persists an Account to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Account) error {
	updates := []string{
		"email=excluded.email",
		"password_hash=excluded.password_hash",
		"role=excluded.role",
		"failed_logins=excluded.failed_logins",
		"locked_until=excluded.locked_until",
	}
	query := fmt.Sprintf(
		"INSERT INTO account (%s) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET %s",
		accountColumns,
		strings.Join(updates, ", "),
	)
	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		strings.ToLower(strings.TrimSpace(entity.Email)),
		entity.PasswordHash,
		entity.Role,
		entity.CreatedAt.Format(storage.TimeLayout),
		entity.FailedLogins,
		storage.NullTime(entity.LockedUntil),
	)
	return err
}

// Count returns the total number of accounts.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM account").Scan(&count)
	return count, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt string
	var lockedUntil sql.NullString
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.PasswordHash,
		&entity.Role,
		&createdAt,
		&entity.FailedLogins,
		&lockedUntil,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	entity.LockedUntil = storage.ParseNullTime(lockedUntil)
	return entity, nil
}

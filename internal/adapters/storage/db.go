package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// TimeLayout is the text layout used for every timestamp column.
const TimeLayout = "2006-01-02T15:04:05.999999999Z07:00"

// UTCLayout is the fixed-width layout for columns compared as text
// (lesson.date_time, outbox.next_attempt_at, audit_log.timestamp).
const UTCLayout = "2006-01-02T15:04:05Z"

// FormatUTC renders t in UTCLayout, truncated to the second.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(UTCLayout)
}

// Execer is the query surface shared by *sql.DB, *sql.Tx and *TimedDB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Execer = (*sql.Tx)(nil)
	_ Execer = (*sql.DB)(nil)
)

// WithTx runs fn inside a transaction, committing on nil and rolling back otherwise.
// PRE: fn only issues queries through tx
// POST: All statements in fn are applied atomically or not at all
func WithTx(ctx context.Context, db SQLDB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// NullTime converts a zero time to NULL and others to TimeLayout text.
func NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(TimeLayout)
}

// NullString converts an empty string to NULL.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// DSN builds the modernc sqlite connection string for a database file.
// Every pooled connection enforces foreign keys, waits on locks instead of
// failing with SQLITE_BUSY, and takes the write lock at BEGIN.
func DSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// migration is one forward-only schema step.
type migration struct {
	version     int
	description string
	stmts       []string
}

var migrations = []migration{
	{
		version:     1,
		description: "baseline",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS account (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL,
				created_at TEXT NOT NULL,
				failed_logins INTEGER NOT NULL DEFAULT 0,
				locked_until TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS course (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				start_date TEXT NOT NULL,
				lesson_count INTEGER NOT NULL,
				day_of_week INTEGER NOT NULL,
				start_time TEXT NOT NULL,
				lesson_duration INTEGER NOT NULL DEFAULT 60,
				max_capacity INTEGER NOT NULL,
				price INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_course_status_day ON course(status, day_of_week)`,
			`CREATE TABLE IF NOT EXISTS lesson (
				id TEXT PRIMARY KEY,
				course_id TEXT NOT NULL,
				lesson_number INTEGER NOT NULL,
				title TEXT NOT NULL,
				date_time TEXT NOT NULL,
				duration INTEGER NOT NULL,
				max_capacity INTEGER NOT NULL,
				current_bookings INTEGER NOT NULL DEFAULT 0,
				status TEXT NOT NULL DEFAULT 'active',
				created_at TEXT NOT NULL,
				FOREIGN KEY (course_id) REFERENCES course(id) ON DELETE CASCADE,
				CHECK (current_bookings >= 0 AND current_bookings <= max_capacity)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_lesson_course ON lesson(course_id, lesson_number)`,
			`CREATE INDEX IF NOT EXISTS idx_lesson_date ON lesson(date_time)`,
			`CREATE TABLE IF NOT EXISTS customer (
				id TEXT PRIMARY KEY,
				account_id TEXT,
				name TEXT NOT NULL,
				email TEXT NOT NULL UNIQUE,
				phone TEXT NOT NULL DEFAULT '',
				child_name TEXT NOT NULL DEFAULT '',
				child_birth_date TEXT,
				emergency_contact TEXT NOT NULL DEFAULT '',
				notes TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS booking (
				id TEXT PRIMARY KEY,
				lesson_id TEXT NOT NULL,
				customer_id TEXT NOT NULL,
				customer_email TEXT NOT NULL,
				customer_name TEXT NOT NULL,
				customer_phone TEXT NOT NULL DEFAULT '',
				booking_status TEXT NOT NULL DEFAULT 'confirmed',
				notes TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				cancelled_at TEXT,
				FOREIGN KEY (lesson_id) REFERENCES lesson(id) ON DELETE CASCADE,
				FOREIGN KEY (customer_id) REFERENCES customer(id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_booking_lesson ON booking(lesson_id, booking_status)`,
			`CREATE INDEX IF NOT EXISTS idx_booking_customer ON booking(customer_id)`,
			`CREATE TABLE IF NOT EXISTS audit_log (
				id TEXT PRIMARY KEY,
				timestamp TEXT NOT NULL,
				category TEXT NOT NULL,
				action TEXT NOT NULL,
				severity TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				actor_email TEXT NOT NULL DEFAULT '',
				actor_role TEXT NOT NULL DEFAULT '',
				resource_id TEXT NOT NULL DEFAULT '',
				resource_type TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp)`,
			`CREATE TABLE IF NOT EXISTS outbox (
				id TEXT PRIMARY KEY,
				action_type TEXT NOT NULL,
				payload TEXT NOT NULL,
				status TEXT NOT NULL,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 5,
				last_attempted_at TEXT,
				next_attempt_at TEXT,
				created_at TEXT NOT NULL,
				external_id TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_attempt_at)`,
		},
	},
	{
		version:     2,
		description: "booking duplicate guard and course registrations",
		stmts: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_booking_active_unique
				ON booking(lesson_id, customer_email) WHERE booking_status != 'cancelled'`,
			`CREATE TABLE IF NOT EXISTS course_registration (
				id TEXT PRIMARY KEY,
				course_id TEXT NOT NULL,
				customer_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				succeeded INTEGER NOT NULL DEFAULT 0,
				failed INTEGER NOT NULL DEFAULT 0,
				failed_lessons TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL,
				FOREIGN KEY (course_id) REFERENCES course(id) ON DELETE CASCADE
			)`,
			`CREATE INDEX IF NOT EXISTS idx_registration_customer ON course_registration(customer_id, created_at)`,
		},
	},
}

// LatestSchemaVersion returns the version MigrateDB brings a database to.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the applied schema version, or 0 for an unmigrated database.
// PRE: db is a valid database connection
// POST: Returns the highest recorded version
func SchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check schema_version: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return int(v.Int64), nil
}

// MigrateDB brings the schema up to LatestSchemaVersion.
// A file database that already holds data is copied to path+".bak-v<N>" first.
// PRE: db is a valid database connection; path is the file path or ":memory:"
// POST: Every pending migration applied in order and recorded in schema_version
// INVARIANT: Migrations are idempotent; running twice is a no-op
func MigrateDB(db *sql.DB, path string) error {
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if path != ":memory:" && path != "" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}
	if current > 0 && path != ":memory:" && path != "" {
		backup := fmt.Sprintf("%s.bak-v%d", path, current)
		if _, err := db.Exec("VACUUM INTO ?", backup); err != nil {
			return fmt.Errorf("backup before migration: %w", err)
		}
		slog.Info("migration_event", "event", "backup_created", "path", backup)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		slog.Info("migration_event", "event", "applied", "version", m.version, "description", m.description)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, description) VALUES (?, ?)", m.version, m.description); err != nil {
		return err
	}
	return tx.Commit()
}

// ParseTime reads a timestamp column written with TimeLayout or by SQLite itself.
func ParseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, f := range formats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}

// ParseNullTime reads a nullable timestamp column; NULL and empty yield the zero time.
func ParseNullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	t, _ := ParseTime(ns.String)
	return t
}

// Package storagetest opens migrated SQLite databases for store tests.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"coursebook/internal/adapters/storage"
)

// OpenMemory returns a migrated in-memory database on a single connection.
func OpenMemory(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// OpenFile returns a migrated file database in a temp dir with a real
// connection pool, for tests that exercise concurrent writers.
func OpenFile(t testing.TB) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coursebook.db")
	db, err := sql.Open("sqlite", storage.DSN(path))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(8)
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(db, path); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Exec runs a statement and fails the test on error.
func Exec(t testing.TB, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
}

// SeedLesson inserts the course if missing and appends one active lesson at the given time.
func SeedLesson(t testing.TB, db *sql.DB, courseID, lessonID string, capacity int, at time.Time) {
	t.Helper()
	Exec(t, db, `INSERT OR IGNORE INTO course (id, title, start_date, lesson_count, day_of_week, start_time, max_capacity, created_at, updated_at)
		VALUES (?, 'Babyschwimmen', ?, 1, 1, '10:00', ?, ?, ?)`,
		courseID, at.Format("2006-01-02"), capacity, at.Format(storage.TimeLayout), at.Format(storage.TimeLayout))
	Exec(t, db, `INSERT INTO lesson (id, course_id, lesson_number, title, date_time, duration, max_capacity, created_at)
		VALUES (?, ?, (SELECT COUNT(*) + 1 FROM lesson WHERE course_id = ?), 'Babyschwimmen - Lesson 1', ?, 60, ?, ?)`,
		lessonID, courseID, courseID, storage.FormatUTC(at), capacity, at.Format(storage.TimeLayout))
}

// SeedCustomer inserts a customer.
func SeedCustomer(t testing.TB, db *sql.DB, id, name, email string) {
	t.Helper()
	Exec(t, db, "INSERT INTO customer (id, name, email, created_at) VALUES (?, ?, ?, ?)",
		id, name, email, time.Now().UTC().Format(storage.TimeLayout))
}

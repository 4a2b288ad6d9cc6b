package storage

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"coursebook/internal/adapters/http/perf"
)

func openTimedTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("CREATE TABLE test (id TEXT PRIMARY KEY, val TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestQueryLabel verifies statements are grouped by verb and table.
func TestQueryLabel(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT id, title FROM course WHERE id = ?", "SELECT course"},
		{"select count(*) from booking where lesson_id = ?", "SELECT booking"},
		{"INSERT INTO lesson (id) VALUES (?)", "INSERT lesson"},
		{"UPDATE lesson SET current_bookings = current_bookings + 1", "UPDATE lesson"},
		{"DELETE FROM customer WHERE id = ?", "DELETE customer"},
		{"PRAGMA foreign_keys=ON", "PRAGMA"},
		{"   ", "empty"},
	}
	for _, tt := range tests {
		if got := QueryLabel(tt.query); got != tt.want {
			t.Errorf("QueryLabel(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

// TestTimedDB_RecordsEachCall verifies every wrapped call lands in the collector.
func TestTimedDB_RecordsEachCall(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, time.Second)
	ctx := context.Background()

	if _, err := tdb.ExecContext(ctx, "INSERT INTO test (id, val) VALUES (?, ?)", "1", "hello"); err != nil {
		t.Fatalf("ExecContext: %v", err)
	}
	var val string
	if err := tdb.QueryRowContext(ctx, "SELECT val FROM test WHERE id = ?", "1").Scan(&val); err != nil || val != "hello" {
		t.Fatalf("QueryRowContext = %q, %v", val, err)
	}
	rows, err := tdb.QueryContext(ctx, "SELECT id FROM test")
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	rows.Close()

	if got := collector.TotalRecorded(); got != 3 {
		t.Errorf("TotalRecorded = %d, want 3", got)
	}
	snap := collector.Snapshot(time.Time{}, 10)
	if len(snap.SlowestQueries) != 2 {
		t.Errorf("distinct query labels = %d, want 2 (INSERT test, SELECT test)", len(snap.SlowestQueries))
	}
}

// TestTimedDB_ErrorPassthrough verifies SQL errors are returned unchanged and still timed.
func TestTimedDB_ErrorPassthrough(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(100)
	tdb := NewTimedDB(db, collector, 0)

	if _, err := tdb.ExecContext(context.Background(), "INSERT INTO nonexistent_table VALUES (?)", 1); err == nil {
		t.Fatal("expected error from invalid SQL")
	}
	var val string
	if err := tdb.QueryRowContext(context.Background(), "SELECT val FROM test WHERE id = ?", "x").Scan(&val); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if got := collector.TotalRecorded(); got != 2 {
		t.Errorf("TotalRecorded = %d, want 2", got)
	}
}

// TestTimedDB_WithTx verifies WithTx commits through the wrapper and rolls back on error.
func TestTimedDB_WithTx(t *testing.T) {
	db := openTimedTestDB(t)
	tdb := NewTimedDB(db, nil, 0)
	ctx := context.Background()

	err := WithTx(ctx, tdb, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO test (id, val) VALUES ('a', 'kept')")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx commit: %v", err)
	}
	err = WithTx(ctx, tdb, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO test (id, val) VALUES ('b', 'dropped')"); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	if err != sql.ErrTxDone {
		t.Fatalf("WithTx rollback err = %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM test").Scan(&n); err != nil || n != 1 {
		t.Errorf("rows = %d (%v), want 1", n, err)
	}
}

// TestTimedDB_ConcurrentOps verifies no races under concurrent use.
func TestTimedDB_ConcurrentOps(t *testing.T) {
	db := openTimedTestDB(t)
	collector := perf.NewCollector(1000)
	tdb := NewTimedDB(db, collector, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tdb.ExecContext(ctx, "INSERT OR IGNORE INTO test (id, val) VALUES (?, 'v')", i)
			var n int
			tdb.QueryRowContext(ctx, "SELECT COUNT(*) FROM test").Scan(&n)
		}(i)
	}
	wg.Wait()
	if got := collector.TotalRecorded(); got != 40 {
		t.Errorf("TotalRecorded = %d, want 40", got)
	}
}

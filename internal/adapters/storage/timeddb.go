package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"coursebook/internal/adapters/http/perf"
)

// SQLDB is the database interface used by all stores.
// Both *sql.DB and *TimedDB satisfy this interface.
type SQLDB interface {
	Execer
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var _ SQLDB = (*sql.DB)(nil)

// DefaultSlowQuery is the threshold used when none is configured.
const DefaultSlowQuery = 50 * time.Millisecond

// TimedDB wraps a *sql.DB to log slow statements and record them to a collector.
type TimedDB struct {
	db        *sql.DB
	collector *perf.Collector
	threshold time.Duration
}

var _ SQLDB = (*TimedDB)(nil)

// NewTimedDB wraps a *sql.DB with timing instrumentation.
// PRE: db is a valid database connection; collector may be nil
// POST: Statements at or above threshold are logged as slow_query
func NewTimedDB(db *sql.DB, collector *perf.Collector, threshold time.Duration) *TimedDB {
	if threshold <= 0 {
		threshold = DefaultSlowQuery
	}
	return &TimedDB{db: db, collector: collector, threshold: threshold}
}

// RawDB returns the underlying *sql.DB for migrations and pool config.
func (t *TimedDB) RawDB() *sql.DB {
	return t.db
}

// QueryLabel reduces a statement to "VERB table" so timings group by shape
// rather than by argument values.
func QueryLabel(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "empty"
	}
	verb := strings.ToUpper(fields[0])
	var table string
	switch verb {
	case "SELECT", "DELETE":
		table = wordAfter(fields, "FROM")
	case "INSERT":
		table = wordAfter(fields, "INTO")
	case "UPDATE":
		if len(fields) > 1 {
			table = fields[1]
		}
	}
	if table == "" {
		return verb
	}
	return verb + " " + strings.Trim(table, "(),;")
}

func wordAfter(fields []string, keyword string) string {
	for i, f := range fields {
		if strings.EqualFold(f, keyword) && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

func (t *TimedDB) observe(label string, start time.Time, err error) {
	elapsed := time.Since(start)
	durationMs := float64(elapsed.Microseconds()) / 1000.0

	if elapsed >= t.threshold {
		slog.Warn("slow_query", "query", label, "duration_ms", durationMs, "error", err)
	} else {
		slog.Debug("query", "query", label, "duration_ms", durationMs)
	}

	if t.collector != nil {
		t.collector.Record(perf.Entry{
			Kind:       perf.KindQuery,
			Label:      label,
			Failed:     err != nil && !errors.Is(err, sql.ErrNoRows),
			DurationMs: durationMs,
			Timestamp:  start,
		})
	}
}

// ExecContext wraps sql.DB.ExecContext with timing.
func (t *TimedDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	t.observe(QueryLabel(query), start, err)
	return result, err
}

// QueryContext wraps sql.DB.QueryContext with timing.
func (t *TimedDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	t.observe(QueryLabel(query), start, err)
	return rows, err
}

// QueryRowContext wraps sql.DB.QueryRowContext with timing.
func (t *TimedDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := t.db.QueryRowContext(ctx, query, args...)
	t.observe(QueryLabel(query), start, row.Err())
	return row
}

// BeginTx wraps sql.DB.BeginTx with timing. Statements inside the
// transaction are not timed individually.
func (t *TimedDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	start := time.Now()
	tx, err := t.db.BeginTx(ctx, opts)
	t.observe("BEGIN", start, err)
	return tx, err
}

// PingContext verifies the database connection.
func (t *TimedDB) PingContext(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (t *TimedDB) Close() error {
	return t.db.Close()
}

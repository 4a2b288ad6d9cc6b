package lesson

import (
	"context"
	"database/sql"
	"time"

	"coursebook/internal/adapters/storage"
	"coursebook/internal/domain/apperr"
	domain "coursebook/internal/domain/lesson"
)

// Columns selects a lesson row in the order scanned by Scan.
const Columns = "id, course_id, lesson_number, title, date_time, duration, max_capacity, current_bookings, status, created_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new LessonStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Lesson by its ID.
// PRE: id is non-empty
// POST: Returns the entity or apperr.ErrLessonNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Lesson, error) {
	return Get(ctx, s.db, id)
}

// Get reads one lesson through any Execer, so callers inside a transaction can reuse it.
func Get(ctx context.Context, db storage.Execer, id string) (domain.Lesson, error) {
	row := db.QueryRowContext(ctx, "SELECT "+Columns+" FROM lesson WHERE id = ?", id)
	entity, err := Scan(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Lesson{}, apperr.Wrap(apperr.ErrLessonNotFound, err)
	}
	return entity, err
}

// ListByCourse returns the course's lessons ordered by lesson number.
// PRE: courseID is non-empty
// POST: Returns lessons 1..N
func (s *SQLiteStore) ListByCourse(ctx context.Context, courseID string) ([]domain.Lesson, error) {
	return s.query(ctx, "SELECT "+Columns+" FROM lesson WHERE course_id = ? ORDER BY lesson_number", courseID)
}

// ListUpcoming returns active lessons starting at or after from, soonest first.
// PRE: limit > 0
func (s *SQLiteStore) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.Lesson, error) {
	return s.query(ctx,
		"SELECT "+Columns+" FROM lesson WHERE status = ? AND date_time >= ? ORDER BY date_time LIMIT ?",
		domain.StatusActive, storage.FormatUTC(from), limit)
}

// SetCapacity sets max_capacity on every lesson of a course.
// Callers pass the transaction the surrounding course update runs in.
// PRE: capacity in [1,100]
// POST: All lessons updated, or none when any lesson already holds more bookings
// INVARIANT: current_bookings <= max_capacity on every row
func SetCapacity(ctx context.Context, db storage.Execer, courseID string, capacity int) error {
	var over int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM lesson WHERE course_id = ? AND current_bookings > ?", courseID, capacity).Scan(&over)
	if err != nil {
		return err
	}
	if over > 0 {
		return apperr.ErrCapacityBelowUse
	}
	_, err = db.ExecContext(ctx, "UPDATE lesson SET max_capacity = ? WHERE course_id = ?", capacity, courseID)
	return err
}

// Retitle rewrites lesson titles after the course title changed.
// POST: Every lesson title is "<courseTitle> - Lesson <n>"
func Retitle(ctx context.Context, db storage.Execer, courseID, courseTitle string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE lesson SET title = ? || ' - Lesson ' || lesson_number WHERE course_id = ?",
		courseTitle, courseID)
	return err
}

// SetStatus sets the status of every not-yet-completed lesson of a course.
func SetStatus(ctx context.Context, db storage.Execer, courseID, status string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE lesson SET status = ? WHERE course_id = ? AND status != ?",
		status, courseID, domain.StatusCompleted)
	return err
}

// CompletePast marks active lessons whose end time has passed as completed.
// POST: Returns the number of lessons updated
func (s *SQLiteStore) CompletePast(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lesson SET status = ?
		 WHERE status = ? AND datetime(date_time, '+' || duration || ' minutes') <= datetime(?)`,
		domain.StatusCompleted, domain.StatusActive, storage.FormatUTC(now))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Lesson
	for rows.Next() {
		entity, err := Scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Scan extracts a Lesson from a row scanner function; columns as in Columns.
func Scan(scan func(dest ...any) error) (domain.Lesson, error) {
	var entity domain.Lesson
	var dateTime, createdAt string
	err := scan(
		&entity.ID,
		&entity.CourseID,
		&entity.LessonNumber,
		&entity.Title,
		&dateTime,
		&entity.Duration,
		&entity.MaxCapacity,
		&entity.CurrentBookings,
		&entity.Status,
		&createdAt,
	)
	if err != nil {
		return domain.Lesson{}, err
	}
	entity.DateTime, _ = storage.ParseTime(dateTime)
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	return entity, nil
}

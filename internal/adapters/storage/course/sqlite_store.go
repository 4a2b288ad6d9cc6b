package course

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"coursebook/internal/adapters/storage"
	bookingstore "coursebook/internal/adapters/storage/booking"
	lessonstore "coursebook/internal/adapters/storage/lesson"
	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/booking"
	domain "coursebook/internal/domain/course"
	"coursebook/internal/domain/lesson"
)

const courseColumns = "id, title, description, start_date, lesson_count, day_of_week, start_time, lesson_duration, max_capacity, price, status, created_at, updated_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new CourseStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Course by its ID.
// PRE: id is non-empty
// POST: Returns the entity or apperr.ErrCourseNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Course, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+courseColumns+" FROM course WHERE id = ?", id)
	entity, err := scanCourse(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Course{}, apperr.Wrap(apperr.ErrCourseNotFound, err)
	}
	return entity, err
}

// Save persists a Course to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Course) error {
	return upsertCourse(ctx, s.db, entity)
}

// SaveWithLessons persists a course and replaces all of its lessons in one transaction.
// PRE: entity validated; lessons generated for entity
// POST: Course row upserted; lesson rows equal exactly the given lessons
func (s *SQLiteStore) SaveWithLessons(ctx context.Context, entity domain.Course, lessons []lesson.Lesson) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := upsertCourse(ctx, tx, entity); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM lesson WHERE course_id = ?", entity.ID); err != nil {
			return fmt.Errorf("delete lessons: %w", err)
		}
		for _, l := range lessons {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO lesson (id, course_id, lesson_number, title, date_time, duration, max_capacity, current_bookings, status, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				l.ID, entity.ID, l.LessonNumber, l.Title, storage.FormatUTC(l.DateTime), l.Duration,
				l.MaxCapacity, l.CurrentBookings, l.Status, l.CreatedAt.Format(storage.TimeLayout),
			)
			if err != nil {
				return fmt.Errorf("insert lesson %d: %w", l.LessonNumber, err)
			}
		}
		return nil
	})
}

// UpdateInPlace saves a course whose schedule is unchanged and pushes its
// capacity and title to the existing lessons in one transaction. Seats freed
// by a larger capacity go to waitlisted bookings of lessons that have not started.
// PRE: entity validated; schedule fields equal the stored course
// POST: Course, lesson capacities and titles all updated, or nothing changed;
// returns the promoted bookings
// INVARIANT: no lesson's max_capacity drops below its current_bookings
func (s *SQLiteStore) UpdateInPlace(ctx context.Context, entity domain.Course, now time.Time) ([]booking.Booking, error) {
	var promoted []booking.Booking
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := lessonstore.SetCapacity(ctx, tx, entity.ID, entity.MaxCapacity); err != nil {
			return err
		}
		if err := lessonstore.Retitle(ctx, tx, entity.ID, entity.Title); err != nil {
			return fmt.Errorf("retitle lessons: %w", err)
		}
		if err := upsertCourse(ctx, tx, entity); err != nil {
			return fmt.Errorf("save course: %w", err)
		}
		ids, err := activeLessonIDs(ctx, tx, entity.ID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			p, err := bookingstore.PromoteWaitlist(ctx, tx, id, now)
			if err != nil {
				return fmt.Errorf("promote waitlist: %w", err)
			}
			promoted = append(promoted, p...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// CancelWithBookings stores a cancelled course, cancels its open lessons and
// every active booking on them in one transaction.
// PRE: entity.Status is cancelled
// POST: Course, lessons and bookings cancelled with zeroed seat counters, or
// nothing changed; returns the cancelled bookings
func (s *SQLiteStore) CancelWithBookings(ctx context.Context, entity domain.Course, now time.Time) ([]booking.Booking, error) {
	var cancelled []booking.Booking
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := upsertCourse(ctx, tx, entity); err != nil {
			return fmt.Errorf("save course: %w", err)
		}
		if err := lessonstore.SetStatus(ctx, tx, entity.ID, lesson.StatusCancelled); err != nil {
			return fmt.Errorf("cancel lessons: %w", err)
		}
		var err error
		cancelled, err = bookingstore.CancelAllForCourse(ctx, tx, entity.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func activeLessonIDs(ctx context.Context, tx *sql.Tx, courseID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM lesson WHERE course_id = ? AND status = ? ORDER BY lesson_number", courseID, lesson.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func upsertCourse(ctx context.Context, db storage.Execer, entity domain.Course) error {
	fields := strings.Split(courseColumns, ", ")
	placeholders := make([]string, len(fields))
	var updates []string
	for i, f := range fields {
		placeholders[i] = "?"
		if f != "id" && f != "created_at" {
			updates = append(updates, f+"=excluded."+f)
		}
	}
	query := fmt.Sprintf(
		"INSERT INTO course (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		courseColumns,
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	_, err := db.ExecContext(ctx, query,
		entity.ID,
		entity.Title,
		entity.Description,
		entity.StartDate.Format(domain.DateLayout),
		entity.LessonCount,
		entity.DayOfWeek,
		entity.StartTime,
		entity.LessonDuration,
		entity.MaxCapacity,
		entity.Price,
		entity.Status,
		entity.CreatedAt.Format(storage.TimeLayout),
		entity.UpdatedAt.Format(storage.TimeLayout),
	)
	return err
}

// Delete removes a Course; its lessons and their bookings cascade.
// PRE: id is non-empty
// POST: Entity with given id is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM course WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrCourseNotFound
	}
	return nil
}

// List retrieves Courses ordered by start date.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Course, error) {
	where, args := buildWhere(filter)
	query := "SELECT " + courseColumns + " FROM course" + where + " ORDER BY start_date, start_time, title"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	return s.query(ctx, query, args...)
}

// Count returns the number of courses matching the filter, ignoring paging.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := buildWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM course"+where, args...).Scan(&n)
	return n, err
}

func buildWhere(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListActiveByDay returns active courses held on the given weekday (1=Monday..7=Sunday).
// PRE: dayOfWeek in [1,7]
// POST: Returns courses ordered by start_time
func (s *SQLiteStore) ListActiveByDay(ctx context.Context, dayOfWeek int) ([]domain.Course, error) {
	return s.query(ctx,
		"SELECT "+courseColumns+" FROM course WHERE status = ? AND day_of_week = ? ORDER BY start_time",
		domain.StatusActive, dayOfWeek)
}

// CountActiveBookings returns the number of non-cancelled bookings across the course's lessons.
func (s *SQLiteStore) CountActiveBookings(ctx context.Context, courseID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM booking b JOIN lesson l ON l.id = b.lesson_id
		 WHERE l.course_id = ? AND b.booking_status != 'cancelled'`, courseID).Scan(&n)
	return n, err
}

// CompleteFinished marks active courses as completed once none of their lessons is still active.
// POST: Returns the number of courses updated
func (s *SQLiteStore) CompleteFinished(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE course SET status = ?, updated_at = ?
		 WHERE status = ?
		   AND EXISTS (SELECT 1 FROM lesson WHERE lesson.course_id = course.id)
		   AND NOT EXISTS (SELECT 1 FROM lesson WHERE lesson.course_id = course.id AND lesson.status = ?)`,
		domain.StatusCompleted, now.Format(storage.TimeLayout), domain.StatusActive, lesson.StatusActive)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.Course, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Course
	for rows.Next() {
		entity, err := scanCourse(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// scanCourse extracts a Course from a row scanner function.
func scanCourse(scan func(dest ...any) error) (domain.Course, error) {
	var entity domain.Course
	var startDate, createdAt, updatedAt string
	err := scan(
		&entity.ID,
		&entity.Title,
		&entity.Description,
		&startDate,
		&entity.LessonCount,
		&entity.DayOfWeek,
		&entity.StartTime,
		&entity.LessonDuration,
		&entity.MaxCapacity,
		&entity.Price,
		&entity.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Course{}, err
	}
	entity.StartDate, _ = domain.ParseDate(startDate)
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	entity.UpdatedAt, _ = storage.ParseTime(updatedAt)
	return entity, nil
}

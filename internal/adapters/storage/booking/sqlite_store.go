package booking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coursebook/internal/adapters/storage"
	lessonstore "coursebook/internal/adapters/storage/lesson"
	"coursebook/internal/domain/apperr"
	domain "coursebook/internal/domain/booking"
	"coursebook/internal/domain/lesson"
)

const bookingColumns = "id, lesson_id, customer_id, customer_email, customer_name, customer_phone, booking_status, notes, created_at, cancelled_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new BookingStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Booking by its ID.
// PRE: id is non-empty
// POST: Returns the entity or apperr.ErrBookingNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Booking, error) {
	return getBooking(ctx, s.db, id)
}

func getBooking(ctx context.Context, db storage.Execer, id string) (domain.Booking, error) {
	row := db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM booking WHERE id = ?", id)
	entity, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Booking{}, apperr.Wrap(apperr.ErrBookingNotFound, err)
	}
	return entity, err
}

// ListByLesson returns all bookings of a lesson, oldest first.
func (s *SQLiteStore) ListByLesson(ctx context.Context, lessonID string) ([]domain.Booking, error) {
	return queryBookings(ctx, s.db,
		"SELECT "+bookingColumns+" FROM booking WHERE lesson_id = ? ORDER BY created_at, id", lessonID)
}

// ListByCustomer returns all bookings of a customer, newest first.
func (s *SQLiteStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error) {
	return queryBookings(ctx, s.db,
		"SELECT "+bookingColumns+" FROM booking WHERE customer_id = ? ORDER BY created_at DESC, id", customerID)
}

// ListActiveByCourseAndCustomer returns the customer's non-cancelled bookings on the course's lessons.
func (s *SQLiteStore) ListActiveByCourseAndCustomer(ctx context.Context, courseID, customerID string) ([]domain.Booking, error) {
	return queryBookings(ctx, s.db,
		`SELECT b.id, b.lesson_id, b.customer_id, b.customer_email, b.customer_name, b.customer_phone,
		        b.booking_status, b.notes, b.created_at, b.cancelled_at
		 FROM booking b JOIN lesson l ON l.id = b.lesson_id
		 WHERE l.course_id = ? AND b.customer_id = ? AND b.booking_status != ?
		 ORDER BY l.lesson_number`,
		courseID, customerID, domain.StatusCancelled)
}

// FindActive returns the non-cancelled booking for (lesson, email), if any.
func (s *SQLiteStore) FindActive(ctx context.Context, lessonID, email string) (domain.Booking, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM booking WHERE lesson_id = ? AND customer_email = ? AND booking_status != ?",
		lessonID, email, domain.StatusCancelled)
	entity, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Booking{}, false, nil
	}
	if err != nil {
		return domain.Booking{}, false, err
	}
	return entity, true, nil
}

// CountConfirmed returns the number of seat-holding bookings of a lesson.
func (s *SQLiteStore) CountConfirmed(ctx context.Context, lessonID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM booking WHERE lesson_id = ? AND booking_status = ?",
		lessonID, domain.StatusConfirmed).Scan(&n)
	return n, err
}

// Reserve takes a seat on the booking's lesson and inserts the booking as confirmed.
// PRE: b validated; b.CustomerEmail normalized
// POST: On success the lesson counter is one higher and the booking row exists;
// on any error neither change is visible
// INVARIANT: current_bookings never exceeds max_capacity, even under concurrent calls
func (s *SQLiteStore) Reserve(ctx context.Context, b domain.Booking) (lesson.Lesson, error) {
	var after lesson.Lesson
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE lesson SET current_bookings = current_bookings + 1
			 WHERE id = ? AND status = ? AND current_bookings < max_capacity`,
			b.LessonID, lesson.StatusActive)
		if err != nil {
			return fmt.Errorf("increment seat counter: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return diagnoseNoSeat(ctx, tx, b.LessonID)
		}

		b.Status = domain.StatusConfirmed
		if err := insertBooking(ctx, tx, b); err != nil {
			return err
		}
		after, err = lessonstore.Get(ctx, tx, b.LessonID)
		return err
	})
	if err != nil {
		return lesson.Lesson{}, err
	}
	return after, nil
}

// diagnoseNoSeat explains why the conditional increment matched no row.
func diagnoseNoSeat(ctx context.Context, tx *sql.Tx, lessonID string) error {
	l, err := lessonstore.Get(ctx, tx, lessonID)
	if err != nil {
		return err
	}
	if !l.IsActive() {
		return apperr.ErrLessonInactive
	}
	return apperr.ErrLessonFull
}

// AddToWaitlist records a waitlisted booking without touching the seat counter.
// PRE: b validated
// POST: Booking stored with status waitlist
func (s *SQLiteStore) AddToWaitlist(ctx context.Context, b domain.Booking) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		l, err := lessonstore.Get(ctx, tx, b.LessonID)
		if err != nil {
			return err
		}
		if !l.IsActive() {
			return apperr.ErrLessonInactive
		}
		b.Status = domain.StatusWaitlist
		return insertBooking(ctx, tx, b)
	})
}

func insertBooking(ctx context.Context, tx *sql.Tx, b domain.Booking) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO booking ("+bookingColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		b.ID, b.LessonID, b.CustomerID, b.CustomerEmail, b.CustomerName, b.CustomerPhone,
		b.Status, b.Notes, b.CreatedAt.Format(storage.TimeLayout), storage.NullTime(b.CancelledAt),
	)
	if storage.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.ErrDuplicateBooking, err)
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// Release cancels a booking and frees its seat, promoting the oldest
// waitlisted booking of the lesson when the lesson has not started.
// PRE: bookingID is non-empty
// POST: Booking cancelled; the counter is decremented (floored at 0) only if
// the booking held a seat; an already-cancelled booking is left untouched
func (s *SQLiteStore) Release(ctx context.Context, bookingID string, now time.Time) (ReleaseResult, error) {
	var result ReleaseResult
	err := storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		b, err := getBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status == domain.StatusCancelled {
			result = ReleaseResult{Booking: b, AlreadyCancelled: true}
			return nil
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE booking SET booking_status = ?, cancelled_at = ? WHERE id = ? AND booking_status != ?",
			domain.StatusCancelled, now.Format(storage.TimeLayout), bookingID, domain.StatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			result = ReleaseResult{Booking: b, AlreadyCancelled: true}
			return nil
		}

		heldSeat := b.HoldsSeat()
		_ = b.Cancel(now)
		result.Booking = b
		if !heldSeat {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE lesson SET current_bookings = MAX(current_bookings - 1, 0) WHERE id = ?", b.LessonID); err != nil {
			return fmt.Errorf("decrement seat counter: %w", err)
		}

		promoted, err := promoteNext(ctx, tx, b.LessonID, now)
		if err != nil {
			return err
		}
		result.Promoted = promoted
		return nil
	})
	return result, err
}

// PromoteWaitlist fills every free seat of a lesson from its waitlist,
// oldest booking first. Callers pass the transaction that freed the seats.
// POST: Returns the promoted bookings in promotion order
func PromoteWaitlist(ctx context.Context, tx storage.Execer, lessonID string, now time.Time) ([]domain.Booking, error) {
	var promoted []domain.Booking
	for {
		next, err := promoteNext(ctx, tx, lessonID, now)
		if err != nil || next == nil {
			return promoted, err
		}
		promoted = append(promoted, *next)
	}
}

// promoteNext moves the oldest waitlisted booking into a free seat.
func promoteNext(ctx context.Context, tx storage.Execer, lessonID string, now time.Time) (*domain.Booking, error) {
	l, err := lessonstore.Get(ctx, tx, lessonID)
	if err != nil {
		return nil, err
	}
	if !l.IsActive() || l.HasStarted(now) || l.IsFull() {
		return nil, nil
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM booking WHERE lesson_id = ? AND booking_status = ? ORDER BY created_at, id LIMIT 1",
		lessonID, domain.StatusWaitlist)
	next, err := scanBooking(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE lesson SET current_bookings = current_bookings + 1 WHERE id = ? AND current_bookings < max_capacity",
		lessonID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE booking SET booking_status = ? WHERE id = ?", domain.StatusConfirmed, next.ID); err != nil {
		return nil, err
	}
	_ = next.Promote()
	return &next, nil
}

// CancelAllForCourse cancels every active booking on the course's lessons and
// zeroes their seat counters. Callers pass the transaction that cancels the
// course itself.
// POST: Returns the bookings that were cancelled, in their new state
func CancelAllForCourse(ctx context.Context, tx storage.Execer, courseID string, now time.Time) ([]domain.Booking, error) {
	active, err := queryBookings(ctx, tx,
		`SELECT b.id, b.lesson_id, b.customer_id, b.customer_email, b.customer_name, b.customer_phone,
		        b.booking_status, b.notes, b.created_at, b.cancelled_at
		 FROM booking b JOIN lesson l ON l.id = b.lesson_id
		 WHERE l.course_id = ? AND b.booking_status != ?
		 ORDER BY l.lesson_number, b.created_at`,
		courseID, domain.StatusCancelled)
	if err != nil {
		return nil, err
	}
	stamp := now.Format(storage.TimeLayout)
	if _, err := tx.ExecContext(ctx,
		`UPDATE booking SET booking_status = ?, cancelled_at = ?
		 WHERE booking_status != ? AND lesson_id IN (SELECT id FROM lesson WHERE course_id = ?)`,
		domain.StatusCancelled, stamp, domain.StatusCancelled, courseID); err != nil {
		return nil, fmt.Errorf("cancel bookings: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE lesson SET current_bookings = 0 WHERE course_id = ?", courseID); err != nil {
		return nil, fmt.Errorf("reset seat counters: %w", err)
	}
	for i := range active {
		_ = active[i].Cancel(now)
	}
	return active, nil
}

func queryBookings(ctx context.Context, db storage.Execer, query string, args ...any) ([]domain.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Booking
	for rows.Next() {
		entity, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// scanBooking extracts a Booking from a row scanner function.
func scanBooking(scan func(dest ...any) error) (domain.Booking, error) {
	var entity domain.Booking
	var createdAt string
	var cancelledAt sql.NullString
	err := scan(
		&entity.ID,
		&entity.LessonID,
		&entity.CustomerID,
		&entity.CustomerEmail,
		&entity.CustomerName,
		&entity.CustomerPhone,
		&entity.Status,
		&entity.Notes,
		&createdAt,
		&cancelledAt,
	)
	if err != nil {
		return domain.Booking{}, err
	}
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	entity.CancelledAt = storage.ParseNullTime(cancelledAt)
	return entity, nil
}

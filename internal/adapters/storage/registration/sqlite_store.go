package registration

import (
	"context"
	"encoding/json"
	"fmt"

	"coursebook/internal/adapters/storage"
	domain "coursebook/internal/domain/registration"
)

const registrationColumns = "id, course_id, customer_id, kind, succeeded, failed, failed_lessons, created_at"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new RegistrationStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save inserts a registration record.
// PRE: value has been validated
// POST: Record persisted with FailedLessons as a JSON array
func (s *SQLiteStore) Save(ctx context.Context, value domain.CourseRegistration) error {
	failed := value.FailedLessons
	if failed == nil {
		failed = []domain.LessonFailure{}
	}
	raw, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("encode failed lessons: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO course_registration ("+registrationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		value.ID, value.CourseID, value.CustomerID, value.Kind, value.Succeeded, value.Failed,
		string(raw), value.CreatedAt.Format(storage.TimeLayout))
	return err
}

// ListByCustomer returns a customer's registrations, newest first.
func (s *SQLiteStore) ListByCustomer(ctx context.Context, customerID string) ([]domain.CourseRegistration, error) {
	return s.query(ctx, "SELECT "+registrationColumns+" FROM course_registration WHERE customer_id = ? ORDER BY created_at DESC", customerID)
}

// ListByCourse returns a course's registrations, newest first.
func (s *SQLiteStore) ListByCourse(ctx context.Context, courseID string) ([]domain.CourseRegistration, error) {
	return s.query(ctx, "SELECT "+registrationColumns+" FROM course_registration WHERE course_id = ? ORDER BY created_at DESC", courseID)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]domain.CourseRegistration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.CourseRegistration
	for rows.Next() {
		var r domain.CourseRegistration
		var failed, createdAt string
		if err := rows.Scan(&r.ID, &r.CourseID, &r.CustomerID, &r.Kind, &r.Succeeded, &r.Failed, &failed, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(failed), &r.FailedLessons); err != nil {
			return nil, fmt.Errorf("decode failed lessons: %w", err)
		}
		r.CreatedAt, _ = storage.ParseTime(createdAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

package customer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"coursebook/internal/adapters/storage"
	"coursebook/internal/domain/apperr"
	domain "coursebook/internal/domain/customer"
)

const customerColumns = "id, account_id, name, email, phone, child_name, child_birth_date, emergency_contact, notes, created_at"

// allowedSort maps sort keys to columns; anything else falls back to name.
var allowedSort = map[string]string{
	"name":       "name",
	"email":      "email",
	"created_at": "created_at",
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new CustomerStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Customer by its ID.
// PRE: id is non-empty
// POST: Returns the entity or apperr.ErrCustomerNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Customer, error) {
	return s.getOne(ctx, "id", id)
}

// GetByEmail retrieves a Customer by email, case-insensitively.
// PRE: email is non-empty
// POST: Returns the entity or apperr.ErrCustomerNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return s.getOne(ctx, "email", domain.NormalizeEmail(email))
}

// GetByAccountID retrieves the Customer linked to a login account.
// PRE: accountID is non-empty
// POST: Returns the entity or apperr.ErrCustomerNotFound
func (s *SQLiteStore) GetByAccountID(ctx context.Context, accountID string) (domain.Customer, error) {
	return s.getOne(ctx, "account_id", accountID)
}

func (s *SQLiteStore) getOne(ctx context.Context, column, value string) (domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+customerColumns+" FROM customer WHERE "+column+" = ?", value)
	entity, err := scanCustomer(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Customer{}, apperr.Wrap(apperr.ErrCustomerNotFound, err)
	}
	return entity, err
}

// Save persists a Customer to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update); a taken email yields apperr.ErrEmailTaken
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Customer) error {
	fields := strings.Split(customerColumns, ", ")
	placeholders := make([]string, len(fields))
	var updates []string
	for i, f := range fields {
		placeholders[i] = "?"
		if f != "id" && f != "created_at" {
			updates = append(updates, f+"=excluded."+f)
		}
	}
	query := fmt.Sprintf(
		"INSERT INTO customer (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		customerColumns,
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	var birth any
	if !entity.ChildBirthDate.IsZero() {
		birth = entity.ChildBirthDate.Format("2006-01-02")
	}
	_, err := s.db.ExecContext(ctx, query,
		entity.ID,
		storage.NullString(entity.AccountID),
		entity.Name,
		domain.NormalizeEmail(entity.Email),
		entity.Phone,
		entity.ChildName,
		birth,
		entity.EmergencyContact,
		entity.Notes,
		entity.CreatedAt.Format(storage.TimeLayout),
	)
	if storage.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.ErrEmailTaken, err)
	}
	return err
}

// Delete removes a Customer from the database.
// PRE: id is non-empty; the customer holds no bookings
// POST: Entity with given id is removed
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM booking WHERE customer_id = ? AND booking_status = 'cancelled'", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM course_registration WHERE customer_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM customer WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.ErrCustomerNotFound
		}
		return nil
	})
}

// List retrieves Customers based on the filter.
// PRE: filter has valid parameters
// POST: Returns matching entities
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Customer, error) {
	where, args := buildWhere(filter)

	col, ok := allowedSort[filter.SortBy]
	if !ok {
		col = "name"
	}
	dir := "ASC"
	if strings.EqualFold(filter.SortDir, "desc") {
		dir = "DESC"
	}

	query := "SELECT " + customerColumns + " FROM customer" + where + " ORDER BY " + col + " " + dir
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Customer
	for rows.Next() {
		entity, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the number of customers matching the filter, ignoring paging.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	where, args := buildWhere(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM customer"+where, args...).Scan(&n)
	return n, err
}

// CountActiveBookings returns the customer's non-cancelled bookings.
func (s *SQLiteStore) CountActiveBookings(ctx context.Context, customerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM booking WHERE customer_id = ? AND booking_status != 'cancelled'", customerID).Scan(&n)
	return n, err
}

func buildWhere(filter ListFilter) (string, []any) {
	if filter.Search == "" {
		return "", nil
	}
	like := "%" + strings.ToLower(filter.Search) + "%"
	return " WHERE (LOWER(name) LIKE ? OR email LIKE ? OR LOWER(child_name) LIKE ?)", []any{like, like, like}
}

// scanCustomer extracts a Customer from a row scanner function.
func scanCustomer(scan func(dest ...any) error) (domain.Customer, error) {
	var entity domain.Customer
	var accountID, birth sql.NullString
	var createdAt string
	err := scan(
		&entity.ID,
		&accountID,
		&entity.Name,
		&entity.Email,
		&entity.Phone,
		&entity.ChildName,
		&birth,
		&entity.EmergencyContact,
		&entity.Notes,
		&createdAt,
	)
	if err != nil {
		return domain.Customer{}, err
	}
	entity.AccountID = accountID.String
	entity.ChildBirthDate = storage.ParseNullTime(birth)
	entity.CreatedAt, _ = storage.ParseTime(createdAt)
	return entity, nil
}

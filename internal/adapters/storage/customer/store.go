package customer

import (
	"context"

	domain "coursebook/internal/domain/customer"
)

// Store persists Customer state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (domain.Customer, error)
	GetByAccountID(ctx context.Context, accountID string) (domain.Customer, error)
	Save(ctx context.Context, value domain.Customer) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]domain.Customer, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	CountActiveBookings(ctx context.Context, customerID string) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit   int
	Offset  int
	Search  string // matches name, email or child name
	SortBy  string // name, email, created_at
	SortDir string // asc, desc
}

var _ Store = (*SQLiteStore)(nil)

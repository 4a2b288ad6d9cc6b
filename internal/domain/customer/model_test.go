package customer_test

import (
	"testing"
	"time"

	"coursebook/internal/domain/customer"
)

// TestCustomer_Validate tests validation of Customer.
func TestCustomer_Validate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		cust    customer.Customer
		wantErr error
	}{
		{"valid", customer.Customer{Name: "Anna", Email: "anna@example.com"}, nil},
		{"empty name", customer.Customer{Name: " ", Email: "anna@example.com"}, customer.ErrEmptyName},
		{"bad email", customer.Customer{Name: "Anna", Email: "anna.example.com"}, customer.ErrInvalidEmail},
		{"future birth", customer.Customer{Name: "Anna", Email: "a@b.c", ChildBirthDate: now.AddDate(0, 1, 0)}, customer.ErrBirthDateInFuture},
		{"past birth", customer.Customer{Name: "Anna", Email: "a@b.c", ChildBirthDate: now.AddDate(0, -3, 0)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cust.Validate(now); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestNormalizeEmail tests case folding and trimming.
func TestNormalizeEmail(t *testing.T) {
	if got := customer.NormalizeEmail("  Anna@Example.COM "); got != "anna@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}

// TestCustomer_ChildAgeMonths tests month arithmetic.
func TestCustomer_ChildAgeMonths(t *testing.T) {
	c := customer.Customer{ChildBirthDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}
	if got := c.ChildAgeMonths(time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC)); got != 2 {
		t.Errorf("age = %d, want 2", got)
	}
	if got := c.ChildAgeMonths(time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)); got != 3 {
		t.Errorf("age = %d, want 3", got)
	}
	unknown := customer.Customer{}
	if got := unknown.ChildAgeMonths(time.Now()); got != -1 {
		t.Errorf("unknown age = %d, want -1", got)
	}
}

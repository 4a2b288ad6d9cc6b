package customer

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength  = 100
	MaxEmailLength = 254
	MaxNotesLength = 2000
)

// Domain errors
var (
	ErrEmptyName         = errors.New("customer name cannot be empty")
	ErrNameTooLong       = errors.New("customer name cannot exceed 100 characters")
	ErrInvalidEmail      = errors.New("customer email must be valid")
	ErrNotesTooLong      = errors.New("notes cannot exceed 2000 characters")
	ErrBirthDateInFuture = errors.New("child birth date cannot be in the future")
)

// Customer is a parent who books lessons, optionally linked to a login account.
type Customer struct {
	ID               string
	AccountID        string
	Name             string
	Email            string
	Phone            string
	ChildName        string
	ChildBirthDate   time.Time // zero when unknown
	EmergencyContact string
	Notes            string
	CreatedAt        time.Time
}

// Validate checks if the Customer has valid data.
// PRE: Customer struct is populated
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Email must contain '@', Name must not be empty
func (c *Customer) Validate(now time.Time) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if len(c.Email) > MaxEmailLength || !strings.Contains(c.Email, "@") {
		return ErrInvalidEmail
	}
	if len(c.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	if !c.ChildBirthDate.IsZero() && c.ChildBirthDate.After(now) {
		return ErrBirthDateInFuture
	}
	return nil
}

// NormalizeEmail lower-cases and trims an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ChildAgeMonths returns the child's age in whole months at the given time,
// or -1 when the birth date is unknown.
func (c *Customer) ChildAgeMonths(at time.Time) int {
	if c.ChildBirthDate.IsZero() {
		return -1
	}
	by, bm, bd := c.ChildBirthDate.Date()
	y, m, d := at.Date()
	months := (y-by)*12 + int(m-bm)
	if d < bd {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

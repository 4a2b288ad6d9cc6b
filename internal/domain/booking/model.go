package booking

import (
	"errors"
	"strings"
	"time"
)

// Status constants
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusPending   = "pending"
	StatusWaitlist  = "waitlist"
)

// ValidStatuses contains all valid booking status values.
var ValidStatuses = []string{StatusConfirmed, StatusCancelled, StatusPending, StatusWaitlist}

// Domain errors
var (
	ErrEmptyLessonID    = errors.New("lesson ID cannot be empty")
	ErrInvalidEmail     = errors.New("customer email must be valid")
	ErrEmptyName        = errors.New("customer name cannot be empty")
	ErrInvalidStatus    = errors.New("status must be confirmed, cancelled, pending or waitlist")
	ErrAlreadyCancelled = errors.New("booking is already cancelled")
	ErrNotWaitlisted    = errors.New("booking is not on the waitlist")
)

// Booking links one Lesson to one Customer. The customer fields are a
// snapshot taken at booking time.
type Booking struct {
	ID            string
	LessonID      string
	CustomerID    string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
	Status        string
	Notes         string
	CreatedAt     time.Time
	CancelledAt   time.Time
}

// Validate checks if the Booking has valid data.
// PRE: Booking struct is populated
// POST: Returns nil if valid, error otherwise
func (b *Booking) Validate() error {
	if b.LessonID == "" {
		return ErrEmptyLessonID
	}
	if !strings.Contains(b.CustomerEmail, "@") {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(b.CustomerName) == "" {
		return ErrEmptyName
	}
	if !isValidStatus(b.Status) {
		return ErrInvalidStatus
	}
	return nil
}

// HoldsSeat returns true if the booking counts against lesson capacity.
func (b *Booking) HoldsSeat() bool {
	return b.Status == StatusConfirmed
}

// IsActive returns true for any status other than cancelled.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// Cancel soft-deletes the booking.
// PRE: Booking is not cancelled
// POST: Status is cancelled, CancelledAt is set
func (b *Booking) Cancel(now time.Time) error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	b.Status = StatusCancelled
	b.CancelledAt = now
	return nil
}

// Promote moves a waitlisted booking to confirmed.
// PRE: Status is waitlist
// POST: Status is confirmed
func (b *Booking) Promote() error {
	if b.Status != StatusWaitlist {
		return ErrNotWaitlisted
	}
	b.Status = StatusConfirmed
	return nil
}

func isValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

package booking_test

import (
	"testing"
	"time"

	"coursebook/internal/domain/booking"
)

// TestBooking_Validate tests validation of Booking.
func TestBooking_Validate(t *testing.T) {
	tests := []struct {
		name    string
		b       booking.Booking
		wantErr error
	}{
		{"valid", booking.Booking{LessonID: "l", CustomerEmail: "a@b.c", CustomerName: "A", Status: booking.StatusConfirmed}, nil},
		{"waitlist", booking.Booking{LessonID: "l", CustomerEmail: "a@b.c", CustomerName: "A", Status: booking.StatusWaitlist}, nil},
		{"no lesson", booking.Booking{CustomerEmail: "a@b.c", CustomerName: "A", Status: booking.StatusConfirmed}, booking.ErrEmptyLessonID},
		{"bad email", booking.Booking{LessonID: "l", CustomerEmail: "ab.c", CustomerName: "A", Status: booking.StatusConfirmed}, booking.ErrInvalidEmail},
		{"no name", booking.Booking{LessonID: "l", CustomerEmail: "a@b.c", Status: booking.StatusConfirmed}, booking.ErrEmptyName},
		{"bad status", booking.Booking{LessonID: "l", CustomerEmail: "a@b.c", CustomerName: "A", Status: "booked"}, booking.ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.b.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestBooking_Cancel tests that cancelling twice is reported.
func TestBooking_Cancel(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	b := booking.Booking{Status: booking.StatusConfirmed}
	if !b.HoldsSeat() {
		t.Error("confirmed booking should hold a seat")
	}
	if err := b.Cancel(now); err != nil {
		t.Fatalf("Cancel() = %v", err)
	}
	if b.HoldsSeat() || b.IsActive() || !b.CancelledAt.Equal(now) {
		t.Errorf("unexpected state after cancel: %+v", b)
	}
	if err := b.Cancel(now); err != booking.ErrAlreadyCancelled {
		t.Errorf("second Cancel() = %v, want ErrAlreadyCancelled", err)
	}
}

// TestBooking_Promote tests waitlist promotion.
func TestBooking_Promote(t *testing.T) {
	b := booking.Booking{Status: booking.StatusWaitlist}
	if b.HoldsSeat() {
		t.Error("waitlisted booking should not hold a seat")
	}
	if err := b.Promote(); err != nil || b.Status != booking.StatusConfirmed {
		t.Errorf("Promote() = %v, status %s", err, b.Status)
	}
	if err := b.Promote(); err != booking.ErrNotWaitlisted {
		t.Errorf("second Promote() = %v, want ErrNotWaitlisted", err)
	}
}

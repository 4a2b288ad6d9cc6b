package projections

import (
	"context"
	"fmt"
	"time"

	"coursebook/internal/domain/booking"
)

// BookingView is a booking as shown on attendee lists.
type BookingView struct {
	ID            string    `json:"id"`
	LessonID      string    `json:"lesson_id"`
	CustomerID    string    `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ViewBooking converts a booking for display.
func ViewBooking(b booking.Booking) BookingView {
	return BookingView{
		ID:            b.ID,
		LessonID:      b.LessonID,
		CustomerID:    b.CustomerID,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		CustomerPhone: b.CustomerPhone,
		Status:        b.Status,
		Notes:         b.Notes,
		CreatedAt:     b.CreatedAt,
	}
}

// LessonBookingsResult groups a lesson's bookings by state.
type LessonBookingsResult struct {
	Lesson    LessonView    `json:"lesson"`
	Confirmed []BookingView `json:"confirmed"`
	Waitlist  []BookingView `json:"waitlist"`
	Cancelled int           `json:"cancelled"`
}

// GetLessonBookingsDeps holds dependencies for QueryGetLessonBookings.
type GetLessonBookingsDeps struct {
	Lessons  LessonStore
	Bookings BookingStore
	Now      func() time.Time
}

// QueryGetLessonBookings returns the attendee list of one lesson.
// PRE: lessonID is non-empty
// POST: Confirmed and Waitlist are in booking order
func QueryGetLessonBookings(ctx context.Context, lessonID string, deps GetLessonBookingsDeps) (LessonBookingsResult, error) {
	l, err := deps.Lessons.GetByID(ctx, lessonID)
	if err != nil {
		return LessonBookingsResult{}, err
	}
	bookings, err := deps.Bookings.ListByLesson(ctx, l.ID)
	if err != nil {
		return LessonBookingsResult{}, fmt.Errorf("list bookings: %w", err)
	}

	res := LessonBookingsResult{
		Lesson:    ViewLesson(l, clock(deps.Now)),
		Confirmed: []BookingView{},
		Waitlist:  []BookingView{},
	}
	for _, b := range bookings {
		switch b.Status {
		case booking.StatusCancelled:
			res.Cancelled++
		case booking.StatusWaitlist:
			res.Waitlist = append(res.Waitlist, ViewBooking(b))
		default:
			res.Confirmed = append(res.Confirmed, ViewBooking(b))
		}
	}
	return res, nil
}

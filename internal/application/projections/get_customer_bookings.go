package projections

import (
	"context"
	"fmt"
	"slices"
	"time"

	"coursebook/internal/domain/booking"
	"coursebook/internal/domain/lesson"
)

// CustomerBooking is one of a customer's bookings with its lesson resolved.
type CustomerBooking struct {
	BookingView
	CourseID    string    `json:"course_id"`
	LessonTitle string    `json:"lesson_title"`
	LessonStart time.Time `json:"lesson_start"`
	Cancellable bool      `json:"cancellable"`
}

// RegistrationView summarises one enroll or unenroll attempt.
type RegistrationView struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Kind      string    `json:"kind"`
	Outcome   string    `json:"outcome"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerBookingsResult is the "my bookings" view of a customer.
type CustomerBookingsResult struct {
	Customer      CustomerView       `json:"customer"`
	Upcoming      []CustomerBooking  `json:"upcoming"`
	Past          []CustomerBooking  `json:"past"`
	Registrations []RegistrationView `json:"registrations"`
}

// GetCustomerBookingsDeps holds dependencies for QueryGetCustomerBookings.
type GetCustomerBookingsDeps struct {
	Customers     CustomerStore
	Bookings      BookingStore
	Lessons       LessonStore
	Registrations RegistrationStore // optional: nil skips history
	Now           func() time.Time
}

// QueryGetCustomerBookings lists a customer's bookings split into upcoming and past.
// PRE: customerID is non-empty
// POST: Upcoming is ordered by lesson start; cancelled bookings appear under Past
func QueryGetCustomerBookings(ctx context.Context, customerID string, deps GetCustomerBookingsDeps) (CustomerBookingsResult, error) {
	now := clock(deps.Now)
	c, err := deps.Customers.GetByID(ctx, customerID)
	if err != nil {
		return CustomerBookingsResult{}, err
	}
	bookings, err := deps.Bookings.ListByCustomer(ctx, c.ID)
	if err != nil {
		return CustomerBookingsResult{}, fmt.Errorf("list bookings: %w", err)
	}

	res := CustomerBookingsResult{Customer: ViewCustomer(c, now), Upcoming: []CustomerBooking{}, Past: []CustomerBooking{}, Registrations: []RegistrationView{}}
	lessons := map[string]lesson.Lesson{}
	for _, b := range bookings {
		l, ok := lessons[b.LessonID]
		if !ok {
			l, err = deps.Lessons.GetByID(ctx, b.LessonID)
			if err != nil {
				return CustomerBookingsResult{}, fmt.Errorf("load lesson %s: %w", b.LessonID, err)
			}
			lessons[b.LessonID] = l
		}
		cb := CustomerBooking{
			BookingView: ViewBooking(b),
			CourseID:    l.CourseID,
			LessonTitle: l.Title,
			LessonStart: l.DateTime,
			Cancellable: b.IsActive() && !l.HasStarted(now),
		}
		if b.Status != booking.StatusCancelled && !l.HasStarted(now) {
			res.Upcoming = append(res.Upcoming, cb)
		} else {
			res.Past = append(res.Past, cb)
		}
	}
	sortByStart(res.Upcoming)

	if deps.Registrations != nil {
		regs, err := deps.Registrations.ListByCustomer(ctx, c.ID)
		if err != nil {
			return CustomerBookingsResult{}, fmt.Errorf("list registrations: %w", err)
		}
		for _, r := range regs {
			res.Registrations = append(res.Registrations, RegistrationView{
				ID:        r.ID,
				CourseID:  r.CourseID,
				Kind:      r.Kind,
				Outcome:   r.Outcome(),
				Succeeded: r.Succeeded,
				Failed:    r.Failed,
				CreatedAt: r.CreatedAt,
			})
		}
	}
	return res, nil
}

func sortByStart(bs []CustomerBooking) {
	slices.SortStableFunc(bs, func(a, b CustomerBooking) int {
		return a.LessonStart.Compare(b.LessonStart)
	})
}

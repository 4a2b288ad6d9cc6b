package web

import (
	"coursebook/internal/application/orchestrators"
	"coursebook/internal/application/projections"
)

func (s *Server) accountDeps() orchestrators.AccountDeps {
	return orchestrators.AccountDeps{
		Accounts:   s.stores.Accounts,
		Customers:  s.stores.Customers,
		Audit:      s.stores.Audit,
		Now:        s.now,
		GenerateID: s.newID,
	}
}

func (s *Server) customerDeps() orchestrators.CustomerDeps {
	return orchestrators.CustomerDeps{
		Customers:  s.stores.Customers,
		Audit:      s.stores.Audit,
		Now:        s.now,
		GenerateID: s.newID,
	}
}

func (s *Server) bookingDeps() orchestrators.BookingDeps {
	return orchestrators.BookingDeps{
		Courses:    s.stores.Courses,
		Lessons:    s.stores.Lessons,
		Customers:  s.stores.Customers,
		Bookings:   s.stores.Bookings,
		Outbox:     s.stores.Outbox,
		Audit:      s.stores.Audit,
		Location:   s.cfg.Location,
		Now:        s.now,
		GenerateID: s.newID,
	}
}

func (s *Server) enrollmentDeps() orchestrators.EnrollmentDeps {
	return orchestrators.EnrollmentDeps{BookingDeps: s.bookingDeps(), Registrations: s.stores.Registrations}
}

func (s *Server) courseListDeps() projections.GetCourseListDeps {
	return projections.GetCourseListDeps{Courses: s.stores.Courses, Lessons: s.stores.Lessons, Now: s.now}
}

func (s *Server) customerBookingsDeps() projections.GetCustomerBookingsDeps {
	return projections.GetCustomerBookingsDeps{
		Customers:     s.stores.Customers,
		Bookings:      s.stores.Bookings,
		Lessons:       s.stores.Lessons,
		Registrations: s.stores.Registrations,
		Now:           s.now,
	}
}

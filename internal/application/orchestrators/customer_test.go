package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursebook/internal/domain/apperr"
)

func (h *harness) customerDeps() CustomerDeps {
	return CustomerDeps{Customers: h.customers, Audit: h.audit, Now: h.clock, GenerateID: h.nextID}
}

func TestRegisterCustomer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := ExecuteRegisterCustomer(ctx, RegisterCustomerInput{
		Actor: staff,
		CustomerFields: CustomerFields{
			Name:           "  Anna Schmidt ",
			Email:          "Anna@Example.org",
			ChildName:      "Mia",
			ChildBirthDate: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}, h.customerDeps())
	if err != nil {
		t.Fatalf("ExecuteRegisterCustomer() = %v", err)
	}
	if c.Name != "Anna Schmidt" || c.Email != "anna@example.org" {
		t.Errorf("customer = %+v", c)
	}

	_, err = ExecuteRegisterCustomer(ctx, RegisterCustomerInput{
		CustomerFields: CustomerFields{Name: "Other Anna", Email: "anna@example.org"},
	}, h.customerDeps())
	if !errors.Is(err, apperr.ErrEmailTaken) {
		t.Errorf("duplicate email = %v, want ErrEmailTaken", err)
	}

	_, err = ExecuteRegisterCustomer(ctx, RegisterCustomerInput{
		CustomerFields: CustomerFields{Name: "Baby", Email: "b@example.org", ChildBirthDate: fixedNow.AddDate(0, 1, 0)},
	}, h.customerDeps())
	if apperr.KeyOf(err) != "customer.birth_date_in_future" {
		t.Errorf("future birth date key = %q", apperr.KeyOf(err))
	}

	_, err = ExecuteRegisterCustomer(ctx, RegisterCustomerInput{
		CustomerFields: CustomerFields{Name: "No Mail", Email: "not-an-email"},
	}, h.customerDeps())
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("invalid email kind = %q", apperr.KindOf(err))
	}
}

func TestUpdateCustomer_EmailTaken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, _ := ExecuteRegisterCustomer(ctx, RegisterCustomerInput{CustomerFields: CustomerFields{Name: "Anna", Email: "anna@example.org"}}, h.customerDeps())
	if _, err := ExecuteRegisterCustomer(ctx, RegisterCustomerInput{CustomerFields: CustomerFields{Name: "Berta", Email: "berta@example.org"}}, h.customerDeps()); err != nil {
		t.Fatalf("register = %v", err)
	}

	_, err := ExecuteUpdateCustomer(ctx, UpdateCustomerInput{ID: a.ID, CustomerFields: CustomerFields{Name: "Anna", Email: "berta@example.org"}}, h.customerDeps())
	if !errors.Is(err, apperr.ErrEmailTaken) {
		t.Errorf("update to taken email = %v", err)
	}
	got, err := ExecuteUpdateCustomer(ctx, UpdateCustomerInput{ID: a.ID, CustomerFields: CustomerFields{Name: "Anna", Email: "anna@example.org", Phone: "0170 123"}}, h.customerDeps())
	if err != nil || got.Phone != "0170 123" {
		t.Errorf("update = %+v, %v", got, err)
	}
	if _, err := ExecuteUpdateCustomer(ctx, UpdateCustomerInput{ID: "missing", CustomerFields: CustomerFields{Name: "X", Email: "x@example.org"}}, h.customerDeps()); !errors.Is(err, apperr.ErrCustomerNotFound) {
		t.Errorf("update missing = %v", err)
	}
}

func TestDeleteCustomer_RefusedWithBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createCourse(babyCourse("Pekip", "10:00", 4))
	b, err := h.book(res.Lessons[0].ID, "Anna", "anna@example.org")
	if err != nil {
		t.Fatalf("book() = %v", err)
	}

	err = ExecuteDeleteCustomer(ctx, DeleteCustomerInput{Actor: staff, ID: b.Booking.CustomerID}, h.customerDeps())
	if !errors.Is(err, apperr.ErrCustomerHasBookings) {
		t.Fatalf("delete with bookings = %v", err)
	}

	if _, err := ExecuteCancelBooking(ctx, CancelBookingInput{BookingID: b.Booking.ID}, h.bookingDeps()); err != nil {
		t.Fatalf("cancel = %v", err)
	}
	if err := ExecuteDeleteCustomer(ctx, DeleteCustomerInput{Actor: staff, ID: b.Booking.CustomerID}, h.customerDeps()); err != nil {
		t.Fatalf("delete after cancel = %v", err)
	}
	if _, err := h.customers.GetByID(ctx, b.Booking.CustomerID); !errors.Is(err, apperr.ErrCustomerNotFound) {
		t.Errorf("customer still present: %v", err)
	}
}

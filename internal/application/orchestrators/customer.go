package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/customer"
)

// CustomerFields are the editable attributes of a customer.
type CustomerFields struct {
	Name             string
	Email            string
	Phone            string
	ChildName        string
	ChildBirthDate   time.Time
	EmergencyContact string
	Notes            string
}

// RegisterCustomerInput carries input for ExecuteRegisterCustomer.
type RegisterCustomerInput struct {
	Actor     audit.Actor
	AccountID string
	CustomerFields
}

// CustomerDeps holds dependencies for the customer commands.
type CustomerDeps struct {
	Customers  CustomerStore
	Audit      AuditWriter
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteRegisterCustomer creates a customer.
// PRE: Valid email, non-empty name
// POST: Customer created with a new ID
// INVARIANT: Email is unique (enforced by store)
func ExecuteRegisterCustomer(ctx context.Context, input RegisterCustomerInput, deps CustomerDeps) (customer.Customer, error) {
	now := clock(deps.Now)
	c := customer.Customer{
		ID:        idGen(deps.GenerateID)(),
		AccountID: input.AccountID,
		CreatedAt: now,
	}
	applyCustomerFields(&c, input.CustomerFields)
	if err := c.Validate(now); err != nil {
		return customer.Customer{}, invalid(err)
	}
	if err := deps.Customers.Save(ctx, c); err != nil {
		return customer.Customer{}, err
	}

	slog.Info("customer_event", "event", "customer_registered", "customer_id", c.ID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryCustomer, audit.ActionCreate, now).
		WithResource("customer", c.ID).
		WithDescription("Registered customer "+c.Name))
	return c, nil
}

// UpdateCustomerInput carries input for ExecuteUpdateCustomer.
type UpdateCustomerInput struct {
	Actor audit.Actor
	ID    string
	CustomerFields
}

// ExecuteUpdateCustomer replaces a customer's editable fields.
// PRE: customer exists
// POST: Customer updated; a taken email yields customer.email_taken
func ExecuteUpdateCustomer(ctx context.Context, input UpdateCustomerInput, deps CustomerDeps) (customer.Customer, error) {
	now := clock(deps.Now)
	c, err := deps.Customers.GetByID(ctx, input.ID)
	if err != nil {
		return customer.Customer{}, err
	}
	applyCustomerFields(&c, input.CustomerFields)
	if err := c.Validate(now); err != nil {
		return customer.Customer{}, invalid(err)
	}
	if err := deps.Customers.Save(ctx, c); err != nil {
		return customer.Customer{}, err
	}

	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryCustomer, audit.ActionUpdate, now).
		WithResource("customer", c.ID).
		WithDescription("Updated customer "+c.Name))
	return c, nil
}

// DeleteCustomerInput carries input for ExecuteDeleteCustomer.
type DeleteCustomerInput struct {
	Actor audit.Actor
	ID    string
}

// ExecuteDeleteCustomer removes a customer with no active bookings.
// PRE: customer exists
// POST: Customer and their cancelled booking history removed
func ExecuteDeleteCustomer(ctx context.Context, input DeleteCustomerInput, deps CustomerDeps) error {
	c, err := deps.Customers.GetByID(ctx, input.ID)
	if err != nil {
		return err
	}
	n, err := deps.Customers.CountActiveBookings(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	if n > 0 {
		return apperr.ErrCustomerHasBookings
	}
	if err := deps.Customers.Delete(ctx, c.ID); err != nil {
		return err
	}

	slog.Info("customer_event", "event", "customer_deleted", "customer_id", c.ID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryCustomer, audit.ActionDelete, clock(deps.Now)).
		WithSeverity(audit.SeverityWarning).
		WithResource("customer", c.ID).
		WithDescription("Deleted customer "+c.Name))
	return nil
}

// resolveCustomer finds a customer by ID, else by email. An unknown email
// yields an unsaved customer built from the snapshot; isNew reports that and
// the caller stores it with persistCustomer once its own checks passed.
// Guests may not act for a customer that has a login.
func resolveCustomer(ctx context.Context, store CustomerStore, id string, snap CustomerFields, guest bool, newID func() string, now time.Time) (customer.Customer, bool, error) {
	if id != "" {
		c, err := store.GetByID(ctx, id)
		return c, false, err
	}
	email := customer.NormalizeEmail(snap.Email)
	if email == "" {
		return customer.Customer{}, false, invalid(customer.ErrInvalidEmail)
	}
	c, err := store.GetByEmail(ctx, email)
	if err == nil {
		if guest && c.AccountID != "" {
			slog.Warn("auth_event", "event", "guest_bound_to_account_refused", "customer_id", c.ID)
			return customer.Customer{}, false, apperr.ErrUnauthenticated
		}
		return c, false, nil
	}
	if !errors.Is(err, apperr.ErrCustomerNotFound) {
		return customer.Customer{}, false, err
	}

	c = customer.Customer{ID: newID(), CreatedAt: now}
	applyCustomerFields(&c, snap)
	if err := c.Validate(now); err != nil {
		return customer.Customer{}, false, invalid(err)
	}
	return c, true, nil
}

// persistCustomer stores a customer returned as new by resolveCustomer.
func persistCustomer(ctx context.Context, store CustomerStore, c customer.Customer) (customer.Customer, error) {
	if err := store.Save(ctx, c); err != nil {
		// Lost a race with another request creating the same email.
		if errors.Is(err, apperr.ErrEmailTaken) {
			return store.GetByEmail(ctx, c.Email)
		}
		return customer.Customer{}, err
	}
	slog.Info("customer_event", "event", "customer_created_on_booking", "customer_id", c.ID)
	return c, nil
}

// findCustomer looks a customer up by ID, else by email.
func findCustomer(ctx context.Context, store CustomerStore, id, email string) (customer.Customer, error) {
	if id != "" {
		return store.GetByID(ctx, id)
	}
	email = customer.NormalizeEmail(email)
	if email == "" {
		return customer.Customer{}, invalid(customer.ErrInvalidEmail)
	}
	return store.GetByEmail(ctx, email)
}

func applyCustomerFields(c *customer.Customer, f CustomerFields) {
	c.Name = strings.TrimSpace(f.Name)
	c.Email = customer.NormalizeEmail(f.Email)
	c.Phone = strings.TrimSpace(f.Phone)
	c.ChildName = strings.TrimSpace(f.ChildName)
	c.ChildBirthDate = f.ChildBirthDate
	c.EmergencyContact = strings.TrimSpace(f.EmergencyContact)
	c.Notes = f.Notes
}

package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coursebook/internal/domain/account"
	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
	"coursebook/internal/domain/customer"
)

// ErrAccountEmailTaken is returned when an account already uses the email.
var ErrAccountEmailTaken = apperr.New(apperr.KindDuplicate, "account.email_taken", "an account with this email already exists")

// CreateAccountInput carries input for ExecuteCreateAccount.
type CreateAccountInput struct {
	Actor    audit.Actor
	Email    string
	Password string
	Role     string
}

// AccountDeps holds dependencies for the account commands.
type AccountDeps struct {
	Accounts   AccountStore
	Customers  CustomerStore
	Audit      AuditWriter
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteCreateAccount creates a login account.
// PRE: Valid email, password >= 12 chars, valid role
// POST: Account created with bcrypt-hashed password
// INVARIANT: Email is unique across accounts
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps AccountDeps) (account.Account, error) {
	now := clock(deps.Now)
	if _, err := deps.Accounts.GetByEmail(ctx, input.Email); err == nil {
		return account.Account{}, ErrAccountEmailTaken
	} else if !errors.Is(err, apperr.ErrAccountNotFound) {
		return account.Account{}, err
	}

	acct := account.Account{
		ID:        idGen(deps.GenerateID)(),
		Email:     customer.NormalizeEmail(input.Email),
		Role:      input.Role,
		CreatedAt: now,
	}
	if err := acct.Validate(); err != nil {
		return account.Account{}, accountInvalid(err)
	}
	if err := acct.SetPassword(input.Password); err != nil {
		return account.Account{}, accountInvalid(err)
	}
	if err := deps.Accounts.Save(ctx, acct); err != nil {
		return account.Account{}, err
	}

	slog.Info("auth_event", "event", "account_created", "account_id", acct.ID, "role", acct.Role)
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryAccount, audit.ActionCreate, now).
		WithResource("account", acct.ID).
		WithDescription("Created "+acct.Role+" account "+acct.Email))
	return acct, nil
}

// SignUpInput carries input for ExecuteSignUp.
type SignUpInput struct {
	Password string
	CustomerFields
}

// SignUpResult links the new account to its customer record.
type SignUpResult struct {
	Account  account.Account
	Customer customer.Customer
}

// ExecuteSignUp creates a customer login together with its customer record.
// An existing customer with the same email (created by staff or by a guest
// booking) is linked to the new account instead of duplicated.
// PRE: Valid customer fields and password
// POST: Account with role customer exists and Customer.AccountID points to it
func ExecuteSignUp(ctx context.Context, input SignUpInput, deps AccountDeps) (SignUpResult, error) {
	now := clock(deps.Now)
	newID := idGen(deps.GenerateID)

	draft := customer.Customer{}
	applyCustomerFields(&draft, input.CustomerFields)
	if err := draft.Validate(now); err != nil {
		return SignUpResult{}, invalid(err)
	}

	acct, err := ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    input.Email,
		Password: input.Password,
		Role:     account.RoleCustomer,
	}, deps)
	if err != nil {
		return SignUpResult{}, err
	}
	actor := audit.Actor{ID: acct.ID, Email: acct.Email, Role: acct.Role}

	existing, err := deps.Customers.GetByEmail(ctx, acct.Email)
	switch {
	case err == nil:
		existing.AccountID = acct.ID
		if err := deps.Customers.Save(ctx, existing); err != nil {
			return SignUpResult{}, err
		}
		slog.Info("auth_event", "event", "customer_linked", "account_id", acct.ID, "customer_id", existing.ID)
		return SignUpResult{Account: acct, Customer: existing}, nil
	case errors.Is(err, apperr.ErrCustomerNotFound):
		c, err := ExecuteRegisterCustomer(ctx, RegisterCustomerInput{
			Actor:          actor,
			AccountID:      acct.ID,
			CustomerFields: input.CustomerFields,
		}, CustomerDeps{Customers: deps.Customers, Audit: deps.Audit, Now: deps.Now, GenerateID: newID})
		if err != nil {
			return SignUpResult{}, err
		}
		return SignUpResult{Account: acct, Customer: c}, nil
	default:
		return SignUpResult{}, err
	}
}

// ExecuteSeedAdmin creates the configured admin account when no account exists yet.
// PRE: Database is migrated
// POST: Admin account created if count == 0
func ExecuteSeedAdmin(ctx context.Context, deps AccountDeps, email, password string) error {
	count, err := deps.Accounts.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if email == "" || password == "" {
		slog.Warn("auth_event", "event", "admin_seed_skipped", "reason", "no credentials configured")
		return nil
	}

	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{
		Email:    email,
		Password: password,
		Role:     account.RoleAdmin,
	}, deps); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "admin_seeded", "email", email)
	return nil
}

func accountInvalid(err error) error {
	switch {
	case errors.Is(err, account.ErrPasswordTooShort), errors.Is(err, account.ErrEmptyPassword):
		return apperr.Wrap(apperr.Validation("account.weak_password", err.Error()), err)
	case errors.Is(err, account.ErrInvalidRole):
		return apperr.Wrap(apperr.Validation("account.invalid_role", err.Error()), err)
	default:
		return apperr.Wrap(apperr.Validation("account.invalid_email", err.Error()), err)
	}
}

package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursebook/internal/domain/account"
	"coursebook/internal/domain/apperr"
)

const testPassword = "correct horse battery"

func (h *harness) accountDeps() AccountDeps {
	return AccountDeps{Accounts: h.accounts, Customers: h.customers, Audit: h.audit, Now: h.clock, GenerateID: h.nextID}
}

func (h *harness) loginDeps() LoginDeps {
	return LoginDeps{Accounts: h.accounts, Audit: h.audit, Now: h.clock}
}

func TestSeedAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := ExecuteSeedAdmin(ctx, h.accountDeps(), "", ""); err != nil {
		t.Fatalf("seed without credentials = %v", err)
	}
	if n, _ := h.accounts.Count(ctx); n != 0 {
		t.Fatalf("accounts = %d, want 0", n)
	}

	if err := ExecuteSeedAdmin(ctx, h.accountDeps(), "Admin@Example.org", testPassword); err != nil {
		t.Fatalf("ExecuteSeedAdmin() = %v", err)
	}
	if err := ExecuteSeedAdmin(ctx, h.accountDeps(), "second@example.org", testPassword); err != nil {
		t.Fatalf("second seed = %v", err)
	}
	if n, _ := h.accounts.Count(ctx); n != 1 {
		t.Errorf("accounts = %d, want 1", n)
	}
	acct, err := h.accounts.GetByEmail(ctx, "admin@example.org")
	if err != nil || acct.Role != account.RoleAdmin {
		t.Errorf("admin = %+v, %v", acct, err)
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{Email: "a@example.org", Password: "short", Role: account.RoleStaff}, h.accountDeps()); apperr.KeyOf(err) != "account.weak_password" {
		t.Errorf("short password key = %q", apperr.KeyOf(err))
	}
	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{Email: "a@example.org", Password: testPassword, Role: "owner"}, h.accountDeps()); apperr.KeyOf(err) != "account.invalid_role" {
		t.Errorf("bad role key = %q", apperr.KeyOf(err))
	}
	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{Email: "a@example.org", Password: testPassword, Role: account.RoleStaff}, h.accountDeps()); err != nil {
		t.Fatalf("create = %v", err)
	}
	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{Email: "A@example.org", Password: testPassword, Role: account.RoleStaff}, h.accountDeps()); !errors.Is(err, ErrAccountEmailTaken) {
		t.Errorf("duplicate = %v", err)
	}
}

func TestSignUp_LinksExistingCustomer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.createCourse(babyCourse("Pekip", "10:00", 4))
	guest, err := h.book(res.Lessons[0].ID, "Anna", "anna@example.org")
	if err != nil {
		t.Fatalf("book() = %v", err)
	}

	out, err := ExecuteSignUp(ctx, SignUpInput{
		Password:       testPassword,
		CustomerFields: CustomerFields{Name: "Anna", Email: "anna@example.org"},
	}, h.accountDeps())
	if err != nil {
		t.Fatalf("ExecuteSignUp() = %v", err)
	}
	if out.Customer.ID != guest.Booking.CustomerID || out.Customer.AccountID != out.Account.ID {
		t.Errorf("sign-up did not link the guest customer: %+v", out.Customer)
	}
	if out.Account.Role != account.RoleCustomer {
		t.Errorf("role = %q", out.Account.Role)
	}

	fresh, err := ExecuteSignUp(ctx, SignUpInput{
		Password:       testPassword,
		CustomerFields: CustomerFields{Name: "Berta", Email: "berta@example.org"},
	}, h.accountDeps())
	if err != nil || fresh.Customer.AccountID != fresh.Account.ID {
		t.Errorf("fresh sign-up = %+v, %v", fresh, err)
	}
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := ExecuteCreateAccount(ctx, CreateAccountInput{Email: "team@example.org", Password: testPassword, Role: account.RoleStaff}, h.accountDeps()); err != nil {
		t.Fatalf("create = %v", err)
	}

	ok, err := ExecuteLogin(ctx, LoginInput{Email: "Team@example.org", Password: testPassword}, h.loginDeps())
	if err != nil || ok.Role != account.RoleStaff {
		t.Fatalf("login = %+v, %v", ok, err)
	}

	for i := 0; i < account.MaxFailedLogins; i++ {
		if _, err := ExecuteLogin(ctx, LoginInput{Email: "team@example.org", Password: "wrong password!"}, h.loginDeps()); !errors.Is(err, apperr.ErrInvalidCredentials) {
			t.Fatalf("attempt %d = %v", i, err)
		}
	}
	if _, err := ExecuteLogin(ctx, LoginInput{Email: "team@example.org", Password: testPassword}, h.loginDeps()); !errors.Is(err, apperr.ErrAccountLocked) {
		t.Errorf("login while locked = %v, want ErrAccountLocked", err)
	}

	h.now = h.now.Add(account.LockoutDuration + time.Minute)
	if _, err := ExecuteLogin(ctx, LoginInput{Email: "team@example.org", Password: testPassword}, h.loginDeps()); err != nil {
		t.Errorf("login after lockout = %v", err)
	}
	acct, _ := h.accounts.GetByEmail(ctx, "team@example.org")
	if acct.FailedLogins != 0 {
		t.Errorf("failed logins = %d after success", acct.FailedLogins)
	}

	if _, err := ExecuteLogin(ctx, LoginInput{Email: "nobody@example.org", Password: testPassword}, h.loginDeps()); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("unknown account = %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct, err := ExecuteCreateAccount(ctx, CreateAccountInput{Email: "team@example.org", Password: testPassword, Role: account.RoleStaff}, h.accountDeps())
	if err != nil {
		t.Fatalf("create = %v", err)
	}
	change := func(current, next string) error {
		return ExecuteChangePassword(ctx, ChangePasswordInput{
			Actor:           staff,
			AccountID:       acct.ID,
			CurrentPassword: current,
			NewPassword:     next,
		}, h.accountDeps())
	}

	if err := change("wrong password!", "a brand new secret"); !errors.Is(err, ErrCurrentPasswordWrong) {
		t.Errorf("wrong current = %v", err)
	}
	if err := change(testPassword, testPassword); !errors.Is(err, ErrNewPasswordSame) {
		t.Errorf("unchanged = %v", err)
	}
	if err := change(testPassword, "short"); apperr.KeyOf(err) != "account.weak_password" {
		t.Errorf("weak = %v", err)
	}
	if err := change(testPassword, "a brand new secret"); err != nil {
		t.Fatalf("change = %v", err)
	}

	if _, err := ExecuteLogin(ctx, LoginInput{Email: "team@example.org", Password: testPassword}, h.loginDeps()); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("old password still works: %v", err)
	}
	if _, err := ExecuteLogin(ctx, LoginInput{Email: "team@example.org", Password: "a brand new secret"}, h.loginDeps()); err != nil {
		t.Errorf("login with new password = %v", err)
	}
}

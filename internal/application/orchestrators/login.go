package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
)

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult carries the result of a successful login.
type LoginResult struct {
	AccountID string
	Email     string
	Role      string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	Accounts AccountStore
	Audit    AuditWriter
	Now      func() time.Time
}

// ExecuteLogin validates credentials and returns account info for session creation.
// PRE: Valid email and password provided
// POST: Returns account info on success, records failed login on failure
// INVARIANT: Account must not be locked
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (LoginResult, error) {
	now := clock(deps.Now)
	if input.Email == "" || input.Password == "" {
		return LoginResult{}, apperr.ErrInvalidCredentials
	}

	acct, err := deps.Accounts.GetByEmail(ctx, input.Email)
	if err != nil {
		slog.Info("auth_event", "event", "login_failed", "reason", "not_found")
		return LoginResult{}, apperr.ErrInvalidCredentials
	}
	if acct.IsLocked(now) {
		slog.Info("auth_event", "event", "login_blocked", "account_id", acct.ID, "reason", "locked")
		return LoginResult{}, apperr.ErrAccountLocked
	}

	if err := acct.CheckPassword(input.Password); err != nil {
		acct.RecordFailedLogin(now)
		if saveErr := deps.Accounts.Save(ctx, acct); saveErr != nil {
			slog.Error("auth_event", "event", "failed_login_not_recorded", "account_id", acct.ID, "error", saveErr)
		}
		slog.Info("auth_event", "event", "login_failed", "account_id", acct.ID, "reason", "wrong_password",
			"failed_logins", acct.FailedLogins)
		if acct.IsLocked(now) {
			recordAudit(ctx, deps.Audit, audit.NewEvent(audit.Actor{}, audit.CategoryAccount, audit.ActionLogin, now).
				WithSeverity(audit.SeverityCritical).
				WithResource("account", acct.ID).
				WithDescription("Account locked after repeated failed logins"))
		}
		return LoginResult{}, apperr.ErrInvalidCredentials
	}

	if acct.FailedLogins > 0 {
		acct.ResetFailedLogins()
		if err := deps.Accounts.Save(ctx, acct); err != nil {
			slog.Error("auth_event", "event", "reset_failed_logins_failed", "account_id", acct.ID, "error", err)
		}
	}

	slog.Info("auth_event", "event", "login_success", "account_id", acct.ID, "role", acct.Role)
	recordAudit(ctx, deps.Audit, audit.NewEvent(audit.Actor{ID: acct.ID, Email: acct.Email, Role: acct.Role},
		audit.CategoryAccount, audit.ActionLogin, now).WithResource("account", acct.ID))
	return LoginResult{AccountID: acct.ID, Email: acct.Email, Role: acct.Role}, nil
}

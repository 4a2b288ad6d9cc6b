package orchestrators

import (
	"context"
	"log/slog"

	"coursebook/internal/domain/apperr"
	"coursebook/internal/domain/audit"
)

// ChangePasswordInput carries input for ExecuteChangePassword.
type ChangePasswordInput struct {
	Actor           audit.Actor
	AccountID       string
	CurrentPassword string
	NewPassword     string
}

var (
	ErrCurrentPasswordWrong = apperr.New(apperr.KindAuth, "account.current_password_wrong", "current password is incorrect")
	ErrNewPasswordSame      = apperr.Validation("account.password_unchanged", "new password must differ from the current one")
)

// ExecuteChangePassword checks the current password and stores the new one.
// PRE: AccountID names an existing account
// POST: PasswordHash matches NewPassword; failed login counter reset
func ExecuteChangePassword(ctx context.Context, input ChangePasswordInput, deps AccountDeps) error {
	now := clock(deps.Now)
	acct, err := deps.Accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		return err
	}
	if err := acct.CheckPassword(input.CurrentPassword); err != nil {
		slog.Warn("auth_event", "event", "password_change_rejected", "account_id", acct.ID)
		return ErrCurrentPasswordWrong
	}
	if input.CurrentPassword == input.NewPassword {
		return ErrNewPasswordSame
	}
	if err := acct.SetPassword(input.NewPassword); err != nil {
		return accountInvalid(err)
	}
	acct.ResetFailedLogins()
	if err := deps.Accounts.Save(ctx, acct); err != nil {
		return err
	}

	slog.Info("auth_event", "event", "password_changed", "account_id", acct.ID)
	recordAudit(ctx, deps.Audit, audit.NewEvent(input.Actor, audit.CategoryAccount, audit.ActionUpdate, now).
		WithResource("account", acct.ID).
		WithDescription("Changed password of "+acct.Email))
	return nil
}

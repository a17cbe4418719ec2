package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/store"
)

// RecoveryDeps captures password reset dependencies.
type RecoveryDeps struct {
	Store        store.Store
	Vault        Vault
	ResetTickets *stores.TicketStore

	SendPasswordReset func(ctx context.Context, account *store.Account, rawToken string) error
	// Dispatch runs the reset mail off the request path. Nil means a bare
	// goroutine.
	Dispatch func(fn func())

	Hooks
	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d RecoveryDeps) ready() bool {
	return d.Store != nil && d.Vault != nil && d.ResetTickets != nil
}

// RunRequestPasswordReset issues a reset ticket for the account registered
// under email and queues the mail. Unknown addresses yield an empty
// MailResult and no error. Delivery never runs on the caller's path, so the
// response time does not depend on the mail transport; EmailSent stays false.
func RunRequestPasswordReset(ctx context.Context, email string, deps RecoveryDeps) (*MailResult, error) {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)

	acct, err := deps.Store.FindAccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", nil, func() map[string]string {
			return map[string]string{"reason": "unknown_email"}
		})
		return &MailResult{}, nil
	}
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	raw, err := deps.ResetTickets.Issue(ctx, deps.Store, acct.ID)
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	if send := deps.SendPasswordReset; send != nil {
		dispatch := deps.Dispatch
		if dispatch == nil {
			dispatch = func(fn func()) { go fn() }
		}
		mailCtx := context.WithoutCancel(ctx)
		warn := deps.Warn
		dispatch(func() {
			if err := send(mailCtx, acct, raw); err != nil {
				warn("goTrust: password reset email failed", "account_id", acct.ID, "error", err)
			}
		})
	}

	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, acct.ID, nil, nil)
	return &MailResult{Token: raw}, nil
}

// RunConfirmPasswordReset spends a reset ticket, stores the new password hash
// and removes the second factor in one transaction. The new password is
// checked before the ticket is touched so a policy failure can be retried.
func RunConfirmPasswordReset(ctx context.Context, rawToken, newPassword string, deps RecoveryDeps) error {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	hash, err := deps.Vault.Hash(newPassword)
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		return passwordPolicyError(deps.Errors, err)
	}

	var accountID string
	rejected := false
	err = deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		t, err := deps.ResetTickets.Consume(ctx, tx, strings.TrimSpace(rawToken))
		if errors.Is(err, stores.ErrTicketNotFound) {
			rejected = true
			return nil
		}
		if err != nil {
			return err
		}
		accountID = t.AccountID

		if err := tx.UpdatePasswordHash(ctx, t.AccountID, hash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return deps.Errors.UserNotFound
			}
			return err
		}
		if _, err := tx.DeleteTwoFactor(ctx, t.AccountID); err != nil {
			return err
		}
		_, err = deps.ResetTickets.RevokeFor(ctx, tx, t.AccountID)
		return err
	})
	if err == nil && rejected {
		err = deps.Errors.InvalidOrExpiredToken
	}
	if err != nil {
		err = deps.Errors.backend(err)
		deps.MetricInc(deps.Metrics.PasswordResetFailure)
		deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, false, accountID, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.PasswordResetSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, accountID, nil, nil)
	return nil
}

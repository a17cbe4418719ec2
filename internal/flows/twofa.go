package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/store"
)

// TOTPSetup is returned by RunEnable2FA. Secret is the base32 seed and URI
// the otpauth provisioning link.
type TOTPSetup struct {
	Secret string
	URI    string
}

// MailResult reports an out-of-band ticket delivery. Token is the raw ticket
// value; callers only expose it in debug deployments. EmailSent is set only
// by flows that deliver synchronously.
type MailResult struct {
	Token     string
	EmailSent bool
}

// TwoFADeps captures second-factor enrollment and removal dependencies.
type TwoFADeps struct {
	Store          store.Store
	Vault          Vault
	DisableTickets *stores.TicketStore

	// SendTwoFADisable delivers the confirmation link. A nil hook or an error
	// leaves the ticket valid and reports EmailSent=false.
	SendTwoFADisable func(ctx context.Context, account *store.Account, rawToken string) error

	Hooks
	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d TwoFADeps) ready() bool {
	return d.Store != nil && d.Vault != nil && d.DisableTickets != nil
}

func loadAccount(ctx context.Context, repo store.Repository, accountID string, errs Errors) (*store.Account, error) {
	acct, err := repo.FindAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.UserNotFound
	}
	if err != nil {
		return nil, errs.backend(err)
	}
	return acct, nil
}

// RunEnable2FA generates and stores a fresh encrypted TOTP secret. Any prior
// secret, verified or not, is replaced and login stops requiring a code until
// the new one is verified.
func RunEnable2FA(ctx context.Context, accountID string, deps TwoFADeps) (*TOTPSetup, error) {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := loadAccount(ctx, deps.Store, accountID, deps.Errors)
	if err != nil {
		return nil, err
	}

	key, err := deps.Vault.GenerateTOTPSecret(acct.Email)
	if err != nil {
		return nil, deps.Errors.backend(err)
	}
	enc, err := deps.Vault.Encrypt(key.Secret)
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	err = deps.Store.UpsertTwoFactor(ctx, &store.TwoFactorSecret{
		AccountID: acct.ID,
		SecretEnc: enc,
		CreatedAt: deps.Now(),
	})
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	deps.MetricInc(deps.Metrics.TwoFAEnabled)
	deps.EmitAudit(ctx, deps.Events.TwoFAEnabled, true, acct.ID, nil, nil)
	return &TOTPSetup{Secret: key.Secret, URI: key.URI}, nil
}

// RunVerify2FA checks code against the stored secret. The first success marks
// the secret verified; a wrong code returns false and changes nothing.
func RunVerify2FA(ctx context.Context, accountID, code string, deps TwoFADeps) (bool, error) {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return false, deps.Errors.EngineNotReady
	}

	if _, err := loadAccount(ctx, deps.Store, accountID, deps.Errors); err != nil {
		return false, err
	}
	tf, err := deps.Store.GetTwoFactor(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return false, deps.Errors.TwoFANotEnabled
	}
	if err != nil {
		return false, deps.Errors.backend(err)
	}

	secret, err := deps.Vault.Decrypt(tf.SecretEnc)
	if err != nil {
		return false, deps.Errors.backend(err)
	}
	if !deps.Vault.VerifyTOTP(secret, strings.TrimSpace(code)) {
		deps.EmitAudit(ctx, deps.Events.TwoFAVerified, false, accountID, deps.Errors.InvalidCode, nil)
		return false, nil
	}

	if !tf.Verified() {
		if err := deps.Store.MarkTwoFactorVerified(ctx, accountID, deps.Now()); err != nil {
			return false, deps.Errors.backend(err)
		}
		deps.MetricInc(deps.Metrics.TwoFAVerified)
		deps.EmitAudit(ctx, deps.Events.TwoFAVerified, true, accountID, nil, nil)
	}
	return true, nil
}

// RunDisable2FA removes the secret after checking a current code.
func RunDisable2FA(ctx context.Context, accountID, code string, deps TwoFADeps) error {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	if _, err := loadAccount(ctx, deps.Store, accountID, deps.Errors); err != nil {
		return err
	}
	tf, err := deps.Store.GetTwoFactor(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return deps.Errors.TwoFANotEnabled
	}
	if err != nil {
		return deps.Errors.backend(err)
	}

	secret, err := deps.Vault.Decrypt(tf.SecretEnc)
	if err != nil {
		return deps.Errors.backend(err)
	}
	if !deps.Vault.VerifyTOTP(secret, strings.TrimSpace(code)) {
		deps.EmitAudit(ctx, deps.Events.TwoFADisabled, false, accountID, deps.Errors.InvalidCode, nil)
		return deps.Errors.InvalidCode
	}

	if _, err := deps.Store.DeleteTwoFactor(ctx, accountID); err != nil {
		return deps.Errors.backend(err)
	}
	deps.MetricInc(deps.Metrics.TwoFADisabled)
	deps.EmitAudit(ctx, deps.Events.TwoFADisabled, true, accountID, nil, func() map[string]string {
		return map[string]string{"method": "code"}
	})
	return nil
}

// RunRequestTwoFADisable issues a one-hour disable ticket and mails the link.
// It is the recovery path for a user who lost the authenticator.
func RunRequestTwoFADisable(ctx context.Context, accountID string, deps TwoFADeps) (*MailResult, error) {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := loadAccount(ctx, deps.Store, accountID, deps.Errors)
	if err != nil {
		return nil, err
	}
	raw, err := deps.DisableTickets.Issue(ctx, deps.Store, acct.ID)
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	sent := false
	if deps.SendTwoFADisable != nil {
		if err := deps.SendTwoFADisable(ctx, acct, raw); err != nil {
			deps.Warn("goTrust: 2fa disable email failed", "account_id", acct.ID, "error", err)
		} else {
			sent = true
		}
	}

	deps.MetricInc(deps.Metrics.TwoFADisableRequested)
	deps.EmitAudit(ctx, deps.Events.TwoFADisableRequested, true, acct.ID, nil, func() map[string]string {
		if sent {
			return map[string]string{"email_sent": "true"}
		}
		return map[string]string{"email_sent": "false"}
	})
	return &MailResult{Token: raw, EmailSent: sent}, nil
}

// RunConfirmTwoFADisable spends a disable ticket and deletes the secret in
// one transaction.
func RunConfirmTwoFADisable(ctx context.Context, rawToken string, deps TwoFADeps) error {
	deps.Hooks = deps.Hooks.filled()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	var accountID string
	rejected := false
	err := deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		t, err := deps.DisableTickets.Consume(ctx, tx, strings.TrimSpace(rawToken))
		if errors.Is(err, stores.ErrTicketNotFound) {
			// Commit so an expired ticket found here stays deleted.
			rejected = true
			return nil
		}
		if err != nil {
			return err
		}
		accountID = t.AccountID
		if _, err := loadAccount(ctx, tx, t.AccountID, deps.Errors); err != nil {
			return err
		}
		_, err = tx.DeleteTwoFactor(ctx, t.AccountID)
		return err
	})
	if err == nil && rejected {
		err = deps.Errors.InvalidOrExpiredToken
	}
	if err != nil {
		err = deps.Errors.backend(err)
		deps.EmitAudit(ctx, deps.Events.TwoFADisabled, false, accountID, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.TwoFADisabled)
	deps.EmitAudit(ctx, deps.Events.TwoFADisabled, true, accountID, nil, func() map[string]string {
		return map[string]string{"method": "email"}
	})
	return nil
}

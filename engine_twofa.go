package goTrust

import "context"

// Enable2FA stores a fresh encrypted TOTP secret for accountID and returns
// it for enrollment. Any previous secret is replaced, verified or not, so
// login stops asking for a code until [Engine.Verify2FA] succeeds again.
func (e *Engine) Enable2FA(ctx context.Context, accountID string) (*TOTPSetup, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Enable2FA(ctx, accountID)
}

// Verify2FA checks code against the stored secret. The first success marks
// the secret verified, which makes login require a code. A wrong code
// returns false with a nil error.
func (e *Engine) Verify2FA(ctx context.Context, accountID, code string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Verify2FA(ctx, accountID, code)
}

// Disable2FA removes the secret after checking a current code.
func (e *Engine) Disable2FA(ctx context.Context, accountID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Disable2FA(ctx, accountID, code)
}

// RequestTwoFADisable mails a single-use token that removes the second
// factor without a code, for users who lost their device.
func (e *Engine) RequestTwoFADisable(ctx context.Context, accountID string) (*MailResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.RequestTwoFADisable(ctx, accountID)
}

// ConfirmTwoFADisable spends the token and deletes the secret in one
// transaction.
func (e *Engine) ConfirmTwoFADisable(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.ConfirmTwoFADisable(ctx, token)
}

package goTrust

import "context"

// RequestPasswordReset queues a reset mail when email belongs to an account.
// The error does not reveal whether it does. Token is empty for unknown
// addresses, so it must not reach untrusted callers. Delivery happens in the
// background; Close waits for it.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (*MailResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.RequestPasswordReset(ctx, email)
}

// ConfirmPasswordReset spends the token, sets the new password and removes
// any second factor. Outstanding reset tokens of the account die with it.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.ConfirmPasswordReset(ctx, token, newPassword)
}

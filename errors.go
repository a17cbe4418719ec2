package goTrust

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown identifier or a wrong
	// password. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned by Register when the email already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUserBanned is returned while an active ban exists for the account.
	ErrUserBanned = errors.New("user banned")
	// ErrInvalidOrExpiredTicket is returned for an unknown, spent or expired login challenge.
	ErrInvalidOrExpiredTicket = errors.New("invalid or expired ticket")
	// ErrTotpRequiredOrInvalid is returned by the second login step when the code does not verify.
	ErrTotpRequiredOrInvalid = errors.New("totp required or invalid")
	// ErrNotRefreshToken is returned when an access token is presented to Refresh.
	ErrNotRefreshToken = errors.New("not a refresh token")
	// ErrSessionRevoked is returned when no live session matches a refresh token.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrTokenExpired is returned for a correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken is returned for tokens that fail parsing or signature checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUserNotFound is returned by account-scoped operations for unknown ids.
	ErrUserNotFound = errors.New("user not found")
	// ErrTwoFANotEnabled is returned when the account has no two-factor secret.
	ErrTwoFANotEnabled = errors.New("two-factor authentication not enabled")
	// ErrInvalidCode is returned when a TOTP code does not verify.
	ErrInvalidCode = errors.New("invalid code")
	// ErrInvalidOrExpiredToken is returned for bad password-reset and 2FA-disable tokens.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrAlreadyBanned is returned by Ban while another ban is active.
	ErrAlreadyBanned = errors.New("user already banned")
	// ErrNoActiveBan is returned by RevokeBan when nothing can be revoked.
	ErrNoActiveBan = errors.New("no active ban")

	// ErrInvalidInput is returned for missing or malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden is returned when the acting moderator lacks the moderator role.
	ErrForbidden = errors.New("forbidden")
	// ErrPasswordPolicy is returned for passwords outside the allowed length.
	// The underlying password error is joined, so errors.Is also matches it.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrLoginRateLimited is returned once the failed-login budget is spent.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrBackendUnavailable wraps store, cache and timeout faults. It is never
	// a domain outcome.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrEngineNotReady is returned by a zero Engine or one used after a
	// failed Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)

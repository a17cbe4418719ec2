package middleware

import (
	"errors"
	"net/http"

	goTrust "github.com/MrEthical07/goTrust"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: ErrPasswordPolicy joins the underlying password error, and
// backend faults wrap arbitrary causes.
var errorMappings = []errorMapping{
	{goTrust.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"},
	{goTrust.ErrEngineNotReady, http.StatusServiceUnavailable, "backend_unavailable"},
	{goTrust.ErrLoginRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{goTrust.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{goTrust.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
	{goTrust.ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
	{goTrust.ErrNotRefreshToken, http.StatusUnauthorized, "not_refresh_token"},
	{goTrust.ErrSessionRevoked, http.StatusUnauthorized, "session_revoked"},
	{goTrust.ErrTotpRequiredOrInvalid, http.StatusUnauthorized, "totp_required_or_invalid"},
	{goTrust.ErrUserBanned, http.StatusForbidden, "user_banned"},
	{goTrust.ErrForbidden, http.StatusForbidden, "forbidden"},
	{goTrust.ErrEmailTaken, http.StatusConflict, "email_taken"},
	{goTrust.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{goTrust.ErrNoActiveBan, http.StatusNotFound, "no_active_ban"},
	{goTrust.ErrInvalidOrExpiredTicket, http.StatusBadRequest, "invalid_or_expired_ticket"},
	{goTrust.ErrInvalidOrExpiredToken, http.StatusBadRequest, "invalid_or_expired_token"},
	{goTrust.ErrTwoFANotEnabled, http.StatusBadRequest, "twofa_not_enabled"},
	{goTrust.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
	{goTrust.ErrAlreadyBanned, http.StatusBadRequest, "already_banned"},
	{goTrust.ErrPasswordPolicy, http.StatusBadRequest, "password_policy"},
	{goTrust.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// ErrorStatus maps an engine error to an HTTP status and a stable error code.
// Unknown errors are 500 "internal_error".
func ErrorStatus(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

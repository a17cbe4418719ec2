package goTrust

import (
	"context"
	"errors"
)

const (
	auditEventRegister              = "register"
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventTwoFARequired         = "twofa_required"
	auditEventTwoFALoginSuccess     = "twofa_login_success"
	auditEventTwoFALoginFailure     = "twofa_login_failure"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshFailure        = "refresh_failure"
	auditEventLogout                = "logout"
	auditEventTwoFAEnabled          = "twofa_enabled"
	auditEventTwoFAVerified         = "twofa_verified"
	auditEventTwoFADisabled         = "twofa_disabled"
	auditEventTwoFADisableRequested = "twofa_disable_requested"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetConfirm  = "password_reset_confirm"
	auditEventBanApplied            = "ban_applied"
	auditEventBanRevoked            = "ban_revoked"
	auditEventWarningIssued         = "warning_issued"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrEmailTaken         AuditErrorCode = "email_taken"
	auditErrUserBanned         AuditErrorCode = "user_banned"
	auditErrInvalidTicket      AuditErrorCode = "invalid_ticket"
	auditErrTOTPInvalid        AuditErrorCode = "totp_invalid"
	auditErrNotRefreshToken    AuditErrorCode = "not_refresh_token"
	auditErrSessionRevoked     AuditErrorCode = "session_revoked"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrTwoFANotEnabled    AuditErrorCode = "twofa_not_enabled"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrAlreadyBanned      AuditErrorCode = "already_banned"
	auditErrNoActiveBan        AuditErrorCode = "no_active_ban"
	auditErrForbidden          AuditErrorCode = "forbidden"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrEmailTaken):
		return auditErrEmailTaken
	case errors.Is(err, ErrUserBanned):
		return auditErrUserBanned
	case errors.Is(err, ErrInvalidOrExpiredTicket),
		errors.Is(err, ErrInvalidOrExpiredToken):
		return auditErrInvalidTicket
	case errors.Is(err, ErrTotpRequiredOrInvalid):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrNotRefreshToken):
		return auditErrNotRefreshToken
	case errors.Is(err, ErrSessionRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrTwoFANotEnabled):
		return auditErrTwoFANotEnabled
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrAlreadyBanned):
		return auditErrAlreadyBanned
	case errors.Is(err, ErrNoActiveBan):
		return auditErrNoActiveBan
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

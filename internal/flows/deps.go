package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goTrust/jwt"
	"github.com/MrEthical07/goTrust/vault"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Auth       AuthDeps
	TwoFA      TwoFADeps
	Recovery   RecoveryDeps
	Moderation ModerationDeps
}

// Vault is the part of vault.Vault the flows need.
type Vault interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	Encrypt(plaintext string) (string, error)
	Decrypt(value string) (string, error)
	GenerateTOTPSecret(accountName string) (*vault.TOTPKey, error)
	VerifyTOTP(secret, code string) bool
}

// Tokens is the part of jwt.Authority the flows need.
type Tokens interface {
	IssueAccess(subject, role string) (string, error)
	IssueRefresh(subject string) (string, error)
	Decode(token string) (*jwt.Claims, error)
	DecodeIgnoringExpiry(token string) (*jwt.Claims, error)
}

// Hooks are the ambient callbacks every flow accepts. Nil fields are replaced
// with no-ops.
type Hooks struct {
	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string
	MetricInc           func(int)
	MetricAdd           func(int, uint64)
	EmitAudit           func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string)
	Warn                func(string, ...any)
}

func (h Hooks) filled() Hooks {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.ClientIPFromContext == nil {
		h.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.MetricAdd == nil {
		inc := h.MetricInc
		h.MetricAdd = func(id int, n uint64) {
			for ; n > 0; n-- {
				inc(id)
			}
		}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...any) {}
	}
	return h
}

// Errors carries host-level sentinel errors.
type Errors struct {
	EngineNotReady         error
	InvalidInput           error
	InvalidCredentials     error
	EmailTaken             error
	UserBanned             error
	InvalidOrExpiredTicket error
	TotpRequiredOrInvalid  error
	NotRefreshToken        error
	SessionRevoked         error
	TokenExpired           error
	InvalidToken           error
	UserNotFound           error
	TwoFANotEnabled        error
	InvalidCode            error
	InvalidOrExpiredToken  error
	AlreadyBanned          error
	NoActiveBan            error
	Forbidden              error
	PasswordPolicy         error
	LoginRateLimited       error
	BackendUnavailable     error
}

func (e Errors) domain() []error {
	return []error{
		e.InvalidInput, e.InvalidCredentials, e.EmailTaken, e.UserBanned,
		e.InvalidOrExpiredTicket, e.TotpRequiredOrInvalid, e.NotRefreshToken,
		e.SessionRevoked, e.TokenExpired, e.InvalidToken, e.UserNotFound,
		e.TwoFANotEnabled, e.InvalidCode, e.InvalidOrExpiredToken,
		e.AlreadyBanned, e.NoActiveBan, e.Forbidden, e.PasswordPolicy,
		e.LoginRateLimited, e.BackendUnavailable, e.EngineNotReady,
	}
}

// backend wraps an infrastructure fault. Errors that already carry a host
// sentinel pass through untouched, so it is safe to apply to the result of a
// transaction whose callback returned domain errors.
func (e Errors) backend(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range e.domain() {
		if known != nil && errors.Is(err, known) {
			return err
		}
	}
	if e.BackendUnavailable == nil {
		return err
	}
	return fmt.Errorf("%w: %v", e.BackendUnavailable, err)
}

// Metrics carries metric IDs.
type Metrics struct {
	Register              int
	LoginSuccess          int
	LoginFailure          int
	LoginRateLimited      int
	LoginBanned           int
	TwoFARequired         int
	TwoFALoginSuccess     int
	TwoFALoginFailure     int
	SessionCreated        int
	RefreshSuccess        int
	RefreshFailure        int
	RefreshExpired        int
	RefreshRevoked        int
	Logout                int
	ValidateSuccess       int
	ValidateFailure       int
	TwoFAEnabled          int
	TwoFAVerified         int
	TwoFADisabled         int
	TwoFADisableRequested int
	PasswordResetRequest  int
	PasswordResetSuccess  int
	PasswordResetFailure  int
	BanApplied            int
	BanRevoked            int
	SessionsRevokedByBan  int
	WarningIssued         int
}

// Events carries audit event names.
type Events struct {
	Register              string
	LoginSuccess          string
	LoginFailure          string
	LoginRateLimited      string
	TwoFARequired         string
	TwoFALoginSuccess     string
	TwoFALoginFailure     string
	RefreshSuccess        string
	RefreshFailure        string
	Logout                string
	TwoFAEnabled          string
	TwoFAVerified         string
	TwoFADisabled         string
	TwoFADisableRequested string
	PasswordResetRequest  string
	PasswordResetConfirm  string
	BanApplied            string
	BanRevoked            string
	WarningIssued         string
}

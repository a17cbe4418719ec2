package goTrust

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goTrust/internal/flows"
	"github.com/MrEthical07/goTrust/internal/rate"
	"github.com/MrEthical07/goTrust/store"
)

func (e *Engine) flowDeps() flows.Deps {
	hooks := flows.Hooks{
		Now:                 e.now,
		ClientIPFromContext: clientIPFromContext,
		MetricInc:           func(id int) { e.metricInc(MetricID(id)) },
		MetricAdd:           func(id int, n uint64) { e.metricAdd(MetricID(id), n) },
		EmitAudit:           e.emitAudit,
		Warn:                e.warn,
	}
	errs := flowErrors()
	metrics := flowMetrics()
	events := flowEvents()

	auth := flows.AuthDeps{
		Store:      e.store,
		Vault:      e.vault,
		Tokens:     e.tokens,
		Challenges: e.challenges,
		Sessions:   e.sessions,
		Bans:       e.bans,
		Hooks:      hooks,
		Metrics:    metrics,
		Events:     events,
		Errors:     errs,
	}
	if e.limiter != nil {
		auth.CheckLoginRate = e.checkLoginRate
		auth.IncrementLoginRate = e.limiter.IncrementLogin
		auth.ResetLoginRate = e.limiter.ResetLogin
	}

	twofa := flows.TwoFADeps{
		Store:          e.store,
		Vault:          e.vault,
		DisableTickets: e.disables,
		Hooks:          hooks,
		Metrics:        metrics,
		Events:         events,
		Errors:         errs,
	}
	recovery := flows.RecoveryDeps{
		Store:        e.store,
		Vault:        e.vault,
		ResetTickets: e.resets,
		Dispatch:     e.background,
		Hooks:        hooks,
		Metrics:      metrics,
		Events:       events,
		Errors:       errs,
	}
	if e.mailer != nil {
		twofa.SendTwoFADisable = func(ctx context.Context, account *store.Account, raw string) error {
			return e.mailer.SendTwoFADisable(ctx, account.Email, raw)
		}
		recovery.SendPasswordReset = func(ctx context.Context, account *store.Account, raw string) error {
			return e.mailer.SendPasswordReset(ctx, account.Email, raw)
		}
	}

	return flows.Deps{
		Auth:     auth,
		TwoFA:    twofa,
		Recovery: recovery,
		Moderation: flows.ModerationDeps{
			Store:     e.store,
			Bans:      e.bans,
			NotifyBan: e.notifyBan,
			Hooks:     hooks,
			Metrics:   metrics,
			Events:    events,
			Errors:    errs,
		},
	}
}

// checkLoginRate keeps an unreachable Redis distinct from an exhausted budget.
func (e *Engine) checkLoginRate(ctx context.Context, identifier, ip string) error {
	err := e.limiter.CheckLogin(ctx, identifier, ip)
	if errors.Is(err, rate.ErrRedisUnavailable) {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return err
}

// background runs fn on its own goroutine. Close waits for it.
func (e *Engine) background(fn func()) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		fn()
	}()
}

// notifyBan runs after the ban transaction committed.
func (e *Engine) notifyBan(ctx context.Context, accountID, reason string) {
	if e.notifier == nil {
		return
	}
	if n := e.notifier.Kick(context.WithoutCancel(ctx), accountID, reason); n > 0 {
		e.metricAdd(MetricForceLogoutPushed, uint64(n))
	}
}

func flowErrors() flows.Errors {
	return flows.Errors{
		EngineNotReady:         ErrEngineNotReady,
		InvalidInput:           ErrInvalidInput,
		InvalidCredentials:     ErrInvalidCredentials,
		EmailTaken:             ErrEmailTaken,
		UserBanned:             ErrUserBanned,
		InvalidOrExpiredTicket: ErrInvalidOrExpiredTicket,
		TotpRequiredOrInvalid:  ErrTotpRequiredOrInvalid,
		NotRefreshToken:        ErrNotRefreshToken,
		SessionRevoked:         ErrSessionRevoked,
		TokenExpired:           ErrTokenExpired,
		InvalidToken:           ErrInvalidToken,
		UserNotFound:           ErrUserNotFound,
		TwoFANotEnabled:        ErrTwoFANotEnabled,
		InvalidCode:            ErrInvalidCode,
		InvalidOrExpiredToken:  ErrInvalidOrExpiredToken,
		AlreadyBanned:          ErrAlreadyBanned,
		NoActiveBan:            ErrNoActiveBan,
		Forbidden:              ErrForbidden,
		PasswordPolicy:         ErrPasswordPolicy,
		LoginRateLimited:       ErrLoginRateLimited,
		BackendUnavailable:     ErrBackendUnavailable,
	}
}

func flowMetrics() flows.Metrics {
	return flows.Metrics{
		Register:              int(MetricRegister),
		LoginSuccess:          int(MetricLoginSuccess),
		LoginFailure:          int(MetricLoginFailure),
		LoginRateLimited:      int(MetricLoginRateLimited),
		LoginBanned:           int(MetricLoginBanned),
		TwoFARequired:         int(MetricTwoFARequired),
		TwoFALoginSuccess:     int(MetricTwoFALoginSuccess),
		TwoFALoginFailure:     int(MetricTwoFALoginFailure),
		SessionCreated:        int(MetricSessionCreated),
		RefreshSuccess:        int(MetricRefreshSuccess),
		RefreshFailure:        int(MetricRefreshFailure),
		RefreshExpired:        int(MetricRefreshExpired),
		RefreshRevoked:        int(MetricRefreshRevoked),
		Logout:                int(MetricLogout),
		ValidateSuccess:       int(MetricValidateSuccess),
		ValidateFailure:       int(MetricValidateFailure),
		TwoFAEnabled:          int(MetricTwoFAEnabled),
		TwoFAVerified:         int(MetricTwoFAVerified),
		TwoFADisabled:         int(MetricTwoFADisabled),
		TwoFADisableRequested: int(MetricTwoFADisableRequested),
		PasswordResetRequest:  int(MetricPasswordResetRequest),
		PasswordResetSuccess:  int(MetricPasswordResetConfirmSuccess),
		PasswordResetFailure:  int(MetricPasswordResetConfirmFailure),
		BanApplied:            int(MetricBanApplied),
		BanRevoked:            int(MetricBanRevoked),
		SessionsRevokedByBan:  int(MetricSessionsRevokedByBan),
		WarningIssued:         int(MetricWarningIssued),
	}
}

func flowEvents() flows.Events {
	return flows.Events{
		Register:              auditEventRegister,
		LoginSuccess:          auditEventLoginSuccess,
		LoginFailure:          auditEventLoginFailure,
		LoginRateLimited:      auditEventLoginRateLimited,
		TwoFARequired:         auditEventTwoFARequired,
		TwoFALoginSuccess:     auditEventTwoFALoginSuccess,
		TwoFALoginFailure:     auditEventTwoFALoginFailure,
		RefreshSuccess:        auditEventRefreshSuccess,
		RefreshFailure:        auditEventRefreshFailure,
		Logout:                auditEventLogout,
		TwoFAEnabled:          auditEventTwoFAEnabled,
		TwoFAVerified:         auditEventTwoFAVerified,
		TwoFADisabled:         auditEventTwoFADisabled,
		TwoFADisableRequested: auditEventTwoFADisableRequested,
		PasswordResetRequest:  auditEventPasswordResetRequest,
		PasswordResetConfirm:  auditEventPasswordResetConfirm,
		BanApplied:            auditEventBanApplied,
		BanRevoked:            auditEventBanRevoked,
		WarningIssued:         auditEventWarningIssued,
	}
}

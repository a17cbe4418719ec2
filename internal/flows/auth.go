package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/jwt"
	"github.com/MrEthical07/goTrust/password"
	"github.com/MrEthical07/goTrust/store"
)

// LoginResult is the flow-local login response shape. Either the token pair
// is set, or RequiresTwoFA is true and Ticket holds the login challenge.
type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	RequiresTwoFA bool
	Ticket        string
	Role          store.Role
	AccountID     string
}

// AccessResult describes a validated access token.
type AccessResult struct {
	AccountID string
	Role      store.Role
	Claims    *jwt.Claims
}

// AuthDeps captures registration, login, refresh, logout and access
// validation dependencies.
type AuthDeps struct {
	Store      store.Store
	Vault      Vault
	Tokens     Tokens
	Challenges *stores.TicketStore
	Sessions   *stores.SessionRegistry
	Bans       *stores.BanLedger

	CheckLoginRate     func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate func(ctx context.Context, identifier, ip string) error
	ResetLoginRate     func(ctx context.Context, identifier, ip string) error

	Hooks
	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (d AuthDeps) ready() bool {
	return d.Store != nil && d.Vault != nil && d.Tokens != nil &&
		d.Challenges != nil && d.Sessions != nil && d.Bans != nil
}

func (d AuthDeps) prepared() AuthDeps {
	d.Hooks = d.Hooks.filled()
	return d
}

func passwordPolicyError(errs Errors, err error) error {
	if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
		if errs.PasswordPolicy == nil {
			return err
		}
		return errors.Join(errs.PasswordPolicy, err)
	}
	return errs.backend(err)
}

// RunRegister creates a user account and signs it in.
func RunRegister(ctx context.Context, username, email, plain string, deps AuthDeps) (*LoginResult, error) {
	deps = deps.prepared()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || !strings.Contains(email, "@") {
		return nil, deps.Errors.InvalidInput
	}

	hash, err := deps.Vault.Hash(plain)
	if err != nil {
		return nil, passwordPolicyError(deps.Errors, err)
	}

	var result *LoginResult
	err = deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		if _, err := tx.FindAccountByEmail(ctx, email); err == nil {
			return deps.Errors.EmailTaken
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := deps.Now()
		acct := &store.Account{
			ID:           uuid.NewString(),
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			Role:         store.RoleUser,
			CreatedAt:    now,
			LastLoginAt:  &now,
		}
		if err := tx.CreateAccount(ctx, acct); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return deps.Errors.EmailTaken
			}
			return err
		}

		result, err = issueTokensTx(ctx, tx, acct, false, deps)
		return err
	})
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	deps.MetricInc(deps.Metrics.Register)
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.EmitAudit(ctx, deps.Events.Register, true, result.AccountID, nil, nil)
	return result, nil
}

// RunLoginStep1 checks the password. Accounts with a verified second factor
// receive a login challenge instead of tokens.
func RunLoginStep1(ctx context.Context, identifier, plain string, deps AuthDeps) (*LoginResult, error) {
	deps = deps.prepared()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	identifier = strings.TrimSpace(identifier)
	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			if errors.Is(err, deps.Errors.BackendUnavailable) {
				return nil, err
			}
			deps.MetricInc(deps.Metrics.LoginRateLimited)
			deps.EmitAudit(ctx, deps.Events.LoginRateLimited, false, "", deps.Errors.LoginRateLimited, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, deps.Errors.LoginRateLimited
		}
	}

	fail := func(userID, reason string) error {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, identifier, ip); err != nil {
				deps.Warn("goTrust: login rate increment failed", "error", err)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, deps.Errors.InvalidCredentials, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": reason}
		})
		return deps.Errors.InvalidCredentials
	}

	if identifier == "" || plain == "" {
		return nil, fail("", "empty_credentials")
	}

	acct, err := deps.Store.FindAccountByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail("", "user_not_found")
	}
	if err != nil {
		return nil, deps.Errors.backend(err)
	}
	if !deps.Vault.Verify(plain, acct.PasswordHash) {
		return nil, fail(acct.ID, "password_mismatch")
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("goTrust: login rate reset failed", "error", err)
		}
	}

	ban, err := deps.Bans.Active(ctx, deps.Store, acct.ID)
	if err != nil {
		return nil, deps.Errors.backend(err)
	}
	if ban != nil {
		deps.MetricInc(deps.Metrics.LoginBanned)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acct.ID, deps.Errors.UserBanned, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "banned"}
		})
		return nil, deps.Errors.UserBanned
	}

	tf, err := deps.Store.GetTwoFactor(ctx, acct.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, deps.Errors.backend(err)
	}
	if tf.Verified() {
		ticket, err := deps.Challenges.Issue(ctx, deps.Store, acct.ID)
		if err != nil {
			return nil, deps.Errors.backend(err)
		}
		deps.MetricInc(deps.Metrics.TwoFARequired)
		deps.EmitAudit(ctx, deps.Events.TwoFARequired, true, acct.ID, nil, nil)
		return &LoginResult{RequiresTwoFA: true, Ticket: ticket, AccountID: acct.ID, Role: acct.Role}, nil
	}

	result, err := RunIssueTokens(ctx, acct.ID, true, deps)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acct.ID, nil, nil)
	return result, nil
}

// RunLoginStep2 consumes a login challenge and checks the TOTP code. The
// challenge is spent whether or not the code is right.
func RunLoginStep2(ctx context.Context, ticket, code string, deps AuthDeps) (*LoginResult, error) {
	deps = deps.prepared()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	t, err := deps.Challenges.Consume(ctx, deps.Store, strings.TrimSpace(ticket))
	if errors.Is(err, stores.ErrTicketNotFound) {
		deps.MetricInc(deps.Metrics.TwoFALoginFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFALoginFailure, false, "", deps.Errors.InvalidOrExpiredTicket, nil)
		return nil, deps.Errors.InvalidOrExpiredTicket
	}
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	tf, err := deps.Store.GetTwoFactor(ctx, t.AccountID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, deps.Errors.backend(err)
	}
	ok := false
	if tf.Verified() {
		secret, err := deps.Vault.Decrypt(tf.SecretEnc)
		if err != nil {
			return nil, deps.Errors.backend(err)
		}
		ok = deps.Vault.VerifyTOTP(secret, strings.TrimSpace(code))
	}
	if !ok {
		deps.MetricInc(deps.Metrics.TwoFALoginFailure)
		deps.EmitAudit(ctx, deps.Events.TwoFALoginFailure, false, t.AccountID, deps.Errors.TotpRequiredOrInvalid, nil)
		return nil, deps.Errors.TotpRequiredOrInvalid
	}

	result, err := RunIssueTokens(ctx, t.AccountID, true, deps)
	if err != nil {
		return nil, err
	}
	deps.MetricInc(deps.Metrics.TwoFALoginSuccess)
	deps.EmitAudit(ctx, deps.Events.TwoFALoginSuccess, true, t.AccountID, nil, nil)
	return result, nil
}

// RunIssueTokens mints an access/refresh pair for accountID and records the
// session. The account row is locked and the ban re-checked in the same
// transaction, so a concurrent ban either precedes this and fails it, or
// follows and deletes the new session.
func RunIssueTokens(ctx context.Context, accountID string, touchLogin bool, deps AuthDeps) (*LoginResult, error) {
	deps = deps.prepared()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	var result *LoginResult
	err := deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		if err := tx.LockAccount(ctx, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return deps.Errors.UserNotFound
			}
			return err
		}
		acct, err := tx.FindAccountByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return deps.Errors.UserNotFound
			}
			return err
		}
		ban, err := deps.Bans.Active(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if ban != nil {
			return deps.Errors.UserBanned
		}
		result, err = issueTokensTx(ctx, tx, acct, touchLogin, deps)
		return err
	})
	if err != nil {
		return nil, deps.Errors.backend(err)
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	return result, nil
}

func issueTokensTx(ctx context.Context, tx store.Repository, acct *store.Account, touchLogin bool, deps AuthDeps) (*LoginResult, error) {
	if touchLogin {
		if err := tx.UpdateLastLogin(ctx, acct.ID, deps.Now()); err != nil {
			return nil, err
		}
	}

	access, err := deps.Tokens.IssueAccess(acct.ID, string(acct.Role))
	if err != nil {
		return nil, err
	}
	refresh, err := deps.Tokens.IssueRefresh(acct.ID)
	if err != nil {
		return nil, err
	}
	if _, err := deps.Sessions.Create(ctx, tx, acct.ID, refresh); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Role:         acct.Role,
		AccountID:    acct.ID,
	}, nil
}

// RunRefresh rotates a refresh token. The presented token's session is
// deleted and a new one inserted in one transaction; a second presentation of
// the same token finds nothing and fails with SessionRevoked.
func RunRefresh(ctx context.Context, refreshToken string, deps AuthDeps) (*LoginResult, error) {
	deps = deps.prepared()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	failed := func(metric int, userID string, err error) (*LoginResult, error) {
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.RefreshFailure, false, userID, err, nil)
		return nil, err
	}

	claims, err := deps.Tokens.Decode(refreshToken)
	if errors.Is(err, jwt.ErrTokenExpired) {
		if stale, derr := deps.Tokens.DecodeIgnoringExpiry(refreshToken); derr == nil && jwt.IsRefreshType(stale) && stale.Subject != "" {
			if _, rerr := deps.Sessions.Revoke(ctx, deps.Store, stale.Subject, refreshToken); rerr != nil {
				deps.Warn("goTrust: expired session cleanup failed", "error", rerr)
			}
		}
		return failed(deps.Metrics.RefreshExpired, "", deps.Errors.TokenExpired)
	}
	if err != nil {
		return failed(deps.Metrics.RefreshFailure, "", deps.Errors.InvalidToken)
	}
	if !jwt.IsRefreshType(claims) {
		return failed(deps.Metrics.RefreshFailure, claims.Subject, deps.Errors.NotRefreshToken)
	}

	accountID := claims.Subject
	var result *LoginResult
	err = deps.Store.WithTx(ctx, func(ctx context.Context, tx store.Repository) error {
		if err := tx.LockAccount(ctx, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return deps.Errors.SessionRevoked
			}
			return err
		}

		// The ban check runs before the session lookup: a ban has already
		// deleted the sessions, and the caller must still see UserBanned.
		ban, err := deps.Bans.Active(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if ban != nil {
			return deps.Errors.UserBanned
		}

		sess, err := deps.Sessions.Find(ctx, tx, accountID, refreshToken)
		if errors.Is(err, stores.ErrSessionNotFound) {
			return deps.Errors.SessionRevoked
		}
		if err != nil {
			return err
		}
		if !deps.Now().Before(sess.ExpiresAt) {
			if _, err := tx.DeleteSession(ctx, sess.ID); err != nil {
				return err
			}
			return deps.Errors.TokenExpired
		}

		acct, err := tx.FindAccountByID(ctx, accountID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return deps.Errors.SessionRevoked
			}
			return err
		}

		access, err := deps.Tokens.IssueAccess(accountID, string(acct.Role))
		if err != nil {
			return err
		}
		next, err := deps.Tokens.IssueRefresh(accountID)
		if err != nil {
			return err
		}
		if _, err := deps.Sessions.Rotate(ctx, tx, sess, next); err != nil {
			if errors.Is(err, stores.ErrSessionNotFound) {
				return deps.Errors.SessionRevoked
			}
			return err
		}

		result = &LoginResult{AccessToken: access, RefreshToken: next, Role: acct.Role, AccountID: accountID}
		return nil
	})
	if err != nil {
		err = deps.Errors.backend(err)
		switch {
		case errors.Is(err, deps.Errors.SessionRevoked):
			return failed(deps.Metrics.RefreshRevoked, accountID, err)
		case errors.Is(err, deps.Errors.TokenExpired):
			return failed(deps.Metrics.RefreshExpired, accountID, err)
		}
		return failed(deps.Metrics.RefreshFailure, accountID, err)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.EmitAudit(ctx, deps.Events.RefreshSuccess, true, accountID, nil, nil)
	return result, nil
}

// RunLogout deletes the session holding refreshToken. It never fails; the
// result reports whether a session was removed.
func RunLogout(ctx context.Context, refreshToken string, deps AuthDeps) bool {
	deps = deps.prepared()
	if !deps.ready() || refreshToken == "" {
		return false
	}

	claims, err := deps.Tokens.DecodeIgnoringExpiry(refreshToken)
	if err != nil || claims.Subject == "" {
		return false
	}

	removed, err := deps.Sessions.Revoke(ctx, deps.Store, claims.Subject, refreshToken)
	if err != nil {
		deps.Warn("goTrust: logout session delete failed", "error", err)
		return false
	}
	if removed {
		deps.MetricInc(deps.Metrics.Logout)
		deps.EmitAudit(ctx, deps.Events.Logout, true, claims.Subject, nil, nil)
	}
	return removed
}

// RunValidateAccess checks an access token and confirms its account still
// exists and is not banned.
func RunValidateAccess(ctx context.Context, accessToken string, deps AuthDeps) (*AccessResult, error) {
	deps = deps.prepared()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := deps.Tokens.Decode(accessToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, deps.Errors.TokenExpired
		}
		return nil, deps.Errors.InvalidToken
	}
	if claims.Type != jwt.TypeAccess || claims.Subject == "" {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return nil, deps.Errors.InvalidToken
	}

	acct, err := deps.Store.FindAccountByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return nil, deps.Errors.InvalidToken
	}
	if err != nil {
		return nil, deps.Errors.backend(err)
	}

	ban, err := deps.Bans.Active(ctx, deps.Store, acct.ID)
	if err != nil {
		return nil, deps.Errors.backend(err)
	}
	if ban != nil {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return nil, deps.Errors.UserBanned
	}

	deps.MetricInc(deps.Metrics.ValidateSuccess)
	return &AccessResult{AccountID: acct.ID, Role: acct.Role, Claims: claims}, nil
}

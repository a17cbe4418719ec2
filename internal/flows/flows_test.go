package flows

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/jwt"
	"github.com/MrEthical07/goTrust/password"
	"github.com/MrEthical07/goTrust/store"
	"github.com/MrEthical07/goTrust/store/memstore"
	"github.com/MrEthical07/goTrust/vault"
)

var (
	errNotReady       = errors.New("not ready")
	errInput          = errors.New("invalid input")
	errCreds          = errors.New("invalid credentials")
	errEmailTaken     = errors.New("email taken")
	errBanned         = errors.New("banned")
	errTicket         = errors.New("invalid ticket")
	errTotp           = errors.New("totp required or invalid")
	errNotRefresh     = errors.New("not refresh")
	errRevoked        = errors.New("session revoked")
	errExpired        = errors.New("token expired")
	errInvalidToken   = errors.New("invalid token")
	errUserNotFound   = errors.New("user not found")
	errNoTwoFA        = errors.New("2fa not enabled")
	errCode           = errors.New("invalid code")
	errToken          = errors.New("invalid or expired token")
	errAlreadyBanned  = errors.New("already banned")
	errNoBan          = errors.New("no active ban")
	errForbidden      = errors.New("forbidden")
	errPolicy         = errors.New("password policy")
	errRateLimited    = errors.New("rate limited")
	errBackendTesting = errors.New("backend unavailable")
)

func testErrors() Errors {
	return Errors{
		EngineNotReady:         errNotReady,
		InvalidInput:           errInput,
		InvalidCredentials:     errCreds,
		EmailTaken:             errEmailTaken,
		UserBanned:             errBanned,
		InvalidOrExpiredTicket: errTicket,
		TotpRequiredOrInvalid:  errTotp,
		NotRefreshToken:        errNotRefresh,
		SessionRevoked:         errRevoked,
		TokenExpired:           errExpired,
		InvalidToken:           errInvalidToken,
		UserNotFound:           errUserNotFound,
		TwoFANotEnabled:        errNoTwoFA,
		InvalidCode:            errCode,
		InvalidOrExpiredToken:  errToken,
		AlreadyBanned:          errAlreadyBanned,
		NoActiveBan:            errNoBan,
		Forbidden:              errForbidden,
		PasswordPolicy:         errPolicy,
		LoginRateLimited:       errRateLimited,
		BackendUnavailable:     errBackendTesting,
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	clock *testClock
	store *memstore.Store
	vault *vault.Vault
	deps  Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	v, err := vault.New(vault.Config{
		Key: bytes.Repeat([]byte{9}, vault.KeySize),
		Password: password.Config{
			Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		},
		Now: clock.Now,
	})
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	authority, err := jwt.NewAuthority(jwt.Config{
		PrivateKey: []byte("flows-test-secret-flows-test-secret"),
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("jwt.NewAuthority: %v", err)
	}

	st := memstore.New()
	hooks := Hooks{Now: clock.Now}
	bans := stores.NewBanLedger(clock.Now)
	errs := testErrors()

	return &harness{
		clock: clock,
		store: st,
		vault: v,
		deps: Deps{
			Auth: AuthDeps{
				Store:      st,
				Vault:      v,
				Tokens:     authority,
				Challenges: stores.NewTicketStore(stores.TicketPolicy{Purpose: store.PurposeLoginChallenge, TTL: 5 * time.Minute}, clock.Now),
				Sessions:   stores.NewSessionRegistry(v, jwt.DefaultRefreshTTL, clock.Now, nil),
				Bans:       bans,
				Hooks:      hooks,
				Errors:     errs,
			},
			TwoFA: TwoFADeps{
				Store:          st,
				Vault:          v,
				DisableTickets: stores.NewTicketStore(stores.TicketPolicy{Purpose: store.PurposeTwoFADisable, TTL: time.Hour, HashAtRest: true}, clock.Now),
				Hooks:          hooks,
				Errors:         errs,
			},
			Recovery: RecoveryDeps{
				Store:        st,
				Vault:        v,
				ResetTickets: stores.NewTicketStore(stores.TicketPolicy{Purpose: store.PurposePasswordReset, TTL: time.Hour, HashAtRest: true}, clock.Now),
				Hooks:        hooks,
				Errors:       errs,
			},
			Moderation: ModerationDeps{
				Store:  st,
				Bans:   bans,
				Hooks:  hooks,
				Errors: errs,
			},
		},
	}
}

func (h *harness) account(t *testing.T, username, email string, role store.Role) *store.Account {
	t.Helper()
	hash, err := h.vault.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	a := &store.Account{
		ID:           username + "-id",
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    h.clock.Now(),
	}
	if err := h.store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func (h *harness) enrollTOTP(t *testing.T, accountID string) string {
	t.Helper()
	ctx := context.Background()
	setup, err := RunEnable2FA(ctx, accountID, h.deps.TwoFA)
	if err != nil {
		t.Fatalf("RunEnable2FA: %v", err)
	}
	code, _ := h.vault.CodeAt(setup.Secret, h.clock.Now())
	ok, err := RunVerify2FA(ctx, accountID, code, h.deps.TwoFA)
	if err != nil || !ok {
		t.Fatalf("RunVerify2FA: ok=%v err=%v", ok, err)
	}
	return setup.Secret
}

func TestBackendWrapsOnlyInfrastructureErrors(t *testing.T) {
	errs := testErrors()

	wrapped := errs.backend(errors.New("connection refused"))
	if !errors.Is(wrapped, errBackendTesting) {
		t.Fatalf("expected backend wrap, got %v", wrapped)
	}
	if got := errs.backend(errBanned); got != errBanned {
		t.Fatalf("expected domain error to pass through, got %v", got)
	}
	if got := errs.backend(wrapped); got != wrapped {
		t.Fatalf("expected wrapped error to pass through unchanged, got %v", got)
	}
	if errs.backend(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}

func TestRunLoginStep1NotReady(t *testing.T) {
	_, err := RunLoginStep1(context.Background(), "a", "b", AuthDeps{Errors: testErrors()})
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestLoginStep1RateLimitHook(t *testing.T) {
	h := newHarness(t)
	h.account(t, "alice", "alice@example.com", store.RoleUser)

	deps := h.deps.Auth
	deps.CheckLoginRate = func(context.Context, string, string) error { return errors.New("limited") }
	if _, err := RunLoginStep1(context.Background(), "alice", "s3cret-password", deps); !errors.Is(err, errRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	var increments int
	deps.CheckLoginRate = nil
	deps.IncrementLoginRate = func(context.Context, string, string) error { increments++; return nil }
	if _, err := RunLoginStep1(context.Background(), "alice", "nope-nope", deps); !errors.Is(err, errCreds) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if increments != 1 {
		t.Fatalf("expected one failure increment, got %d", increments)
	}
}

func TestLoginStep2SpendsTicketOnWrongCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, "alice", "alice@example.com", store.RoleUser)
	secret := h.enrollTOTP(t, acct.ID)

	step1, err := RunLoginStep1(ctx, "alice", "s3cret-password", h.deps.Auth)
	if err != nil {
		t.Fatalf("RunLoginStep1: %v", err)
	}
	if !step1.RequiresTwoFA || step1.Ticket == "" || step1.AccessToken != "" {
		t.Fatalf("expected a 2fa challenge, got %+v", step1)
	}

	if _, err := RunLoginStep2(ctx, step1.Ticket, "000000", h.deps.Auth); !errors.Is(err, errTotp) {
		t.Fatalf("expected totp failure, got %v", err)
	}

	code, _ := h.vault.CodeAt(secret, h.clock.Now())
	if _, err := RunLoginStep2(ctx, step1.Ticket, code, h.deps.Auth); !errors.Is(err, errTicket) {
		t.Fatalf("expected spent ticket, got %v", err)
	}
}

func TestLoginStep2ExpiredTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, "alice", "alice@example.com", store.RoleUser)
	secret := h.enrollTOTP(t, acct.ID)

	step1, err := RunLoginStep1(ctx, "alice@example.com", "s3cret-password", h.deps.Auth)
	if err != nil {
		t.Fatalf("RunLoginStep1: %v", err)
	}
	h.clock.Advance(5 * time.Minute)

	code, _ := h.vault.CodeAt(secret, h.clock.Now())
	if _, err := RunLoginStep2(ctx, step1.Ticket, code, h.deps.Auth); !errors.Is(err, errTicket) {
		t.Fatalf("expected expired ticket, got %v", err)
	}
	if n := h.store.Counts()["tickets"]; n != 0 {
		t.Fatalf("expected expired ticket to be deleted, %d left", n)
	}
}

func TestRefreshExpiredRemovesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.account(t, "alice", "alice@example.com", store.RoleUser)

	res, err := RunLoginStep1(ctx, "alice", "s3cret-password", h.deps.Auth)
	if err != nil {
		t.Fatalf("RunLoginStep1: %v", err)
	}
	h.clock.Advance(jwt.DefaultRefreshTTL + time.Second)

	if _, err := RunRefresh(ctx, res.RefreshToken, h.deps.Auth); !errors.Is(err, errExpired) {
		t.Fatalf("expected token expired, got %v", err)
	}
	if n := h.store.Counts()["sessions"]; n != 0 {
		t.Fatalf("expected expired session cleanup, %d sessions left", n)
	}
}

func TestRefreshRejectsAccessAndGarbage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.account(t, "alice", "alice@example.com", store.RoleUser)

	res, err := RunLoginStep1(ctx, "alice", "s3cret-password", h.deps.Auth)
	if err != nil {
		t.Fatalf("RunLoginStep1: %v", err)
	}
	if _, err := RunRefresh(ctx, res.AccessToken, h.deps.Auth); !errors.Is(err, errNotRefresh) {
		t.Fatalf("expected not refresh token, got %v", err)
	}
	if _, err := RunRefresh(ctx, "not.a.jwt", h.deps.Auth); !errors.Is(err, errInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestLogoutNeverFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.account(t, "alice", "alice@example.com", store.RoleUser)

	res, err := RunLoginStep1(ctx, "alice", "s3cret-password", h.deps.Auth)
	if err != nil {
		t.Fatalf("RunLoginStep1: %v", err)
	}
	if !RunLogout(ctx, res.RefreshToken, h.deps.Auth) {
		t.Fatal("expected logout to remove the session")
	}
	if RunLogout(ctx, res.RefreshToken, h.deps.Auth) {
		t.Fatal("expected second logout to be a no-op")
	}
	if RunLogout(ctx, "garbage", h.deps.Auth) {
		t.Fatal("expected garbage logout to be a no-op")
	}
}

func TestConfirmTwoFADisableDeletesExpiredTicket(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, "alice", "alice@example.com", store.RoleUser)
	h.enrollTOTP(t, acct.ID)

	sent, err := RunRequestTwoFADisable(ctx, acct.ID, h.deps.TwoFA)
	if err != nil {
		t.Fatalf("RunRequestTwoFADisable: %v", err)
	}
	if sent.EmailSent {
		t.Fatal("expected EmailSent=false without a mail hook")
	}

	h.clock.Advance(time.Hour)
	if err := RunConfirmTwoFADisable(ctx, sent.Token, h.deps.TwoFA); !errors.Is(err, errToken) {
		t.Fatalf("expected invalid or expired token, got %v", err)
	}
	counts := h.store.Counts()
	if counts["tickets"] != 0 {
		t.Fatalf("expected expired ticket deletion to commit, %d left", counts["tickets"])
	}
	if counts["two_factor"] != 1 {
		t.Fatal("expected secret to survive a rejected confirmation")
	}
}

func TestConfirmPasswordResetChecksPolicyFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acct := h.account(t, "alice", "alice@example.com", store.RoleUser)

	var mailed string
	deps := h.deps.Recovery
	deps.SendPasswordReset = func(_ context.Context, a *store.Account, raw string) error {
		if a.ID != acct.ID {
			t.Errorf("mail for wrong account %q", a.ID)
		}
		mailed = raw
		return nil
	}
	deps.Dispatch = func(fn func()) { fn() }

	res, err := RunRequestPasswordReset(ctx, "ALICE@example.com", deps)
	if err != nil {
		t.Fatalf("RunRequestPasswordReset: %v", err)
	}
	if res.EmailSent || mailed == "" || mailed != res.Token {
		t.Fatalf("expected mailed token, got %+v", res)
	}

	if err := RunConfirmPasswordReset(ctx, mailed, "short", deps); !errors.Is(err, errPolicy) {
		t.Fatalf("expected password policy error, got %v", err)
	}
	if err := RunConfirmPasswordReset(ctx, mailed, "brand-new-password", deps); err != nil {
		t.Fatalf("expected ticket to survive policy failure: %v", err)
	}
	if _, err := RunLoginStep1(ctx, "alice", "brand-new-password", h.deps.Auth); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestRequestPasswordResetMailsOffTheRequestPath(t *testing.T) {
	h := newHarness(t)
	h.account(t, "bob", "bob@example.com", store.RoleUser)

	var queued func()
	mailErr := make(chan error, 1)
	deps := h.deps.Recovery
	deps.Dispatch = func(fn func()) { queued = fn }
	deps.SendPasswordReset = func(ctx context.Context, _ *store.Account, _ string) error {
		mailErr <- ctx.Err()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	res, err := RunRequestPasswordReset(ctx, "bob@example.com", deps)
	cancel()
	if err != nil || res.Token == "" {
		t.Fatalf("RunRequestPasswordReset: %+v %v", res, err)
	}
	if queued == nil {
		t.Fatal("expected the mail to be queued")
	}
	if len(mailErr) != 0 {
		t.Fatal("mail must not be sent before the request returns")
	}

	queued()
	if err := <-mailErr; err != nil {
		t.Fatalf("mail context must outlive the request, got %v", err)
	}
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	h := newHarness(t)
	res, err := RunRequestPasswordReset(context.Background(), "ghost@example.com", h.deps.Recovery)
	if err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
	if res.Token != "" || res.EmailSent {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if n := h.store.Counts()["tickets"]; n != 0 {
		t.Fatalf("expected no ticket, got %d", n)
	}
}

func TestRunBanChecksModeratorRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	target := h.account(t, "bob", "bob@example.com", store.RoleUser)
	peer := h.account(t, "carol", "carol@example.com", store.RoleUser)
	mod := h.account(t, "mod", "mod@example.com", store.RoleModerator)

	if _, err := RunBan(ctx, BanInput{AccountID: target.ID, ModeratorID: peer.ID}, h.deps.Moderation); !errors.Is(err, errForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	var notified []string
	deps := h.deps.Moderation
	deps.NotifyBan = func(_ context.Context, accountID, reason string) {
		notified = append(notified, accountID+":"+reason)
	}
	ban, err := RunBan(ctx, BanInput{AccountID: target.ID, ModeratorID: mod.ID, Reason: " spam "}, deps)
	if err != nil {
		t.Fatalf("RunBan: %v", err)
	}
	if !ban.Permanent() || ban.Reason != "spam" {
		t.Fatalf("unexpected ban %+v", ban)
	}
	if len(notified) != 1 || notified[0] != target.ID+":spam" {
		t.Fatalf("unexpected notifications %v", notified)
	}

	if _, err := RunBan(ctx, BanInput{AccountID: target.ID, ModeratorID: mod.ID}, deps); !errors.Is(err, errAlreadyBanned) {
		t.Fatalf("expected already banned, got %v", err)
	}
	if _, err := RunBan(ctx, BanInput{AccountID: "nobody", ModeratorID: mod.ID}, deps); !errors.Is(err, errUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	past := h.clock.Now().Add(-time.Hour)
	if _, err := RunBan(ctx, BanInput{AccountID: peer.ID, Until: &past}, deps); !errors.Is(err, errInput) {
		t.Fatalf("expected past expiry to be rejected, got %v", err)
	}
}

func TestRevokeBanAndWarn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	target := h.account(t, "bob", "bob@example.com", store.RoleUser)

	if _, err := RunRevokeBan(ctx, target.ID, "", h.deps.Moderation); !errors.Is(err, errNoBan) {
		t.Fatalf("expected no active ban, got %v", err)
	}
	if _, err := RunBan(ctx, BanInput{AccountID: target.ID}, h.deps.Moderation); err != nil {
		t.Fatalf("RunBan: %v", err)
	}
	if _, err := RunRevokeBan(ctx, target.ID, "", h.deps.Moderation); err != nil {
		t.Fatalf("RunRevokeBan: %v", err)
	}
	if ban, err := RunActiveBan(ctx, target.ID, h.deps.Moderation); err != nil || ban != nil {
		t.Fatalf("expected no active ban after revoke, got %+v, %v", ban, err)
	}

	w, err := RunWarn(ctx, target.ID, "", "be nice", h.deps.Moderation)
	if err != nil {
		t.Fatalf("RunWarn: %v", err)
	}
	if w.Reason != "be nice" || w.AccountID != target.ID {
		t.Fatalf("unexpected warning %+v", w)
	}
	if _, err := RunWarn(ctx, "ghost", "", "x", h.deps.Moderation); !errors.Is(err, errUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

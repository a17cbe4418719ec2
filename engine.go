package goTrust

import (
	"context"
	"fmt"
	"sync"
	"time"

	internalaudit "github.com/MrEthical07/goTrust/internal/audit"
	"github.com/MrEthical07/goTrust/internal/flows"
	"github.com/MrEthical07/goTrust/internal/logging"
	internalmetrics "github.com/MrEthical07/goTrust/internal/metrics"
	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/jwt"
	"github.com/MrEthical07/goTrust/store"
	"github.com/MrEthical07/goTrust/vault"
)

type loginLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
}

// Engine runs the login, refresh, second-factor, recovery and moderation
// flows. Construct it with [Builder.Build]. All methods are safe for
// concurrent use.
type Engine struct {
	config Config
	store  store.Store
	vault  *vault.Vault
	tokens *jwt.Authority

	challenges *stores.TicketStore
	resets     *stores.TicketStore
	disables   *stores.TicketStore
	sessions   *stores.SessionRegistry
	bans       *stores.BanLedger

	limiter  loginLimiter
	notifier Notifier
	mailer   Mailer

	logger  logging.Logger
	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics
	now     func() time.Time

	pending sync.WaitGroup
	flow    flows.Service
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// opContext bounds one operation's persistence work by
// Config.Store.OperationTimeout.
func (e *Engine) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if d := e.config.Store.OperationTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(context.Background(), msg, args...)
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n uint64) {
	e.metrics.Add(id, n)
}

// Register creates an account with role user and signs it in.
func (e *Engine) Register(ctx context.Context, username, email, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Register(ctx, username, email, password)
}

// LoginStep1 checks identifier (username or email) and password. When the
// account has a verified second factor the result carries a login challenge
// and no tokens.
func (e *Engine) LoginStep1(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.LoginStep1(ctx, identifier, password)
}

// LoginStep2Totp spends a login challenge and checks the TOTP code. The
// challenge is gone after this call whatever the outcome.
func (e *Engine) LoginStep2Totp(ctx context.Context, ticket, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.LoginStep2(ctx, ticket, code)
}

// Refresh rotates a refresh token. The presented token is dead afterwards
// even if the call fails after the session lookup.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Refresh(ctx, refreshToken)
}

// Logout deletes the session of refreshToken when it can be found. It never
// fails; the result reports whether a session was removed.
func (e *Engine) Logout(ctx context.Context, refreshToken string) bool {
	if !e.ready() {
		return false
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	return e.flow.Logout(ctx, refreshToken)
}

// ValidateAccess authenticates an access token and re-checks the account
// and its ban status.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()

	if !e.metrics.LatencyEnabled() {
		return e.flow.ValidateAccess(ctx, accessToken)
	}
	start := time.Now()
	res, err := e.flow.ValidateAccess(ctx, accessToken)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	return res, err
}

// Ping checks the store.
func (e *Engine) Ping(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, cancel := e.opContext(ctx)
	defer cancel()
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return internalmetrics.New(internalmetrics.Config{}).Snapshot()
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close waits for queued reset mail and flushes the audit dispatcher. It does
// not close the store, which the caller owns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.pending.Wait()
	e.audit.Close()
}

package goTrust

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/MrEthical07/goTrust/internal/audit"
	"github.com/MrEthical07/goTrust/internal/flows"
	"github.com/MrEthical07/goTrust/internal/logging"
	internalmetrics "github.com/MrEthical07/goTrust/internal/metrics"
	"github.com/MrEthical07/goTrust/internal/rate"
	"github.com/MrEthical07/goTrust/internal/stores"
	"github.com/MrEthical07/goTrust/jwt"
	"github.com/MrEthical07/goTrust/store"
	"github.com/MrEthical07/goTrust/vault"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config
	store  store.Store
	redis  redis.UniversalClient

	auditSink AuditSink
	logger    logging.Logger
	notifier  Notifier
	mailer    Mailer
	now       func() time.Time

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The byte slices are copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence backend. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis moves login throttling to shared Redis counters. Without it the
// engine throttles with in-process token buckets.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets where audit events go when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger replaces the default JSON stderr logger.
func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithNotifier wires forced-logout delivery for bans.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithMailer wires delivery of password-reset and 2FA-disable tokens.
// Without one, tokens are still issued and nothing is delivered.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithClock overrides the time source of the engine, its tokens, tickets
// and TOTP checks. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = logging.New(os.Stderr, "json", "info")
	}

	v, err := vault.New(vault.Config{
		Key:        cfg.Vault.Key,
		Issuer:     cfg.TOTP.Issuer,
		TOTPPeriod: cfg.TOTP.Period,
		TOTPSkew:   cfg.TOTP.Skew,
		Password:   cfg.Password.argon2(),
		Now:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	tokens, err := jwt.NewAuthority(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: cfg.JWT.SigningMethod,
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	e := &Engine{
		config:   cfg,
		store:    b.store,
		vault:    v,
		tokens:   tokens,
		notifier: b.notifier,
		mailer:   b.mailer,
		logger:   logger,
		now:      now,
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:       cfg.Metrics.Enabled,
			EnableLatency: cfg.Metrics.EnableLatencyHistograms,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Logger:     logger,
		}, b.auditSink),
	}

	if cfg.RateLimit.Enabled {
		rc := rate.Config{
			MaxLoginAttempts: cfg.RateLimit.MaxLoginAttempts,
			Cooldown:         cfg.RateLimit.Cooldown,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			KeyPrefix:        cfg.RateLimit.KeyPrefix,
		}
		if b.redis != nil {
			e.limiter = rate.New(b.redis, rc)
		} else {
			e.limiter = rate.NewLocal(rc)
		}
	}

	e.challenges = stores.NewTicketStore(stores.TicketPolicy{
		Purpose: store.PurposeLoginChallenge,
		TTL:     cfg.Tickets.LoginChallengeTTL,
	}, now)
	e.resets = stores.NewTicketStore(stores.TicketPolicy{
		Purpose:    store.PurposePasswordReset,
		TTL:        cfg.Tickets.PasswordResetTTL,
		HashAtRest: true,
	}, now)
	e.disables = stores.NewTicketStore(stores.TicketPolicy{
		Purpose:    store.PurposeTwoFADisable,
		TTL:        cfg.Tickets.TwoFADisableTTL,
		HashAtRest: true,
	}, now)
	e.sessions = stores.NewSessionRegistry(v, cfg.Sessions.TTL, now, e.warn)
	e.bans = stores.NewBanLedger(now)

	e.flow = flows.New(e.flowDeps())

	b.built = true
	return e, nil
}

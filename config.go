package goTrust

import (
	"errors"
	"time"

	"github.com/MrEthical07/goTrust/jwt"
	"github.com/MrEthical07/goTrust/password"
	"github.com/MrEthical07/goTrust/vault"
)

// Config is the top-level engine configuration. Obtain defaults with
// [DefaultConfig], adjust the sub-structs and pass it to [Builder.WithConfig].
// [Builder.Build] validates it.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	TOTP      TOTPConfig
	Tickets   TicketConfig
	Sessions  SessionConfig
	Vault     VaultConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

// JWTConfig controls token signing and lifetimes.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod jwt.SigningMethod
	// PrivateKey is the HMAC secret for hs256 or the PKCS#8 PEM/raw key for ed25519.
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	Leeway     time.Duration
	KeyID      string
}

// PasswordConfig holds the argon2id parameters and the length policy.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
}

// TOTPConfig controls authenticator codes.
type TOTPConfig struct {
	Issuer string
	// Period is the step length in seconds.
	Period uint
	// Skew is how many steps either side of now are accepted.
	Skew uint
}

// TicketConfig sets the lifetime of each single-use ticket kind.
type TicketConfig struct {
	LoginChallengeTTL time.Duration
	PasswordResetTTL  time.Duration
	TwoFADisableTTL   time.Duration
}

// SessionConfig controls refresh sessions.
type SessionConfig struct {
	// TTL is the absolute lifetime of a session row. It should match JWT.RefreshTTL.
	TTL time.Duration
}

// VaultConfig carries the at-rest encryption key.
type VaultConfig struct {
	// Key is the 32-byte AES-256 key. It is never generated here.
	Key []byte
}

// RateLimitConfig throttles failed logins per identifier and per IP.
type RateLimitConfig struct {
	Enabled          bool
	MaxLoginAttempts int
	Cooldown         time.Duration
	EnableIPThrottle bool
	// KeyPrefix namespaces Redis counters.
	KeyPrefix string
}

// StoreConfig bounds persistence calls.
type StoreConfig struct {
	// OperationTimeout caps each engine operation's persistence work. Zero
	// leaves the caller's deadline in charge.
	OperationTimeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config with production defaults. The vault key and
// the JWT signing key are left empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     jwt.DefaultAccessTTL,
			RefreshTTL:    jwt.DefaultRefreshTTL,
			SigningMethod: jwt.MethodHS256,
			Leeway:        30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MinPasswordBytes: pw.MinPasswordBytes,
			MaxPasswordBytes: pw.MaxPasswordBytes,
		},
		TOTP: TOTPConfig{
			Issuer: "goTrust",
			Period: 30,
			Skew:   1,
		},
		Tickets: TicketConfig{
			LoginChallengeTTL: 5 * time.Minute,
			PasswordResetTTL:  time.Hour,
			TwoFADisableTTL:   time.Hour,
		},
		Sessions: SessionConfig{
			TTL: jwt.DefaultRefreshTTL,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			MaxLoginAttempts: 5,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: true,
			KeyPrefix:        "gotrust:rl",
		},
		Store: StoreConfig{
			OperationTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Vault.Key = cloneBytes(cfg.Vault.Key)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) argon2() password.Config {
	return password.Config{
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		MinPasswordBytes: c.MinPasswordBytes,
		MaxPasswordBytes: c.MaxPasswordBytes,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}
	switch c.JWT.SigningMethod {
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires PrivateKey of at least 32 bytes")
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinPasswordBytes < password.DefaultMinPasswordBytes {
		return errors.New("Password MinPasswordBytes must be >= 8")
	}
	if c.Password.MaxPasswordBytes < c.Password.MinPasswordBytes {
		return errors.New("Password MaxPasswordBytes must be >= MinPasswordBytes")
	}

	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.Period < 15 {
		return errors.New("TOTP Period must be >= 15 seconds")
	}
	if c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be <= 3")
	}

	if c.Tickets.LoginChallengeTTL <= 0 {
		return errors.New("Tickets LoginChallengeTTL must be > 0")
	}
	if c.Tickets.PasswordResetTTL <= 0 {
		return errors.New("Tickets PasswordResetTTL must be > 0")
	}
	if c.Tickets.TwoFADisableTTL <= 0 {
		return errors.New("Tickets TwoFADisableTTL must be > 0")
	}

	if c.Sessions.TTL <= 0 {
		return errors.New("Sessions TTL must be > 0")
	}

	if len(c.Vault.Key) != vault.KeySize {
		return errors.New("Vault Key must be 32 bytes")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.Cooldown <= 0 {
			return errors.New("RateLimit Cooldown must be > 0")
		}
	}

	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

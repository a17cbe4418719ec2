package vault

import (
	"time"

	"github.com/MrEthical07/goTrust/password"
)

// Config configures a Vault.
type Config struct {
	// Key is the 32-byte AES-256 key for Encrypt and Decrypt.
	Key []byte
	// Issuer labels provisioning URIs.
	Issuer string
	// TOTPPeriod is the step length in seconds. Zero means 30.
	TOTPPeriod uint
	// TOTPSkew is the number of steps accepted on each side of the current one. Zero means 1.
	TOTPSkew uint
	// Password configures the argon2id hasher. A zero value uses password.DefaultConfig.
	Password password.Config
	// Now overrides the clock for TOTP checks.
	Now func() time.Time
}

// Vault is safe for concurrent use.
type Vault struct {
	config Config
	hasher *password.Argon2
	sealer *sealer
	now    func() time.Time
}

// New validates cfg and builds a Vault.
func New(cfg Config) (*Vault, error) {
	if cfg.TOTPPeriod == 0 {
		cfg.TOTPPeriod = 30
	}
	if cfg.TOTPSkew == 0 {
		cfg.TOTPSkew = 1
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "goTrust"
	}
	if cfg.Password == (password.Config{}) {
		cfg.Password = password.DefaultConfig()
	}

	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}
	s, err := newSealer(cfg.Key)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Vault{config: cfg, hasher: hasher, sealer: s, now: now}, nil
}

// Hash returns an argon2id PHC string. Passwords shorter than the configured
// minimum fail with password.ErrPasswordTooShort.
func (v *Vault) Hash(plain string) (string, error) {
	return v.hasher.Hash(plain)
}

// Verify reports whether plain matches hash. Malformed hashes verify as false.
func (v *Vault) Verify(plain, hash string) bool {
	ok, err := v.hasher.Verify(plain, hash)
	return err == nil && ok
}

// Encrypt seals plaintext into an `enc:` value with a fresh nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	return v.sealer.seal(plaintext)
}

// Decrypt reverses Encrypt. Values without the `enc:` prefix are returned unchanged.
func (v *Vault) Decrypt(value string) (string, error) {
	return v.sealer.open(value)
}

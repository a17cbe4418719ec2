package goTrust

import (
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/jwt"
	"github.com/MrEthical07/goTrust/store/memstore"
)

func TestDefaultConfigNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without keys must not validate")
	}
	cfg = testConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config must validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, "AccessTTL"},
		{"access not shorter", func(c *Config) { c.JWT.AccessTTL = c.JWT.RefreshTTL }, "shorter"},
		{"short hmac key", func(c *Config) { c.JWT.PrivateKey = []byte("short") }, "hs256"},
		{"ed25519 public key", func(c *Config) {
			c.JWT.SigningMethod = jwt.MethodEd25519
			c.JWT.PublicKey = nil
		}, "PublicKey"},
		{"unknown method", func(c *Config) { c.JWT.SigningMethod = "rs512" }, "unsupported"},
		{"negative leeway", func(c *Config) { c.JWT.Leeway = -time.Second }, "Leeway"},
		{"argon memory", func(c *Config) { c.Password.Memory = 1024 }, "Memory"},
		{"min password", func(c *Config) { c.Password.MinPasswordBytes = 4 }, "MinPasswordBytes"},
		{"max below min", func(c *Config) { c.Password.MaxPasswordBytes = 6 }, "MaxPasswordBytes"},
		{"totp issuer", func(c *Config) { c.TOTP.Issuer = "" }, "Issuer"},
		{"totp period", func(c *Config) { c.TOTP.Period = 5 }, "Period"},
		{"totp skew", func(c *Config) { c.TOTP.Skew = 4 }, "Skew"},
		{"challenge ttl", func(c *Config) { c.Tickets.LoginChallengeTTL = 0 }, "LoginChallengeTTL"},
		{"session ttl", func(c *Config) { c.Sessions.TTL = 0 }, "Sessions"},
		{"vault key", func(c *Config) { c.Vault.Key = c.Vault.Key[:16] }, "Vault"},
		{"rate attempts", func(c *Config) { c.RateLimit.MaxLoginAttempts = 0 }, "MaxLoginAttempts"},
		{"rate cooldown", func(c *Config) { c.RateLimit.Cooldown = 0 }, "Cooldown"},
		{"op timeout", func(c *Config) { c.Store.OperationTimeout = -time.Second }, "OperationTimeout"},
		{"audit buffer", func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 0
		}, "BufferSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRateLimitSettingsIgnoredWhenDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.MaxLoginAttempts = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled rate limit must not be validated: %v", err)
	}
}

func TestWithConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg).WithStore(memstore.New())
	cfg.Vault.Key[0] = 'x'
	cfg.JWT.PrivateKey = nil

	e, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()
	if e.config.Vault.Key[0] != 'v' {
		t.Fatal("builder must not share the caller's key slice")
	}
}

package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// serverConfig is read from an optional config file and GOTRUST_* variables;
// nested keys map to env names with dots replaced by underscores, so
// database.dsn is GOTRUST_DATABASE_DSN.
type serverConfig struct {
	Addr      string `mapstructure:"addr" validate:"required"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json text"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Database databaseConfig `mapstructure:"database"`
	Redis    redisConfig    `mapstructure:"redis"`
	Keys     keysConfig     `mapstructure:"keys"`
	Mail     mailConfig     `mapstructure:"mail"`
	HTTP     httpConfig     `mapstructure:"http"`
	Sweeper  sweeperConfig  `mapstructure:"sweeper"`
	Audit    auditConfig    `mapstructure:"audit"`
}

type databaseConfig struct {
	Driver         string        `mapstructure:"driver" validate:"oneof=memory postgres"`
	DSN            string        `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	MaxOpenConns   int           `mapstructure:"max_open_conns" validate:"gte=0"`
}

type redisConfig struct {
	// Addr enables shared login throttling. Empty keeps it in-process.
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type keysConfig struct {
	// Both keys are standard base64.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,base64"`
	VaultKey  string `mapstructure:"vault_key" validate:"required,base64"`
}

type mailConfig struct {
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`
	Product  string `mapstructure:"product"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" validate:"gte=0,lte=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required_with=SMTPHost"`
}

type httpConfig struct {
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	CookieSameSite string        `mapstructure:"cookie_samesite" validate:"oneof=lax strict none"`
	CookieDomain   string        `mapstructure:"cookie_domain"`
	AllowOrigins   []string      `mapstructure:"allow_origins" validate:"dive,url"`
	DebugEchoToken bool          `mapstructure:"debug_echo_token"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace" validate:"gt=0"`
}

type sweeperConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval" validate:"gt=0"`
	Retention time.Duration `mapstructure:"retention" validate:"gt=0"`
}

type auditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var defaults = map[string]any{
	"addr":                     ":8080",
	"log_format":               "json",
	"log_level":                "info",
	"database.driver":          "memory",
	"database.dsn":             "",
	"database.connect_timeout": 30 * time.Second,
	"database.max_open_conns":  20,
	"redis.addr":               "",
	"redis.password":           "",
	"redis.db":                 0,
	"keys.jwt_secret":          "",
	"keys.vault_key":           "",
	"mail.base_url":            "http://localhost:3000",
	"mail.product":             "goTrust",
	"mail.smtp_host":           "",
	"mail.smtp_port":           587,
	"mail.username":            "",
	"mail.password":            "",
	"mail.from":                "",
	"http.cookie_secure":       true,
	"http.cookie_samesite":     "lax",
	"http.cookie_domain":       "",
	"http.allow_origins":       []string{},
	"http.debug_echo_token":    false,
	"http.read_timeout":        10 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.shutdown_grace":      10 * time.Second,
	"sweeper.enabled":          true,
	"sweeper.interval":         time.Hour,
	"sweeper.retention":        180 * 24 * time.Hour,
	"audit.enabled":            true,
}

// loadConfig layers defaults, the file at path (when set) and the
// environment, then validates the result.
func loadConfig(path string) (*serverConfig, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("GOTRUST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg serverConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (k keysConfig) decode() (jwtSecret, vaultKey []byte, err error) {
	jwtSecret, err = base64.StdEncoding.DecodeString(k.JWTSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("keys.jwt_secret: %w", err)
	}
	vaultKey, err = base64.StdEncoding.DecodeString(k.VaultKey)
	if err != nil {
		return nil, nil, fmt.Errorf("keys.vault_key: %w", err)
	}
	if len(vaultKey) != 32 {
		return nil, nil, errors.New("keys.vault_key must decode to 32 bytes")
	}
	return jwtSecret, vaultKey, nil
}

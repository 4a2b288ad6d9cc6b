// Package config loads process configuration from COURSEBOOK_* environment
// variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every variable read by Load.
const EnvPrefix = "COURSEBOOK_"

// Config is the full process configuration.
type Config struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	Env             string        `env:"ENV"              envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	DBPath          string        `env:"DB_PATH"          envDefault:"coursebook.db"`
	Timezone        string        `env:"TIMEZONE"         envDefault:"Europe/Berlin"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	AdminEmail    string `env:"ADMIN_EMAIL"    envDefault:"admin@example.org"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	CSRFKey        string        `env:"CSRF_KEY"`
	SecureCookies  bool          `env:"SECURE_COOKIES"  envDefault:"false"`
	TrustedOrigins []string      `env:"TRUSTED_ORIGINS" envSeparator:","`
	SessionTTL     time.Duration `env:"SESSION_TTL"     envDefault:"24h"`
	RateLimit      float64       `env:"RATE_LIMIT"      envDefault:"10"`
	RateBurst      int           `env:"RATE_BURST"      envDefault:"20"`
	SlowRequest    time.Duration `env:"SLOW_REQUEST"    envDefault:"200ms"`
	SlowQuery      time.Duration `env:"SLOW_QUERY"      envDefault:"50ms"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM"     envDefault:"Kursbuch <kurse@example.org>"`
	EmailReplyTo string `env:"EMAIL_REPLY_TO"`

	OutboxSchedule     string        `env:"OUTBOX_SCHEDULE"     envDefault:"@every 1m"`
	CompletionSchedule string        `env:"COMPLETION_SCHEDULE" envDefault:"0 */15 * * * *"`
	SweepSchedule      string        `env:"SWEEP_SCHEDULE"      envDefault:"@every 10m"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"   envDefault:"20"`
	OutboxBackoff      time.Duration `env:"OUTBOX_BACKOFF"      envDefault:"1m"`
	OutboxBackoffMax   time.Duration `env:"OUTBOX_BACKOFF_MAX"  envDefault:"1h"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"coursebook"`
}

// DevAdminPassword is seeded outside production when no password is set.
const DevAdminPassword = "change me please"

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = DevAdminPassword
	}
	return cfg, nil
}

// IsProduction reports whether ENV is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks values the parser cannot.
func (c Config) Validate() error {
	var errs []error
	if c.IsProduction() {
		if c.AdminPassword == "" {
			errs = append(errs, errors.New("COURSEBOOK_ADMIN_PASSWORD is required in production"))
		}
		if c.CSRFKey == "" {
			errs = append(errs, errors.New("COURSEBOOK_CSRF_KEY is required in production"))
		}
	}
	if c.CSRFKey != "" {
		if b, err := hex.DecodeString(c.CSRFKey); err != nil || len(b) != 32 {
			errs = append(errs, errors.New("COURSEBOOK_CSRF_KEY must be 64 hex characters"))
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("COURSEBOOK_TIMEZONE: %w", err))
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("COURSEBOOK_RATE_LIMIT and COURSEBOOK_RATE_BURST must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CSRFKeyBytes decodes the CSRF key. Without a configured key a random
// one is generated, which invalidates tokens on restart.
func (c Config) CSRFKeyBytes() ([]byte, error) {
	if c.CSRFKey != "" {
		return hex.DecodeString(c.CSRFKey)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate csrf key: %w", err)
	}
	return key, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("COURSEBOOK_LOG_LEVEL: %w", err)
	}
	return level, nil
}

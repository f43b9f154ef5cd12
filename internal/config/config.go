package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Email providers accepted by EMAIL_PROVIDER.
const (
	ProviderAuto   = "auto"
	ProviderResend = "resend"
	ProviderSES    = "ses"
	ProviderNoop   = "noop"
)

// Config is the process configuration read from the environment.
type Config struct {
	Env         string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"newsroom.db"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	SessionSecret string `envconfig:"SESSION_SECRET"`
	CSRFKey       string `envconfig:"CSRF_KEY"`

	// TrustedOrigins lists extra host[:port] values allowed to post forms.
	TrustedOrigins []string `envconfig:"CSRF_TRUSTED_ORIGINS"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	// PublicURL is the externally reachable base URL. Newsletters carry
	// one-click unsubscribe links only when it is set.
	PublicURL string `envconfig:"PUBLIC_URL"`

	// RequireUnsubscribeToken rejects unsubscribe requests that carry no
	// signed token, so only the recipient of a newsletter can unsubscribe.
	RequireUnsubscribeToken bool `envconfig:"UNSUBSCRIBE_REQUIRE_TOKEN" default:"false"`

	// StaleDispatch is how long a newsletter may stay SENDING before recovery
	// hands it back to the editor.
	StaleDispatch time.Duration `envconfig:"DISPATCH_STALE_AFTER" default:"30m"`

	SlowQueryMS        int `envconfig:"SLOW_QUERY_MS" default:"50"`
	SlowRequestMS      int `envconfig:"SLOW_REQUEST_MS" default:"500"`
	RateLimitPerSecond int `envconfig:"RATE_LIMIT_PER_SECOND" default:"10"`

	Email  Email  `envconfig:""`
	Redis  Redis  `envconfig:""`
	Server Server `envconfig:""`
}

// Email configures the outbound newsletter transport.
type Email struct {
	Provider     string `envconfig:"EMAIL_PROVIDER" default:"auto"`
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	FromName     string `envconfig:"EMAIL_FROM_NAME" default:"Newsroom"`
	FromAddress  string `envconfig:"EMAIL_FROM_ADDRESS"`
	ReplyTo      string `envconfig:"EMAIL_REPLY_TO"`

	AWSRegion    string `envconfig:"AWS_REGION" default:"us-east-1"`
	SESAccessKey string `envconfig:"SES_ACCESS_KEY_ID"`
	SESSecretKey string `envconfig:"SES_SECRET_ACCESS_KEY"`
}

// Redis configures the shared subscribe guard. An empty Addr selects the
// in-process guard.
type Redis struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	GuardTTL time.Duration `envconfig:"SUBSCRIBE_GUARD_TTL" default:"10s"`
}

// Server holds HTTP server timeouts.
type Server struct {
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads the environment and validates the result.
// POST: Returns a validated Config or the first problem found
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether strict checks apply.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	if c.IsProduction() {
		if c.SessionSecret == "" {
			return errors.New("SESSION_SECRET is required in production")
		}
		if c.CSRFKey == "" {
			return errors.New("CSRF_KEY is required in production")
		}
	}
	if c.SessionSecret != "" {
		key, err := hex.DecodeString(c.SessionSecret)
		if err != nil {
			return fmt.Errorf("SESSION_SECRET must be hex: %w", err)
		}
		if len(key) < 32 {
			return errors.New("SESSION_SECRET must decode to at least 32 bytes")
		}
	}
	if c.CSRFKey != "" {
		key, err := hex.DecodeString(c.CSRFKey)
		if err != nil {
			return fmt.Errorf("CSRF_KEY must be hex: %w", err)
		}
		if len(key) != 32 {
			return errors.New("CSRF_KEY must decode to exactly 32 bytes")
		}
	}

	switch c.EmailProvider() {
	case ProviderResend:
		if c.Email.ResendAPIKey == "" {
			return errors.New("RESEND_API_KEY is required for the resend provider")
		}
	case ProviderSES:
		if c.Email.AWSRegion == "" {
			return errors.New("AWS_REGION is required for the ses provider")
		}
		if (c.Email.SESAccessKey == "") != (c.Email.SESSecretKey == "") {
			return errors.New("SES_ACCESS_KEY_ID and SES_SECRET_ACCESS_KEY must be set together")
		}
	case ProviderNoop:
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider)
	}
	if c.EmailProvider() != ProviderNoop && c.Email.FromAddress == "" {
		return errors.New("EMAIL_FROM_ADDRESS is required when sending email")
	}

	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("PUBLIC_URL must be an absolute http(s) URL, got %q", c.PublicURL)
		}
	} else if c.RequireUnsubscribeToken {
		return errors.New("UNSUBSCRIBE_REQUIRE_TOKEN needs PUBLIC_URL so newsletters carry tokens")
	}

	if c.StaleDispatch <= 0 {
		return errors.New("DISPATCH_STALE_AFTER must be positive")
	}
	if c.RateLimitPerSecond <= 0 {
		return errors.New("RATE_LIMIT_PER_SECOND must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// UnsubscribeBase returns the one-click unsubscribe endpoint, or "" when
// PUBLIC_URL is unset.
func (c Config) UnsubscribeBase() string {
	if c.PublicURL == "" {
		return ""
	}
	return strings.TrimRight(c.PublicURL, "/") + "/api/unsubscribe/one-click"
}

// EmailProvider resolves "auto" to a concrete provider.
func (c Config) EmailProvider() string {
	p := strings.ToLower(strings.TrimSpace(c.Email.Provider))
	if p == "" || p == ProviderAuto {
		if c.Email.ResendAPIKey != "" {
			return ProviderResend
		}
		return ProviderNoop
	}
	return p
}

// SessionKey returns the session signing key. Outside production an unset
// secret yields a random key, so sessions do not survive a restart.
func (c Config) SessionKey() ([]byte, error) {
	return keyOrRandom(c.SessionSecret, 32)
}

// CSRFAuthKey returns the 32-byte CSRF key, random when unset.
func (c Config) CSRFAuthKey() ([]byte, error) {
	return keyOrRandom(c.CSRFKey, 32)
}

func keyOrRandom(hexKey string, n int) ([]byte, error) {
	if hexKey != "" {
		return hex.DecodeString(hexKey)
	}
	key := make([]byte, n)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlowQuery is the slow query threshold.
func (c Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}

// SlowRequest is the slow request threshold.
func (c Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMS) * time.Millisecond
}

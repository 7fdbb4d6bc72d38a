// Package config loads the service configuration from environment variables.
//
// The result is a plain value: it is built once in main, validated, and then
// passed by value into the constructors that need it (token service,
// identity verifiers, mailer, server). Nothing reads the environment after
// startup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	Env      string `env:"VEGFUEL_ENV"       envDefault:"development"`
	Port     int    `env:"PORT"              envDefault:"8080"`
	DBPath   string `env:"DB_PATH"           envDefault:"data/vegfuel.db"`
	LogLevel string `env:"VEGFUEL_LOG_LEVEL" envDefault:"info"`

	// BcryptCost is the bcrypt work factor for new password hashes.
	BcryptCost int `env:"VEGFUEL_BCRYPT_COST" envDefault:"12"`

	// TrustedProxies lists the reverse proxies (IPs or CIDRs) whose
	// X-Forwarded-For is believed. Empty means clients connect directly
	// and forwarding headers are ignored.
	TrustedProxies []string `env:"VEGFUEL_TRUSTED_PROXIES" envSeparator:","`

	Token    TokenConfig
	Identity IdentityConfig
	Reset    ResetConfig
	Mail     MailConfig
	Limits   RateLimitConfig
}

// TokenConfig controls session token issuance.
type TokenConfig struct {
	Secret    string        `env:"VEGFUEL_JWT_SECRET,required"`
	Algorithm string        `env:"VEGFUEL_JWT_ALGORITHM" envDefault:"HS256"`
	TTL       time.Duration `env:"VEGFUEL_JWT_TTL"       envDefault:"60m"`
	Issuer    string        `env:"VEGFUEL_JWT_ISSUER"    envDefault:"vegfuel"`
}

// IdentityConfig holds the trust roots for third-party identity tokens.
type IdentityConfig struct {
	GoogleClientIDs    []string      `env:"VEGFUEL_GOOGLE_CLIENT_IDS"    envSeparator:","`
	GoogleClientSecret string        `env:"VEGFUEL_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"VEGFUEL_GOOGLE_REDIRECT_URL"`
	GoogleTokenInfoURL string        `env:"VEGFUEL_GOOGLE_TOKENINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`
	AppleClientID      string        `env:"VEGFUEL_APPLE_CLIENT_ID"`
	AppleKeysURL       string        `env:"VEGFUEL_APPLE_KEYS_URL"       envDefault:"https://appleid.apple.com/auth/keys"`
	AppleIssuer        string        `env:"VEGFUEL_APPLE_ISSUER"         envDefault:"https://appleid.apple.com"`
	HTTPTimeout        time.Duration `env:"VEGFUEL_PROVIDER_TIMEOUT"     envDefault:"10s"`
}

// ResetConfig controls password reset tokens and the link sent by email.
type ResetConfig struct {
	TTL     time.Duration `env:"VEGFUEL_RESET_TTL"      envDefault:"1h"`
	LinkURL string        `env:"VEGFUEL_RESET_LINK_URL" envDefault:"https://vegfuel.app/reset-password"`
}

// MailConfig configures the outbound email API. An empty APIKey disables
// delivery; reset requests still succeed.
type MailConfig struct {
	APIKey  string        `env:"VEGFUEL_MAIL_API_KEY"`
	APIURL  string        `env:"VEGFUEL_MAIL_API_URL" envDefault:"https://api.resend.com/emails"`
	From    string        `env:"VEGFUEL_MAIL_FROM"    envDefault:"VegFuel <no-reply@vegfuel.app>"`
	Timeout time.Duration `env:"VEGFUEL_MAIL_TIMEOUT" envDefault:"10s"`
}

// RateLimitConfig bounds unauthenticated /auth traffic per client IP.
// RedisAddr switches from the in-process limiter to a shared Redis one.
type RateLimitConfig struct {
	AuthRequests  int           `env:"VEGFUEL_AUTH_RATE_LIMIT"  envDefault:"20"`
	AuthWindow    time.Duration `env:"VEGFUEL_AUTH_RATE_WINDOW" envDefault:"1m"`
	RedisAddr     string        `env:"VEGFUEL_REDIS_ADDR"`
	RedisPassword string        `env:"VEGFUEL_REDIS_PASSWORD"`
	RedisDB       int           `env:"VEGFUEL_REDIS_DB"         envDefault:"0"`
}

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

var allowedAlgorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return finish(cfg)
}

// LoadFrom reads configuration from the given map instead of the process
// environment.
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	cfg.Token.Algorithm = strings.ToUpper(strings.TrimSpace(cfg.Token.Algorithm))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if len(c.Token.Secret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("VEGFUEL_JWT_SECRET must be at least %d characters", MinSecretLength))
	}
	if !allowedAlgorithms[c.Token.Algorithm] {
		errs = append(errs, fmt.Errorf("VEGFUEL_JWT_ALGORITHM %q is not one of HS256, HS384, HS512", c.Token.Algorithm))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("VEGFUEL_JWT_TTL must be positive"))
	}
	if c.Reset.TTL <= 0 {
		errs = append(errs, errors.New("VEGFUEL_RESET_TTL must be positive"))
	}
	if c.Identity.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("VEGFUEL_PROVIDER_TIMEOUT must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("VEGFUEL_BCRYPT_COST %d outside bcrypt's 4..31 range", c.BcryptCost))
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address becomes a
// single-host prefix.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range c.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("VEGFUEL_TRUSTED_PROXIES: %q is not an IP or CIDR", raw)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("VEGFUEL_TRUSTED_PROXIES: %q is not an IP or CIDR", raw)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// IsProduction reports whether the service runs with production defaults
// (JSON logs, no error detail).
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SlogLevel maps LogLevel onto a slog level, defaulting to Info.
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

// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/oidc"
)

// Credential store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Credential store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"gatehouse.db"`

	// Sessions. An empty REDIS_URL keeps sessions in process memory.
	RedisURL          string        `env:"REDIS_URL"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"gatehouse_session"`
	SessionIdleTTL    time.Duration `env:"SESSION_IDLE_TTL" envDefault:"24h"`

	// Password hashing
	HashAlgorithm  string `env:"HASH_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"12"`
	Argon2Time     uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2MemoryKB uint32 `env:"ARGON2_MEMORY_KB" envDefault:"65536"`
	Argon2Threads  uint8  `env:"ARGON2_THREADS" envDefault:"4"`

	// Federated identity provider. Federated sign-in is disabled when
	// OIDC_CLIENT_ID is empty.
	OIDCProviderName  string   `env:"OIDC_PROVIDER_NAME" envDefault:"google"`
	OIDCClientID      string   `env:"OIDC_CLIENT_ID"`
	OIDCClientSecret  string   `env:"OIDC_CLIENT_SECRET"`
	OIDCAuthURL       string   `env:"OIDC_AUTH_URL"`
	OIDCTokenURL      string   `env:"OIDC_TOKEN_URL"`
	OIDCUserInfoURL   string   `env:"OIDC_USERINFO_URL"`
	OIDCRedirectURL   string   `env:"OIDC_REDIRECT_URL"`
	OIDCEndSessionURL string   `env:"OIDC_END_SESSION_URL"`
	OIDCScopes        []string `env:"OIDC_SCOPES" envSeparator:","`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 64KB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"65536"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// FederatedEnabled reports whether an identity provider is configured.
func (c *Config) FederatedEnabled() bool {
	return c.OIDCClientID != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// HasherConfig returns the password hashing parameters.
func (c *Config) HasherConfig() auth.HasherConfig {
	return auth.HasherConfig{
		Algorithm:      c.HashAlgorithm,
		BcryptCost:     c.BcryptCost,
		Argon2Time:     c.Argon2Time,
		Argon2MemoryKB: c.Argon2MemoryKB,
		Argon2Threads:  c.Argon2Threads,
	}
}

// OIDCConfig returns the identity provider settings. Empty URLs fall back
// to the provider defaults.
func (c *Config) OIDCConfig() oidc.Config {
	return oidc.Config{
		Name:          c.OIDCProviderName,
		ClientID:      c.OIDCClientID,
		ClientSecret:  c.OIDCClientSecret,
		AuthURL:       c.OIDCAuthURL,
		TokenURL:      c.OIDCTokenURL,
		UserInfoURL:   c.OIDCUserInfoURL,
		RedirectURL:   c.OIDCRedirectURL,
		EndSessionURL: c.OIDCEndSessionURL,
		Scopes:        c.OIDCScopes,
	}
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORE_DRIVER=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StoreDriver))
	}

	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.AppPort))
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		errs = append(errs, errors.New("SESSION_COOKIE_NAME must not be empty"))
	}
	if c.SessionIdleTTL < 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TTL must not be negative"))
	}
	if c.MaxRequestBodySize <= 0 {
		errs = append(errs, errors.New("MAX_REQUEST_BODY_SIZE must be positive"))
	}
	if _, err := auth.NewHasher(c.HasherConfig()); err != nil {
		errs = append(errs, fmt.Errorf("hasher: %w", err))
	}
	if c.FederatedEnabled() && c.OIDCRedirectURL == "" {
		errs = append(errs, errors.New("OIDC_REDIRECT_URL is required when OIDC_CLIENT_ID is set"))
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

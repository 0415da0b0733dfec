// Copyright (c) 2026 Fixoo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Token Issuer) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Backend Selectors

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	ChallengeStoreRedis  = "redis"
	ChallengeStoreMemory = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the Fixoo API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Durable storage for identities and the refresh-token ledger
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH"    envDefault:"./data/fixoo.db"`

	// Connection pool sizing (postgres driver and redis challenge store)
	DatabaseMaxConns int32 `env:"DATABASE_MAX_CONNS" envDefault:"20"`
	DatabaseMinConns int32 `env:"DATABASE_MIN_CONNS" envDefault:"2"`
	RedisPoolSize    int   `env:"REDIS_POOL_SIZE"    envDefault:"10"`

	// MigrationPath overrides the embedded migrations with a directory on disk.
	MigrationPath string `env:"MIGRATION_PATH"`

	// Ephemeral challenge store (OTP codes and resend locks)
	ChallengeStore string `env:"CHALLENGE_STORE" envDefault:"redis"`
	RedisURL       string `env:"REDIS_URL"`

	// Token signing. JWTRefreshSecret falls back to JWTSecret when empty.
	JWTSecret        string `env:"JWT_SECRET,required"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET"`

	// Token and challenge lifetimes
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL"    envDefault:"15m"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL"   envDefault:"168h"`
	OTPTTL            time.Duration `env:"OTP_TTL"             envDefault:"120s"`
	OTPResendInterval time.Duration `env:"OTP_RESEND_INTERVAL" envDefault:"60s"`

	// SMS gateway. An empty URL selects the log-only sender (development only).
	SMSGatewayURL   string        `env:"SMS_GATEWAY_URL"`
	SMSGatewayToken string        `env:"SMS_GATEWAY_TOKEN"`
	SMSSenderID     string        `env:"SMS_SENDER_ID" envDefault:"Fixoo"`
	SMSTimeout      time.Duration `env:"SMS_TIMEOUT"   envDefault:"10s"`

	// Refresh-token ledger policy
	MaxSessionsPerUser    int           `env:"MAX_SESSIONS_PER_USER"    envDefault:"10"`
	LedgerSweepInterval   time.Duration `env:"LEDGER_SWEEP_INTERVAL"    envDefault:"1h"`
	RevokeSessionsOnReset bool          `env:"REVOKE_SESSIONS_ON_RESET" envDefault:"true"`

	// Tracing (OTLP over HTTP). Empty disables tracing.
	OTELEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

/*
Validate checks cross-field requirements that struct tags cannot express.

Returns:
  - error: Joined list of every violated rule
*/
func (c *Config) Validate() error {
	var problems []error

	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			problems = append(problems, errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres"))
		}
	case StorageDriverSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, errors.New("SQLITE_PATH is required when STORAGE_DRIVER=sqlite"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}

	switch c.ChallengeStore {
	case ChallengeStoreRedis:
		if c.RedisURL == "" {
			problems = append(problems, errors.New("REDIS_URL is required when CHALLENGE_STORE=redis"))
		}
	case ChallengeStoreMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown CHALLENGE_STORE %q", c.ChallengeStore))
	}

	if c.DatabaseMaxConns <= 0 || c.DatabaseMinConns < 0 || c.DatabaseMinConns > c.DatabaseMaxConns {
		problems = append(problems, errors.New("DATABASE_MIN_CONNS must be between 0 and DATABASE_MAX_CONNS"))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		problems = append(problems, errors.New("token TTLs must be positive"))
	}

	if c.OTPTTL <= 0 || c.OTPResendInterval <= 0 {
		problems = append(problems, errors.New("OTP_TTL and OTP_RESEND_INTERVAL must be positive"))
	}

	if c.IsProduction() && c.SMSGatewayURL == "" {
		problems = append(problems, errors.New("SMS_GATEWAY_URL is required in production"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %w", errors.Join(problems...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UsesRefreshSecretFallback reports whether refresh tokens are signed with the access secret.
func (c *Config) UsesRefreshSecretFallback() bool {
	return c.JWTRefreshSecret == ""
}

// AllowedOrigins returns the trimmed EXTRA_ORIGINS entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

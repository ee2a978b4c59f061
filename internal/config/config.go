package config

import (
	"fmt"
	"os"
	"strconv"
)

// Auth modes
const (
	AuthModeNone    = "none"    // self-hosted, local dev
	AuthModeGateway = "gateway" // trust X-User-* headers from the gateway
	AuthModeJWT     = "jwt"     // verify HMAC bearer tokens
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// Storage. Empty DatabaseURL keeps chains in memory.
	DatabaseURL string

	// Observability
	SentryDSN string

	// Auth
	AuthMode  string
	JWTSecret string

	// Generation
	DefaultVelocity     int
	MaxGenerationLength int
	MaxStates           int
}

const (
	defaultVelocity            = 110
	defaultMaxGenerationLength = 4096
	defaultMaxStates           = 512
)

func Load() *Config {
	return &Config{
		Environment:         getEnv("ENVIRONMENT", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		AuthMode:            getEnv("AUTH_MODE", AuthModeNone), // Default to no auth for self-hosted
		JWTSecret:           getEnv("JWT_SECRET", ""),
		DefaultVelocity:     getEnvInt("DEFAULT_VELOCITY", defaultVelocity),
		MaxGenerationLength: getEnvInt("MAX_GENERATION_LENGTH", defaultMaxGenerationLength),
		MaxStates:           getEnvInt("MAX_STATES", defaultMaxStates),
	}
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeNone, AuthModeGateway:
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=%s", AuthModeJWT)
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.DefaultVelocity < 1 || c.DefaultVelocity > 127 {
		return fmt.Errorf("DEFAULT_VELOCITY must be 1-127, got %d", c.DefaultVelocity)
	}
	if c.MaxGenerationLength < 1 {
		return fmt.Errorf("MAX_GENERATION_LENGTH must be positive, got %d", c.MaxGenerationLength)
	}
	if c.MaxStates < 1 {
		return fmt.Errorf("MAX_STATES must be positive, got %d", c.MaxStates)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// IsGatewayMode returns true if running behind the gateway
func (c *Config) IsGatewayMode() bool {
	return c.AuthMode == AuthModeGateway
}

// UsesDatabase reports whether chains are persisted in Postgres
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

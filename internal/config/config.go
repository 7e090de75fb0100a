// Package config provides configuration management for the workspace search
// service. It loads configuration from environment variables with sensible
// defaults and validates it before the application starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 9000)
//   - PUBLIC_BASE_URL: Externally reachable base URL used to build OAuth
//     redirect URLs (default: http://localhost:<PORT>)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//
// Credential Storage:
//   - STORAGE_TYPE: "sqlite", "postgres", "redis" or "memory" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./workspace_search.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER,
//     POSTGRES_PASSWORD, POSTGRES_SSL_MODE: PostgreSQL settings
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD, REDIS_DB: Redis auth and database number
//
// Security:
//   - CREDENTIAL_ENCRYPTION_KEY: Key for encrypting stored tokens (required)
//   - STATE_SIGNING_SECRET: Secret for signing OAuth state tokens
//     (required, minimum 32 characters)
//
// Search:
//   - SEARCH_TIMEOUT: Per-upstream-call timeout (default: 10s)
//   - SEARCH_WORKERS: Background search worker count (default: 4)
//   - REFRESH_SWEEP_SCHEDULE: Cron schedule for the proactive token refresh
//     sweep (default: "@every 5m", empty string disables the sweep)
//
// Providers (a provider without a client id is simply not configured):
//   - GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET
//   - ATLASSIAN_CLIENT_ID, ATLASSIAN_CLIENT_SECRET
//   - SLACK_CLIENT_ID, SLACK_CLIENT_SECRET
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ProviderCredentials holds the OAuth client registration for one provider.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether the provider has a client registration.
func (p ProviderCredentials) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// Config holds all configuration values for the workspace search service.
type Config struct {
	// Application settings
	Port          string
	PublicBaseURL string
	LogLevel      string

	// Credential storage
	StorageType      string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string
	RedisAddress     string
	RedisPassword    string
	RedisDB          string

	// Security
	EncryptionKey      string
	StateSigningSecret string

	// Search behavior
	SearchTimeout        string
	SearchWorkers        string
	RefreshSweepSchedule string

	// Provider registrations
	Google    ProviderCredentials
	Atlassian ProviderCredentials
	Slack     ProviderCredentials
}

// Load creates a new Config instance with values loaded from environment
// variables. Call Validate on the result before use.
func Load() *Config {
	port := getEnv("PORT", "9000")

	return &Config{
		Port:          port,
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:"+port),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		StorageType:      getEnv("STORAGE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./workspace_search.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "workspace_search"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),
		RedisAddress:     getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnv("REDIS_DB", "0"),

		EncryptionKey:      getEnv("CREDENTIAL_ENCRYPTION_KEY", ""),
		StateSigningSecret: getEnv("STATE_SIGNING_SECRET", ""),

		SearchTimeout:        getEnv("SEARCH_TIMEOUT", "10s"),
		SearchWorkers:        getEnv("SEARCH_WORKERS", "4"),
		RefreshSweepSchedule: getEnv("REFRESH_SWEEP_SCHEDULE", "@every 5m"),

		Google: ProviderCredentials{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		},
		Atlassian: ProviderCredentials{
			ClientID:     getEnv("ATLASSIAN_CLIENT_ID", ""),
			ClientSecret: getEnv("ATLASSIAN_CLIENT_SECRET", ""),
		},
		Slack: ProviderCredentials{
			ClientID:     getEnv("SLACK_CLIENT_ID", ""),
			ClientSecret: getEnv("SLACK_CLIENT_SECRET", ""),
		},
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SearchTimeoutDuration returns the parsed per-call search timeout.
func (c *Config) SearchTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.SearchTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// SearchWorkerCount returns the parsed background worker count.
func (c *Config) SearchWorkerCount() int {
	n, err := strconv.Atoi(c.SearchWorkers)
	if err != nil || n < 1 {
		return 4
	}
	return n
}

// Validate checks that required fields are present and all values are valid.
// The application should call this after Load and before starting.
func (c *Config) Validate() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("CREDENTIAL_ENCRYPTION_KEY environment variable is required")
	}

	if c.StateSigningSecret == "" {
		return fmt.Errorf("STATE_SIGNING_SECRET environment variable is required")
	}
	if len(c.StateSigningSecret) < 32 {
		return fmt.Errorf("STATE_SIGNING_SECRET must be at least 32 characters long")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.StorageType {
	case "sqlite", "postgres", "redis", "memory":
		// Valid storage types
	default:
		return fmt.Errorf("STORAGE_TYPE must be 'sqlite', 'postgres', 'redis' or 'memory'")
	}

	if c.StorageType == "postgres" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.StorageType == "redis" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if _, err := time.ParseDuration(c.SearchTimeout); err != nil {
		return fmt.Errorf("SEARCH_TIMEOUT must be a valid duration (e.g., '10s')")
	}

	if n, err := strconv.Atoi(c.SearchWorkers); err != nil || n < 1 {
		return fmt.Errorf("SEARCH_WORKERS must be a positive number")
	}

	return nil
}

package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:               "9000",
		StorageType:        "sqlite",
		DatabasePath:       "./test.db",
		EncryptionKey:      "0123456789abcdef0123456789abcdef",
		StateSigningSecret: "state-signing-secret-at-least-32-chars",
		SearchTimeout:      "10s",
		SearchWorkers:      "4",
		RedisDB:            "0",
		PostgresPort:       "5432",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing encryption key", func(c *Config) { c.EncryptionKey = "" }, true},
		{"missing state secret", func(c *Config) { c.StateSigningSecret = "" }, true},
		{"short state secret", func(c *Config) { c.StateSigningSecret = "short" }, true},
		{"bad port", func(c *Config) { c.Port = "not-a-port" }, true},
		{"port out of range", func(c *Config) { c.Port = "99999" }, true},
		{"bad storage type", func(c *Config) { c.StorageType = "cassandra" }, true},
		{"memory storage", func(c *Config) { c.StorageType = "memory" }, false},
		{"redis storage", func(c *Config) { c.StorageType = "redis" }, false},
		{"redis bad db", func(c *Config) { c.StorageType = "redis"; c.RedisDB = "16" }, true},
		{"postgres missing host", func(c *Config) {
			c.StorageType = "postgres"
			c.PostgresDB = "ws"
			c.PostgresUser = "u"
		}, true},
		{"postgres valid", func(c *Config) {
			c.StorageType = "postgres"
			c.PostgresHost = "localhost"
			c.PostgresDB = "ws"
			c.PostgresUser = "u"
		}, false},
		{"bad search timeout", func(c *Config) { c.SearchTimeout = "soon" }, true},
		{"bad worker count", func(c *Config) { c.SearchWorkers = "0" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("expected default port 9000, got %s", cfg.Port)
	}
	if cfg.StorageType != "sqlite" {
		t.Errorf("expected default storage sqlite, got %s", cfg.StorageType)
	}
	if cfg.SearchTimeoutDuration() != 10*time.Second {
		t.Errorf("expected 10s default timeout, got %v", cfg.SearchTimeoutDuration())
	}
	if cfg.SearchWorkerCount() != 4 {
		t.Errorf("expected 4 default workers, got %d", cfg.SearchWorkerCount())
	}
}

func TestLoad_ProviderRegistration(t *testing.T) {
	t.Setenv("SLACK_CLIENT_ID", "slack-id")
	t.Setenv("SLACK_CLIENT_SECRET", "slack-secret")

	cfg := Load()

	if !cfg.Slack.Configured() {
		t.Error("expected slack to be configured")
	}
	if cfg.Google.Configured() {
		t.Error("expected google to be unconfigured")
	}
}

func TestSearchTimeoutDuration_Fallback(t *testing.T) {
	cfg := validConfig()
	cfg.SearchTimeout = "garbage"
	if cfg.SearchTimeoutDuration() != 10*time.Second {
		t.Error("expected fallback to 10s for unparseable timeout")
	}
}

package storage

import (
	"strconv"

	"workspace-search/internal/common/errors"
	"workspace-search/internal/config"
)

// NewStore creates the credential store backend selected by configuration.
// The returned store is unencrypted; callers wrap it with NewEncryptedStore.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.StorageType {
	case "sqlite":
		return NewSQLiteStore(cfg.DatabasePath)

	case "postgres":
		return NewPostgresStore(PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			Database: cfg.PostgresDB,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPassword,
			SSLMode:  cfg.PostgresSSLMode,
		})

	case "redis":
		db, err := strconv.Atoi(cfg.RedisDB)
		if err != nil {
			return nil, errors.ConfigError("REDIS_DB must be a number")
		}
		return NewRedisStore(RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
		})

	case "memory":
		return NewMemoryStore(), nil

	default:
		return nil, errors.ConfigError("unknown storage type: " + cfg.StorageType)
	}
}

package storage

import (
	"context"
	"strings"

	"github.com/go-redis/redis/v8"
	"workspace-search/internal/common/errors"
)

const redisKeyPrefix = "credential:"

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisStore persists credentials as Redis hashes, one hash per provider.
// It suits deployments where several instances share credential state.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to connect to redis", err)
	}

	return &RedisStore{client: client}, nil
}

func redisKey(provider string) string {
	return redisKeyPrefix + provider
}

func (r *RedisStore) GetField(ctx context.Context, provider, field string) (string, bool, error) {
	value, err := r.client.HGet(ctx, redisKey(provider), field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.ConnectionError("failed to read credential field", err)
	}
	return value, true, nil
}

// GetAll reads the whole hash with one HGETALL, which redis executes
// atomically relative to the transactional replace.
func (r *RedisStore) GetAll(ctx context.Context, provider string) (map[string]string, bool, error) {
	fields, err := r.client.HGetAll(ctx, redisKey(provider)).Result()
	if err != nil {
		return nil, false, errors.ConnectionError("failed to read credential", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	return fields, true, nil
}

func (r *RedisStore) SetField(ctx context.Context, provider, field, value string) error {
	if err := r.client.HSet(ctx, redisKey(provider), field, value).Err(); err != nil {
		return errors.ConnectionError("failed to write credential field", err)
	}
	return nil
}

func (r *RedisStore) ReplaceCredential(ctx context.Context, provider string, fields map[string]string) error {
	key := redisKey(provider)

	// Del plus HSet in one transaction so readers never see a partial hash
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		values := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			values[k] = v
		}
		pipe.HSet(ctx, key, values)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.ConnectionError("failed to replace credential", err)
	}
	return nil
}

func (r *RedisStore) DeleteCredential(ctx context.Context, provider string) error {
	if err := r.client.Del(ctx, redisKey(provider)).Err(); err != nil {
		return errors.ConnectionError("failed to delete credential", err)
	}
	return nil
}

func (r *RedisStore) Providers(ctx context.Context) ([]string, error) {
	var providers []string

	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		providers = append(providers, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.ConnectionError("failed to list providers", err)
	}
	return providers, nil
}

func (r *RedisStore) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.ConnectionError("redis health check failed", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

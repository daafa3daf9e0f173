package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobscout/internal/config"
	"jobscout/internal/logging"
)

// ErrKeyNotFound is returned by GetJSON when the key does not exist or has expired
var ErrKeyNotFound = errors.New("redis key not found")

// RedisClient wraps the Redis client with namespaced JSON helpers
type RedisClient struct {
	client    *redis.Client
	keyPrefix string
	logger    logging.Logger
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(cfg *config.Config) *RedisClient {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logging.GetGlobalLogger().Warn("Invalid redis URL, using localhost", map[string]interface{}{
			"error": err.Error(),
		})
		opts = &redis.Options{Addr: "localhost:6379"}
	}

	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}

	timeout := cfg.Redis.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	return &RedisClient{
		client:    redis.NewClient(opts),
		keyPrefix: cfg.Redis.KeyPrefix,
		logger:    logging.GetGlobalLogger(),
	}
}

// Ping tests the Redis connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// IsHealthy checks if Redis is connected and healthy
func (r *RedisClient) IsHealthy(ctx context.Context) error {
	return r.Ping(ctx)
}

// Key returns the namespaced key for id
func (r *RedisClient) Key(id string) string {
	return r.keyPrefix + id
}

// SetJSON stores v as JSON under the namespaced id. A zero ttl keeps the key forever.
func (r *RedisClient) SetJSON(ctx context.Context, id string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", id, err)
	}

	if err := r.client.Set(ctx, r.Key(id), data, ttl).Err(); err != nil {
		r.logger.Error("Failed to write redis key", map[string]interface{}{
			"key":   r.Key(id),
			"error": err.Error(),
		})
		return fmt.Errorf("failed to store %s: %w", id, err)
	}
	return nil
}

// SetJSONKeepTTL overwrites the value but keeps the existing expiry
func (r *RedisClient) SetJSONKeepTTL(ctx context.Context, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal value for %s: %w", id, err)
	}

	if err := r.client.Set(ctx, r.Key(id), data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update %s: %w", id, err)
	}
	return nil
}

// GetJSON loads the namespaced id into v
func (r *RedisClient) GetJSON(ctx context.Context, id string, v interface{}) error {
	data, err := r.client.Get(ctx, r.Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to get %s: %w", id, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", id, err)
	}
	return nil
}

// Delete removes the namespaced id
func (r *RedisClient) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.Key(id)).Err()
}

// ListIDs returns the ids under the key prefix, without the prefix
func (r *RedisClient) ListIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		for _, key := range keys {
			ids = append(ids, key[len(r.keyPrefix):])
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

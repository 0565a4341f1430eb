// Package cache provides the shared lookup cache: a redis-backed store with
// a process-local in-memory fallback implementing the same contract.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain/repositories"
)

// Config holds connection parameters for the shared redis store.
type Config struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
}

// DefaultConfig returns the default redis cache configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		DefaultTTL: 5 * time.Minute,
	}
}

// Redis is a Cache backed by a shared redis store.
type Redis struct {
	client *redis.Client
	config Config
	logger *zap.Logger
}

// NewRedis creates a redis-backed cache and verifies the connection.
func NewRedis(config Config, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache connected", zap.String("addr", config.Addr))

	return &Redis{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
	}, nil
}

// Get returns the cached value or repositories.ErrCacheMiss.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", repositories.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores a value with the given ttl, falling back to the configured
// default when ttl is zero.
func (r *Redis) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

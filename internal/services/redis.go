package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisProvider owns the shared Redis client used by the assignment lock
// and the execution progress bus
type RedisProvider struct {
	BaseProvider
	client *redis.Client
}

// NewRedisProvider connects to Redis and verifies the connection
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisProvider{
		BaseProvider: BaseProvider{serviceType: "redis"},
		client:       client,
	}, nil
}

// Client returns the underlying Redis client
func (p *RedisProvider) Client() *redis.Client {
	return p.client
}

// HealthCheck verifies Redis connectivity
func (p *RedisProvider) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache implements Cache on go-redis for deployments running Redis
type redisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis-backed cache
func NewRedisCache(redisURL string) (Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	c := NewRedisCacheFromClient(redis.NewClient(opts))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return c, nil
}

// NewRedisCacheFromClient wraps an existing client
func NewRedisCacheFromClient(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, &CacheError{Operation: "get", Key: key, Err: err}
	}
	return data, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}
	if err := c.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return &CacheError{Operation: "set", Key: key, Err: err}
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return &CacheError{Operation: "delete", Key: key, Err: err}
	}
	return nil
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, &CacheError{Operation: "exists", Key: key, Err: err}
	}
	return n > 0, nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

func (c *redisCache) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores raw generation replies keyed by request.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// CacheKey identifies a request for a provider and model.
func CacheKey(provider, model, prompt string) string {
	sum := sha256.Sum256([]byte(provider + "|" + model + "|" + prompt))
	return hex.EncodeToString(sum[:])
}

// RedisCache keeps replies in redis with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects using a redis:// URL.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse cache url: %w", err)
	}
	return NewRedisCacheWithClient(redis.NewClient(opts), ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "embedprep:gen:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }

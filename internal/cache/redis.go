package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/backstage/services/marketsync/config"
)

// RedisCache caches short-lived marketplace bearer tokens so a sweep
// over many accounts does not hammer the credential exchange endpoint.
type RedisCache struct {
	client  *redis.Client
	enabled bool
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
	}, nil
}

// GetToken retrieves a cached bearer token for a marketplace client id.
// Returns an empty string on miss or when the cache is disabled.
func (c *RedisCache) GetToken(ctx context.Context, clientID string) string {
	if !c.enabled {
		return ""
	}

	token, err := c.client.Get(ctx, tokenCacheKey(clientID)).Result()
	if err != nil {
		return ""
	}
	return token
}

// SetToken stores a bearer token until shortly before its expiry. A
// minute of slack keeps a token fetched near the end of its lifetime
// from being served stale.
func (c *RedisCache) SetToken(ctx context.Context, clientID, token string, expiresIn time.Duration) error {
	if !c.enabled {
		return nil
	}

	ttl := expiresIn - time.Minute
	if ttl <= 0 {
		return nil
	}

	err := c.client.Set(ctx, tokenCacheKey(clientID), token, ttl).Err()
	if err != nil {
		return errors.Wrap(err, "failed to cache token in Redis")
	}

	return nil
}

// InvalidateToken drops a cached token, forcing the next call to
// exchange credentials again.
func (c *RedisCache) InvalidateToken(ctx context.Context, clientID string) {
	if !c.enabled {
		return
	}
	c.client.Del(ctx, tokenCacheKey(clientID))
}

func tokenCacheKey(clientID string) string {
	return fmt.Sprintf("token:%s", clientID)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/parkshare/internal/application"
)

const availableSpacesKey = "parkshare:spaces:available"

// RedisListingCache keeps the available-space listing in Redis.
type RedisListingCache struct {
	client redis.Cmdable
	ttl    time.Duration
	key    string
}

// NewRedisListingCache wraps an existing client. A non-positive ttl uses DefaultTTL.
func NewRedisListingCache(client redis.Cmdable, ttl time.Duration) *RedisListingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisListingCache{client: client, ttl: ttl, key: availableSpacesKey}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// GetAvailableSpaces reports a cache miss as (nil, false, nil).
func (c *RedisListingCache) GetAvailableSpaces(ctx context.Context) ([]application.Space, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get listing: %w", err)
	}
	spaces, err := decodeSpaces(data)
	if err != nil {
		return nil, false, fmt.Errorf("cache: decode listing: %w", err)
	}
	return spaces, true, nil
}

// SetAvailableSpaces stores the listing with the configured TTL.
func (c *RedisListingCache) SetAvailableSpaces(ctx context.Context, spaces []application.Space) error {
	data, err := encodeSpaces(spaces)
	if err != nil {
		return fmt.Errorf("cache: encode listing: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set listing: %w", err)
	}
	return nil
}

// InvalidateAvailableSpaces drops the cached listing.
func (c *RedisListingCache) InvalidateAvailableSpaces(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("cache: invalidate listing: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/parkshare/internal/application"
)

func sampleSpaces() []application.Space {
	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	return []application.Space{
		{ID: "space-1", OwnerID: "owner-1", Title: "Driveway", Description: "Gated", Location: "1 Main St", PricePerHour: 1250, Available: true, CreatedAt: created, UpdatedAt: created},
		{ID: "space-2", OwnerID: "owner-2", Title: "Garage", Description: "Covered", Location: "2 Main St", PricePerHour: 0, Available: true, CreatedAt: created, UpdatedAt: created},
	}
}

func TestEncodeDecodeSpaces(t *testing.T) {
	t.Parallel()

	data, err := encodeSpaces(sampleSpaces())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"price_cents":1250`)

	decoded, err := decodeSpaces(data)
	require.NoError(t, err)
	assert.Equal(t, sampleSpaces(), decoded)

	_, err = decodeSpaces([]byte("{not json"))
	assert.Error(t, err)
}

func TestMemoryListingCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := NewMemoryListingCache(time.Minute, func() time.Time { return now })

	_, hit, err := cache.GetAvailableSpaces(ctx)
	require.NoError(t, err)
	assert.False(t, hit, "empty cache must miss")

	spaces := sampleSpaces()
	require.NoError(t, cache.SetAvailableSpaces(ctx, spaces))
	spaces[0].Title = "mutated after set"

	cached, hit, err := cache.GetAvailableSpaces(ctx)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, "Driveway", cached[0].Title)

	require.NoError(t, cache.InvalidateAvailableSpaces(ctx))
	_, hit, _ = cache.GetAvailableSpaces(ctx)
	assert.False(t, hit, "invalidated cache must miss")

	require.NoError(t, cache.SetAvailableSpaces(ctx, sampleSpaces()))
	now = now.Add(time.Minute)
	_, hit, _ = cache.GetAvailableSpaces(ctx)
	assert.False(t, hit, "expired entry must miss")
}

func TestMemoryListingCache_EmptyListingIsAHit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cache := NewMemoryListingCache(0, nil)
	require.NoError(t, cache.SetAvailableSpaces(ctx, nil))

	cached, hit, err := cache.GetAvailableSpaces(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Empty(t, cached)
}

func TestRedisListingCache(t *testing.T) {
	url := os.Getenv("PARKSHARE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PARKSHARE_TEST_REDIS_URL not set, skipping integration test")
	}

	client, err := NewRedisClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("failed to ping redis: %v", err)
	}

	cache := NewRedisListingCache(client, time.Minute)
	cache.key = "parkshare:test:" + t.Name()
	t.Cleanup(func() { _ = client.Del(ctx, cache.key).Err() })

	_, hit, err := cache.GetAvailableSpaces(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.SetAvailableSpaces(ctx, sampleSpaces()))
	cached, hit, err := cache.GetAvailableSpaces(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, sampleSpaces(), cached)

	ttl, err := client.TTL(ctx, cache.key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.InvalidateAvailableSpaces(ctx))
	_, hit, err = cache.GetAvailableSpaces(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}

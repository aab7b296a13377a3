package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/parkshare/internal/application"
)

// MemoryListingCache is an in-process listing cache for single-instance
// deployments and tests.
type MemoryListingCache struct {
	mu      sync.Mutex
	data    []byte
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryListingCache returns an empty cache. A non-positive ttl uses
// DefaultTTL and a nil now uses time.Now.
func NewMemoryListingCache(ttl time.Duration, now func() time.Time) *MemoryListingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryListingCache{ttl: ttl, now: now}
}

// GetAvailableSpaces returns the cached listing while it is fresh.
func (c *MemoryListingCache) GetAvailableSpaces(ctx context.Context) ([]application.Space, bool, error) {
	c.mu.Lock()
	data, expires := c.data, c.expires
	c.mu.Unlock()

	if data == nil || !c.now().Before(expires) {
		return nil, false, nil
	}
	spaces, err := decodeSpaces(data)
	if err != nil {
		return nil, false, err
	}
	return spaces, true, nil
}

// SetAvailableSpaces stores an encoded copy so callers cannot mutate the entry.
func (c *MemoryListingCache) SetAvailableSpaces(ctx context.Context, spaces []application.Space) error {
	data, err := encodeSpaces(spaces)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.data = data
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
	return nil
}

// InvalidateAvailableSpaces drops the cached listing.
func (c *MemoryListingCache) InvalidateAvailableSpaces(ctx context.Context) error {
	c.mu.Lock()
	c.data = nil
	c.mu.Unlock()
	return nil
}

package ratebook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const listCacheKey = "towdesk:ratebook:list"

// Cache wraps Redis helpers for the rate-book listing.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetList unmarshals the cached listing. It reports whether the key existed.
func (c *Cache) GetList(ctx context.Context, dst *[]RateItem) (bool, error) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return false, nil
	}
	data, err := c.client.Get(ctx, listCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetList serialises the listing as JSON with the configured TTL.
func (c *Cache) SetList(ctx context.Context, items []RateItem) error {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listCacheKey, data, c.ttl).Err()
}

// Invalidate drops the cached listing after a mutation.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, listCacheKey).Err()
}

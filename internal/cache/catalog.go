// Package cache keeps resolved per-customer catalogs in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jogardn/roastery-orders/internal/catalog"
)

const generationKey = "catalog:generation"

// RedisClient is the subset of *redis.Client the cache uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// CatalogCache stores catalogs under catalog:<generation>:<customer>:<customer generation>.
// Bumping either generation orphans the matching entries at once; TTL
// reclaims them.
type CatalogCache struct {
	client RedisClient
	ttl    time.Duration
}

var _ catalog.Cache = (*CatalogCache)(nil)

func NewCatalogCache(client RedisClient, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

// Connect dials Redis and checks it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func customerGenerationKey(customerID string) string {
	return "catalog:customer:" + customerID + ":generation"
}

func (c *CatalogCache) counter(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// slot is the key the customer's catalog lives under right now.
func (c *CatalogCache) slot(ctx context.Context, customerID string) (string, error) {
	gen, err := c.counter(ctx, generationKey)
	if err != nil {
		return "", err
	}
	customerGen, err := c.counter(ctx, customerGenerationKey(customerID))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("catalog:%d:%s:%d", gen, customerID, customerGen), nil
}

// GetCatalog returns the cached catalog, or on a miss the slot a fill for
// this read must go to.
func (c *CatalogCache) GetCatalog(ctx context.Context, customerID string) ([]catalog.Entry, string, bool, error) {
	slot, err := c.slot(ctx, customerID)
	if err != nil {
		return nil, "", false, err
	}

	data, err := c.client.Get(ctx, slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, slot, false, nil
	}
	if err != nil {
		return nil, "", false, err
	}

	var entries []catalog.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, slot, false, fmt.Errorf("decode cached catalog: %w", err)
	}
	return entries, slot, true, nil
}

// SetCatalog fills the slot returned by the GetCatalog miss. An invalidation
// in between has already moved readers to a newer slot, so a catalog loaded
// before it is never served.
func (c *CatalogCache) SetCatalog(ctx context.Context, slot string, entries []catalog.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, slot, data, c.ttl).Err()
}

func (c *CatalogCache) InvalidateCustomer(ctx context.Context, customerID string) error {
	return c.client.Incr(ctx, customerGenerationKey(customerID)).Err()
}

func (c *CatalogCache) InvalidateAll(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

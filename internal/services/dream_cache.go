package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// DefaultListingTTL bounds how long a listing page may be served from cache.
	DefaultListingTTL = 5 * time.Minute
)

// ListingCache caches rendered listing pages per owner. Implementations
// treat every failure as a miss; the store stays the source of truth.
//
// Generation is read once per listing, before the store is queried, and the
// same value is handed to SetPage. A mutation in between bumps the
// generation, so the page it made stale is written under the old one and
// never served.
type ListingCache interface {
	Generation(ctx context.Context, ownerID string) (int64, error)
	GetPage(ctx context.Context, ownerID string, gen int64, params ListParams) (*DreamPage, bool)
	SetPage(ctx context.Context, ownerID string, gen int64, params ListParams, page *DreamPage)
	// Invalidate drops every cached page of ownerID.
	Invalidate(ctx context.Context, ownerID string) error
}

// RedisListingCache stores pages under a per-owner generation number.
// Invalidate bumps the generation, orphaning old pages until their TTL runs out.
type RedisListingCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisListingCache(client redis.UniversalClient, ttl time.Duration) *RedisListingCache {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	return &RedisListingCache{client: client, ttl: ttl}
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s%s:%s", CacheKeyPrefix, resource, identifier)
}

func generationKey(ownerID string) string {
	return CacheKey("dreams", ownerID) + ":gen"
}

// Generation returns the owner's current cache generation; zero if unset.
func (c *RedisListingCache) Generation(ctx context.Context, ownerID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(ownerID)).Int64()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return gen, nil
}

func pageKey(ownerID string, gen int64, params ListParams) string {
	return fmt.Sprintf("%s:%d:%s", CacheKey("dreams", ownerID), gen, params.Encode())
}

func (c *RedisListingCache) GetPage(ctx context.Context, ownerID string, gen int64, params ListParams) (*DreamPage, bool) {
	key := pageKey(ownerID, gen, params)
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("listing cache: get failed: %v", err)
		}
		return nil, false
	}

	var page DreamPage
	if err := json.Unmarshal(val, &page); err != nil {
		log.Printf("listing cache: corrupt entry %s: %v", key, err)
		return nil, false
	}
	return &page, true
}

func (c *RedisListingCache) SetPage(ctx context.Context, ownerID string, gen int64, params ListParams, page *DreamPage) {
	data, err := json.Marshal(page)
	if err != nil {
		log.Printf("listing cache: marshal failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, pageKey(ownerID, gen, params), data, c.ttl).Err(); err != nil {
		log.Printf("listing cache: set failed: %v", err)
	}
}

func (c *RedisListingCache) Invalidate(ctx context.Context, ownerID string) error {
	return c.client.Incr(ctx, generationKey(ownerID)).Err()
}

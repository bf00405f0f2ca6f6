package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheSize bounds the in-process analytics cache.
const DefaultCacheSize = 128

// Fingerprint returns the cache key for transcript text: a 64-bit hash of
// the full content plus its length.
func Fingerprint(text string) string {
	return fmt.Sprintf("%016x:%d", xxhash.Sum64String(text), len(text))
}

// Cache memoizes analytics by transcript fingerprint. Implementations store
// and return copies so callers cannot alias cached state.
type Cache interface {
	Get(ctx context.Context, key string) (*MeetingAnalytics, bool, error)
	Put(ctx context.Context, key string, analytics *MeetingAnalytics) error
}

// LRUCache is a bounded in-process Cache.
type LRUCache struct {
	entries *lru.Cache[string, *MeetingAnalytics]
}

var _ Cache = (*LRUCache)(nil)

// NewLRUCache creates a cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, *MeetingAnalytics](size)
	if err != nil {
		return nil, fmt.Errorf("creating analytics cache: %w", err)
	}
	return &LRUCache{entries: entries}, nil
}

// Get returns a copy of the cached analytics for key.
func (c *LRUCache) Get(_ context.Context, key string) (*MeetingAnalytics, bool, error) {
	a, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

// Put stores a copy of analytics, evicting the least recently used entry
// when full.
func (c *LRUCache) Put(_ context.Context, key string, analytics *MeetingAnalytics) error {
	c.entries.Add(key, analytics.Clone())
	return nil
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	return c.entries.Len()
}

// Redis key prefix
const keyPrefixAnalytics = "krisp:analytics:"

// RedisCache shares analytics between processes through Redis.
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a Redis-backed cache. namespace separates entries
// computed with different lexicons; ttl of zero keeps entries until evicted
// by Redis.
func NewRedisCache(client redis.UniversalClient, namespace string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, namespace: namespace, ttl: ttl}
}

func (c *RedisCache) key(key string) string {
	return keyPrefixAnalytics + c.namespace + ":" + key
}

// Get fetches and decodes cached analytics. A missing key is a miss, not an
// error.
func (c *RedisCache) Get(ctx context.Context, key string) (*MeetingAnalytics, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached analytics: %w", err)
	}

	var a MeetingAnalytics
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached analytics: %w", err)
	}
	return &a, true, nil
}

// Put encodes and stores analytics with the configured TTL.
func (c *RedisCache) Put(ctx context.Context, key string, analytics *MeetingAnalytics) error {
	data, err := json.Marshal(analytics)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache analytics: %w", err)
	}
	return nil
}

// TieredCache checks a local cache before a shared one and fills the local
// cache on shared hits. Shared errors are returned but never hide a local
// hit.
type TieredCache struct {
	local  Cache
	shared Cache
}

var _ Cache = (*TieredCache)(nil)

// NewTieredCache layers local in front of shared.
func NewTieredCache(local, shared Cache) *TieredCache {
	return &TieredCache{local: local, shared: shared}
}

// Get returns the first hit, local cache first.
func (c *TieredCache) Get(ctx context.Context, key string) (*MeetingAnalytics, bool, error) {
	if a, ok, err := c.local.Get(ctx, key); err == nil && ok {
		return a, true, nil
	}
	a, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = c.local.Put(ctx, key, a)
	return a, true, nil
}

// Put writes to both layers. The local write always happens.
func (c *TieredCache) Put(ctx context.Context, key string, analytics *MeetingAnalytics) error {
	_ = c.local.Put(ctx, key, analytics)
	return c.shared.Put(ctx, key, analytics)
}

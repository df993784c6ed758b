package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	applog "github.com/codyseavey/moki-tracker/internal/logger"
	"github.com/codyseavey/moki-tracker/internal/metrics"
)

// ResponseCache stores upstream responses for a short time.
// Values are msgpack encoded so both backends return independent copies.
type ResponseCache interface {
	// Get decodes the cached value into dest and reports whether it was found
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

const defaultCacheSize = 256

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process LRU cache with per-entry expiry
type MemoryCache struct {
	entries *lru.Cache[string, cacheEntry]
	now     func() time.Time
}

// NewMemoryCache creates an LRU cache holding at most size entries
func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		// Only fails for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &MemoryCache{entries: entries, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) bool {
	entry, ok := c.entries.Get(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return false
	}
	if !c.now().Before(entry.expiresAt) {
		c.entries.Remove(key)
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return false
	}
	if err := msgpack.Unmarshal(entry.data, dest); err != nil {
		applog.L().Warnf("Cache: failed to decode %s: %v", key, err)
		c.entries.Remove(key)
		metrics.CacheMisses.WithLabelValues("memory").Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues("memory").Inc()
	return true
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		applog.L().Warnf("Cache: failed to encode %s: %v", key, err)
		return
	}
	c.entries.Add(key, cacheEntry{data: data, expiresAt: c.now().Add(ttl)})
}

// Len returns the number of entries, including expired ones not yet evicted
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// RedisCache shares cached responses between instances
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to redis and verifies the connection
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client, prefix: "moki:"}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			applog.L().Warnf("Cache: redis get %s failed: %v", key, err)
		}
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return false
	}
	if err := msgpack.Unmarshal(data, dest); err != nil {
		applog.L().Warnf("Cache: failed to decode %s: %v", key, err)
		metrics.CacheMisses.WithLabelValues("redis").Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues("redis").Inc()
	return true
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := msgpack.Marshal(value)
	if err != nil {
		applog.L().Warnf("Cache: failed to encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		applog.L().Warnf("Cache: redis set %s failed: %v", key, err)
	}
}

// Close closes the redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NewResponseCache returns a redis cache when addr is set and reachable,
// otherwise an in-memory LRU
func NewResponseCache(addr, password string, db int) ResponseCache {
	if addr != "" {
		rc, err := NewRedisCache(addr, password, db)
		if err == nil {
			applog.L().Infof("Cache: using redis at %s", addr)
			return rc
		}
		applog.L().Warnf("Cache: %v, falling back to in-memory cache", err)
	}
	return NewMemoryCache(defaultCacheSize)
}

package controllers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// DefaultCacheTTL is how long a product listing is served from cache.
	DefaultCacheTTL = 5 * time.Minute

	ProductListCachePrefix = "products:list:"
)

// ProductCache stores serialized product listings by query key. Failures
// are logged and reported as misses; the cache never fails a request.
type ProductCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// RedisProductCache is used when REDIS_URL is configured, so every replica
// shares one cache.
type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisProductCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisProductCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisProductCache{client: client, ttl: ttl, logger: logger}
}

func (rc *RedisProductCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := rc.client.Get(ctx, ProductListCachePrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rc.logger.Warn("Failed to read product list cache", zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (rc *RedisProductCache) Set(ctx context.Context, key string, value []byte) {
	if err := rc.client.Set(ctx, ProductListCachePrefix+key, value, rc.ttl).Err(); err != nil {
		rc.logger.Warn("Failed to cache product list", zap.Error(err))
	}
}

type memoryEntry struct {
	data     []byte
	storedAt time.Time
}

// MemoryProductCache is the single-process fallback. Expired entries are
// never served; the janitor only reclaims their memory.
type MemoryProductCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewMemoryProductCache(ttl time.Duration, logger *zap.Logger) *MemoryProductCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryProductCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

func (mc *MemoryProductCache) Get(_ context.Context, key string) ([]byte, bool) {
	mc.mu.RLock()
	e, ok := mc.entries[key]
	mc.mu.RUnlock()
	if !ok || mc.now().Sub(e.storedAt) >= mc.ttl {
		return nil, false
	}
	return e.data, true
}

func (mc *MemoryProductCache) Set(_ context.Context, key string, value []byte) {
	mc.mu.Lock()
	mc.entries[key] = memoryEntry{data: value, storedAt: mc.now()}
	mc.mu.Unlock()
}

// Purge drops expired entries and returns how many it removed.
func (mc *MemoryProductCache) Purge() int {
	now := mc.now()
	mc.mu.Lock()
	defer mc.mu.Unlock()
	removed := 0
	for k, e := range mc.entries {
		if now.Sub(e.storedAt) >= mc.ttl {
			delete(mc.entries, k)
			removed++
		}
	}
	return removed
}

// StartJanitor schedules Purge on a cron spec such as "@every 1m".
func (mc *MemoryProductCache) StartJanitor(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if n := mc.Purge(); n > 0 {
			mc.logger.Debug("Purged expired product listings", zap.Int("removed", n))
		}
	})
	if err != nil {
		return err
	}
	mc.cron = c
	c.Start()
	return nil
}

// Stop halts the janitor and waits for a running purge to finish.
func (mc *MemoryProductCache) Stop() {
	if mc.cron != nil {
		<-mc.cron.Stop().Done()
	}
}

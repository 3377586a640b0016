package cache

import (
	"context"
	"encoding/json"
	"time"
)

// LayeredCache stacks an in-process L1 over a Redis L2. Writes go through
// to both layers; reads promote L2 hits into L1.
type LayeredCache struct {
	mem   *MemoryCache
	rdb   *RedisCache
	l1TTL time.Duration
}

// NewLayeredCache builds the two-level cache around an existing Redis
// connection.
func NewLayeredCache(rdb *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		mem:   NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		rdb:   rdb,
		l1TTL: cfg.MemoryTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.rdb.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, value, lc.cap(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := lc.rdb.Get(ctx, key, dest); err != nil {
		return err
	}
	// Promote. dest is already unmarshaled, re-storing it keeps L1 warm.
	if raw, err := json.Marshal(dest); err == nil {
		_ = lc.mem.Set(ctx, key, json.RawMessage(raw), lc.l1TTL)
	}
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.rdb.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.mem.DeleteByPattern(ctx, pattern)
	return lc.rdb.DeleteByPattern(ctx, pattern)
}

// Locks live only in Redis so they hold across replicas.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.rdb.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.rdb.Unlock(ctx, key)
}

func (lc *LayeredCache) cap(expiration time.Duration) time.Duration {
	if expiration <= 0 || expiration > lc.l1TTL {
		return lc.l1TTL
	}
	return expiration
}

func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	return lc.rdb.Close()
}

// Package cache provides the read-through store used in front of the
// market data provider. Three implementations share one contract: an
// in-process store, a Redis store, and a two-level combination of both.
package cache

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the caching contract. Values round-trip through JSON, so
// callers pass a pointer destination to Get and get back what Set stored.
// TryLock and Unlock implement a best-effort TTL lock for suppressing
// duplicate upstream refreshes.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(10))
	defer c.Close()
	ctx := context.Background()

	type payload struct {
		Symbol string
		Qty    float64
	}
	in := payload{Symbol: "BTC", Qty: 1.5}
	if err := c.Set(ctx, "pos:btc", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out payload
	if err := c.Get(ctx, "pos:btc", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(10))
	defer c.Close()

	var out string
	if err := c.Get(context.Background(), "absent", &out); err != ErrCacheMiss {
		t.Fatalf("want ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(10))
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", time.Nanosecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var out string
	if err := c.Get(ctx, "k", &out); err != ErrCacheMiss {
		t.Fatalf("expired key should miss, got %v", err)
	}
}

func TestMemoryCacheEviction(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"a", "b"} {
		if err := c.Set(ctx, k, k, time.Minute); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	var out string
	if err := c.Get(ctx, "a", &out); err != nil {
		t.Fatalf("get a: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := c.Set(ctx, "c", "c", time.Minute); err != nil {
		t.Fatalf("set c: %v", err)
	}

	// "b" is the least recently used entry and should be gone.
	if err := c.Get(ctx, "b", &out); err != ErrCacheMiss {
		t.Fatalf("want eviction of b, got %v", err)
	}
	if err := c.Get(ctx, "a", &out); err != nil {
		t.Fatalf("a should survive: %v", err)
	}
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(10))
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"gw:rets:252", "gw:mkt:252", "other"} {
		if err := c.Set(ctx, k, 1, time.Minute); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := c.DeleteByPattern(ctx, "gw:*"); err != nil {
		t.Fatalf("delete by pattern: %v", err)
	}

	var out int
	if err := c.Get(ctx, "gw:rets:252", &out); err != ErrCacheMiss {
		t.Fatalf("prefixed key should be gone, got %v", err)
	}
	if err := c.Get(ctx, "other", &out); err != nil {
		t.Fatalf("unrelated key should remain: %v", err)
	}
}

func TestMemoryCacheTryLock(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(10))
	defer c.Close()
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "lock:k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = c.TryLock(ctx, "lock:k", time.Minute)
	if err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}
	if err := c.Unlock(ctx, "lock:k"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = c.TryLock(ctx, "lock:k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("reacquire after unlock: ok=%v err=%v", ok, err)
	}
}

package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/pkg/cache"
)

// fakeProvider scripts provider behavior per call.
type fakeProvider struct {
	calls    atomic.Int64
	failCall func(n int64) bool
}

func (f *fakeProvider) failing() bool {
	n := f.calls.Add(1)
	return f.failCall != nil && f.failCall(n)
}

func (f *fakeProvider) GetPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	if f.failing() {
		return nil, errors.New("boom")
	}
	snap := &models.PortfolioSnapshot{
		Positions: []models.Position{{Symbol: "BTC", Quantity: 1, AvgPrice: 100, CurrentPrice: 100}},
		Cash:      50,
		AsOf:      time.Now(),
	}
	snap.Finalize()
	return snap, nil
}

func (f *fakeProvider) GetReturnSeries(ctx context.Context, symbols []string, lookback int) (map[string]models.ReturnSeries, error) {
	if f.failing() {
		return nil, errors.New("boom")
	}
	return map[string]models.ReturnSeries{"BTC": {Symbol: "BTC", Returns: []float64{0.01}}}, nil
}

func (f *fakeProvider) GetMarketProxySeries(ctx context.Context, lookback int) (models.ReturnSeries, error) {
	if f.failing() {
		return models.ReturnSeries{}, errors.New("boom")
	}
	return models.ReturnSeries{Symbol: "MKT", Returns: []float64{0.01}}, nil
}

func (f *fakeProvider) GetLiquidityInfo(ctx context.Context, symbols []string) (map[string]models.LiquidityInfo, error) {
	if f.failing() {
		return nil, errors.New("boom")
	}
	return map[string]models.LiquidityInfo{}, nil
}

func fastConfig() Config {
	return Config{
		RetryAttempts: 1,
		RetryBackoff:  time.Millisecond,
		MaxFailures:   5,
		BreakerReset:  50 * time.Millisecond,
		CacheTTL:      time.Minute,
		RateLimitRPS:  10000,
		Seed:          1,
	}
}

func TestBreakerFailsFastAfterFiveFailures(t *testing.T) {
	raw := &fakeProvider{failCall: func(int64) bool { return true }}
	g := New(fastConfig(), raw, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := g.GetMarketProxySeries(ctx, 10); err == nil {
			t.Fatalf("call %d should fail", i)
		}
	}
	before := raw.calls.Load()

	_, err := g.GetMarketProxySeries(ctx, 10)
	if !errors.Is(err, models.ErrServiceUnavailable) {
		t.Fatalf("open breaker should fail fast with ErrServiceUnavailable, got %v", err)
	}
	if raw.calls.Load() != before {
		t.Fatal("open breaker must not reach the provider")
	}
}

func TestBreakerRecoversAfterResetTimeout(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	raw := &fakeProvider{failCall: func(int64) bool { return failing.Load() }}
	g := New(fastConfig(), raw, nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.GetMarketProxySeries(ctx, 10) //nolint:errcheck
	}
	if _, err := g.GetMarketProxySeries(ctx, 10); !errors.Is(err, models.ErrServiceUnavailable) {
		t.Fatalf("expected open breaker, got %v", err)
	}

	failing.Store(false)
	time.Sleep(60 * time.Millisecond) // past the reset timeout

	series, err := g.GetMarketProxySeries(ctx, 10)
	if err != nil {
		t.Fatalf("half-open probe should succeed: %v", err)
	}
	if series.Symbol != "MKT" {
		t.Fatalf("unexpected series %+v", series)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	raw := &fakeProvider{failCall: func(n int64) bool { return n < 3 }}
	cfg := fastConfig()
	cfg.RetryAttempts = 3
	g := New(cfg, raw, nil, nil, nil)

	series, err := g.GetMarketProxySeries(context.Background(), 10)
	if err != nil {
		t.Fatalf("retry should recover: %v", err)
	}
	if series.Symbol != "MKT" {
		t.Fatalf("unexpected series %+v", series)
	}
	if raw.calls.Load() != 3 {
		t.Fatalf("expected 3 provider calls, got %d", raw.calls.Load())
	}
}

func TestSimulatedPortfolioFallback(t *testing.T) {
	raw := &fakeProvider{failCall: func(int64) bool { return true }}
	g := New(fastConfig(), raw, nil, nil, nil)

	snap, err := g.GetPortfolio(context.Background())
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if !snap.Simulated {
		t.Fatal("fallback snapshot must be flagged Simulated")
	}
	if len(snap.Positions) != 5 {
		t.Fatalf("expected 5 synthetic positions, got %d", len(snap.Positions))
	}
	if snap.TotalValue <= 0 {
		t.Fatalf("synthetic book needs positive value, got %v", snap.TotalValue)
	}
}

func TestSimulatedSeriesFallback(t *testing.T) {
	raw := &fakeProvider{failCall: func(int64) bool { return true }}
	g := New(fastConfig(), raw, nil, nil, nil)

	series, err := g.GetReturnSeries(context.Background(), []string{"BTC", "ETH"}, 100)
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if len(series) != 2 || series["BTC"].Len() != 100 {
		t.Fatalf("unexpected synthetic series: %d symbols", len(series))
	}
}

func TestReadThroughCache(t *testing.T) {
	raw := &fakeProvider{}
	g := New(fastConfig(), raw, cache.NewMemoryCache(), nil, nil)
	ctx := context.Background()

	if _, err := g.GetPortfolio(ctx); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	first := raw.calls.Load()
	if _, err := g.GetPortfolio(ctx); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if raw.calls.Load() != first {
		t.Fatal("second fetch within TTL should hit the cache")
	}
}

func TestRateLimitExhaustion(t *testing.T) {
	raw := &fakeProvider{}
	cfg := fastConfig()
	cfg.RateLimitRPS = 1
	g := New(cfg, raw, nil, nil, nil)
	ctx := context.Background()

	if _, err := g.GetMarketProxySeries(ctx, 10); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	_, err := g.GetMarketProxySeries(ctx, 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

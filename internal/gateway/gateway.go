// Package gateway wraps the raw market-data provider with retry, a circuit
// breaker, a read-through cache, a provider rate limit, and a clearly
// flagged synthetic fallback.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"RiskPulse/internal/domain/models"
	drepo "RiskPulse/internal/domain/repository"
	"RiskPulse/internal/service/ratelimit"
	"RiskPulse/pkg/cache"
	applogger "RiskPulse/pkg/logger"
)

// ErrRateLimited is returned when the provider token bucket is exhausted.
var ErrRateLimited = errors.New("gateway: provider rate limit exhausted")

const (
	cacheKeyPortfolio = "gw:portfolio"
	cacheKeyMarket    = "gw:market"
	cacheKeyReturns   = "gw:returns"
	cacheKeyLiquidity = "gw:liquidity"
	limiterKey        = "provider"

	refreshLockTTL = 5 * time.Second
	refreshWait    = 50 * time.Millisecond
)

// simulatedSymbols back the synthetic snapshot when the provider is down.
var simulatedSymbols = []struct {
	symbol string
	price  float64
	qty    float64
}{
	{"BTC", 45000, 0.8},
	{"ETH", 2800, 8},
	{"ADA", 0.55, 20000},
	{"DOT", 7.5, 1200},
	{"LINK", 15, 600},
}

// Config tunes the resilience layers.
type Config struct {
	RetryAttempts int           // default 3
	RetryBackoff  time.Duration // first backoff, doubled per attempt, default 1s
	MaxFailures   uint32        // consecutive failures before OPEN, default 5
	BreakerReset  time.Duration // OPEN to HALF_OPEN, default 60s
	CacheTTL      time.Duration // default 30s
	RateLimitRPS  float64       // default 10
	Seed          int64         // synthetic data seed, 0 means time-seeded
}

func (c *Config) applyDefaults() {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxFailures == 0 {
		c.MaxFailures = 5
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = 60 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 10
	}
}

// Gateway implements MarketData over a raw client.
type Gateway struct {
	cfg     Config
	raw     drepo.MarketData
	breaker *gobreaker.CircuitBreaker
	cache   cache.Service
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
	logger  *applogger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

var _ drepo.MarketData = (*Gateway)(nil)

// New builds a gateway. cache may be nil to disable the read-through layer.
func New(cfg Config, raw drepo.MarketData, cacheSvc cache.Service, metrics drepo.Metrics, l *applogger.Logger) *Gateway {
	cfg.applyDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Gateway{
		cfg:     cfg,
		raw:     raw,
		cache:   cacheSvc,
		limiter: ratelimit.New(),
		metrics: metrics,
		logger:  l,
		rng:     rand.New(rand.NewSource(seed)),
	}
	settings := gobreaker.Settings{
		Name:    "market-data-provider",
		Timeout: cfg.BreakerReset,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: g.onStateChange,
	}
	g.breaker = gobreaker.NewCircuitBreaker(settings)
	return g
}

// BreakerState reports the provider breaker state ("closed", "open",
// "half-open") for health reporting.
func (g *Gateway) BreakerState() string {
	return g.breaker.State().String()
}

func (g *Gateway) onStateChange(name string, from, to gobreaker.State) {
	if g.metrics != nil {
		g.metrics.RecordBreakerState(to.String())
	}
	if g.logger != nil {
		g.logger.Warn("provider breaker state change",
			applogger.String("breaker", name),
			applogger.String("from", from.String()),
			applogger.String("to", to.String()))
	}
}

// GetPortfolio returns the live book, a cached copy, or the synthetic
// fallback, in that order of preference.
func (g *Gateway) GetPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	var snap models.PortfolioSnapshot
	if g.cacheGet(ctx, cacheKeyPortfolio, &snap) {
		return &snap, nil
	}
	out, err := g.call(ctx, func() (interface{}, error) { return g.raw.GetPortfolio(ctx) })
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("provider unavailable, serving simulated portfolio", applogger.Error(err))
		}
		return g.simulatedPortfolio(), nil
	}
	result := out.(*models.PortfolioSnapshot)
	g.cacheSet(ctx, cacheKeyPortfolio, result)
	return result, nil
}

// GetReturnSeries returns histories, falling back to synthetic series when
// the provider is completely unavailable.
func (g *Gateway) GetReturnSeries(ctx context.Context, symbols []string, lookback int) (map[string]models.ReturnSeries, error) {
	key := cache.KeyWithParams(cacheKeyReturns, lookback)
	var cached map[string]models.ReturnSeries
	if g.cacheGet(ctx, key, &cached) && len(cached) > 0 {
		return cached, nil
	}
	// Histories are the largest provider read. A short lock keeps replicas
	// sharing a Redis cache from refreshing the same key simultaneously;
	// losers re-check once and then fetch anyway.
	if locked := g.tryRefreshLock(ctx, key); !locked {
		time.Sleep(refreshWait)
		if g.cacheGet(ctx, key, &cached) && len(cached) > 0 {
			return cached, nil
		}
	} else {
		defer g.releaseRefreshLock(ctx, key)
	}
	out, err := g.call(ctx, func() (interface{}, error) { return g.raw.GetReturnSeries(ctx, symbols, lookback) })
	if err != nil {
		if g.logger != nil {
			g.logger.Warn("provider unavailable, serving simulated return series", applogger.Error(err))
		}
		return g.simulatedSeries(symbols, lookback), nil
	}
	result := out.(map[string]models.ReturnSeries)
	g.cacheSet(ctx, key, result)
	return result, nil
}

// GetMarketProxySeries has no synthetic fallback; beta simply degrades.
func (g *Gateway) GetMarketProxySeries(ctx context.Context, lookback int) (models.ReturnSeries, error) {
	key := cache.KeyWithParams(cacheKeyMarket, lookback)
	var cached models.ReturnSeries
	if g.cacheGet(ctx, key, &cached) && cached.Len() > 0 {
		return cached, nil
	}
	out, err := g.call(ctx, func() (interface{}, error) { return g.raw.GetMarketProxySeries(ctx, lookback) })
	if err != nil {
		return models.ReturnSeries{}, err
	}
	result := out.(models.ReturnSeries)
	g.cacheSet(ctx, key, result)
	return result, nil
}

// GetLiquidityInfo has no synthetic fallback; the liquidity metric defaults
// heuristically on missing symbols.
func (g *Gateway) GetLiquidityInfo(ctx context.Context, symbols []string) (map[string]models.LiquidityInfo, error) {
	var cached map[string]models.LiquidityInfo
	if g.cacheGet(ctx, cacheKeyLiquidity, &cached) && len(cached) > 0 {
		return cached, nil
	}
	out, err := g.call(ctx, func() (interface{}, error) { return g.raw.GetLiquidityInfo(ctx, symbols) })
	if err != nil {
		return nil, err
	}
	result := out.(map[string]models.LiquidityInfo)
	g.cacheSet(ctx, cacheKeyLiquidity, result)
	return result, nil
}

// call applies rate limiting, retry with exponential backoff, and the
// breaker. An OPEN breaker fails fast without consuming retry budget.
func (g *Gateway) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if !g.limiter.Allow(limiterKey, g.cfg.RateLimitRPS, g.cfg.RateLimitRPS) {
		if g.metrics != nil {
			g.metrics.RecordError("rate_limited")
		}
		return nil, ErrRateLimited
	}

	backoff := g.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt < g.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		out, err := g.breaker.Execute(fn)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", models.ErrServiceUnavailable, err)
		}
		if g.metrics != nil {
			g.metrics.RecordError("provider_call")
		}
	}
	return nil, fmt.Errorf("%w: %w", models.ErrDataUnavailable, lastErr)
}

func (g *Gateway) tryRefreshLock(ctx context.Context, key string) bool {
	if g.cache == nil {
		return true
	}
	ok, err := g.cache.TryLock(ctx, cache.Key("gw:refresh", key), refreshLockTTL)
	if err != nil {
		return true
	}
	return ok
}

func (g *Gateway) releaseRefreshLock(ctx context.Context, key string) {
	if g.cache == nil {
		return
	}
	_ = g.cache.Unlock(ctx, cache.Key("gw:refresh", key))
}

// InvalidateCache drops every cached gateway read so the next call hits
// the provider. Used when resuming after an emergency stop.
func (g *Gateway) InvalidateCache(ctx context.Context) error {
	if g.cache == nil {
		return nil
	}
	return g.cache.DeleteByPattern(ctx, cache.Pattern("gw:"))
}

func (g *Gateway) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if g.cache == nil {
		return false
	}
	return g.cache.Get(ctx, key, dest) == nil
}

func (g *Gateway) cacheSet(ctx context.Context, key string, value interface{}) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, value, g.cfg.CacheTTL); err != nil && g.logger != nil {
		g.logger.Debug("gateway cache set failed", applogger.Error(err))
	}
}

// simulatedPortfolio builds the synthetic five-asset book. Quantities jitter
// slightly so consecutive fallbacks don't look frozen.
func (g *Gateway) simulatedPortfolio() *models.PortfolioSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := &models.PortfolioSnapshot{
		Cash:      10000,
		AsOf:      time.Now(),
		Simulated: true,
	}
	for _, s := range simulatedSymbols {
		jitter := 1 + 0.02*(g.rng.Float64()*2-1)
		snap.Positions = append(snap.Positions, models.Position{
			Symbol:       s.symbol,
			Quantity:     s.qty,
			AvgPrice:     s.price,
			CurrentPrice: s.price * jitter,
		})
	}
	snap.Finalize()
	return snap
}

func (g *Gateway) simulatedSeries(symbols []string, lookback int) map[string]models.ReturnSeries {
	if len(symbols) == 0 {
		for _, s := range simulatedSymbols {
			symbols = append(symbols, s.symbol)
		}
	}
	if lookback <= 0 {
		lookback = 252
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	out := make(map[string]models.ReturnSeries, len(symbols))
	for _, sym := range symbols {
		r := make([]float64, lookback)
		for i := range r {
			r[i] = 0.0005 + 0.03*g.rng.NormFloat64()
		}
		out[sym] = models.ReturnSeries{Symbol: sym, Returns: r, AsOf: now}
	}
	return out
}

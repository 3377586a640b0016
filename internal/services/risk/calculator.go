// Package risk implements the per-tick analytic risk metrics and the
// advisory feed-forward risk classifier layered on top of them.
package risk

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/numkit"
	applogger "RiskPulse/pkg/logger"
)

// equityBufferCap bounds the trailing equity curve kept for drawdowns.
const equityBufferCap = 2048

// CalculatorConfig carries the tunables of the metric computation.
type CalculatorConfig struct {
	ConfidenceLevel float64 // default 0.95
	RiskFreeRate    float64 // annual, default 0.02
	MonteCarloDraws int     // default 1000
	Seed            int64   // 0 means time-seeded
}

// Inputs is everything a tick supplies to Compute. The snapshot and series
// are read-only; the calculator never mutates them.
type Inputs struct {
	Snapshot  *models.PortfolioSnapshot
	Series    map[string]models.ReturnSeries
	Market    models.ReturnSeries
	Liquidity map[string]models.LiquidityInfo
}

// Calculator turns a portfolio snapshot plus return history into a complete
// RiskMetrics value object. Missing data degrades individual metrics with a
// WARN; Compute never fails a whole tick over one symbol.
type Calculator struct {
	cfg    CalculatorConfig
	logger *applogger.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	equity []float64
}

// NewCalculator creates a calculator with the given config.
func NewCalculator(cfg CalculatorConfig, l *applogger.Logger) *Calculator {
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		cfg.ConfidenceLevel = 0.95
	}
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = 0.02
	}
	if cfg.MonteCarloDraws <= 0 {
		cfg.MonteCarloDraws = 1000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Calculator{
		cfg:    cfg,
		logger: l,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Compute builds the RiskMetrics for one tick.
func (c *Calculator) Compute(in Inputs) *models.RiskMetrics {
	now := time.Now()
	m := &models.RiskMetrics{LastUpdate: now}
	snap := in.Snapshot
	if snap == nil || len(snap.Positions) == 0 {
		return m
	}

	series, degraded := c.alignSeries(snap, in.Series)
	m.Degraded = degraded
	weights := snap.Weights()

	portfolio, err := numkit.PortfolioReturns(series, weights)
	if err != nil {
		// Alignment already normalized lengths; this only fires on a weight
		// count mismatch, which means a malformed snapshot.
		c.warn("portfolio returns unavailable", err)
		return m
	}

	m.VaR = c.computeVaR(portfolio)
	m.CVaR = c.computeCVaR(portfolio)

	m.Variance = c.portfolioVariance(series, weights)
	m.StdDev = math.Sqrt(m.Variance)
	m.AnnualizedVolatility = numkit.AnnualizeVolatility(m.StdDev, numkit.TradingDaysPerYear)

	m.SharpeRatio = c.sharpe(portfolio)
	m.SortinoRatio = c.sortino(portfolio, 0)

	m.MaxDrawdown, m.CurrentDrawdown = c.drawdowns(snap.TotalValue)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = numkit.AnnualizeReturn(numkit.Mean(portfolio), numkit.TradingDaysPerYear) / m.MaxDrawdown
	}

	m.Beta, m.Alpha = c.betaAlpha(portfolio, in.Market.Returns)

	invested := investedWeights(snap)
	m.ConcentrationRisk = herfindahl(invested)
	if m.ConcentrationRisk > 0 {
		m.EffectiveAssets = 1 / m.ConcentrationRisk
	}
	m.DiversificationRatio = c.diversificationRatio(series, invested, m.StdDev)
	m.LiquidityRisk = c.liquidityRisk(snap, in.Liquidity)

	return m
}

// alignSeries produces one return slice per position, all of equal length.
// A position with a missing or misaligned series is treated as
// cash-equivalent (zero variance) for the tick and reported in degraded.
func (c *Calculator) alignSeries(snap *models.PortfolioSnapshot, series map[string]models.ReturnSeries) ([][]float64, []string) {
	want := 0
	for _, pos := range snap.Positions {
		if s, ok := series[pos.Symbol]; ok && s.Len() > want {
			want = s.Len()
		}
	}

	out := make([][]float64, len(snap.Positions))
	var degraded []string
	for i, pos := range snap.Positions {
		s, ok := series[pos.Symbol]
		switch {
		case !ok:
			c.warnSymbol("missing return series, treating as cash-equivalent", pos.Symbol)
			degraded = append(degraded, pos.Symbol)
			out[i] = make([]float64, want)
		case s.Len() != want:
			c.warnSymbol("misaligned return series, treating as cash-equivalent", pos.Symbol)
			degraded = append(degraded, pos.Symbol)
			out[i] = make([]float64, want)
		default:
			out[i] = s.Returns
		}
	}
	return out, degraded
}

func (c *Calculator) computeVaR(portfolio []float64) models.VaRBreakdown {
	v := models.VaRBreakdown{ConfidenceLevel: c.cfg.ConfidenceLevel}
	if len(portfolio) == 0 {
		return v
	}

	sorted := append([]float64(nil), portfolio...)
	sort.Float64s(sorted)
	tail := 1 - c.cfg.ConfidenceLevel

	v.Historical = math.Abs(numkit.Percentile(sorted, tail))

	mean := numkit.Mean(portfolio)
	stdev := numkit.StdDev(portfolio)
	v.Parametric = math.Abs(mean - zScore(c.cfg.ConfidenceLevel)*stdev)

	v.MonteCarlo = c.monteCarloVaR(portfolio, tail)

	// No single method is robust to every return distribution; blending
	// keeps model risk bounded.
	v.Overall = 0.4*v.Historical + 0.3*v.Parametric + 0.3*v.MonteCarlo
	return v
}

// monteCarloVaR bootstraps the historical portfolio returns: draws single
// periods with replacement and reads the tail percentile of the simulated
// outcome distribution.
func (c *Calculator) monteCarloVaR(portfolio []float64, tail float64) float64 {
	n := len(portfolio)
	if n == 0 {
		return 0
	}
	c.mu.Lock()
	sims := make([]float64, c.cfg.MonteCarloDraws)
	for i := range sims {
		sims[i] = portfolio[c.rng.Intn(n)]
	}
	c.mu.Unlock()
	sort.Float64s(sims)
	return math.Abs(numkit.Percentile(sims, tail))
}

func (c *Calculator) computeCVaR(portfolio []float64) float64 {
	if len(portfolio) == 0 {
		return 0
	}
	sorted := append([]float64(nil), portfolio...)
	sort.Float64s(sorted)
	cut := int(math.Floor((1 - c.cfg.ConfidenceLevel) * float64(len(sorted))))
	if cut <= 0 {
		return 0
	}
	return math.Abs(numkit.Mean(sorted[:cut]))
}

// portfolioVariance applies w·Σ·w through the correlation matrix and each
// asset's own stdev rather than a raw covariance matrix, matching how the
// correlation refresh cycle feeds alerting.
func (c *Calculator) portfolioVariance(series [][]float64, weights []float64) float64 {
	corr, err := numkit.CorrelationMatrix(series)
	if err != nil || corr == nil {
		return 0
	}
	stdevs := make([]float64, len(series))
	for i, s := range series {
		stdevs[i] = numkit.StdDev(s)
	}
	variance := 0.0
	for i := range weights {
		for j := range weights {
			variance += weights[i] * weights[j] * corr[i][j] * stdevs[i] * stdevs[j]
		}
	}
	if variance < 0 {
		// Clamped correlations can push a near-zero form slightly negative.
		variance = 0
	}
	return variance
}

func (c *Calculator) sharpe(portfolio []float64) float64 {
	if len(portfolio) == 0 {
		return 0
	}
	annReturn := numkit.AnnualizeReturn(numkit.Mean(portfolio), numkit.TradingDaysPerYear)
	annStdev := numkit.AnnualizeVolatility(numkit.StdDev(portfolio), numkit.TradingDaysPerYear)
	if annStdev == 0 {
		return 0
	}
	return (annReturn - c.cfg.RiskFreeRate) / annStdev
}

func (c *Calculator) sortino(portfolio []float64, target float64) float64 {
	if len(portfolio) == 0 {
		return 0
	}
	downside := 0.0
	for _, r := range portfolio {
		if r < target {
			d := r - target
			downside += d * d
		}
	}
	downsideDev := math.Sqrt(downside / float64(len(portfolio)))
	if downsideDev == 0 {
		return 0
	}
	annReturn := numkit.AnnualizeReturn(numkit.Mean(portfolio), numkit.TradingDaysPerYear)
	annDownside := numkit.AnnualizeVolatility(downsideDev, numkit.TradingDaysPerYear)
	return (annReturn - target*numkit.TradingDaysPerYear) / annDownside
}

// drawdowns appends the latest equity point to the bounded trailing buffer
// and returns (max peak-to-trough, drawdown from the most recent peak).
func (c *Calculator) drawdowns(equity float64) (maxDD, currentDD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if equity > 0 {
		c.equity = append(c.equity, equity)
		if len(c.equity) > equityBufferCap {
			c.equity = c.equity[len(c.equity)-equityBufferCap:]
		}
	}
	if len(c.equity) < 2 {
		return 0, 0
	}
	peak := c.equity[0]
	for _, v := range c.equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	last := c.equity[len(c.equity)-1]
	if peak > 0 {
		currentDD = (peak - last) / peak
	}
	return maxDD, currentDD
}

func (c *Calculator) betaAlpha(portfolio, market []float64) (beta, alpha float64) {
	if len(portfolio) == 0 || len(market) != len(portfolio) {
		return 0, 0
	}
	marketVar := numkit.Variance(market)
	if marketVar == 0 {
		return 0, 0
	}
	cov, err := numkit.Covariance(portfolio, market)
	if err != nil {
		return 0, 0
	}
	beta = cov / marketVar
	annPortfolio := numkit.AnnualizeReturn(numkit.Mean(portfolio), numkit.TradingDaysPerYear)
	annMarket := numkit.AnnualizeReturn(numkit.Mean(market), numkit.TradingDaysPerYear)
	alpha = annPortfolio - beta*annMarket
	return beta, alpha
}

// diversificationRatio is the weighted average of individual volatilities
// over portfolio volatility; above 1 means the mix diversifies.
func (c *Calculator) diversificationRatio(series [][]float64, invested []float64, portfolioStdev float64) float64 {
	if portfolioStdev == 0 || len(series) != len(invested) {
		return 0
	}
	weighted := 0.0
	for i, s := range series {
		weighted += invested[i] * numkit.StdDev(s)
	}
	return weighted / portfolioStdev
}

// liquidityRisk scores 0 (deep, tight markets) to 1 (position dwarfs
// available depth). Symbols without provider liquidity data score a neutral
// 0.5.
func (c *Calculator) liquidityRisk(snap *models.PortfolioSnapshot, liq map[string]models.LiquidityInfo) float64 {
	invested := investedWeights(snap)
	score := 0.0
	for i, pos := range snap.Positions {
		s := 0.5
		if info, ok := liq[pos.Symbol]; ok && info.DepthUSD > 0 {
			depthPart := numkit.Clamp(pos.Value/info.DepthUSD, 0, 1)
			spreadPart := numkit.Clamp(info.SpreadBps/100, 0, 1)
			s = 0.7*depthPart + 0.3*spreadPart
		}
		score += invested[i] * s
	}
	return numkit.Clamp(score, 0, 1)
}

// investedWeights renormalizes position weights over invested value only, so
// cash does not dilute concentration and liquidity scores.
func investedWeights(snap *models.PortfolioSnapshot) []float64 {
	total := 0.0
	for _, p := range snap.Positions {
		total += p.Value
	}
	w := make([]float64, len(snap.Positions))
	if total <= 0 {
		return w
	}
	for i, p := range snap.Positions {
		w[i] = p.Value / total
	}
	return w
}

func herfindahl(weights []float64) float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w * w
	}
	return sum
}

// zScore maps the supported confidence levels to their normal quantile.
func zScore(confidence float64) float64 {
	switch {
	case confidence >= 0.99:
		return 2.326
	case confidence >= 0.95:
		return 1.645
	default:
		return 1.28
	}
}

func (c *Calculator) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, applogger.Error(err))
	}
}

func (c *Calculator) warnSymbol(msg, symbol string) {
	if c.logger != nil {
		c.logger.Warn(msg, applogger.String("symbol", symbol))
	}
}

package risk

import (
	"math"
	"math/rand"
	"sort"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/numkit"
)

func testSnapshot(weights map[string]float64, total float64) *models.PortfolioSnapshot {
	snap := &models.PortfolioSnapshot{AsOf: time.Now()}
	for sym, w := range weights {
		value := w * total
		snap.Positions = append(snap.Positions, models.Position{
			Symbol:       sym,
			Quantity:     1,
			AvgPrice:     value,
			CurrentPrice: value,
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		return snap.Positions[i].Symbol < snap.Positions[j].Symbol
	})
	snap.Finalize()
	return snap
}

func syntheticReturns(rng *rand.Rand, n int, mean, stdev float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = mean + stdev*rng.NormFloat64()
	}
	return out
}

func TestComputeEmptyPortfolio(t *testing.T) {
	c := NewCalculator(CalculatorConfig{Seed: 1}, nil)
	m := c.Compute(Inputs{Snapshot: &models.PortfolioSnapshot{}})
	if m.VaR.Overall != 0 || m.StdDev != 0 {
		t.Fatalf("expected zero metrics for empty portfolio, got VaR=%v stdev=%v", m.VaR.Overall, m.StdDev)
	}
	if m.LastUpdate.IsZero() {
		t.Fatal("expected LastUpdate to be set")
	}
}

func TestHistoricalVaRMatchesPercentile(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	btc := syntheticReturns(rng, 252, 0.001, 0.03)
	eth := syntheticReturns(rng, 252, 0.001, 0.04)

	snap := testSnapshot(map[string]float64{"BTC": 0.7, "ETH": 0.3}, 100000)
	series := map[string]models.ReturnSeries{
		"BTC": {Symbol: "BTC", Returns: btc},
		"ETH": {Symbol: "ETH", Returns: eth},
	}

	c := NewCalculator(CalculatorConfig{ConfidenceLevel: 0.95, Seed: 7}, nil)
	m := c.Compute(Inputs{Snapshot: snap, Series: series})

	portfolio, err := numkit.PortfolioReturns([][]float64{btc, eth}, snap.Weights())
	if err != nil {
		t.Fatalf("portfolio returns: %v", err)
	}
	sorted := append([]float64(nil), portfolio...)
	sort.Float64s(sorted)
	want := math.Abs(numkit.Percentile(sorted, 0.05))

	if math.Abs(m.VaR.Historical-want) > 1e-12 {
		t.Fatalf("historical VaR = %v, want %v", m.VaR.Historical, want)
	}

	lo := math.Min(m.VaR.Historical, math.Min(m.VaR.Parametric, m.VaR.MonteCarlo))
	hi := math.Max(m.VaR.Historical, math.Max(m.VaR.Parametric, m.VaR.MonteCarlo))
	if m.VaR.Overall < lo || m.VaR.Overall > hi {
		t.Fatalf("blended VaR %v outside [%v, %v]", m.VaR.Overall, lo, hi)
	}
}

func TestVaRMonotoneInConfidence(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	btc := syntheticReturns(rng, 252, 0.0005, 0.025)
	snap := testSnapshot(map[string]float64{"BTC": 1.0}, 50000)
	series := map[string]models.ReturnSeries{"BTC": {Symbol: "BTC", Returns: btc}}

	at95 := NewCalculator(CalculatorConfig{ConfidenceLevel: 0.95, Seed: 3}, nil).
		Compute(Inputs{Snapshot: snap, Series: series})
	at99 := NewCalculator(CalculatorConfig{ConfidenceLevel: 0.99, Seed: 3}, nil).
		Compute(Inputs{Snapshot: snap, Series: series})

	if at99.VaR.Overall <= at95.VaR.Overall {
		t.Fatalf("VaR@99 (%v) should exceed VaR@95 (%v)", at99.VaR.Overall, at95.VaR.Overall)
	}
}

func TestCVaRAtLeastHistoricalVaR(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	btc := syntheticReturns(rng, 500, 0, 0.02)
	snap := testSnapshot(map[string]float64{"BTC": 1.0}, 10000)
	series := map[string]models.ReturnSeries{"BTC": {Symbol: "BTC", Returns: btc}}

	m := NewCalculator(CalculatorConfig{ConfidenceLevel: 0.95, Seed: 11}, nil).
		Compute(Inputs{Snapshot: snap, Series: series})

	if m.CVaR < m.VaR.Historical {
		t.Fatalf("CVaR (%v) must be at least historical VaR (%v)", m.CVaR, m.VaR.Historical)
	}
}

func TestMissingSeriesDegradesToCash(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	btc := syntheticReturns(rng, 252, 0.001, 0.03)
	snap := testSnapshot(map[string]float64{"BTC": 0.5, "XYZ": 0.5}, 20000)
	series := map[string]models.ReturnSeries{"BTC": {Symbol: "BTC", Returns: btc}}

	m := NewCalculator(CalculatorConfig{Seed: 2}, nil).Compute(Inputs{Snapshot: snap, Series: series})

	if len(m.Degraded) != 1 || m.Degraded[0] != "XYZ" {
		t.Fatalf("expected XYZ degraded, got %v", m.Degraded)
	}
	// The cash-equivalent leg halves the portfolio stdev relative to BTC alone.
	solo := NewCalculator(CalculatorConfig{Seed: 2}, nil).Compute(Inputs{
		Snapshot: testSnapshot(map[string]float64{"BTC": 1.0}, 20000),
		Series:   series,
	})
	if m.StdDev >= solo.StdDev {
		t.Fatalf("degraded leg should lower stdev: mixed=%v solo=%v", m.StdDev, solo.StdDev)
	}
}

func TestDrawdownTracking(t *testing.T) {
	c := NewCalculator(CalculatorConfig{Seed: 1}, nil)
	rng := rand.New(rand.NewSource(21))
	btc := syntheticReturns(rng, 64, 0, 0.01)
	series := map[string]models.ReturnSeries{"BTC": {Symbol: "BTC", Returns: btc}}

	equities := []float64{100, 120, 90, 110}
	var last *models.RiskMetrics
	for _, eq := range equities {
		snap := testSnapshot(map[string]float64{"BTC": 1.0}, eq)
		last = c.Compute(Inputs{Snapshot: snap, Series: series})
	}
	if math.Abs(last.MaxDrawdown-0.25) > 1e-9 {
		t.Fatalf("max drawdown = %v, want 0.25", last.MaxDrawdown)
	}
	wantCurrent := (120.0 - 110.0) / 120.0
	if math.Abs(last.CurrentDrawdown-wantCurrent) > 1e-9 {
		t.Fatalf("current drawdown = %v, want %v", last.CurrentDrawdown, wantCurrent)
	}
}

func TestBetaOnProxyItself(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	mkt := syntheticReturns(rng, 252, 0.0004, 0.015)
	snap := testSnapshot(map[string]float64{"BTC": 1.0}, 10000)
	series := map[string]models.ReturnSeries{"BTC": {Symbol: "BTC", Returns: mkt}}

	m := NewCalculator(CalculatorConfig{Seed: 4}, nil).Compute(Inputs{
		Snapshot: snap,
		Series:   series,
		Market:   models.ReturnSeries{Symbol: "MKT", Returns: mkt},
	})
	if math.Abs(m.Beta-1.0) > 1e-9 {
		t.Fatalf("beta vs itself = %v, want 1", m.Beta)
	}
	if math.Abs(m.Alpha) > 1e-9 {
		t.Fatalf("alpha vs itself = %v, want 0", m.Alpha)
	}
}

func TestConcentrationAndEffectiveAssets(t *testing.T) {
	snap := testSnapshot(map[string]float64{"BTC": 0.25, "ETH": 0.25, "ADA": 0.25, "DOT": 0.25}, 40000)
	rng := rand.New(rand.NewSource(17))
	series := map[string]models.ReturnSeries{}
	for _, sym := range []string{"BTC", "ETH", "ADA", "DOT"} {
		series[sym] = models.ReturnSeries{Symbol: sym, Returns: syntheticReturns(rng, 100, 0, 0.02)}
	}
	m := NewCalculator(CalculatorConfig{Seed: 6}, nil).Compute(Inputs{Snapshot: snap, Series: series})

	if math.Abs(m.ConcentrationRisk-0.25) > 1e-9 {
		t.Fatalf("herfindahl of equal quarters = %v, want 0.25", m.ConcentrationRisk)
	}
	if math.Abs(m.EffectiveAssets-4.0) > 1e-9 {
		t.Fatalf("effective assets = %v, want 4", m.EffectiveAssets)
	}
}

func TestLiquidityRiskBounds(t *testing.T) {
	snap := testSnapshot(map[string]float64{"BTC": 0.6, "ETH": 0.4}, 100000)
	liq := map[string]models.LiquidityInfo{
		"BTC": {Symbol: "BTC", DepthUSD: 5_000_000, SpreadBps: 2},
		// ETH has no liquidity data and scores neutral.
	}
	rng := rand.New(rand.NewSource(19))
	series := map[string]models.ReturnSeries{
		"BTC": {Symbol: "BTC", Returns: syntheticReturns(rng, 100, 0, 0.02)},
		"ETH": {Symbol: "ETH", Returns: syntheticReturns(rng, 100, 0, 0.02)},
	}
	m := NewCalculator(CalculatorConfig{Seed: 9}, nil).Compute(Inputs{
		Snapshot: snap, Series: series, Liquidity: liq,
	})
	if m.LiquidityRisk < 0 || m.LiquidityRisk > 1 {
		t.Fatalf("liquidity risk %v out of [0,1]", m.LiquidityRisk)
	}
	// Deep BTC book plus neutral ETH keeps the score in the middle band.
	if m.LiquidityRisk >= 0.5 {
		t.Fatalf("liquidity risk %v should sit below neutral", m.LiquidityRisk)
	}
}

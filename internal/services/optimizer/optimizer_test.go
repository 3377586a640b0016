package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/numkit"
)

func snapshotOf(vals map[string]float64) *models.PortfolioSnapshot {
	snap := &models.PortfolioSnapshot{AsOf: time.Now()}
	for sym, v := range vals {
		snap.Positions = append(snap.Positions, models.Position{
			Symbol: sym, Quantity: 1, AvgPrice: v, CurrentPrice: v,
		})
	}
	snap.Finalize()
	return snap
}

func seriesOf(rng *rand.Rand, spec map[string]float64, n int) map[string]models.ReturnSeries {
	out := make(map[string]models.ReturnSeries, len(spec))
	for sym, stdev := range spec {
		r := make([]float64, n)
		for i := range r {
			r[i] = 0.0005 + stdev*rng.NormFloat64()
		}
		out[sym] = models.ReturnSeries{Symbol: sym, Returns: r}
	}
	return out
}

func TestOptimizeHonorsConstraints(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	snap := snapshotOf(map[string]float64{"BTC": 5000, "ETH": 2000, "ADA": 1500, "DOT": 1000, "LINK": 500})
	series := seriesOf(rng, map[string]float64{
		"BTC": 0.03, "ETH": 0.04, "ADA": 0.05, "DOT": 0.05, "LINK": 0.06,
	}, 252)

	cfg := Config{MaxPosition: 0.10, TotalExposure: 0.95, CashReserve: 0.05, MinPosition: 0.001}
	res, err := NewBlended(cfg, nil).Optimize(context.Background(), snap, series)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}

	sum := 0.0
	for sym, w := range res.RecommendedWeights {
		if w < 0 {
			t.Fatalf("%s weight %v negative", sym, w)
		}
		if w > 0.10+1e-9 {
			t.Fatalf("%s weight %v exceeds position cap", sym, w)
		}
		if w > 0 && w < 0.001-1e-12 {
			t.Fatalf("%s weight %v below minimum position", sym, w)
		}
		sum += w
	}
	if sum > 0.95+1e-9 {
		t.Fatalf("total exposure %v exceeds budget", sum)
	}
	if res.ExpectedRisk < 0 {
		t.Fatalf("expected risk %v negative", res.ExpectedRisk)
	}
}

func TestMinVariancePrefersQuietAsset(t *testing.T) {
	cfg := Config{MaxPosition: 1, TotalExposure: 1, CashReserve: 1e-9}
	b := NewBlended(cfg, nil)

	rng := rand.New(rand.NewSource(77))
	quiet := make([]float64, 252)
	noisy := make([]float64, 252)
	for i := range quiet {
		quiet[i] = 0.002 * rng.NormFloat64()
		noisy[i] = 0.08 * rng.NormFloat64()
	}
	snap := snapshotOf(map[string]float64{"QUIET": 5000, "NOISY": 5000})
	series := map[string]models.ReturnSeries{
		"QUIET": {Symbol: "QUIET", Returns: quiet},
		"NOISY": {Symbol: "NOISY", Returns: noisy},
	}

	symbols, returns := usableSeries(snap, series)
	mu := make([]float64, len(symbols))
	cov, err := numkit.CovarianceMatrix(returns)
	if err != nil {
		t.Fatalf("covariance: %v", err)
	}
	w := b.meanVariance(mu, denseFrom(cov))

	idxQuiet, idxNoisy := 0, 1
	if symbols[0] != "QUIET" {
		idxQuiet, idxNoisy = 1, 0
	}
	if w[idxQuiet] <= w[idxNoisy] {
		t.Fatalf("min variance should favor the quiet asset: %v vs %v", w[idxQuiet], w[idxNoisy])
	}
}

func TestRiskParityEqualVolsIsEqualWeight(t *testing.T) {
	cfg := Config{MaxPosition: 1, TotalExposure: 1, CashReserve: 1e-9}
	b := NewBlended(cfg, nil)

	// Identical independent volatilities give a symmetric program.
	cov := [][]float64{
		{0.0004, 0, 0},
		{0, 0.0004, 0},
		{0, 0, 0.0004},
	}
	w := b.riskParity(denseFrom(cov))
	for i := range w {
		if math.Abs(w[i]-1.0/3.0) > 1e-6 {
			t.Fatalf("weight %d = %v, want 1/3", i, w[i])
		}
	}
}

func TestRebalanceFlag(t *testing.T) {
	rng := rand.New(rand.NewSource(15))
	snap := snapshotOf(map[string]float64{"BTC": 9000, "ETH": 1000})
	series := seriesOf(rng, map[string]float64{"BTC": 0.03, "ETH": 0.03}, 252)

	cfg := Config{RebalanceThreshold: 0.05}
	res, err := NewBlended(cfg, nil).Optimize(context.Background(), snap, series)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	// A 90% BTC book against a 10% position cap always deviates by more
	// than the tolerance.
	if !res.RebalanceNeeded {
		t.Fatal("expected a rebalance recommendation")
	}
}

func TestOptimizeNoUsableData(t *testing.T) {
	snap := snapshotOf(map[string]float64{"BTC": 1000})
	_, err := NewBlended(Config{}, nil).Optimize(context.Background(), snap, nil)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestOptimizeCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := snapshotOf(map[string]float64{"BTC": 1000})
	_, err := NewBlended(Config{}, nil).Optimize(ctx, snap, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

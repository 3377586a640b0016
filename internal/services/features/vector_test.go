package features

import (
	"math"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
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

func TestVectorWidthAndFiniteness(t *testing.T) {
	m := &models.RiskMetrics{
		VaR:           models.VaRBreakdown{Overall: 0.03, Historical: 0.028, Parametric: 0.031, MonteCarlo: 0.032},
		CVaR:          0.05,
		StdDev:        0.02,
		SharpeRatio:   math.Inf(1), // hostile input must not leak
		SortinoRatio:  math.NaN(),
		LastUpdate:    time.Now(),
	}
	snap := snapshotOf(map[string]float64{"BTC": 7000, "ETH": 3000})
	series := map[string]models.ReturnSeries{
		"BTC": {Symbol: "BTC", Returns: []float64{0.01, -0.02, 0.005}},
		"ETH": {Symbol: "ETH", Returns: []float64{0.02, -0.01, 0.0}},
	}

	v := Vector(m, snap, series)
	if len(v) != Dim {
		t.Fatalf("vector width = %d, want %d", len(v), Dim)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatalf("feature %d is not finite: %v", i, x)
		}
	}
}

func TestVectorNilInputs(t *testing.T) {
	v := Vector(nil, nil, nil)
	if len(v) != Dim {
		t.Fatalf("vector width = %d, want %d", len(v), Dim)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("feature %d = %v, want 0 for nil inputs", i, x)
		}
	}
}

func TestVectorWeightBlockDescending(t *testing.T) {
	m := &models.RiskMetrics{LastUpdate: time.Now()}
	snap := snapshotOf(map[string]float64{"BTC": 6000, "ETH": 3000, "ADA": 1000})
	v := Vector(m, snap, nil)

	weights := v[metricBlock : metricBlock+weightBlock]
	for i := 1; i < len(weights); i++ {
		if weights[i] > weights[i-1] {
			t.Fatalf("weight block not descending at %d: %v", i, weights)
		}
	}
	if math.Abs(weights[0]-0.6) > 1e-9 {
		t.Fatalf("largest weight = %v, want 0.6", weights[0])
	}
}

func TestLogReturns(t *testing.T) {
	r := LogReturns([]float64{100, 110, 99})
	if len(r) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(r))
	}
	if math.Abs(r[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("first log return = %v", r[0])
	}
	if got := LogReturns([]float64{100}); got != nil {
		t.Fatalf("single price should yield nil, got %v", got)
	}
	r = LogReturns([]float64{100, 0, 50})
	if r[0] != 0 {
		t.Fatalf("non-positive price should yield zero return, got %v", r[0])
	}
}

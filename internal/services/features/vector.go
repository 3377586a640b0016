// Package features builds the fixed-width input vector consumed by the
// risk classifier, plus the return-series helpers shared with ingestion.
package features

import (
	"math"
	"sort"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/numkit"
)

// Dim is the classifier input width. The vector layout is fixed; changing
// it invalidates any persisted network weights.
const Dim = 60

const (
	metricBlock   = 18
	weightBlock   = 10
	perAssetBlock = 20 // top 5 assets x 4 stats
	shapeBlock    = 12
)

// Vector flattens the current metrics, portfolio composition, and return
// history into the Dim-wide classifier input. Every entry is finite; NaN and
// Inf collapse to zero so a degraded tick cannot poison the network.
func Vector(m *models.RiskMetrics, snap *models.PortfolioSnapshot, series map[string]models.ReturnSeries) []float64 {
	out := make([]float64, Dim)
	if m == nil || snap == nil {
		return out
	}

	i := 0
	put := func(v float64) {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = v
		}
		i++
	}

	// Metric block.
	put(m.VaR.Overall)
	put(m.VaR.Historical)
	put(m.VaR.Parametric)
	put(m.VaR.MonteCarlo)
	put(m.CVaR)
	put(m.StdDev)
	put(m.AnnualizedVolatility)
	put(m.SharpeRatio)
	put(m.SortinoRatio)
	put(m.CalmarRatio)
	put(m.Beta)
	put(m.Alpha)
	put(m.MaxDrawdown)
	put(m.CurrentDrawdown)
	put(m.ConcentrationRisk)
	put(m.DiversificationRatio)
	put(m.LiquidityRisk)
	put(m.EffectiveAssets / 10)

	// Weight block: descending position weights, zero padded.
	weights := snap.Weights()
	sorted := append([]float64(nil), weights...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	for k := 0; k < weightBlock; k++ {
		if k < len(sorted) {
			put(sorted[k])
		} else {
			put(0)
		}
	}

	// Per-asset block: mean, stdev, min, max of the top 5 positions' returns.
	top := topPositions(snap, 5)
	for k := 0; k < 5; k++ {
		var r []float64
		if k < len(top) {
			r = series[top[k].Symbol].Returns
		}
		mean, stdev, lo, hi := seriesStats(r)
		put(mean)
		put(stdev)
		put(lo)
		put(hi)
	}

	// Shape block: the 10 most recent portfolio returns plus skew and excess
	// kurtosis proxies.
	portfolio := portfolioReturns(snap, series)
	n := len(portfolio)
	for k := 0; k < 10; k++ {
		idx := n - 10 + k
		if idx >= 0 {
			put(portfolio[idx])
		} else {
			put(0)
		}
	}
	skew, kurt := shape(portfolio)
	put(skew)
	put(kurt)

	return out
}

func topPositions(snap *models.PortfolioSnapshot, n int) []models.Position {
	sorted := append([]models.Position(nil), snap.Positions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func seriesStats(r []float64) (mean, stdev, lo, hi float64) {
	if len(r) == 0 {
		return 0, 0, 0, 0
	}
	mean = numkit.Mean(r)
	stdev = numkit.StdDev(r)
	lo, hi = r[0], r[0]
	for _, v := range r {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return mean, stdev, lo, hi
}

// portfolioReturns mirrors the calculator's alignment rule: a missing or
// misaligned series contributes zeros.
func portfolioReturns(snap *models.PortfolioSnapshot, series map[string]models.ReturnSeries) []float64 {
	want := 0
	for _, pos := range snap.Positions {
		if s, ok := series[pos.Symbol]; ok && s.Len() > want {
			want = s.Len()
		}
	}
	if want == 0 {
		return nil
	}
	weights := snap.Weights()
	out := make([]float64, want)
	for i, pos := range snap.Positions {
		s, ok := series[pos.Symbol]
		if !ok || s.Len() != want {
			continue
		}
		for t, r := range s.Returns {
			out[t] += weights[i] * r
		}
	}
	return out
}

func shape(r []float64) (skew, kurt float64) {
	n := len(r)
	if n < 3 {
		return 0, 0
	}
	mean := numkit.Mean(r)
	stdev := numkit.StdDev(r)
	if stdev == 0 {
		return 0, 0
	}
	var s3, s4 float64
	for _, v := range r {
		z := (v - mean) / stdev
		s3 += z * z * z
		s4 += z * z * z * z
	}
	skew = s3 / float64(n)
	kurt = s4/float64(n) - 3
	return skew, kurt
}

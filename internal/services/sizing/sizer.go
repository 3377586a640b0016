// Package sizing produces advisory per-symbol target weights by blending
// four sizing models.
package sizing

import (
	"math"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/numkit"
)

// Config carries the sizing tunables.
type Config struct {
	KellyWeight        float64 // default 0.3
	FixedWeight        float64 // default 0.2
	VolAdjustedWeight  float64 // default 0.3
	RiskParityWeight   float64 // default 0.2
	KellyCap           float64 // default 0.25
	FixedFraction      float64 // default 0.02 risk per position
	TargetVolatility   float64 // annualized, default 0.15
	MinPosition        float64 // default 0.001
	MaxPosition        float64 // default 0.10
	TotalExposure      float64 // default 0.95
	CashReserve        float64 // default 0.05
	RebalanceTolerance float64 // default 0.05
}

func (c *Config) applyDefaults() {
	if c.KellyWeight <= 0 {
		c.KellyWeight = 0.3
	}
	if c.FixedWeight <= 0 {
		c.FixedWeight = 0.2
	}
	if c.VolAdjustedWeight <= 0 {
		c.VolAdjustedWeight = 0.3
	}
	if c.RiskParityWeight <= 0 {
		c.RiskParityWeight = 0.2
	}
	if c.KellyCap <= 0 {
		c.KellyCap = 0.25
	}
	if c.FixedFraction <= 0 {
		c.FixedFraction = 0.02
	}
	if c.TargetVolatility <= 0 {
		c.TargetVolatility = 0.15
	}
	if c.MinPosition <= 0 {
		c.MinPosition = 0.001
	}
	if c.MaxPosition <= 0 {
		c.MaxPosition = 0.10
	}
	if c.TotalExposure <= 0 {
		c.TotalExposure = 0.95
	}
	if c.CashReserve <= 0 {
		c.CashReserve = 0.05
	}
	if c.RebalanceTolerance <= 0 {
		c.RebalanceTolerance = 0.05
	}
}

// Sizer computes per-symbol recommendations.
type Sizer struct {
	cfg Config
}

func New(cfg Config) *Sizer {
	cfg.applyDefaults()
	return &Sizer{cfg: cfg}
}

// Recommend sizes each position with a usable return series. Symbols without
// history are skipped rather than guessed at.
func (s *Sizer) Recommend(snap *models.PortfolioSnapshot, series map[string]models.ReturnSeries) []models.PositionRecommendation {
	if snap == nil || len(snap.Positions) == 0 {
		return nil
	}

	type candidate struct {
		pos    models.Position
		weight float64
		kelly  float64
		volAdj float64
		stdev  float64
	}
	var cands []candidate

	weights := snap.Weights()
	for i, pos := range snap.Positions {
		r, ok := series[pos.Symbol]
		if !ok || r.Len() < 2 {
			continue
		}
		mean := numkit.Mean(r.Returns)
		stdev := numkit.StdDev(r.Returns)
		if stdev == 0 {
			continue
		}

		kelly := numkit.Clamp(mean/(stdev*stdev), 0, s.cfg.KellyCap)
		annVol := numkit.AnnualizeVolatility(stdev, numkit.TradingDaysPerYear)
		volAdj := numkit.Clamp(s.cfg.TargetVolatility/annVol*s.cfg.FixedFraction*5, 0, s.cfg.MaxPosition)

		cands = append(cands, candidate{
			pos: pos, weight: weights[i], kelly: kelly, volAdj: volAdj, stdev: stdev,
		})
	}
	if len(cands) == 0 {
		return nil
	}

	// Risk parity leg over the surviving candidates.
	invSum := 0.0
	for _, c := range cands {
		invSum += 1 / c.stdev
	}

	now := time.Now()
	targets := make([]float64, len(cands))
	total := 0.0
	for i, c := range cands {
		riskParity := (1 / c.stdev) / invSum * s.cfg.TotalExposure
		target := s.cfg.KellyWeight*c.kelly +
			s.cfg.FixedWeight*s.cfg.FixedFraction*5 +
			s.cfg.VolAdjustedWeight*c.volAdj +
			s.cfg.RiskParityWeight*riskParity
		target = numkit.Clamp(target, 0, s.cfg.MaxPosition)
		if target < s.cfg.MinPosition {
			target = 0
		}
		targets[i] = target
		total += target
	}
	limit := math.Min(s.cfg.TotalExposure, 1-s.cfg.CashReserve)
	if total > limit && total > 0 {
		scale := limit / total
		for i := range targets {
			targets[i] *= scale
		}
	}

	out := make([]models.PositionRecommendation, 0, len(cands))
	for i, c := range cands {
		out = append(out, models.PositionRecommendation{
			Symbol:        c.pos.Symbol,
			TargetWeight:  targets[i],
			CurrentWeight: c.weight,
			KellyFraction: c.kelly,
			VolAdjusted:   c.volAdj,
			Reason:        reason(targets[i], c.weight, s.cfg.RebalanceTolerance),
			Timestamp:     now,
		})
	}
	return out
}

func reason(target, current, tolerance float64) string {
	switch {
	case target > current+tolerance:
		return "increase"
	case target < current-tolerance:
		return "reduce"
	default:
		return "hold"
	}
}

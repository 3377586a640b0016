package models

import "time"

// Position is a single holding inside a snapshot. Derived fields are filled
// once by Finalize and never mutated afterwards; a position is owned by the
// snapshot that contains it.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"value"`
	PnL          float64 `json:"pnl"`
	Weight       float64 `json:"weight"`
}

// PortfolioSnapshot is an immutable view of the held portfolio at AsOf.
// Every tick produces a fresh snapshot; nothing mutates one in place.
type PortfolioSnapshot struct {
	Positions  []Position `json:"positions"`
	TotalValue float64    `json:"total_value"`
	Cash       float64    `json:"cash"`
	AsOf       time.Time  `json:"as_of"`
	// Simulated marks a synthetic fallback snapshot produced when the data
	// provider is unavailable. Consumers must not act on simulated data.
	Simulated bool `json:"simulated,omitempty"`
}

// Finalize computes derived position fields and the total value invariant
// (TotalValue = Cash + sum of position values).
func (p *PortfolioSnapshot) Finalize() {
	total := 0.0
	for i := range p.Positions {
		pos := &p.Positions[i]
		pos.Value = pos.Quantity * pos.CurrentPrice
		pos.PnL = (pos.CurrentPrice - pos.AvgPrice) * pos.Quantity
		total += pos.Value
	}
	p.TotalValue = p.Cash + total
	if p.TotalValue <= 0 {
		return
	}
	for i := range p.Positions {
		p.Positions[i].Weight = p.Positions[i].Value / p.TotalValue
	}
}

// Weights returns position weights ordered as Positions.
func (p *PortfolioSnapshot) Weights() []float64 {
	w := make([]float64, len(p.Positions))
	for i, pos := range p.Positions {
		w[i] = pos.Weight
	}
	return w
}

// Symbols returns position symbols ordered as Positions.
func (p *PortfolioSnapshot) Symbols() []string {
	s := make([]string, len(p.Positions))
	for i, pos := range p.Positions {
		s[i] = pos.Symbol
	}
	return s
}

// ReturnSeries is an ordered sequence of periodic (daily) returns for one
// symbol over a fixed lookback window. Read-only to the engine.
type ReturnSeries struct {
	Symbol  string    `json:"symbol"`
	Returns []float64 `json:"returns"`
	AsOf    time.Time `json:"as_of"`
}

// Len returns the number of observations.
func (r ReturnSeries) Len() int { return len(r.Returns) }

// LiquidityInfo carries provider-supplied market depth and spread used by
// the liquidity risk heuristic. DepthUSD is the notional available within
// one spread of mid.
type LiquidityInfo struct {
	Symbol       string  `json:"symbol"`
	DepthUSD     float64 `json:"depth_usd"`
	SpreadBps    float64 `json:"spread_bps"`
	DailyVolume  float64 `json:"daily_volume"`
	LastObserved int64   `json:"last_observed"`
}

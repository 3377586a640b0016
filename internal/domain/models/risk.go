package models

import "time"

// VaRBreakdown holds the three estimation methods and their weighted blend.
// Values are positive loss fractions of portfolio value.
type VaRBreakdown struct {
	Overall         float64 `json:"overall"`
	Historical      float64 `json:"historical"`
	Parametric      float64 `json:"parametric"`
	MonteCarlo      float64 `json:"monte_carlo"`
	ConfidenceLevel float64 `json:"confidence_level"`
}

// RiskMetrics is the value object recomputed every risk tick. A tick either
// produces a complete RiskMetrics or none at all; consumers read the latest
// published one and never observe a partially-written object.
type RiskMetrics struct {
	VaR  VaRBreakdown `json:"var"`
	CVaR float64      `json:"cvar"`

	Variance             float64 `json:"variance"`
	StdDev               float64 `json:"std_dev"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`

	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`
	Beta         float64 `json:"beta"`
	Alpha        float64 `json:"alpha"`

	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`

	ConcentrationRisk    float64 `json:"concentration_risk"`
	DiversificationRatio float64 `json:"diversification_ratio"`
	EffectiveAssets      float64 `json:"effective_assets"`
	LiquidityRisk        float64 `json:"liquidity_risk"`

	// Degraded lists symbols treated as cash-equivalent this tick because
	// their return series was missing or misaligned.
	Degraded []string `json:"degraded,omitempty"`

	// Stale is set when a tick failed and these are last-known-good values.
	Stale      bool      `json:"stale,omitempty"`
	LastUpdate time.Time `json:"last_update"`
}

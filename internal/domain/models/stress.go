package models

import "time"

// StressScenario is declarative shock configuration. The scenario set is
// data, not code: new scenarios are added via config without logic changes.
type StressScenario struct {
	ID                   string   `json:"id" yaml:"id"`
	Name                 string   `json:"name" yaml:"name"`
	Description          string   `json:"description,omitempty" yaml:"description,omitempty"`
	MarketShock          float64  `json:"market_shock" yaml:"market_shock"`
	VolatilityMultiplier float64  `json:"volatility_multiplier" yaml:"volatility_multiplier"`
	CorrelationShock     float64  `json:"correlation_shock,omitempty" yaml:"correlation_shock,omitempty"`
	LiquidityShock       float64  `json:"liquidity_shock,omitempty" yaml:"liquidity_shock,omitempty"`
	DurationDays         int      `json:"duration_days" yaml:"duration_days"`
	Probability          float64  `json:"probability" yaml:"probability"`
	Severity             Severity `json:"severity" yaml:"severity"`
}

// StressResult is the outcome of applying one scenario to a snapshot.
type StressResult struct {
	ScenarioID        string   `json:"scenario_id"`
	ScenarioName      string   `json:"scenario_name"`
	Severity          Severity `json:"severity"`
	Probability       float64  `json:"probability"`
	TotalLoss         float64  `json:"total_loss"`
	MaxLossFraction   float64  `json:"max_loss_fraction"`
	LiquidityImpact   float64  `json:"liquidity_impact"`
	RecoveryDays      int      `json:"recovery_days"`
	PortfolioSurvival bool     `json:"portfolio_survival"`
	Passed            bool     `json:"passed"`
}

// StressReport aggregates a full scenario run. Any failed CRITICAL scenario
// forces Passed=false regardless of the overall score.
type StressReport struct {
	OverallScore     float64        `json:"overall_score"`
	Results          []StressResult `json:"results"`
	CriticalFailures int            `json:"critical_failures"`
	Passed           bool           `json:"passed"`
	Recommendation   string         `json:"recommendation,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

package models

import "time"

// OptimizationResult is produced on each optimization cycle and superseded
// by the next. Recommended weights respect the position and exposure
// constraints configured on the optimizer.
type OptimizationResult struct {
	RecommendedWeights map[string]float64 `json:"recommended_weights"`
	CurrentWeights     map[string]float64 `json:"current_weights"`
	MethodWeights      map[string]float64 `json:"method_weights"`
	ExpectedReturn     float64            `json:"expected_return"`
	ExpectedRisk       float64            `json:"expected_risk"`
	SharpeRatio        float64            `json:"sharpe_ratio"`
	RebalanceNeeded    bool               `json:"rebalance_needed"`
	Timestamp          time.Time          `json:"timestamp"`
}

// PositionRecommendation is the dynamic position sizing output for a single
// symbol, advisory only.
type PositionRecommendation struct {
	Symbol        string    `json:"symbol"`
	TargetWeight  float64   `json:"target_weight"`
	CurrentWeight float64   `json:"current_weight"`
	KellyFraction float64   `json:"kelly_fraction"`
	VolAdjusted   float64   `json:"vol_adjusted"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

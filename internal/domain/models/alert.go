package models

import "time"

// Severity orders alert and scenario severities.
type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AlertType identifies which threshold was breached.
type AlertType string

const (
	AlertConcentrationRisk  AlertType = "CONCENTRATION_RISK"
	AlertDrawdown           AlertType = "DRAWDOWN_ALERT"
	AlertVaRExceeded        AlertType = "VAR_EXCEEDED"
	AlertCorrelationSpike   AlertType = "CORRELATION_SPIKE"
	AlertLiquidityRisk      AlertType = "LIQUIDITY_RISK"
	AlertVolatilitySpike    AlertType = "VOLATILITY_SPIKE"
	AlertStressTestFailure  AlertType = "STRESS_TEST_FAILURE"
	AlertPositionSizeBreach AlertType = "POSITION_SIZE_BREACH"
)

// Alert is a structured threshold breach. Alerts are appended to a bounded
// history and to an active set governed by the per-severity escalation
// cooldown.
type Alert struct {
	ID            string    `json:"id"`
	Type          AlertType `json:"type"`
	Severity      Severity  `json:"severity"`
	Threshold     float64   `json:"threshold"`
	ObservedValue float64   `json:"observed_value"`
	Message       string    `json:"message,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

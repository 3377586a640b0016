package models

// Requests for the read-only risk API. Defined in domain for consistency and reuse.

type AlertsRequest struct {
	Severity string `query:"severity" json:"severity" default:"" validate:"omitempty,oneof=MEDIUM HIGH CRITICAL"`
	Limit    int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	Active   bool   `query:"active" json:"active" default:"false"`
}

type StressRequest struct {
	ScenarioID string `query:"scenario" json:"scenario" default:""`
}

// EngineStatus is the health payload: component readiness plus headline
// numbers from the latest complete tick.
type EngineStatus struct {
	Status         string    `json:"status"`
	BreakerState   string    `json:"breaker_state"`
	LastTick       string    `json:"last_tick"`
	Stale          bool      `json:"stale"`
	EmergencyStop  bool      `json:"emergency_stop"`
	TicksCompleted uint64    `json:"ticks_completed"`
	TicksAbandoned uint64    `json:"ticks_abandoned"`
	RiskLevel      RiskLevel `json:"risk_level,omitempty"`
	OverallVaR     float64   `json:"overall_var"`
}

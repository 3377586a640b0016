package models

import (
	"encoding/json"
	"time"
)

// MessageType tags every envelope published on the bus.
type MessageType string

const (
	MsgRiskAlert              MessageType = "RISK_ALERT"
	MsgPortfolioUpdate        MessageType = "PORTFOLIO_UPDATE"
	MsgOptimizationResult     MessageType = "OPTIMIZATION_RESULT"
	MsgStressTestResult       MessageType = "STRESS_TEST_RESULT"
	MsgPositionRecommendation MessageType = "POSITION_RECOMMENDATION"
	MsgEmergencyStop          MessageType = "EMERGENCY_STOP"
)

// Envelope wraps a published payload. The engine never assumes subscriber
// acknowledgement; delivery retries happen below this layer.
type Envelope struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload and wraps it. Marshal failure is returned to
// the caller; a corrupt payload is never published.
func NewEnvelope(id string, t MessageType, source string, at time.Time, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{ID: id, Type: t, Source: source, Timestamp: at, Payload: raw}, nil
}

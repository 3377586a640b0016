package models

import "time"

// RiskLevel is the five-way qualitative classification emitted by the
// classifier, ordered from least to most severe.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "VERY_LOW"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevels lists all levels in classifier output order.
var RiskLevels = []RiskLevel{RiskVeryLow, RiskLow, RiskMedium, RiskHigh, RiskCritical}

// Assessment is the classifier's advisory scoring of overall portfolio risk.
// Confidence is uncalibrated unless real pretrained weights were loaded.
type Assessment struct {
	Level         RiskLevel             `json:"level"`
	Confidence    float64               `json:"confidence"`
	Probabilities map[RiskLevel]float64 `json:"probabilities"`
	Calibrated    bool                  `json:"calibrated"`
	Timestamp     time.Time             `json:"timestamp"`
}

package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestFinalizeDerivedFields(t *testing.T) {
	snap := &PortfolioSnapshot{
		Cash: 10000,
		Positions: []Position{
			{Symbol: "BTC", Quantity: 2, AvgPrice: 40000, CurrentPrice: 45000},
			{Symbol: "ETH", Quantity: 10, AvgPrice: 3000, CurrentPrice: 2800},
		},
	}
	snap.Finalize()

	if snap.TotalValue != 10000+90000+28000 {
		t.Fatalf("total value = %v", snap.TotalValue)
	}
	if snap.Positions[0].PnL != 10000 {
		t.Fatalf("btc pnl = %v", snap.Positions[0].PnL)
	}
	if snap.Positions[1].PnL != -2000 {
		t.Fatalf("eth pnl = %v", snap.Positions[1].PnL)
	}
	sum := snap.Cash / snap.TotalValue
	for _, p := range snap.Positions {
		sum += p.Weight
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("weights plus cash = %v, want 1", sum)
	}
}

func TestFinalizeEmptyPortfolio(t *testing.T) {
	snap := &PortfolioSnapshot{}
	snap.Finalize()
	if snap.TotalValue != 0 {
		t.Fatalf("empty portfolio total = %v", snap.TotalValue)
	}
}

func TestEnvelopeCarriesPayloadIntact(t *testing.T) {
	metrics := RiskMetrics{
		VaR:                  VaRBreakdown{Overall: 0.0423, Historical: 0.041, Parametric: 0.044, MonteCarlo: 0.042, ConfidenceLevel: 0.95},
		CVaR:                 0.061,
		AnnualizedVolatility: 0.31,
		SharpeRatio:          1.21,
		MaxDrawdown:          0.18,
		CurrentDrawdown:      0.02,
		Degraded:             []string{"DOT"},
		LastUpdate:           time.Unix(1700000000, 0).UTC(),
	}
	env, err := NewEnvelope("id-1", MsgPortfolioUpdate, "riskpulse", time.Unix(1700000000, 0).UTC(), metrics)
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	wire, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	var back Envelope
	if err := json.Unmarshal(wire, &back); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if back.Type != MsgPortfolioUpdate || back.ID != "id-1" {
		t.Fatalf("header mangled: %+v", back)
	}

	var got RiskMetrics
	if err := json.Unmarshal(back.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if math.Abs(got.VaR.Overall-metrics.VaR.Overall) > 1e-9 ||
		math.Abs(got.CVaR-metrics.CVaR) > 1e-9 ||
		math.Abs(got.SharpeRatio-metrics.SharpeRatio) > 1e-9 {
		t.Fatalf("payload drifted: %+v", got)
	}
	if len(got.Degraded) != 1 || got.Degraded[0] != "DOT" {
		t.Fatalf("degraded list = %v", got.Degraded)
	}
	if !got.LastUpdate.Equal(metrics.LastUpdate) {
		t.Fatalf("last update = %v", got.LastUpdate)
	}
}

func TestNewEnvelopeRejectsUnmarshalablePayload(t *testing.T) {
	if _, err := NewEnvelope("id", MsgRiskAlert, "riskpulse", time.Now(), func() {}); err == nil {
		t.Fatal("expected marshal error for function payload")
	}
}

func TestDimensionMismatchDetection(t *testing.T) {
	var err error = &DimensionMismatchError{Want: 252, Got: 10, Name: "ADA"}
	if !IsDimensionMismatch(err) {
		t.Fatal("should detect dimension mismatch")
	}
	if IsDimensionMismatch(ErrInsufficientData) {
		t.Fatal("sentinel should not match")
	}
}

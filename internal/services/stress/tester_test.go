package stress

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
)

func snapshotWorth(total float64) *models.PortfolioSnapshot {
	snap := &models.PortfolioSnapshot{AsOf: time.Now()}
	snap.Positions = []models.Position{
		{Symbol: "BTC", Quantity: 1, AvgPrice: total * 0.6, CurrentPrice: total * 0.6},
		{Symbol: "ETH", Quantity: 1, AvgPrice: total * 0.4, CurrentPrice: total * 0.4},
	}
	snap.Finalize()
	return snap
}

func TestDefaultScenarioLibrary(t *testing.T) {
	tester := NewTester(nil, 1, nil)
	scenarios := tester.Scenarios()
	if len(scenarios) != 10 {
		t.Fatalf("expected 10 default scenarios, got %d", len(scenarios))
	}
	seen := map[string]bool{}
	for _, sc := range scenarios {
		if seen[sc.ID] {
			t.Fatalf("duplicate scenario id %s", sc.ID)
		}
		seen[sc.ID] = true
		if sc.MarketShock >= 0 {
			t.Fatalf("%s: market shock should be negative, got %v", sc.ID, sc.MarketShock)
		}
		if sc.Probability <= 0 || sc.Probability > 1 {
			t.Fatalf("%s: probability %v out of (0,1]", sc.ID, sc.Probability)
		}
	}
	if !seen["market_crash_2008"] || !seen["flash_crash"] || !seen["crypto_winter"] {
		t.Fatalf("canonical scenarios missing: %v", seen)
	}
}

func TestZeroShockScenarioIsDeterministic(t *testing.T) {
	// With no volatility multiplier the RNG never perturbs the loss, so the
	// result is exact.
	sc := models.StressScenario{
		ID: "drop", Name: "Pure Drop", MarketShock: -0.10,
		DurationDays: 10, Probability: 0.5, Severity: models.SeverityMedium,
	}
	snap := snapshotWorth(100000)

	r1, err := NewTester([]models.StressScenario{sc}, 1, nil).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r2, err := NewTester([]models.StressScenario{sc}, 999, nil).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := 100000 * 0.10
	if math.Abs(r1.Results[0].TotalLoss-want) > 1e-9 {
		t.Fatalf("total loss = %v, want %v", r1.Results[0].TotalLoss, want)
	}
	if r1.Results[0].TotalLoss != r2.Results[0].TotalLoss {
		t.Fatal("zero-shock result should not depend on the seed")
	}
	if !r1.Results[0].Passed {
		t.Fatal("a 10% loss is under the pass bound")
	}
	if r1.Results[0].RecoveryDays != 20 {
		t.Fatalf("recovery days = %d, want 20", r1.Results[0].RecoveryDays)
	}
}

func TestUnitVolatilityShockIsSeededAndBounded(t *testing.T) {
	// No market shock, multiplier 1: the loss is purely the stochastic
	// volatility drag, reproducible per seed and capped by the shock scale.
	sc := models.StressScenario{
		ID: "vol", Name: "Vol Only", MarketShock: 0, VolatilityMultiplier: 1,
		DurationDays: 5, Probability: 0.3, Severity: models.SeverityMedium,
	}
	snap := snapshotWorth(100000)

	r1, err := NewTester([]models.StressScenario{sc}, 42, nil).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r2, err := NewTester([]models.StressScenario{sc}, 42, nil).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	loss := r1.Results[0].TotalLoss
	if loss != r2.Results[0].TotalLoss {
		t.Fatalf("same seed, different losses: %v vs %v", loss, r2.Results[0].TotalLoss)
	}
	if loss < 0 || loss >= 100000*volShockScale {
		t.Fatalf("volatility drag %v outside [0, %v)", loss, 100000*volShockScale)
	}
}

func TestCriticalFailureForcesOverallFail(t *testing.T) {
	scenarios := []models.StressScenario{
		{ID: "mild", Name: "Mild", MarketShock: -0.01, Probability: 0.9, Severity: models.SeverityMedium},
		{ID: "wipeout", Name: "Wipeout", MarketShock: -0.45, Probability: 0.01, Severity: models.SeverityCritical},
	}
	report, err := NewTester(scenarios, 1, nil).Run(context.Background(), snapshotWorth(50000))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.CriticalFailures != 1 {
		t.Fatalf("critical failures = %d, want 1", report.CriticalFailures)
	}
	// The mild, likely scenario dominates the weighted score, but the
	// critical failure must still fail the report.
	if report.Passed {
		t.Fatal("critical failure must force overall fail")
	}
	if report.Recommendation == "" {
		t.Fatal("failed report needs a recommendation")
	}
}

func TestSurvivalFlag(t *testing.T) {
	sc := models.StressScenario{
		ID: "collapse", Name: "Collapse", MarketShock: -0.55,
		Probability: 0.05, Severity: models.SeverityCritical,
	}
	report, err := NewTester([]models.StressScenario{sc}, 1, nil).Run(context.Background(), snapshotWorth(10000))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Results[0].PortfolioSurvival {
		t.Fatal("a 55% loss fraction exceeds the survival bound")
	}
}

func TestRunRejectsEmptySnapshot(t *testing.T) {
	_, err := NewTester(nil, 1, nil).Run(context.Background(), &models.PortfolioSnapshot{})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestLoadScenariosYAML(t *testing.T) {
	doc := `scenarios:
  - id: custom_crash
    name: Custom Crash
    market_shock: -0.2
    volatility_multiplier: 2.0
    duration_days: 30
    probability: 0.1
    severity: HIGH
`
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	scenarios, err := LoadScenarios(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].ID != "custom_crash" {
		t.Fatalf("unexpected scenarios: %+v", scenarios)
	}
	if scenarios[0].Severity != models.SeverityHigh {
		t.Fatalf("severity = %v, want HIGH", scenarios[0].Severity)
	}

	if _, err := LoadScenarios(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("scenarios: []"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadScenarios(bad); err == nil {
		t.Fatal("empty scenario set should error")
	}
}

package alert

import (
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/pkg/sched"
)

func calmMetrics() *models.RiskMetrics {
	return &models.RiskMetrics{LastUpdate: time.Now()}
}

func TestFirstOccurrenceAlwaysEmits(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	metrics := calmMetrics()
	metrics.CurrentDrawdown = 0.20 // CRITICAL threshold is 0.15

	alerts := m.Evaluate(metrics, nil, 0, nil)
	if len(alerts) != 1 || alerts[0].Type != models.AlertDrawdown {
		t.Fatalf("expected one drawdown alert, got %v", alerts)
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Fatalf("severity = %v, want CRITICAL", alerts[0].Severity)
	}
	if alerts[0].ID == "" {
		t.Fatal("alert needs an ID")
	}
}

func TestCriticalCooldownCapsAtOnePerMinute(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	metrics := calmMetrics()
	metrics.CurrentDrawdown = 0.20

	if got := m.Evaluate(metrics, nil, 0, nil); len(got) != 1 {
		t.Fatalf("first evaluation should emit, got %d", len(got))
	}
	// Within the window the budget of 1/min is exhausted.
	clock.Advance(10 * time.Second)
	if got := m.Evaluate(metrics, nil, 0, nil); len(got) != 0 {
		t.Fatalf("expected suppression inside cooldown, got %d", len(got))
	}
	// After the window the alert may fire again.
	clock.Advance(61 * time.Second)
	if got := m.Evaluate(metrics, nil, 0, nil); len(got) != 1 {
		t.Fatalf("expected re-emission after cooldown, got %d", len(got))
	}
}

func TestMediumBudgetFivePerFiveMinutes(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	emitted := 0
	for i := 0; i < 8; i++ {
		alerts := m.Evaluate(calmMetrics(), nil, 0.9, nil) // correlation spike, MEDIUM
		emitted += len(alerts)
		clock.Advance(10 * time.Second)
	}
	if emitted != 5 {
		t.Fatalf("emitted %d MEDIUM alerts in window, want 5", emitted)
	}
}

func TestSeparateSeverityBudgets(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	metrics := calmMetrics()
	metrics.CurrentDrawdown = 0.20 // CRITICAL
	metrics.VaR.Overall = 0.25     // HIGH

	alerts := m.Evaluate(metrics, nil, 0.9, nil) // plus MEDIUM correlation
	if len(alerts) != 3 {
		t.Fatalf("expected 3 alerts across severities, got %d", len(alerts))
	}
}

func TestPositionSizeBreach(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	snap := &models.PortfolioSnapshot{}
	snap.Positions = []models.Position{
		{Symbol: "BTC", Quantity: 1, AvgPrice: 9000, CurrentPrice: 9000},
		{Symbol: "ETH", Quantity: 1, AvgPrice: 1000, CurrentPrice: 1000},
	}
	snap.Finalize()

	alerts := m.Evaluate(calmMetrics(), snap, 0, nil)
	if len(alerts) != 1 || alerts[0].Type != models.AlertPositionSizeBreach {
		t.Fatalf("expected position size breach, got %v", alerts)
	}
}

func TestActiveAndResolve(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	metrics := calmMetrics()
	metrics.LiquidityRisk = 0.5
	m.Evaluate(metrics, nil, 0, nil)

	if len(m.Active()) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(m.Active()))
	}
	m.Resolve(models.AlertLiquidityRisk)
	if len(m.Active()) != 0 {
		t.Fatal("resolve should clear the active set")
	}
}

func TestHistoryBounded(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	metrics := calmMetrics()
	metrics.VaR.Overall = 0.25
	for i := 0; i < historyCap+50; i++ {
		m.Evaluate(metrics, nil, 0, nil)
		clock.Advance(5 * time.Minute)
	}
	if len(m.History(0)) > historyCap {
		t.Fatalf("history grew past cap: %d", len(m.History(0)))
	}
	if got := m.History(10); len(got) != 10 {
		t.Fatalf("limited history = %d, want 10", len(got))
	}
}

func TestStressFailureAlert(t *testing.T) {
	clock := sched.NewManualClock(time.Unix(0, 0))
	m := NewManager(Thresholds{}, clock, nil)

	report := &models.StressReport{Passed: false, OverallScore: 0.4}
	alerts := m.Evaluate(calmMetrics(), nil, 0, report)
	if len(alerts) != 1 || alerts[0].Type != models.AlertStressTestFailure {
		t.Fatalf("expected stress failure alert, got %v", alerts)
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Fatalf("severity = %v, want CRITICAL", alerts[0].Severity)
	}
}

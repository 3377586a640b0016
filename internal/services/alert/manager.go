// Package alert evaluates risk metrics against the threshold table and
// governs emission through per-severity escalation cooldowns.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"RiskPulse/internal/domain/models"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/sched"
)

const historyCap = 1000

// Thresholds is the breach table. Zero values fall back to defaults.
type Thresholds struct {
	Concentration   float64 // herfindahl, default 0.25
	Drawdown        float64 // fraction, default 0.15
	VaR             float64 // fraction of value, default 0.20
	Correlation     float64 // pairwise, default 0.80
	Liquidity       float64 // score, default 0.30
	VolatilitySpike float64 // ratio to trailing vol, default 2.0
	MaxPositionSize float64 // weight, default 0.12
}

func (t *Thresholds) applyDefaults() {
	if t.Concentration <= 0 {
		t.Concentration = 0.25
	}
	if t.Drawdown <= 0 {
		t.Drawdown = 0.15
	}
	if t.VaR <= 0 {
		t.VaR = 0.20
	}
	if t.Correlation <= 0 {
		t.Correlation = 0.80
	}
	if t.Liquidity <= 0 {
		t.Liquidity = 0.30
	}
	if t.VolatilitySpike <= 0 {
		t.VolatilitySpike = 2.0
	}
	if t.MaxPositionSize <= 0 {
		t.MaxPositionSize = 0.12
	}
}

// escalationRule caps how many alerts of one severity may fire per window.
type escalationRule struct {
	max    int
	window time.Duration
}

// escalation is the per-severity emission budget. The first occurrence of a
// (type, severity) pair is never suppressed.
var escalation = map[models.Severity]escalationRule{
	models.SeverityMedium:   {max: 5, window: 5 * time.Minute},
	models.SeverityHigh:     {max: 3, window: 3 * time.Minute},
	models.SeverityCritical: {max: 1, window: 1 * time.Minute},
}

// Manager evaluates metrics and emits alerts subject to the escalation
// budget. The clock is injected so cooldown behavior is testable.
type Manager struct {
	thresholds Thresholds
	clock      sched.Clock
	logger     *applogger.Logger

	mu       sync.Mutex
	history  []models.Alert
	active   map[models.AlertType]models.Alert
	emitted  map[models.Severity][]time.Time
	seen     map[models.AlertType]bool
	trailing float64 // trailing annualized volatility for spike detection
}

// NewManager builds a manager; a nil clock falls back to the real one.
func NewManager(thresholds Thresholds, clock sched.Clock, l *applogger.Logger) *Manager {
	thresholds.applyDefaults()
	if clock == nil {
		clock = sched.RealClock{}
	}
	return &Manager{
		thresholds: thresholds,
		clock:      clock,
		logger:     l,
		active:     make(map[models.AlertType]models.Alert),
		emitted:    make(map[models.Severity][]time.Time),
		seen:       make(map[models.AlertType]bool),
	}
}

// Evaluate checks a fresh metric set (plus optional peak pairwise
// correlation and stress report) against the threshold table and returns the
// alerts that clear the escalation budget.
func (m *Manager) Evaluate(metrics *models.RiskMetrics, snap *models.PortfolioSnapshot, maxCorrelation float64, stress *models.StressReport) []models.Alert {
	if metrics == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Alert
	emit := func(t models.AlertType, sev models.Severity, threshold, observed float64, msg string) {
		if a, ok := m.emit(t, sev, threshold, observed, msg); ok {
			out = append(out, a)
		}
	}

	if metrics.ConcentrationRisk > m.thresholds.Concentration {
		emit(models.AlertConcentrationRisk, models.SeverityHigh,
			m.thresholds.Concentration, metrics.ConcentrationRisk,
			"portfolio concentration above limit")
	}
	if metrics.CurrentDrawdown > m.thresholds.Drawdown {
		emit(models.AlertDrawdown, models.SeverityCritical,
			m.thresholds.Drawdown, metrics.CurrentDrawdown,
			"drawdown beyond tolerance")
	}
	if metrics.VaR.Overall > m.thresholds.VaR {
		emit(models.AlertVaRExceeded, models.SeverityHigh,
			m.thresholds.VaR, metrics.VaR.Overall,
			"value at risk above limit")
	}
	if maxCorrelation > m.thresholds.Correlation {
		emit(models.AlertCorrelationSpike, models.SeverityMedium,
			m.thresholds.Correlation, maxCorrelation,
			"pairwise correlation spike")
	}
	if metrics.LiquidityRisk > m.thresholds.Liquidity {
		emit(models.AlertLiquidityRisk, models.SeverityHigh,
			m.thresholds.Liquidity, metrics.LiquidityRisk,
			"liquidity risk above limit")
	}
	if m.trailing > 0 && metrics.AnnualizedVolatility > m.thresholds.VolatilitySpike*m.trailing {
		emit(models.AlertVolatilitySpike, models.SeverityMedium,
			m.thresholds.VolatilitySpike*m.trailing, metrics.AnnualizedVolatility,
			"volatility spiked versus trailing level")
	}
	if metrics.AnnualizedVolatility > 0 {
		m.trailing = metrics.AnnualizedVolatility
	}
	if snap != nil {
		for i, w := range snap.Weights() {
			if w > m.thresholds.MaxPositionSize {
				emit(models.AlertPositionSizeBreach, models.SeverityHigh,
					m.thresholds.MaxPositionSize, w,
					fmt.Sprintf("position %s above size limit", snap.Positions[i].Symbol))
				break
			}
		}
	}
	if stress != nil && !stress.Passed {
		emit(models.AlertStressTestFailure, models.SeverityCritical,
			1, stress.OverallScore, "stress test failed")
	}
	return out
}

// emit applies the escalation budget. Returns the alert and whether it was
// allowed through.
func (m *Manager) emit(t models.AlertType, sev models.Severity, threshold, observed float64, msg string) (models.Alert, bool) {
	now := m.clock.Now()
	a := models.Alert{
		ID:            uuid.NewString(),
		Type:          t,
		Severity:      sev,
		Threshold:     threshold,
		ObservedValue: observed,
		Message:       msg,
		Timestamp:     now,
	}

	first := !m.seen[t]
	m.seen[t] = true
	if !first && !m.allow(sev, now) {
		if m.logger != nil {
			m.logger.Debug("alert suppressed by cooldown",
				applogger.String("type", string(t)),
				applogger.String("severity", string(sev)))
		}
		return models.Alert{}, false
	}

	m.emitted[sev] = append(m.emitted[sev], now)
	m.active[t] = a
	m.history = append(m.history, a)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	if m.logger != nil {
		m.logger.Warn("risk alert",
			applogger.String("type", string(t)),
			applogger.String("severity", string(sev)),
			applogger.Any("observed", observed),
			applogger.Any("threshold", threshold))
	}
	return a, true
}

// allow prunes the emission log for the severity and checks the budget.
func (m *Manager) allow(sev models.Severity, now time.Time) bool {
	rule, ok := escalation[sev]
	if !ok {
		return true
	}
	cutoff := now.Add(-rule.window)
	kept := m.emitted[sev][:0]
	for _, ts := range m.emitted[sev] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	m.emitted[sev] = kept
	return len(kept) < rule.max
}

// Active returns the most recent alert per type.
func (m *Manager) Active() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a)
	}
	return out
}

// Resolve clears a type from the active set once its condition has passed.
func (m *Manager) Resolve(t models.AlertType) {
	m.mu.Lock()
	delete(m.active, t)
	m.mu.Unlock()
}

// History returns up to limit recent alerts, newest last. limit <= 0 returns
// everything retained.
func (m *Manager) History(limit int) []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]models.Alert(nil), h...)
}

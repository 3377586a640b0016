// Package stress applies a declarative scenario library to portfolio
// snapshots and scores the portfolio's resilience.
package stress

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	applogger "RiskPulse/pkg/logger"
)

const (
	passLossBound    = 0.30 // loss fraction below this passes a scenario
	survivalBound    = 0.50 // loss fraction below this means the book survives
	overallPassScore = 0.70
)

// Per-position shock coefficients. Volatility shocks are stochastic; the RNG
// is injected so a zero-vol run is reproducible.
const (
	volShockScale  = 0.02
	corrShockScale = 0.05
	liqShockScale  = 0.03
)

// Tester runs every configured scenario against a snapshot.
type Tester struct {
	scenarios []models.StressScenario
	logger    *applogger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTester builds a tester over the given scenario set; an empty set falls
// back to the embedded defaults. Seed 0 means time-seeded.
func NewTester(scenarios []models.StressScenario, seed int64, l *applogger.Logger) *Tester {
	if len(scenarios) == 0 {
		scenarios = defaultScenarios()
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Tester{
		scenarios: scenarios,
		logger:    l,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Scenarios returns a copy of the configured scenario library.
func (t *Tester) Scenarios() []models.StressScenario {
	return append([]models.StressScenario(nil), t.scenarios...)
}

// Run applies every scenario and aggregates the probability-weighted score.
func (t *Tester) Run(ctx context.Context, snap *models.PortfolioSnapshot) (*models.StressReport, error) {
	if snap == nil || snap.TotalValue <= 0 {
		return nil, models.ErrInsufficientData
	}

	report := &models.StressReport{Timestamp: time.Now()}
	weightSum := 0.0
	scoreSum := 0.0
	for _, sc := range t.scenarios {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := t.apply(sc, snap)
		report.Results = append(report.Results, res)

		if !res.Passed && sc.Severity == models.SeverityCritical {
			report.CriticalFailures++
		}
		// Likelier scenarios weigh more in the overall score.
		w := sc.Probability
		if w <= 0 {
			w = 0.01
		}
		score := 1 - math.Min(res.MaxLossFraction/survivalBound, 1)
		scoreSum += w * score
		weightSum += w
	}
	if weightSum > 0 {
		report.OverallScore = scoreSum / weightSum
	}
	report.Passed = report.OverallScore >= overallPassScore && report.CriticalFailures == 0
	report.Recommendation = recommendation(report)

	if t.logger != nil && !report.Passed {
		t.logger.Warn("stress test failed",
			applogger.Int("critical_failures", report.CriticalFailures),
			applogger.Any("overall_score", report.OverallScore))
	}
	return report, nil
}

// apply shocks each position and totals the scenario loss. Loss components
// per position: market shock on value, stochastic volatility drag,
// correlation convergence cost, and a liquidity exit haircut.
func (t *Tester) apply(sc models.StressScenario, snap *models.PortfolioSnapshot) models.StressResult {
	loss := 0.0
	liquidityImpact := 0.0
	for _, pos := range snap.Positions {
		loss += pos.Value * math.Abs(sc.MarketShock)
		loss += pos.Value * volShockScale * sc.VolatilityMultiplier * t.draw()
		loss += pos.Value * corrShockScale * sc.CorrelationShock
		if sc.LiquidityShock > 0 {
			l := pos.Value * liqShockScale * sc.LiquidityShock
			loss += l
			liquidityImpact += l
		}
	}

	fraction := loss / snap.TotalValue
	return models.StressResult{
		ScenarioID:        sc.ID,
		ScenarioName:      sc.Name,
		Severity:          sc.Severity,
		Probability:       sc.Probability,
		TotalLoss:         loss,
		MaxLossFraction:   fraction,
		LiquidityImpact:   liquidityImpact,
		RecoveryDays:      2 * sc.DurationDays,
		PortfolioSurvival: fraction < survivalBound,
		Passed:            fraction < passLossBound,
	}
}

func (t *Tester) draw() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Float64()
}

func recommendation(r *models.StressReport) string {
	switch {
	case r.CriticalFailures > 0:
		return "reduce exposure immediately: portfolio fails critical scenarios"
	case !r.Passed:
		return "rebalance toward defensive weights: stress score below threshold"
	case r.OverallScore < 0.85:
		return "acceptable resilience, monitor concentrated positions"
	default:
		return "portfolio is resilient across the scenario library"
	}
}

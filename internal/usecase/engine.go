// Package usecase orchestrates the analysis cadences: the risk tick, the
// optimization and stress cycles, the correlation refresh, and inbound
// control messages.
package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	dservice "RiskPulse/internal/domain/service"
	"RiskPulse/internal/services/alert"
	"RiskPulse/internal/services/features"
	"RiskPulse/internal/services/numkit"
	"RiskPulse/internal/services/risk"
	"RiskPulse/internal/services/sizing"
	applogger "RiskPulse/pkg/logger"
)

// EngineConfig carries the cadence and guard-rail settings.
type EngineConfig struct {
	Source            string // envelope source tag
	Lookback          int    // return series depth, default 252
	EmergencyStopLoss float64
	MaxPortfolioRisk  float64
}

func (c *EngineConfig) applyDefaults() {
	if c.Source == "" {
		c.Source = "riskpulse"
	}
	if c.Lookback <= 0 {
		c.Lookback = 252
	}
	if c.EmergencyStopLoss <= 0 {
		c.EmergencyStopLoss = 0.25
	}
	if c.MaxPortfolioRisk <= 0 {
		c.MaxPortfolioRisk = 0.20
	}
}

// Engine runs the analysis pipeline and owns the latest published state.
// Readers get lock-free access via atomic pointers; a failed tick leaves the
// last good result in place flagged Stale.
type Engine struct {
	cfg        EngineConfig
	data       domrepo.MarketData
	calc       *risk.Calculator
	classifier dservice.Classifier
	optimizer  dservice.Optimizer
	stress     dservice.StressTester
	alerts     *alert.Manager
	sizer      *sizing.Sizer
	dispatch   Dispatcher
	metrics    domrepo.Metrics
	logger     *applogger.Logger

	snapshot     atomic.Pointer[models.PortfolioSnapshot]
	riskMetrics  atomic.Pointer[models.RiskMetrics]
	assessment   atomic.Pointer[models.Assessment]
	optimization atomic.Pointer[models.OptimizationResult]
	stressReport atomic.Pointer[models.StressReport]

	emergency atomic.Bool
	analyses  atomic.Int64
	abandoned atomic.Int64

	corrMu  sync.Mutex
	maxCorr float64

	markMu sync.Mutex
	marks  map[string]float64
}

// NewEngine wires the engine. metrics and logger may be nil.
func NewEngine(
	cfg EngineConfig,
	data domrepo.MarketData,
	calc *risk.Calculator,
	classifier dservice.Classifier,
	optimizer dservice.Optimizer,
	stress dservice.StressTester,
	alerts *alert.Manager,
	sizer *sizing.Sizer,
	dispatch Dispatcher,
	metrics domrepo.Metrics,
	logger *applogger.Logger,
) *Engine {
	cfg.applyDefaults()
	return &Engine{
		cfg:        cfg,
		data:       data,
		calc:       calc,
		classifier: classifier,
		optimizer:  optimizer,
		stress:     stress,
		alerts:     alerts,
		sizer:      sizer,
		dispatch:   dispatch,
		metrics:    metrics,
		logger:     logger,
		marks:      make(map[string]float64),
	}
}

// portfolioUpdate is the PORTFOLIO_UPDATE payload.
type portfolioUpdate struct {
	Snapshot   *models.PortfolioSnapshot `json:"snapshot"`
	Metrics    *models.RiskMetrics       `json:"metrics"`
	Assessment *models.Assessment        `json:"assessment,omitempty"`
}

// RiskTick runs one full risk analysis cycle.
func (e *Engine) RiskTick(ctx context.Context) error {
	start := time.Now()
	snap, err := e.data.GetPortfolio(ctx)
	if err != nil {
		return e.tickFailed("risk", err)
	}
	e.applyMarks(snap)

	series, err := e.data.GetReturnSeries(ctx, snap.Symbols(), e.cfg.Lookback)
	if err != nil {
		return e.tickFailed("risk", err)
	}
	// Beta and liquidity inputs are best-effort; their metrics degrade.
	market, marketErr := e.data.GetMarketProxySeries(ctx, e.cfg.Lookback)
	if marketErr != nil && e.logger != nil {
		e.logger.Warn("market proxy unavailable, beta degrades", applogger.Error(marketErr))
	}
	liquidity, liqErr := e.data.GetLiquidityInfo(ctx, snap.Symbols())
	if liqErr != nil && e.logger != nil {
		e.logger.Warn("liquidity info unavailable, defaulting", applogger.Error(liqErr))
	}

	metrics := e.calc.Compute(risk.Inputs{
		Snapshot:  snap,
		Series:    series,
		Market:    market,
		Liquidity: liquidity,
	})

	var assessment *models.Assessment
	if e.classifier != nil {
		vec := features.Vector(metrics, snap, series)
		if a, cErr := e.classifier.Classify(vec); cErr == nil {
			assessment = &a
		} else if e.logger != nil {
			e.logger.Warn("classification failed", applogger.Error(cErr))
		}
	}

	e.snapshot.Store(snap)
	e.riskMetrics.Store(metrics)
	if assessment != nil {
		e.assessment.Store(assessment)
	}
	e.analyses.Add(1)
	e.recordGauges(metrics)

	e.raiseAlerts(ctx, metrics, snap)
	e.checkEmergencyStop(ctx, metrics, snap)

	env, envErr := models.NewEnvelope(uuid.NewString(), models.MsgPortfolioUpdate, e.cfg.Source, time.Now(),
		portfolioUpdate{Snapshot: snap, Metrics: metrics, Assessment: assessment})
	if envErr == nil {
		e.send(ctx, env)
	}

	if e.metrics != nil {
		e.metrics.RecordTick("risk", time.Since(start).Seconds())
	}
	return nil
}

// OptimizationTick recomputes recommended weights and position sizes.
func (e *Engine) OptimizationTick(ctx context.Context) error {
	start := time.Now()
	snap := e.snapshot.Load()
	if snap == nil {
		var err error
		snap, err = e.data.GetPortfolio(ctx)
		if err != nil {
			return e.tickFailed("optimization", err)
		}
	}
	series, err := e.data.GetReturnSeries(ctx, snap.Symbols(), e.cfg.Lookback)
	if err != nil {
		return e.tickFailed("optimization", err)
	}

	result, err := e.optimizer.Optimize(ctx, snap, series)
	if err != nil {
		return e.tickFailed("optimization", err)
	}
	e.optimization.Store(result)

	if env, envErr := models.NewEnvelope(uuid.NewString(), models.MsgOptimizationResult, e.cfg.Source, time.Now(), result); envErr == nil {
		e.send(ctx, env)
	}

	// Recommendations are advisory trades; they stop during an emergency.
	if e.sizer != nil && !e.emergency.Load() {
		for _, rec := range e.sizer.Recommend(snap, series) {
			if env, envErr := models.NewEnvelope(uuid.NewString(), models.MsgPositionRecommendation, e.cfg.Source, time.Now(), rec); envErr == nil {
				e.send(ctx, env)
			}
		}
	}

	if e.metrics != nil {
		e.metrics.RecordTick("optimization", time.Since(start).Seconds())
	}
	return nil
}

// StressTick runs the scenario library against the latest snapshot.
func (e *Engine) StressTick(ctx context.Context) error {
	start := time.Now()
	snap := e.snapshot.Load()
	if snap == nil {
		var err error
		snap, err = e.data.GetPortfolio(ctx)
		if err != nil {
			return e.tickFailed("stress", err)
		}
	}
	report, err := e.stress.Run(ctx, snap)
	if err != nil {
		return e.tickFailed("stress", err)
	}
	e.stressReport.Store(report)

	if env, envErr := models.NewEnvelope(uuid.NewString(), models.MsgStressTestResult, e.cfg.Source, time.Now(), report); envErr == nil {
		e.send(ctx, env)
	}
	if e.metrics != nil {
		e.metrics.RecordTick("stress", time.Since(start).Seconds())
	}
	return nil
}

// CorrelationTick refreshes the peak pairwise correlation used by alerting.
func (e *Engine) CorrelationTick(ctx context.Context) error {
	snap := e.snapshot.Load()
	if snap == nil || len(snap.Positions) < 2 {
		return nil
	}
	series, err := e.data.GetReturnSeries(ctx, snap.Symbols(), e.cfg.Lookback)
	if err != nil {
		return e.tickFailed("correlation", err)
	}
	want := 0
	aligned := make([][]float64, 0, len(series))
	for _, s := range series {
		if s.Len() > want {
			want = s.Len()
		}
	}
	for _, s := range series {
		if s.Len() == want && want > 1 {
			aligned = append(aligned, s.Returns)
		}
	}
	if len(aligned) < 2 {
		return nil
	}
	corr, err := numkit.CorrelationMatrix(aligned)
	if err != nil {
		return e.tickFailed("correlation", err)
	}
	max := 0.0
	for i := range corr {
		for j := i + 1; j < len(corr); j++ {
			if corr[i][j] > max {
				max = corr[i][j]
			}
		}
	}
	e.corrMu.Lock()
	e.maxCorr = max
	e.corrMu.Unlock()
	if e.metrics != nil {
		e.metrics.RecordRiskGauge("max_pairwise_correlation", max)
	}
	return nil
}

func (e *Engine) raiseAlerts(ctx context.Context, metrics *models.RiskMetrics, snap *models.PortfolioSnapshot) {
	if e.alerts == nil {
		return
	}
	e.corrMu.Lock()
	maxCorr := e.maxCorr
	e.corrMu.Unlock()

	for _, a := range e.alerts.Evaluate(metrics, snap, maxCorr, e.stressReport.Load()) {
		if e.metrics != nil {
			e.metrics.RecordAlert(string(a.Severity))
		}
		if env, err := models.NewEnvelope(a.ID, models.MsgRiskAlert, e.cfg.Source, a.Timestamp, a); err == nil {
			e.send(ctx, env)
		}
	}
}

// emergencyStop is the EMERGENCY_STOP payload.
type emergencyStop struct {
	Reason   string  `json:"reason"`
	Drawdown float64 `json:"drawdown"`
	Limit    float64 `json:"limit"`
}

func (e *Engine) checkEmergencyStop(ctx context.Context, metrics *models.RiskMetrics, snap *models.PortfolioSnapshot) {
	if metrics.CurrentDrawdown <= e.cfg.EmergencyStopLoss {
		return
	}
	if !e.emergency.CompareAndSwap(false, true) {
		return // already stopped
	}
	if e.logger != nil {
		e.logger.Error("emergency stop: drawdown beyond limit",
			applogger.Any("drawdown", metrics.CurrentDrawdown),
			applogger.Any("limit", e.cfg.EmergencyStopLoss))
	}
	payload := emergencyStop{
		Reason:   "drawdown beyond emergency stop loss",
		Drawdown: metrics.CurrentDrawdown,
		Limit:    e.cfg.EmergencyStopLoss,
	}
	if env, err := models.NewEnvelope(uuid.NewString(), models.MsgEmergencyStop, e.cfg.Source, time.Now(), payload); err == nil {
		e.send(ctx, env)
	}
}

// tickFailed keeps the last good metrics, flags them stale, and reports the
// abandoned cycle.
func (e *Engine) tickFailed(kind string, err error) error {
	e.abandoned.Add(1)
	if m := e.riskMetrics.Load(); m != nil && kind == "risk" {
		stale := *m
		stale.Stale = true
		e.riskMetrics.Store(&stale)
	}
	if e.metrics != nil {
		e.metrics.RecordTickAbandoned(kind)
	}
	if e.logger != nil {
		e.logger.Error("tick abandoned",
			applogger.String("kind", kind),
			applogger.Error(err))
	}
	return err
}

func (e *Engine) send(ctx context.Context, env models.Envelope) {
	if e.dispatch == nil {
		return
	}
	if err := e.dispatch.Dispatch(ctx, env); err != nil && e.logger != nil {
		e.logger.Error("dispatch failed",
			applogger.String("type", string(env.Type)),
			applogger.Error(err))
	}
}

func (e *Engine) recordGauges(m *models.RiskMetrics) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordRiskGauge("var_overall", m.VaR.Overall)
	e.metrics.RecordRiskGauge("cvar", m.CVaR)
	e.metrics.RecordRiskGauge("annualized_volatility", m.AnnualizedVolatility)
	e.metrics.RecordRiskGauge("current_drawdown", m.CurrentDrawdown)
	e.metrics.RecordRiskGauge("concentration", m.ConcentrationRisk)
	e.metrics.RecordRiskGauge("liquidity_risk", m.LiquidityRisk)
}

// ApplyMark records a streamed last price, applied to the next snapshot.
func (e *Engine) ApplyMark(ctx context.Context, m models.PriceMark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.markMu.Lock()
	e.marks[m.Symbol] = m.Price
	e.markMu.Unlock()
	return nil
}

// applyMarks refreshes snapshot prices with streamed marks newer than the
// snapshot fetch.
func (e *Engine) applyMarks(snap *models.PortfolioSnapshot) {
	e.markMu.Lock()
	defer e.markMu.Unlock()
	if len(e.marks) == 0 {
		return
	}
	touched := false
	for i := range snap.Positions {
		if p, ok := e.marks[snap.Positions[i].Symbol]; ok && p > 0 {
			snap.Positions[i].CurrentPrice = p
			touched = true
		}
	}
	if touched {
		snap.Finalize()
	}
}

// EmergencyStop halts recommendation publishing; used by inbound control.
func (e *Engine) EmergencyStop(reason string) {
	if e.emergency.CompareAndSwap(false, true) && e.logger != nil {
		e.logger.Error("emergency stop requested", applogger.String("reason", reason))
	}
}

// ResumeRecommendations lifts an emergency stop.
func (e *Engine) ResumeRecommendations() {
	if e.emergency.CompareAndSwap(true, false) && e.logger != nil {
		e.logger.Info("emergency stop lifted")
	}
}

// Stopped reports whether the engine is in emergency stop.
func (e *Engine) Stopped() bool { return e.emergency.Load() }

// Snapshot returns the latest portfolio snapshot, or nil before first tick.
func (e *Engine) Snapshot() *models.PortfolioSnapshot { return e.snapshot.Load() }

// RiskMetrics returns the latest metrics, or nil before the first tick.
func (e *Engine) RiskMetrics() *models.RiskMetrics { return e.riskMetrics.Load() }

// Assessment returns the latest classifier output, or nil.
func (e *Engine) Assessment() *models.Assessment { return e.assessment.Load() }

// Optimization returns the latest optimization result, or nil.
func (e *Engine) Optimization() *models.OptimizationResult { return e.optimization.Load() }

// StressReport returns the latest stress report, or nil.
func (e *Engine) StressReport() *models.StressReport { return e.stressReport.Load() }

// Alerts exposes the alert manager for the read API.
func (e *Engine) Alerts() *alert.Manager { return e.alerts }

// AnalysesRun reports how many risk ticks completed.
func (e *Engine) AnalysesRun() int64 { return e.analyses.Load() }

// AnalysesAbandoned counts ticks that failed before publishing.
func (e *Engine) AnalysesAbandoned() int64 { return e.abandoned.Load() }

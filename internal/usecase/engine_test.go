package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/services/alert"
	"RiskPulse/internal/services/optimizer"
	"RiskPulse/internal/services/risk"
	"RiskPulse/internal/services/sizing"
	"RiskPulse/internal/services/stress"
	"RiskPulse/pkg/sched"
)

// stubData serves a fixed book and synthetic histories; failures are
// switchable per method.
type stubData struct {
	mu            sync.Mutex
	failPortfolio bool
	failSeries    bool
	equity        float64
}

func (s *stubData) setEquity(v float64) {
	s.mu.Lock()
	s.equity = v
	s.mu.Unlock()
}

func (s *stubData) GetPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPortfolio {
		return nil, errors.New("provider down")
	}
	total := s.equity
	if total == 0 {
		total = 100000
	}
	snap := &models.PortfolioSnapshot{AsOf: time.Now()}
	snap.Positions = []models.Position{
		{Symbol: "BTC", Quantity: 1, AvgPrice: total * 0.6, CurrentPrice: total * 0.6},
		{Symbol: "ETH", Quantity: 1, AvgPrice: total * 0.4, CurrentPrice: total * 0.4},
	}
	snap.Finalize()
	return snap, nil
}

func (s *stubData) GetReturnSeries(ctx context.Context, symbols []string, lookback int) (map[string]models.ReturnSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSeries {
		return nil, errors.New("provider down")
	}
	out := make(map[string]models.ReturnSeries, len(symbols))
	for i, sym := range symbols {
		r := make([]float64, lookback)
		for t := range r {
			// small deterministic oscillation, different phase per symbol
			r[t] = 0.001 * float64((t+i)%5-2)
		}
		out[sym] = models.ReturnSeries{Symbol: sym, Returns: r}
	}
	return out, nil
}

func (s *stubData) GetMarketProxySeries(ctx context.Context, lookback int) (models.ReturnSeries, error) {
	r := make([]float64, lookback)
	for t := range r {
		r[t] = 0.001 * float64(t%5-2)
	}
	return models.ReturnSeries{Symbol: "MKT", Returns: r}, nil
}

func (s *stubData) GetLiquidityInfo(ctx context.Context, symbols []string) (map[string]models.LiquidityInfo, error) {
	return map[string]models.LiquidityInfo{}, nil
}

// captureBus records every published envelope.
type captureBus struct {
	mu   sync.Mutex
	envs []models.Envelope
}

func (b *captureBus) Publish(ctx context.Context, e models.Envelope) error {
	b.mu.Lock()
	b.envs = append(b.envs, e)
	b.mu.Unlock()
	return nil
}

func (b *captureBus) Close() error { return nil }

func (b *captureBus) byType(t models.MessageType) []models.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Envelope
	for _, e := range b.envs {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(data *stubData, bus *captureBus) *Engine {
	clock := sched.NewManualClock(time.Unix(0, 0))
	return NewEngine(
		EngineConfig{Lookback: 50, EmergencyStopLoss: 0.25},
		data,
		risk.NewCalculator(risk.CalculatorConfig{Seed: 1}, nil),
		nil, // classifier optional
		optimizer.NewBlended(optimizer.Config{}, nil),
		stress.NewTester(nil, 1, nil),
		alert.NewManager(alert.Thresholds{}, clock, nil),
		sizing.New(sizing.Config{}),
		NewDirectDispatcher(bus, nil, nil, nil),
		nil,
		nil,
	)
}

func TestRiskTickPublishesPortfolioUpdate(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)

	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("risk tick: %v", err)
	}
	if e.RiskMetrics() == nil || e.Snapshot() == nil {
		t.Fatal("tick should store metrics and snapshot")
	}
	updates := bus.byType(models.MsgPortfolioUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 PORTFOLIO_UPDATE, got %d", len(updates))
	}
	var payload portfolioUpdate
	if err := json.Unmarshal(updates[0].Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Snapshot == nil || payload.Metrics == nil {
		t.Fatal("payload missing snapshot or metrics")
	}
	if e.AnalysesRun() != 1 {
		t.Fatalf("analyses run = %d, want 1", e.AnalysesRun())
	}
}

func TestFailedTickKeepsLastGoodFlaggedStale(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)

	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	good := e.RiskMetrics()
	if good.Stale {
		t.Fatal("fresh metrics must not be stale")
	}

	data.mu.Lock()
	data.failPortfolio = true
	data.mu.Unlock()

	if err := e.RiskTick(context.Background()); err == nil {
		t.Fatal("tick should propagate the data error")
	}
	kept := e.RiskMetrics()
	if !kept.Stale {
		t.Fatal("failed tick must flag last-known-good metrics stale")
	}
	if kept.VaR.Overall != good.VaR.Overall {
		t.Fatal("failed tick must not change metric values")
	}
}

func TestEmergencyStopOnDrawdown(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)

	data.setEquity(100000)
	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	// 30% fall breaches the 25% emergency stop loss.
	data.setEquity(70000)
	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if !e.Stopped() {
		t.Fatal("engine should be in emergency stop")
	}
	stops := bus.byType(models.MsgEmergencyStop)
	if len(stops) != 1 {
		t.Fatalf("expected exactly 1 EMERGENCY_STOP, got %d", len(stops))
	}

	// A further tick must not re-publish the stop.
	data.setEquity(69000)
	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := len(bus.byType(models.MsgEmergencyStop)); got != 1 {
		t.Fatalf("EMERGENCY_STOP republished: %d", got)
	}
}

func TestOptimizationTickPublishesResultAndRecommendations(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)

	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("risk tick: %v", err)
	}
	if err := e.OptimizationTick(context.Background()); err != nil {
		t.Fatalf("optimization tick: %v", err)
	}
	if len(bus.byType(models.MsgOptimizationResult)) != 1 {
		t.Fatal("expected an OPTIMIZATION_RESULT")
	}
	if len(bus.byType(models.MsgPositionRecommendation)) == 0 {
		t.Fatal("expected POSITION_RECOMMENDATION messages")
	}
	if e.Optimization() == nil {
		t.Fatal("optimization result should be retained")
	}
}

func TestEmergencyStopHaltsRecommendations(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)

	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("risk tick: %v", err)
	}
	e.EmergencyStop("test")
	if err := e.OptimizationTick(context.Background()); err != nil {
		t.Fatalf("optimization tick: %v", err)
	}
	if len(bus.byType(models.MsgOptimizationResult)) != 1 {
		t.Fatal("optimization results still publish during a stop")
	}
	if len(bus.byType(models.MsgPositionRecommendation)) != 0 {
		t.Fatal("recommendations must halt during emergency stop")
	}

	e.ResumeRecommendations()
	if err := e.OptimizationTick(context.Background()); err != nil {
		t.Fatalf("optimization tick: %v", err)
	}
	if len(bus.byType(models.MsgPositionRecommendation)) == 0 {
		t.Fatal("recommendations should resume after the stop lifts")
	}
}

func TestStressTickPublishesReport(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)

	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("risk tick: %v", err)
	}
	if err := e.StressTick(context.Background()); err != nil {
		t.Fatalf("stress tick: %v", err)
	}
	if len(bus.byType(models.MsgStressTestResult)) != 1 {
		t.Fatal("expected a STRESS_TEST_RESULT")
	}
	if e.StressReport() == nil {
		t.Fatal("stress report should be retained")
	}
}

func TestApplyMarkRefreshesSnapshotPrices(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)

	if err := e.ApplyMark(context.Background(), models.PriceMark{Symbol: "BTC", Price: 99999, Timestamp: 1}); err != nil {
		t.Fatalf("apply mark: %v", err)
	}
	if err := e.RiskTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	snap := e.Snapshot()
	for _, p := range snap.Positions {
		if p.Symbol == "BTC" && p.CurrentPrice != 99999 {
			t.Fatalf("mark not applied: BTC price %v", p.CurrentPrice)
		}
	}
}

func TestControlHandlerEmergencyStop(t *testing.T) {
	data := &stubData{}
	bus := &captureBus{}
	e := newTestEngine(data, bus)
	h := NewControlHandler("risk.control", e, nil, nil, nil)

	env, err := models.NewEnvelope("1", models.MsgEmergencyStop, "agent-07", time.Now(),
		map[string]string{"reason": "coordinated halt"})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	b, _ := json.Marshal(env)
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !e.Stopped() {
		t.Fatal("control message should trigger emergency stop")
	}

	resume, err := models.NewEnvelope("2", controlResume, "agent-07", time.Now(), nil)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	b, _ = json.Marshal(resume)
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if e.Stopped() {
		t.Fatal("resume should lift the stop")
	}
}

func TestControlHandlerRejectsMalformedFrame(t *testing.T) {
	e := newTestEngine(&stubData{}, &captureBus{})
	h := NewControlHandler("risk.control", e, nil, nil, nil)
	if err := h.Handle(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("malformed frame should error for retry/DLQ handling")
	}
}

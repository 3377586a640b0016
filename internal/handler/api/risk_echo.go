package api

import (
	"time"

	"github.com/labstack/echo/v4"

	models "RiskPulse/internal/domain/models"
	"RiskPulse/internal/usecase"
	xhttp "RiskPulse/pkg/http"
	xlogger "RiskPulse/pkg/logger"
)

// BreakerReporter exposes the upstream circuit breaker state for health
// reporting. The gateway satisfies it; a nil reporter is allowed in tests.
type BreakerReporter interface {
	BreakerState() string
}

// RiskEchoHandler serves the read-only risk API: the latest published
// objects from the engine. It never triggers computation.
type RiskEchoHandler struct {
	logger  *xlogger.Logger
	engine  *usecase.Engine
	breaker BreakerReporter
}

func NewRiskEchoHandler(logger *xlogger.Logger, engine *usecase.Engine, breaker BreakerReporter) *RiskEchoHandler {
	return &RiskEchoHandler{logger: logger, engine: engine, breaker: breaker}
}

func (h *RiskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/risk", h.Risk)
	g.GET("/assessment", h.Assessment)
	g.GET("/optimization", h.Optimization)
	g.GET("/stress", h.Stress)
	g.GET("/alerts", h.Alerts)
	g.GET("/health", h.Health)
}

func (h *RiskEchoHandler) Risk(c echo.Context) error {
	m := h.engine.RiskMetrics()
	if m == nil {
		return xhttp.NotFoundResponse(c, "no risk metrics computed yet")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=3")
	return xhttp.SuccessResponse(c, m)
}

func (h *RiskEchoHandler) Assessment(c echo.Context) error {
	a := h.engine.Assessment()
	if a == nil {
		return xhttp.NotFoundResponse(c, "no assessment available yet")
	}
	return xhttp.SuccessResponse(c, a)
}

func (h *RiskEchoHandler) Optimization(c echo.Context) error {
	o := h.engine.Optimization()
	if o == nil {
		return xhttp.NotFoundResponse(c, "no optimization cycle completed yet")
	}
	return xhttp.SuccessResponse(c, o)
}

func (h *RiskEchoHandler) Stress(c echo.Context) error {
	req := &models.StressRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	report := h.engine.StressReport()
	if report == nil {
		return xhttp.NotFoundResponse(c, "no stress test completed yet")
	}
	if req.ScenarioID == "" {
		return xhttp.SuccessResponse(c, report)
	}
	for _, r := range report.Results {
		if r.ScenarioID == req.ScenarioID {
			return xhttp.SuccessResponse(c, r)
		}
	}
	return xhttp.NotFoundError("unknown scenario").WithParam("scenario_id", req.ScenarioID)
}

func (h *RiskEchoHandler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	mgr := h.engine.Alerts()
	if mgr == nil {
		return xhttp.ListResponse(c, []models.Alert{}, 0)
	}

	var alerts []models.Alert
	if req.Active {
		alerts = mgr.Active()
	} else {
		alerts = mgr.History(req.Limit)
	}
	if req.Severity != "" {
		filtered := alerts[:0]
		for _, a := range alerts {
			if a.Severity == models.Severity(req.Severity) {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return xhttp.ListResponse(c, alerts, int64(len(alerts)))
}

func (h *RiskEchoHandler) Health(c echo.Context) error {
	status := models.EngineStatus{
		Status:         "ok",
		EmergencyStop:  h.engine.Stopped(),
		TicksCompleted: uint64(h.engine.AnalysesRun()),
		TicksAbandoned: uint64(h.engine.AnalysesAbandoned()),
	}
	if h.breaker != nil {
		status.BreakerState = h.breaker.BreakerState()
	}
	if m := h.engine.RiskMetrics(); m != nil {
		status.Stale = m.Stale
		status.OverallVaR = m.VaR.Overall
		status.LastTick = m.LastUpdate.Format(time.RFC3339)
		if m.Stale {
			status.Status = "degraded"
		}
	} else {
		status.Status = "starting"
	}
	if a := h.engine.Assessment(); a != nil {
		status.RiskLevel = a.Level
	}
	if status.EmergencyStop {
		status.Status = "emergency_stop"
	}
	return xhttp.SuccessResponse(c, status)
}

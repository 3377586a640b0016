package usecase

import (
	"context"
	"encoding/json"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
)

// controlResume is an inbound-only message type lifting an emergency stop.
const controlResume models.MessageType = "RESUME"

// CacheInvalidator flushes stale upstream reads. Implemented by the data
// gateway so a resume starts from fresh provider data.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context) error
}

// ControlHandler consumes the inbound control topic: other agents can halt
// recommendation publishing or push portfolio price marks.
type ControlHandler struct {
	topic       string
	engine      *Engine
	invalidator CacheInvalidator
	metrics     domrepo.Metrics
	logger      *applogger.Logger
}

func NewControlHandler(topic string, engine *Engine, inv CacheInvalidator, metrics domrepo.Metrics, l *applogger.Logger) *ControlHandler {
	return &ControlHandler{topic: topic, engine: engine, invalidator: inv, metrics: metrics, logger: l}
}

func (h *ControlHandler) Topic() string { return h.topic }

// Handle routes one control envelope. Unknown types are logged and dropped;
// a malformed frame is an error so the consumer's retry/DLQ policy applies.
func (h *ControlHandler) Handle(ctx context.Context, b []byte) error {
	var env models.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("control_unmarshal")
		}
		return err
	}

	switch env.Type {
	case models.MsgEmergencyStop:
		var payload struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(env.Payload, &payload)
		if payload.Reason == "" {
			payload.Reason = "requested by " + env.Source
		}
		h.engine.EmergencyStop(payload.Reason)

	case controlResume:
		if h.invalidator != nil {
			if err := h.invalidator.InvalidateCache(ctx); err != nil && h.logger != nil {
				h.logger.Warn("cache invalidation on resume failed", applogger.Error(err))
			}
		}
		h.engine.ResumeRecommendations()

	case models.MsgPortfolioUpdate:
		// Peer agents push price marks between provider ticks.
		var payload struct {
			Marks []models.PriceMark `json:"marks"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			if h.metrics != nil {
				h.metrics.RecordError("control_marks")
			}
			return err
		}
		for _, m := range payload.Marks {
			if err := h.engine.ApplyMark(ctx, m); err != nil {
				return err
			}
		}

	default:
		if h.logger != nil {
			h.logger.Debug("ignoring control message",
				applogger.String("type", string(env.Type)),
				applogger.String("source", env.Source))
		}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*ControlHandler)(nil)

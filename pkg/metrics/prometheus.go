package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tickDuration   *prometheus.HistogramVec
	ticksAbandoned *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	published      *prometheus.CounterVec
	alertsTotal    *prometheus.CounterVec
	riskGauges     *prometheus.GaugeVec
	breakerState   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		tickDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskpulse_tick_duration_seconds",
				Help:    "Duration of analysis cycles by kind",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		ticksAbandoned: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_ticks_abandoned_total",
				Help: "Cycles abandoned past their soft deadline",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_messages_published_total",
				Help: "Envelopes published on the bus by message type",
			},
			[]string{"type"},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_alerts_total",
				Help: "Alerts raised by severity",
			},
			[]string{"severity"},
		),
		riskGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskpulse_risk_metric",
				Help: "Headline risk metrics from the latest complete tick",
			},
			[]string{"name"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskpulse_breaker_state",
				Help: "Data gateway circuit breaker state (1 = current)",
			},
			[]string{"state"},
		),
	}
}

func (r *Recorder) RecordTick(kind string, seconds float64) {
	r.tickDuration.WithLabelValues(kind).Observe(seconds)
}

func (r *Recorder) RecordTickAbandoned(kind string) {
	r.ticksAbandoned.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordPublished(msgType string) {
	r.published.WithLabelValues(msgType).Inc()
}

func (r *Recorder) RecordAlert(severity string) {
	r.alertsTotal.WithLabelValues(severity).Inc()
}

func (r *Recorder) RecordRiskGauge(name string, value float64) {
	r.riskGauges.WithLabelValues(name).Set(value)
}

// RecordBreakerState sets the gauge for state to 1 and the others to 0.
func (r *Recorder) RecordBreakerState(state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		r.breakerState.WithLabelValues(s).Set(v)
	}
}

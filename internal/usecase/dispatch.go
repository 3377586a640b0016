package usecase

import (
	"context"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/queue"
)

// envelopeMsgType is the queue message type carrying engine envelopes.
const envelopeMsgType = "risk_envelope"

// Dispatcher hands an envelope off for publication. The tick loop never
// waits on the broker.
type Dispatcher interface {
	Dispatch(ctx context.Context, e models.Envelope) error
}

// DirectDispatcher publishes inline. Used when no queue is configured and in
// tests.
type DirectDispatcher struct {
	publisher domrepo.Publisher
	archive   domrepo.Archive
	metrics   domrepo.Metrics
	logger    *applogger.Logger
}

func NewDirectDispatcher(p domrepo.Publisher, a domrepo.Archive, m domrepo.Metrics, l *applogger.Logger) *DirectDispatcher {
	return &DirectDispatcher{publisher: p, archive: a, metrics: m, logger: l}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, e models.Envelope) error {
	if err := d.publisher.Publish(ctx, e); err != nil {
		if d.metrics != nil {
			d.metrics.RecordError("publish")
		}
		return err
	}
	if d.metrics != nil {
		d.metrics.RecordPublished(string(e.Type))
	}
	if d.archive != nil {
		if err := d.archive.Append(ctx, e); err != nil && d.logger != nil {
			// Audit is best-effort; the envelope is already on the bus.
			d.logger.Warn("archive append failed", applogger.Error(err))
		}
	}
	return nil
}

// QueueDispatcher enqueues envelopes on the Redis-backed dispatch queue; the
// queue's workers retry delivery so a broker outage never blocks a tick.
type QueueDispatcher struct {
	q queue.QueueService
}

func NewQueueDispatcher(q queue.QueueService) *QueueDispatcher {
	return &QueueDispatcher{q: q}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, e models.Envelope) error {
	return d.q.PublishMessage(ctx, envelopeMsgType, e)
}

// EnvelopeJob is the queue worker that delivers enqueued envelopes to the
// bus and the archive.
type EnvelopeJob struct {
	direct *DirectDispatcher
}

func NewEnvelopeJob(p domrepo.Publisher, a domrepo.Archive, m domrepo.Metrics, l *applogger.Logger) *EnvelopeJob {
	return &EnvelopeJob{direct: NewDirectDispatcher(p, a, m, l)}
}

func (j *EnvelopeJob) Name() string { return "envelope-publisher" }
func (j *EnvelopeJob) Type() string { return envelopeMsgType }

func (j *EnvelopeJob) Handle(ctx context.Context, payload interface{}) error {
	e, err := queue.ParsePayload[models.Envelope](payload)
	if err != nil {
		return err
	}
	return j.direct.Dispatch(ctx, *e)
}

var _ queue.Job = (*EnvelopeJob)(nil)

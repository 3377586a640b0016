package repository

import (
	"context"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/domain/repository"
	pkgkafka "RiskPulse/pkg/kafka"
)

// KafkaBus publishes engine envelopes to the outbound topic. Envelopes are
// keyed by message type so consumers interested in one type read a stable
// partition.
type KafkaBus struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaBus creates the Kafka-backed publisher.
func NewKafkaBus(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaBus{producer: producer, topic: topic}
}

func (b *KafkaBus) Publish(ctx context.Context, e models.Envelope) error {
	return b.producer.Publish(ctx, b.topic, []byte(e.Type), e)
}

func (b *KafkaBus) Close() error {
	if b.producer != nil {
		return b.producer.Close()
	}
	return nil
}

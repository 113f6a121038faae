package repository

import (
	"context"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	pkgkafka "RiskArbiter/pkg/kafka"
)

// KafkaAuditSink publishes every ledgered decision to a Kafka topic.
// Records are keyed by decision id; with the hash balancer the key
// also pins replays of the same decision to the same partition, so a
// re-export produces an identical stream.
type KafkaAuditSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaAuditSink creates the Kafka export sink.
func NewKafkaAuditSink(producer *pkgkafka.Producer, topic string) service.AuditSink {
	return &KafkaAuditSink{producer: producer, topic: topic}
}

func (s *KafkaAuditSink) Record(ctx context.Context, d *models.Decision) error {
	return s.producer.Publish(ctx, s.topic, []byte(d.ID), d)
}

func (s *KafkaAuditSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}

package repository

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	pkgkafka "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/kafka"
)

// KafkaSnapshotPublisher pushes market snapshots onto the analysis record
// topic, keyed by symbol so per-symbol ordering holds within a partition.
type KafkaSnapshotPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSnapshotPublisher(producer *pkgkafka.Producer, topic string) *KafkaSnapshotPublisher {
	return &KafkaSnapshotPublisher{producer: producer, topic: topic}
}

func (p *KafkaSnapshotPublisher) PublishSnapshot(ctx context.Context, s *models.MarketSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), s)
}

// PublishSnapshotBatch sends a batch in one produce call.
func (p *KafkaSnapshotPublisher) PublishSnapshotBatch(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(snaps))
	for i, s := range snaps {
		msgs[i] = pkgkafka.Message{Key: []byte(s.Symbol), Value: s}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaSnapshotPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	pkgkafka "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/kafka"
)

// KafkaSnapshotSink consumes snapshot records from the analysis topic and
// writes them to the snapshot store.
type KafkaSnapshotSink struct {
	topic   string
	store   domrepo.SnapshotStore
	metrics domrepo.Metrics
}

func NewKafkaSnapshotSink(topic string, store domrepo.SnapshotStore, metrics domrepo.Metrics) *KafkaSnapshotSink {
	return &KafkaSnapshotSink{topic: topic, store: store, metrics: metrics}
}

func (h *KafkaSnapshotSink) Topic() string { return h.topic }

func (h *KafkaSnapshotSink) Handle(ctx context.Context, b []byte) error {
	var s models.MarketSnapshot
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if s.Symbol == "" || s.Timestamp.IsZero() {
		h.metrics.RecordDataDrop("sink_invalid")
		return nil
	}
	// E2E latency from event time to sink write.
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(s.Timestamp).Seconds())

	start := time.Now()
	err := h.store.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotSink)(nil)

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/history"
)

// SnapshotPublisher pushes snapshots onto the analysis record stream.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, s *models.MarketSnapshot) error
	Close() error
}

// SnapshotProcessor folds each validated snapshot into the rolling history
// and routes a copy to the configured persistence backend. Batches are used
// for the direct store path.
type SnapshotProcessor struct {
	history *history.Store
	pub     SnapshotPublisher
	store   drepo.SnapshotStore
	metrics drepo.Metrics
	backend string
	batchSz int

	mu    sync.Mutex
	batch []*models.MarketSnapshot
}

// NewSnapshotProcessor creates a processor. Backend is one of "kafka",
// "clickhouse", or "" for in-memory only.
func NewSnapshotProcessor(
	hist *history.Store,
	pub SnapshotPublisher,
	store drepo.SnapshotStore,
	metrics drepo.Metrics,
	backend string,
	batchSz int,
) *SnapshotProcessor {
	if batchSz <= 0 {
		batchSz = 100
	}
	return &SnapshotProcessor{
		history: hist,
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		batchSz: batchSz,
	}
}

// Process ingests one snapshot. Non-monotonic snapshots are dropped and
// counted; persistence errors are returned so the pipeline can buffer.
func (p *SnapshotProcessor) Process(ctx context.Context, s *models.MarketSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	start := time.Now()

	if !p.history.AddSnapshot(s) {
		p.metrics.RecordDataDrop("snapshot_out_of_order")
		return nil
	}
	p.metrics.RecordLastPrice(s.Symbol, s.Price)

	var err error
	switch p.backend {
	case "kafka":
		if p.pub != nil {
			err = p.pub.PublishSnapshot(ctx, s)
		}
	case "clickhouse":
		err = p.storeBatched(ctx, s)
	}
	if err != nil {
		p.metrics.RecordError("snapshot_persist")
		return fmt.Errorf("persist snapshot: %w", err)
	}

	p.metrics.RecordLatency("snapshot_process", time.Since(start).Seconds())
	return nil
}

// storeBatched accumulates snapshots and writes them in batches.
func (p *SnapshotProcessor) storeBatched(ctx context.Context, s *models.MarketSnapshot) error {
	if p.store == nil {
		return nil
	}
	p.mu.Lock()
	p.batch = append(p.batch, s)
	if len(p.batch) < p.batchSz {
		p.mu.Unlock()
		return nil
	}
	batch := p.batch
	p.batch = nil
	p.mu.Unlock()
	return p.store.StoreBatch(ctx, batch)
}

// Flush drains any pending batch; called on shutdown.
func (p *SnapshotProcessor) Flush(ctx context.Context) error {
	p.mu.Lock()
	batch := p.batch
	p.batch = nil
	p.mu.Unlock()
	if len(batch) == 0 || p.store == nil {
		return nil
	}
	return p.store.StoreBatch(ctx, batch)
}

// Close flushes and closes the backends.
func (p *SnapshotProcessor) Close() {
	_ = p.Flush(context.Background())
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

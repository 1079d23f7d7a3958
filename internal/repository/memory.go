package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
)

// MemoryParamStore keeps parameter generations in process memory. Used when
// Redis is disabled; state does not survive a restart.
type MemoryParamStore struct {
	mu      sync.Mutex
	latest  *models.Parameters
	applied map[string]time.Time
}

var _ domrepo.ParamStore = (*MemoryParamStore)(nil)

func NewMemoryParamStore() *MemoryParamStore {
	return &MemoryParamStore{applied: make(map[string]time.Time)}
}

func (m *MemoryParamStore) SaveGeneration(ctx context.Context, p *models.Parameters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = p.Clone()
	return nil
}

func (m *MemoryParamStore) LoadLatest(ctx context.Context) (*models.Parameters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil, nil
	}
	return m.latest.Clone(), nil
}

func (m *MemoryParamStore) MarkApplied(ctx context.Context, directiveID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.applied[directiveID]; ok && now.Before(exp) {
		return false, nil
	}
	m.applied[directiveID] = now.Add(ttl)
	return true, nil
}

// MemoryAttributionStore retains the most recent reports in a bounded ring.
type MemoryAttributionStore struct {
	mu      sync.Mutex
	reports []models.PerformanceReport
	max     int
}

var _ domrepo.AttributionStore = (*MemoryAttributionStore)(nil)

func NewMemoryAttributionStore(max int) *MemoryAttributionStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryAttributionStore{max: max}
}

func (m *MemoryAttributionStore) StoreReport(ctx context.Context, r *models.PerformanceReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, *r)
	if len(m.reports) > m.max {
		m.reports = m.reports[len(m.reports)-m.max:]
	}
	return nil
}

func (m *MemoryAttributionStore) RecentReports(ctx context.Context, n int) ([]models.PerformanceReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.reports) {
		n = len(m.reports)
	}
	out := make([]models.PerformanceReport, n)
	// newest first
	for i := 0; i < n; i++ {
		out[i] = m.reports[len(m.reports)-1-i]
	}
	return out, nil
}

// NullSnapshotStore discards writes and serves no history. Used when
// ClickHouse is disabled; the in-memory rolling history still feeds the
// analyzers.
type NullSnapshotStore struct{}

var _ domrepo.SnapshotStore = (*NullSnapshotStore)(nil)

func NewNullSnapshotStore() *NullSnapshotStore { return &NullSnapshotStore{} }

func (NullSnapshotStore) Init(ctx context.Context) error { return nil }
func (NullSnapshotStore) Store(ctx context.Context, s *models.MarketSnapshot) error {
	return nil
}
func (NullSnapshotStore) StoreBatch(ctx context.Context, snaps []*models.MarketSnapshot) error {
	return nil
}
func (NullSnapshotStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	return nil, nil
}
func (NullSnapshotStore) Health(ctx context.Context) error { return nil }
func (NullSnapshotStore) Close() error                     { return nil }

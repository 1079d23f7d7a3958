package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

type countingMetrics struct {
	mu    sync.Mutex
	drops map[string]int
	errs  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{drops: make(map[string]int), errs: make(map[string]int)}
}

func (m *countingMetrics) RecordDataDrop(kind string) {
	m.mu.Lock()
	m.drops[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errs[kind]++
	m.mu.Unlock()
}

func (m *countingMetrics) dropCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops[kind]
}

func (m *countingMetrics) RecordLateDrop(string)           {}
func (m *countingMetrics) RecordLastPrice(string, float64) {}
func (m *countingMetrics) RecordAssessment(string, string) {}
func (m *countingMetrics) RecordDecision(string, string)   {}
func (m *countingMetrics) RecordRisk(string)               {}
func (m *countingMetrics) RecordFill(string, float64)      {}
func (m *countingMetrics) RecordEquity(float64, float64)   {}
func (m *countingMetrics) RecordGeneration(uint64)         {}
func (m *countingMetrics) RecordLatency(string, float64)   {}

type stubProc struct {
	mu       sync.Mutex
	failLeft int
	got      []*models.MarketSnapshot
}

func (p *stubProc) Process(_ context.Context, s *models.MarketSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failLeft > 0 {
		p.failLeft--
		return errors.New("downstream unavailable")
	}
	p.got = append(p.got, s)
	return nil
}

func (p *stubProc) received() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func snap(symbol string) *models.MarketSnapshot {
	return &models.MarketSnapshot{Symbol: symbol, Timestamp: time.Now(), Price: 1.25, Volume1m: 100}
}

func TestProcessRejectsInvalidSnapshot(t *testing.T) {
	m := newCountingMetrics()
	p := NewRealtimePipeline(&stubProc{}, m)

	cases := []*models.MarketSnapshot{
		nil,
		{Timestamp: time.Now(), Price: 1},
		{Symbol: "SOL", Price: 1},
		{Symbol: "SOL", Timestamp: time.Now(), Price: -1},
	}
	for i, s := range cases {
		if err := p.Process(context.Background(), s); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
	if got := m.dropCount("snapshot_invalid"); got != len(cases) {
		t.Fatalf("expected %d invalid drops, got %d", len(cases), got)
	}
}

func TestProcessThrottlesPerSymbol(t *testing.T) {
	m := newCountingMetrics()
	proc := &stubProc{}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1))

	if err := p.Process(context.Background(), snap("SOL")); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if err := p.Process(context.Background(), snap("SOL")); err != nil {
		t.Fatalf("throttled snapshot should drop silently, got %v", err)
	}
	// a different symbol has its own budget
	if err := p.Process(context.Background(), snap("JUP")); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	if got := proc.received(); got != 2 {
		t.Fatalf("expected 2 delivered, got %d", got)
	}
	if got := m.dropCount("pipeline_throttle"); got != 1 {
		t.Fatalf("expected 1 throttle drop, got %d", got)
	}
}

func TestProcessBuffersOnDownstreamErrorAndFlushes(t *testing.T) {
	m := newCountingMetrics()
	proc := &stubProc{failLeft: 1}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1000))

	if err := p.Process(context.Background(), snap("SOL")); err == nil {
		t.Fatal("expected downstream error")
	}
	if got := proc.received(); got != 0 {
		t.Fatalf("expected nothing delivered yet, got %d", got)
	}

	p.Start(context.Background())
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.received() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered snapshot never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBufferOverflowDrops(t *testing.T) {
	m := newCountingMetrics()
	proc := &stubProc{failLeft: 10}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1000), WithBufferSize(1))

	for i := 0; i < 3; i++ {
		_ = p.Process(context.Background(), snap("SOL"))
	}
	if got := m.dropCount("pipeline_buffer"); got != 2 {
		t.Fatalf("expected 2 overflow drops, got %d", got)
	}
}

package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

func assessAt(ts time.Time, score float64) models.Assessment {
	return models.Assessment{
		Domain:     models.DomainVolatility,
		Symbol:     "SOLUSDT",
		Timestamp:  ts,
		Score:      score,
		Confidence: 0.9,
	}
}

func TestPublishAndLatest(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(assessAt(ts, 0.4))
	b.Publish(assessAt(ts.Add(5*time.Second), 0.6))

	got, ok := b.Latest(models.DomainVolatility, "SOLUSDT")
	if !ok {
		t.Fatalf("expected latest")
	}
	if got.Score != 0.6 {
		t.Fatalf("unexpected score %v", got.Score)
	}
}

func TestLateAssessmentDropped(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(assessAt(ts, 0.5))
	b.Publish(assessAt(ts.Add(-10*time.Second), 0.1))

	got, _ := b.Latest(models.DomainVolatility, "SOLUSDT")
	if got.Score != 0.5 {
		t.Fatalf("late arrival should not replace head, got score %v", got.Score)
	}
	if w := b.Window(models.DomainVolatility, "SOLUSDT", time.Hour); len(w) != 1 {
		t.Fatalf("late arrival should not be retained, window %d", len(w))
	}
}

func TestIdenticalTimestampIdempotent(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(assessAt(ts, 0.5))
	b.Publish(assessAt(ts, 0.9))

	got, _ := b.Latest(models.DomainVolatility, "SOLUSDT")
	if got.Score != 0.5 {
		t.Fatalf("republish with same ts must be a no-op, got %v", got.Score)
	}
	if w := b.Window(models.DomainVolatility, "SOLUSDT", time.Hour); len(w) != 1 {
		t.Fatalf("expected single retained assessment, got %d", len(w))
	}
}

func TestInvalidAssessmentRejected(t *testing.T) {
	b := New(nil)
	defer b.Close()

	a := assessAt(time.Now(), 1.5) // score out of range
	b.Publish(a)
	if _, ok := b.Latest(models.DomainVolatility, "SOLUSDT"); ok {
		t.Fatalf("invalid assessment must not be retained")
	}
}

func TestRetentionPrunes(t *testing.T) {
	b := New(nil, WithRetention(models.DomainVolatility, time.Minute))
	defer b.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		b.Publish(assessAt(ts.Add(time.Duration(i)*time.Minute), 0.5))
	}

	w := b.Window(models.DomainVolatility, "SOLUSDT", time.Hour)
	if len(w) != 2 {
		t.Fatalf("expected 2 retained after pruning, got %d", len(w))
	}
	if !w[0].Timestamp.Equal(ts.Add(3 * time.Minute)) {
		t.Fatalf("unexpected oldest retained ts %v", w[0].Timestamp)
	}
}

func TestSubscribeReceives(t *testing.T) {
	b := New(nil)
	defer b.Close()

	var mu sync.Mutex
	var got []models.Assessment
	done := make(chan struct{})
	b.Subscribe(models.DomainVolatility, func(a models.Assessment) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
		close(done)
	})

	b.Publish(assessAt(time.Now(), 0.7))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("subscriber did not receive assessment")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Score != 0.7 {
		t.Fatalf("unexpected delivery %+v", got)
	}
}

func TestFusedViewStaleness(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Publish(assessAt(ts, 0.5))
	fresh := models.Assessment{
		Domain: models.DomainSwing, Symbol: "SOLUSDT",
		Timestamp: ts.Add(50 * time.Second), Score: 0.8, Confidence: 0.6,
	}
	b.Publish(fresh)

	now := ts.Add(time.Minute)
	staleness := map[string]time.Duration{
		models.DomainVolatility: 30 * time.Second,
		models.DomainSwing:      30 * time.Second,
		models.DomainCatalyst:   30 * time.Second,
	}
	v := b.FusedView("SOLUSDT", now, staleness)

	if v.Present(models.DomainVolatility) {
		t.Fatalf("stale domain must be missing, not zero-filled")
	}
	if !v.Present(models.DomainSwing) {
		t.Fatalf("fresh domain must be present")
	}
	if len(v.Missing) != 2 {
		t.Fatalf("expected volatility and catalyst missing, got %v", v.Missing)
	}
}

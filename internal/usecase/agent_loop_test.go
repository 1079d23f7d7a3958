package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/scheduler"
)

func TestAgentLoopReconcilesPeriodically(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sched := scheduler.New(scheduler.NewVirtualClock(start), nil)
	frozen := NewFreezeList(nil)
	tr := NewTracker(10000, 0.15, 24*time.Hour, 0.01, nil, nil, nil, frozen, nil, nil)
	venue := newFakeExchange(100)
	venue.positions = []models.Position{{Symbol: "SOLUSDT", Size: 5, EntryVWAP: 100}}
	cfg := engineConfig()
	cfg.Decision.TickMs = 3600000 // keep the decision cadence out of the window
	engine := NewExecutionEngine(venue, &fakeMarket{price: 100}, tr, cfg, nil, nil)

	loop := NewAgentLoop(nil, nil, nil, engine, tr, nil,
		&fakeMarket{price: 100}, venue, nil, frozen, sched, cfg, nil, nil)
	loop.Schedule()

	registered := false
	for _, name := range sched.Jobs() {
		if name == "tracker.reconcile" {
			registered = true
		}
	}
	if !registered {
		t.Fatalf("reconcile cadence not registered, jobs=%v", sched.Jobs())
	}

	ctx := context.Background()
	sched.Start(ctx)
	defer sched.Stop()

	// First cadence seeds the mirror from the venue.
	sched.Advance(ctx, time.Minute+time.Second)
	if len(tr.OpenPositions()) != 1 {
		t.Fatalf("mirror not seeded from the venue: %v", tr.OpenPositions())
	}

	// The venue loses the position behind the agent's back; the next cadence
	// must notice and freeze the symbol.
	venue.positions = nil
	sched.Advance(ctx, time.Minute+time.Second)
	if len(tr.OpenPositions()) != 0 {
		t.Fatalf("mirror kept a position the venue no longer has")
	}
	if _, ok := frozen.Frozen("SOLUSDT"); !ok {
		t.Fatalf("mirror/venue divergence must freeze the symbol")
	}
}

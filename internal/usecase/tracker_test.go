package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

type captureReports struct {
	reports []*models.PerformanceReport
}

func (c *captureReports) OnReport(_ context.Context, r *models.PerformanceReport) {
	c.reports = append(c.reports, r)
}

func newTestTracker() *Tracker {
	return NewTracker(10000, 0.15, 24*time.Hour, 0.01, nil, nil, nil, nil, nil, nil)
}

func newFrozenTracker() (*Tracker, *FreezeList) {
	frozen := NewFreezeList(nil)
	return NewTracker(10000, 0.15, 24*time.Hour, 0.01, nil, nil, nil, frozen, nil, nil), frozen
}

func entryResult(now time.Time, side models.Side, size, price, fees float64) *models.PlanResult {
	return &models.PlanResult{
		PlanID: "plan-1", IntentID: "intent-1", Symbol: "SOLUSDT", Side: side,
		FilledSize: size, AvgPrice: price, Fees: fees,
		Completed: true, FinishedAt: now,
	}
}

func TestTrackerRealizesPnLOnClose(t *testing.T) {
	tr := newTestTracker()
	sink := &captureReports{}
	tr.SetSink(sink)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	intent := &models.TradeIntent{
		ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy,
		Score: 0.7, Confidence: 0.8,
		DomainShares: map[string]float64{models.DomainSwing: 0.6, models.DomainCatalyst: 0.4},
	}
	tr.OnPlanResult(ctx, intent, entryResult(now, models.SideBuy, 5, 100, 1))

	if len(tr.OpenPositions()) != 1 {
		t.Fatalf("expected one mirrored position")
	}
	if math.Abs(tr.Equity()-9999) > 1e-9 {
		t.Fatalf("equity after entry fees = %v, want 9999", tr.Equity())
	}

	exit := entryResult(now.Add(time.Hour), models.SideClose, 5, 110, 1)
	tr.OnPlanResult(ctx, intent, exit)

	// P&L = (110-100)*5 - 1 exit fee = 49.
	if math.Abs(tr.Equity()-10048) > 1e-9 {
		t.Fatalf("equity after close = %v, want 10048", tr.Equity())
	}
	if len(tr.OpenPositions()) != 0 {
		t.Fatalf("position survived its close")
	}
	if len(sink.reports) != 1 {
		t.Fatalf("expected one report, got %d", len(sink.reports))
	}
	r := sink.reports[0]
	if math.Abs(r.RealizedPnL-49) > 1e-9 {
		t.Fatalf("report pnl = %v, want 49", r.RealizedPnL)
	}
	if r.Attribution[models.DomainSwing] != 0.6 || r.Attribution[models.DomainCatalyst] != 0.4 {
		t.Fatalf("attribution = %v, want the intent's shares", r.Attribution)
	}
	if r.IntentID != "intent-1" {
		t.Fatalf("report intent id = %s", r.IntentID)
	}
}

func TestTrackerBrakeLatchesAndReleases(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	intent := &models.TradeIntent{ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy}
	tr.OnPlanResult(ctx, intent, entryResult(now, models.SideBuy, 100, 100, 0))

	// Close at a heavy loss: (80-100)*100 = -2000, 20% drawdown.
	tr.OnPlanResult(ctx, intent, entryResult(now.Add(time.Hour), models.SideClose, 100, 80, 0))

	if !tr.BrakeActive(now.Add(time.Hour)) {
		t.Fatalf("brake must latch at max drawdown")
	}
	// Still latched after recovery time while drawdown exceeds the limit.
	if !tr.BrakeActive(now.Add(48 * time.Hour)) {
		t.Fatalf("brake must stay latched while drawdown persists")
	}

	// A winning trade lifts equity back above the threshold.
	tr.OnPlanResult(ctx, intent, entryResult(now.Add(49*time.Hour), models.SideBuy, 100, 100, 0))
	tr.OnPlanResult(ctx, intent, entryResult(now.Add(50*time.Hour), models.SideClose, 100, 115, 0))

	// Recovery window is measured from the last loss.
	if !tr.BrakeActive(now.Add(2 * time.Hour)) {
		t.Fatalf("brake must hold until the recovery period elapses")
	}
	if tr.BrakeActive(now.Add(72 * time.Hour)) {
		t.Fatalf("brake must release after recovery with drawdown healed")
	}
}

func TestTrackerMarkToMarket(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	intent := &models.TradeIntent{ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy}
	tr.OnPlanResult(ctx, intent, entryResult(now, models.SideBuy, 5, 100, 0))

	tr.MarkToMarket(&fakeMarket{price: 104}, now.Add(time.Minute))
	pos := tr.OpenPositions()[0]
	if math.Abs(pos.UnrealizedPnL-20) > 1e-9 {
		t.Fatalf("unrealized = %v, want 20", pos.UnrealizedPnL)
	}
}

func TestTrackerCloseWithoutEntryIsIgnored(t *testing.T) {
	tr := newTestTracker()
	sink := &captureReports{}
	tr.SetSink(sink)
	intent := &models.TradeIntent{ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy}

	tr.OnPlanResult(context.Background(), intent, entryResult(time.Now(), models.SideClose, 5, 100, 0))
	if len(sink.reports) != 0 {
		t.Fatalf("close without a recorded entry must not report")
	}
	if tr.Equity() != 10000 {
		t.Fatalf("equity changed without a position: %v", tr.Equity())
	}
}

func TestTrackerStackedEntriesMergeVWAP(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	intent := &models.TradeIntent{ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy}

	tr.OnPlanResult(ctx, intent, entryResult(now, models.SideBuy, 5, 100, 0))
	second := entryResult(now.Add(time.Minute), models.SideBuy, 5, 110, 0)
	second.PlanID, second.IntentID = "plan-2", "intent-2"
	tr.OnPlanResult(ctx, intent, second)

	positions := tr.OpenPositions()
	if len(positions) != 1 {
		t.Fatalf("stacked entries must stay one position, got %d", len(positions))
	}
	pos := positions[0]
	if math.Abs(pos.Size-10) > 1e-9 {
		t.Fatalf("merged size = %v, want 10", pos.Size)
	}
	if math.Abs(pos.EntryVWAP-105) > 1e-9 {
		t.Fatalf("merged entry price = %v, want volume-weighted 105", pos.EntryVWAP)
	}
}

func TestTrackerFreezesOnNegativeFill(t *testing.T) {
	tr, frozen := newFrozenTracker()
	res := entryResult(time.Now(), models.SideBuy, -1, 100, 0)

	tr.OnPlanResult(context.Background(), &models.TradeIntent{Symbol: "SOLUSDT"}, res)
	if _, ok := frozen.Frozen("SOLUSDT"); !ok {
		t.Fatalf("negative filled size must freeze the symbol")
	}
	if len(tr.OpenPositions()) != 0 {
		t.Fatalf("a frozen result must not enter the mirror")
	}
}

func TestTrackerFreezesOnBadAttribution(t *testing.T) {
	tr, frozen := newFrozenTracker()
	sink := &captureReports{}
	tr.SetSink(sink)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	intent := &models.TradeIntent{
		ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy,
		DomainShares: map[string]float64{models.DomainSwing: 0.6, models.DomainCatalyst: 0.6},
	}
	tr.OnPlanResult(ctx, intent, entryResult(now, models.SideBuy, 5, 100, 0))
	tr.OnPlanResult(ctx, intent, entryResult(now.Add(time.Hour), models.SideClose, 5, 110, 0))

	if _, ok := frozen.Frozen("SOLUSDT"); !ok {
		t.Fatalf("attribution not summing to one must freeze the symbol")
	}
	if len(sink.reports) != 0 {
		t.Fatalf("report with invalid attribution must be suppressed")
	}
}

func TestTrackerReconcileFreezesDivergence(t *testing.T) {
	tr, frozen := newFrozenTracker()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	venue := &fakeExchange{positions: []models.Position{
		{Symbol: "SOLUSDT", Size: 5, EntryVWAP: 100},
	}}

	// First pass seeds the mirror without complaint.
	if err := tr.Reconcile(ctx, venue); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if reason, ok := frozen.Frozen("SOLUSDT"); ok {
		t.Fatalf("seeding pass froze the symbol: %s", reason)
	}

	intent := &models.TradeIntent{ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy}
	tr.OnPlanResult(ctx, intent, entryResult(now, models.SideBuy, 3, 100, 0))

	// Venue says 5, mirror says 8: freeze.
	if err := tr.Reconcile(ctx, venue); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if _, ok := frozen.Frozen("SOLUSDT"); !ok {
		t.Fatalf("mirror/venue divergence must freeze the symbol")
	}
}

func TestTrackerReconcileSkipsBusySymbols(t *testing.T) {
	tr, frozen := newFrozenTracker()
	tr.SetBusy(func(string) bool { return true })
	ctx := context.Background()
	venue := &fakeExchange{positions: []models.Position{
		{Symbol: "SOLUSDT", Size: 5, EntryVWAP: 100},
	}}

	if err := tr.Reconcile(ctx, venue); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	venue.positions = nil
	if err := tr.Reconcile(ctx, venue); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if reason, ok := frozen.Frozen("SOLUSDT"); ok {
		t.Fatalf("busy symbol must not freeze mid-plan: %s", reason)
	}
}

func TestTrackerExecutionQuality(t *testing.T) {
	tr := newTestTracker()
	perfect := tr.executionQuality(
		&models.PlanResult{Completed: true},
		&models.PlanResult{Completed: true},
	)
	if perfect != 1 {
		t.Fatalf("clean round trip quality = %v, want 1", perfect)
	}
	rough := tr.executionQuality(
		&models.PlanResult{Completed: true, RetriesUsed: 2, AggSlippage: 0.01},
		&models.PlanResult{Completed: false},
	)
	if rough >= perfect {
		t.Fatalf("retries, slippage and incompletion must cost quality: %v", rough)
	}
}

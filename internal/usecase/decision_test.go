package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/bus"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

type stubGuard bool

func (g stubGuard) HasOpenPlan(string) bool { return bool(g) }

func testParams() *models.Parameters {
	weights := make(map[string]float64)
	for _, d := range models.AllDomains() {
		weights[d] = 1
	}
	return &models.Parameters{
		Generation:        7,
		CreatedAt:         time.Now(),
		Weights:           weights,
		EnterThreshold:    0.6,
		HoldThreshold:     0.4,
		Quorum:            3,
		BaseSize:          1000,
		SingleAssetLimit:  0.2,
		CategoryLimit:     0.4,
		PlatformLimit:     0.6,
		TotalExposure:     1,
		MaxDrawdown:       0.15,
		LeverageMin:       1,
		LeverageMax:       3,
		LeverageVolCaps:   map[string]float64{models.VolBandLow: 3, models.VolBandModerate: 2, models.VolBandHigh: 1.5, models.VolBandExtreme: 1},
		CorrelationMax:    0.8,
		UrgencyMultiplier: 0.5,
		MaxSlippage:       0.01,
		WeightMin:         0.1,
		WeightMax:         3,
		LeverageAbsMax:    5,
		VolatilityCeiling: 0.8,
	}
}

func newTestEngine(t *testing.T, p *models.Parameters, guard PlanGuard) (*DecisionEngine, *bus.Bus, *FreezeList) {
	t.Helper()
	reg, err := NewParamRegister(p, nil, nil, nil)
	if err != nil {
		t.Fatalf("param register: %v", err)
	}
	b := bus.New(nil)
	t.Cleanup(b.Close)
	frozen := NewFreezeList(nil)
	staleness := make(map[string]time.Duration, len(models.AllDomains()))
	for _, d := range models.AllDomains() {
		staleness[d] = 5 * time.Minute
	}
	return NewDecisionEngine(b, reg, frozen, guard, staleness, nil, nil), b, frozen
}

func publish(b *bus.Bus, domain string, ts time.Time, score, conf float64, state string, comps map[string]float64) {
	b.Publish(models.Assessment{
		Domain: domain, Symbol: "SOLUSDT", Timestamp: ts,
		Score: score, Confidence: conf, State: state, Components: comps,
	})
}

func TestDecideEmitsBuyIntent(t *testing.T) {
	e, b, _ := newTestEngine(t, testParams(), stubGuard(false))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-time.Second)

	publish(b, models.DomainAccumulation, ts, 0.8, 1, models.PhaseAccumulationE, nil)
	publish(b, models.DomainSwing, ts, 0.9, 1, "", nil)
	publish(b, models.DomainBuyingPressure, ts, 0.7, 1, "", nil)
	publish(b, models.DomainCatalyst, ts, 0.8, 1, "", map[string]float64{"short_term": 0.6})
	publish(b, models.DomainVolatility, ts, 0.2, 1, models.VolBandLow, nil)

	d := e.Decide("SOLUSDT", now)
	if d.Intent == nil {
		t.Fatalf("expected intent, held with %v", d.Reasons)
	}
	if d.Intent.Side != models.SideBuy {
		t.Fatalf("side = %s, want BUY", d.Intent.Side)
	}
	if d.Intent.Generation != 7 {
		t.Fatalf("generation = %d, want 7", d.Intent.Generation)
	}
	wantScore := (0.8 + 0.9 + 0.7 + 0.8 + 0.2) / 5
	if math.Abs(d.Intent.Score-wantScore) > 1e-9 {
		t.Fatalf("score = %v, want %v", d.Intent.Score, wantScore)
	}
	wantNotional := 1000 * wantScore * (1 + 0.6*0.5)
	if math.Abs(d.Intent.TargetNotional-wantNotional) > 1e-9 {
		t.Fatalf("notional = %v, want %v", d.Intent.TargetNotional, wantNotional)
	}
	var sum float64
	for _, s := range d.Intent.DomainShares {
		if s < 0 {
			t.Fatalf("negative share in %v", d.Intent.DomainShares)
		}
		sum += s
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("domain shares sum to %v, want 1", sum)
	}
}

func TestDecideVolatilityCeilingHoldsUnconditionally(t *testing.T) {
	e, b, _ := newTestEngine(t, testParams(), stubGuard(false))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-time.Second)

	publish(b, models.DomainAccumulation, ts, 0.9, 1, "", nil)
	publish(b, models.DomainSwing, ts, 0.9, 1, "", nil)
	publish(b, models.DomainVolatility, ts, 0.9, 1, models.VolBandExtreme, map[string]float64{"ceiling_exceeded": 1})

	d := e.Decide("SOLUSDT", now)
	if !d.Hold {
		t.Fatalf("expected hold above the volatility ceiling")
	}
	if len(d.Reasons) == 0 || d.Reasons[0] != models.HoldVolatilityCeiling {
		t.Fatalf("reasons = %v, want %s", d.Reasons, models.HoldVolatilityCeiling)
	}
}

func TestDecideExtremeGreedBlocksBuy(t *testing.T) {
	e, b, _ := newTestEngine(t, testParams(), stubGuard(false))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-time.Second)

	publish(b, models.DomainAccumulation, ts, 0.9, 1, "", nil)
	publish(b, models.DomainSwing, ts, 0.8, 1, "", nil)
	publish(b, models.DomainFearGreed, ts, 0.95, 1, models.FGExtremeGreed, nil)

	d := e.Decide("SOLUSDT", now)
	if !d.Hold || len(d.Reasons) == 0 || d.Reasons[0] != models.HoldExtremeGreed {
		t.Fatalf("want extreme_greed hold, got intent=%v reasons=%v", d.Intent, d.Reasons)
	}
}

func TestDecideQuorum(t *testing.T) {
	e, b, _ := newTestEngine(t, testParams(), stubGuard(false))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	publish(b, models.DomainSwing, now.Add(-time.Second), 0.9, 1, "", nil)
	publish(b, models.DomainAccumulation, now.Add(-time.Second), 0.9, 1, "", nil)

	d := e.Decide("SOLUSDT", now)
	if !d.Hold || d.Reasons[0] != models.HoldInsufficientSignals {
		t.Fatalf("two of three quorum domains must hold, got %v", d.Reasons)
	}
}

func TestDecideStaleDomainBreaksQuorum(t *testing.T) {
	e, b, _ := newTestEngine(t, testParams(), stubGuard(false))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	publish(b, models.DomainSwing, now.Add(-time.Second), 0.9, 1, "", nil)
	publish(b, models.DomainAccumulation, now.Add(-time.Second), 0.9, 1, "", nil)
	publish(b, models.DomainCatalyst, now.Add(-10*time.Minute), 0.9, 1, "", nil)

	d := e.Decide("SOLUSDT", now)
	if !d.Hold || d.Reasons[0] != models.HoldInsufficientSignals {
		t.Fatalf("stale assessment must not count toward quorum, got %v", d.Reasons)
	}
}

func TestDecideTieHolds(t *testing.T) {
	p := testParams()
	p.Quorum = 2
	e, b, _ := newTestEngine(t, p, stubGuard(false))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ts := now.Add(-time.Second)

	// Equal and opposite directional lean with equal confidence.
	publish(b, models.DomainSwing, ts, 0.7, 0.8, "", nil)
	publish(b, models.DomainAccumulation, ts, 0.3, 0.8, "", nil)

	d := e.Decide("SOLUSDT", now)
	if !d.Hold || d.Reasons[0] != models.HoldTie {
		t.Fatalf("want tie hold, got intent=%v reasons=%v", d.Intent, d.Reasons)
	}
}

func TestDecideFrozenSymbolHolds(t *testing.T) {
	e, b, frozen := newTestEngine(t, testParams(), stubGuard(false))
	frozen.Freeze("SOLUSDT", "drawdown brake")
	now := time.Now()
	publish(b, models.DomainSwing, now.Add(-time.Second), 0.9, 1, "", nil)

	d := e.Decide("SOLUSDT", now)
	if !d.Hold || len(d.Reasons) == 0 {
		t.Fatalf("frozen symbol must hold")
	}
	if d.Reasons[0] != models.HoldSymbolFrozen+": drawdown brake" {
		t.Fatalf("reason = %q", d.Reasons[0])
	}
}

func TestDecideOpenPlanHolds(t *testing.T) {
	e, b, _ := newTestEngine(t, testParams(), stubGuard(true))
	now := time.Now()
	publish(b, models.DomainSwing, now.Add(-time.Second), 0.9, 1, "", nil)

	d := e.Decide("SOLUSDT", now)
	if !d.Hold || d.Reasons[0] != models.HoldPlanOpen {
		t.Fatalf("open plan must hold, got %v", d.Reasons)
	}
}

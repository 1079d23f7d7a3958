package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

type fakeMarket struct {
	price   float64
	snaps   []models.MarketSnapshot
	candles []models.Candle
	rets    []float64
}

func (m *fakeMarket) LastPrice(string) float64 { return m.price }
func (m *fakeMarket) Snapshots(string, time.Duration, time.Time) []models.MarketSnapshot {
	return m.snaps
}
func (m *fakeMarket) Candles(string, int) []models.Candle { return m.candles }
func (m *fakeMarket) Returns(string, int) []float64       { return m.rets }

func plannerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Execution.SliceCount = 4
	cfg.Execution.SliceWindow = 4 * time.Minute
	cfg.Execution.StopLossSigma = 2
	cfg.Execution.TakeProfitSigma = 3
	cfg.Execution.SmallSizeRatio = 0.01
	cfg.Execution.LargeSizeRatio = 0.05
	cfg.Execution.HighUrgency = 0.7
	return cfg
}

// Book with 1000 units resting each side around mid 100: liquidity 200000.
func liquidSnap(now time.Time) models.MarketSnapshot {
	return models.MarketSnapshot{
		Symbol: "SOLUSDT", Timestamp: now, Price: 100, Bid: 99.5, Ask: 100.5,
		Bids: []models.DepthLevel{{Price: 99.5, Size: 1000}},
		Asks: []models.DepthLevel{{Price: 100.5, Size: 1000}},
	}
}

func newTestPlanner(t *testing.T, m MarketState) *Planner {
	t.Helper()
	reg, err := NewParamRegister(testParams(), nil, nil, nil)
	if err != nil {
		t.Fatalf("param register: %v", err)
	}
	return NewPlanner(reg, m, plannerConfig(), nil)
}

func gatedIntent(side models.Side, urgency float64) *models.TradeIntent {
	return &models.TradeIntent{
		ID: "intent-1", Symbol: "SOLUSDT", Side: side,
		Urgency: urgency, Confidence: 0.8, CreatedAt: time.Now(),
	}
}

func TestPlanImmediateSmallUrgentOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := &fakeMarket{price: 100, snaps: []models.MarketSnapshot{liquidSnap(now)}}
	pl := newTestPlanner(t, m)

	plan := pl.Plan(gatedIntent(models.SideBuy, 0.9), &models.RiskDecision{AdjustedNotional: 500, Leverage: 2}, now)
	if len(plan.Slices) != 1 {
		t.Fatalf("immediate plan has %d slices, want 1", len(plan.Slices))
	}
	s := plan.Slices[0]
	if s.Style != models.StyleImmediate || s.State != models.SlicePending {
		t.Fatalf("slice style/state = %s/%s", s.Style, s.State)
	}
	if !s.ScheduledAt.Equal(now) {
		t.Fatalf("immediate slice scheduled at %v, want now", s.ScheduledAt)
	}
	if math.Abs(s.Size-500) > 1e-9 {
		t.Fatalf("slice size = %v, want full notional", s.Size)
	}
	if plan.Leverage != 2 {
		t.Fatalf("leverage = %v, want 2", plan.Leverage)
	}
}

func TestPlanTWAPSplitsEvenly(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := &fakeMarket{price: 100, snaps: []models.MarketSnapshot{liquidSnap(now)}}
	pl := newTestPlanner(t, m)

	plan := pl.Plan(gatedIntent(models.SideBuy, 0.3), &models.RiskDecision{AdjustedNotional: 5000, Leverage: 1}, now)
	if len(plan.Slices) != 4 {
		t.Fatalf("twap plan has %d slices, want 4", len(plan.Slices))
	}
	var total float64
	for i, s := range plan.Slices {
		if s.Style != models.StyleTWAP {
			t.Fatalf("slice %d style = %s, want TWAP", i, s.Style)
		}
		if math.Abs(s.Size-1250) > 1e-9 {
			t.Fatalf("slice %d size = %v, want 1250", i, s.Size)
		}
		want := now.Add(time.Duration(i) * time.Minute)
		if !s.ScheduledAt.Equal(want) {
			t.Fatalf("slice %d at %v, want %v", i, s.ScheduledAt, want)
		}
		total += s.Size
	}
	if math.Abs(total-5000) > 1e-9 {
		t.Fatalf("slices total %v, want the adjusted notional", total)
	}
}

func TestPlanVWAPWeightsByVolumeProfile(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := &fakeMarket{
		price: 100,
		snaps: []models.MarketSnapshot{liquidSnap(now)},
		candles: []models.Candle{
			{Symbol: "SOLUSDT", Volume: 1},
			{Symbol: "SOLUSDT", Volume: 2},
			{Symbol: "SOLUSDT", Volume: 3},
			{Symbol: "SOLUSDT", Volume: 4},
		},
	}
	pl := newTestPlanner(t, m)

	// 15000 / 200000 liquidity exceeds the large-size ratio.
	plan := pl.Plan(gatedIntent(models.SideBuy, 0.3), &models.RiskDecision{AdjustedNotional: 15000, Leverage: 1}, now)
	want := []float64{1500, 3000, 4500, 6000}
	if len(plan.Slices) != len(want) {
		t.Fatalf("vwap plan has %d slices, want %d", len(plan.Slices), len(want))
	}
	var total float64
	for i, s := range plan.Slices {
		if s.Style != models.StyleVWAP {
			t.Fatalf("slice %d style = %s, want VWAP", i, s.Style)
		}
		if math.Abs(s.Size-want[i]) > 1e-9 {
			t.Fatalf("slice %d size = %v, want %v", i, s.Size, want[i])
		}
		total += s.Size
	}
	if math.Abs(total-15000) > 1e-9 {
		t.Fatalf("slices total %v, want the adjusted notional", total)
	}
}

func TestPlanAdaptiveUnderHighVolatility(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rets := make([]float64, 60)
	for i := range rets {
		if i%2 == 0 {
			rets[i] = 0.01
		} else {
			rets[i] = -0.01
		}
	}
	m := &fakeMarket{price: 100, snaps: []models.MarketSnapshot{liquidSnap(now)}, rets: rets}
	pl := newTestPlanner(t, m)

	plan := pl.Plan(gatedIntent(models.SideBuy, 0.9), &models.RiskDecision{AdjustedNotional: 500, Leverage: 1}, now)
	if plan.Slices[0].Style != models.StyleAdaptive {
		t.Fatalf("style = %s, want ADAPTIVE under volatile returns", plan.Slices[0].Style)
	}
}

func TestPlanStopLevelsPerSide(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rets := make([]float64, 60)
	for i := range rets {
		if i%2 == 0 {
			rets[i] = 0.001
		} else {
			rets[i] = -0.001
		}
	}
	m := &fakeMarket{price: 100, snaps: []models.MarketSnapshot{liquidSnap(now)}, rets: rets}
	pl := newTestPlanner(t, m)

	buy := pl.Plan(gatedIntent(models.SideBuy, 0.3), &models.RiskDecision{AdjustedNotional: 500, Leverage: 1}, now)
	if !(buy.StopLoss < 100 && buy.TakeProfit > 100) {
		t.Fatalf("buy stop=%v tp=%v, want stop below and tp above price", buy.StopLoss, buy.TakeProfit)
	}

	sell := pl.Plan(gatedIntent(models.SideSell, 0.3), &models.RiskDecision{AdjustedNotional: 500, Leverage: 1}, now)
	if !(sell.StopLoss > 100 && sell.TakeProfit < 100) {
		t.Fatalf("sell stop=%v tp=%v, want stop above and tp below price", sell.StopLoss, sell.TakeProfit)
	}
}

package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/bus"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

type stubPortfolio struct {
	equity    float64
	drawdown  float64
	brake     bool
	positions []models.Position
}

func (s *stubPortfolio) Equity() float64                  { return s.equity }
func (s *stubPortfolio) Drawdown() float64                { return s.drawdown }
func (s *stubPortfolio) BrakeActive(time.Time) bool       { return s.brake }
func (s *stubPortfolio) OpenPositions() []models.Position { return s.positions }

type stubReturns map[string][]float64

func (s stubReturns) Returns(symbol string, n int) []float64 { return s[symbol] }

func newTestGate(t *testing.T, p *models.Parameters, pf Portfolio, rs ReturnSource) (*RiskGate, *bus.Bus) {
	t.Helper()
	reg, err := NewParamRegister(p, nil, nil, nil)
	if err != nil {
		t.Fatalf("param register: %v", err)
	}
	b := bus.New(nil)
	t.Cleanup(b.Close)
	categories := map[string]string{"BONKUSDT": "meme", "WIFUSDT": "meme", "SOLUSDT": "l1"}
	return NewRiskGate(reg, pf, rs, b, categories, 120, nil, nil), b
}

func buyIntent(symbol string, notional, conf float64) *models.TradeIntent {
	return &models.TradeIntent{
		ID: "intent-1", Symbol: symbol, Side: models.SideBuy,
		TargetNotional: notional, Confidence: conf, CreatedAt: time.Now(),
	}
}

func TestGateResizesToSingleAssetCap(t *testing.T) {
	pf := &stubPortfolio{
		equity: 10000,
		positions: []models.Position{
			{Symbol: "SOLUSDT", Size: 5, EntryVWAP: 200}, // 1000 held
		},
	}
	g, _ := newTestGate(t, testParams(), pf, nil)

	// Cap is 0.2*10000 = 2000, 1000 already held, so headroom is 1000.
	d := g.Gate(buyIntent("SOLUSDT", 1500, 1), time.Now())
	if d.Outcome != models.RiskResize {
		t.Fatalf("outcome = %s, want RESIZE", d.Outcome)
	}
	if math.Abs(d.AdjustedNotional-1000) > 1e-9 {
		t.Fatalf("adjusted = %v, want 1000", d.AdjustedNotional)
	}
	if len(d.Reasons) == 0 || d.Reasons[0] != models.RiskReasonSingleAsset {
		t.Fatalf("reasons = %v", d.Reasons)
	}
}

func TestGateRejectsWhenNoHeadroom(t *testing.T) {
	pf := &stubPortfolio{
		equity: 10000,
		positions: []models.Position{
			{Symbol: "SOLUSDT", Size: 10, EntryVWAP: 200}, // at the 2000 cap
		},
	}
	g, _ := newTestGate(t, testParams(), pf, nil)

	d := g.Gate(buyIntent("SOLUSDT", 500, 1), time.Now())
	if d.Outcome != models.RiskReject || d.AdjustedNotional != 0 {
		t.Fatalf("outcome = %s adjusted = %v, want reject with zero", d.Outcome, d.AdjustedNotional)
	}
}

func TestGateCategoryCap(t *testing.T) {
	pf := &stubPortfolio{
		equity: 10000,
		positions: []models.Position{
			{Symbol: "WIFUSDT", Size: 3500, EntryVWAP: 1}, // 3500 in meme
		},
	}
	g, _ := newTestGate(t, testParams(), pf, nil)

	// Category cap 0.4*10000 = 4000; meme holds 3500, headroom 500.
	d := g.Gate(buyIntent("BONKUSDT", 1000, 1), time.Now())
	if d.Outcome != models.RiskResize {
		t.Fatalf("outcome = %s, want RESIZE", d.Outcome)
	}
	if math.Abs(d.AdjustedNotional-500) > 1e-9 {
		t.Fatalf("adjusted = %v, want 500", d.AdjustedNotional)
	}
	if d.Reasons[0] != models.RiskReasonCategory {
		t.Fatalf("reasons = %v", d.Reasons)
	}
}

func TestGateDrawdownBrakeRejectsBuyButPassesClose(t *testing.T) {
	pf := &stubPortfolio{equity: 10000, brake: true}
	g, _ := newTestGate(t, testParams(), pf, nil)

	d := g.Gate(buyIntent("SOLUSDT", 500, 1), time.Now())
	if d.Outcome != models.RiskReject || d.Reasons[0] != models.RiskReasonDrawdown {
		t.Fatalf("buy under brake = %s %v, want drawdown reject", d.Outcome, d.Reasons)
	}

	cl := &models.TradeIntent{ID: "intent-2", Symbol: "SOLUSDT", Side: models.SideClose, TargetNotional: 500}
	d = g.Gate(cl, time.Now())
	if d.Outcome != models.RiskAccept {
		t.Fatalf("close under brake = %s, want ACCEPT", d.Outcome)
	}
	if math.Abs(d.AdjustedNotional-500) > 1e-9 {
		t.Fatalf("close adjusted = %v, want unchanged", d.AdjustedNotional)
	}
}

func TestGateLeverageBandAndConfidence(t *testing.T) {
	pf := &stubPortfolio{equity: 10000}
	g, b := newTestGate(t, testParams(), pf, nil)

	b.Publish(models.Assessment{
		Domain: models.DomainVolatility, Symbol: "SOLUSDT",
		Timestamp: time.Now(), Score: 0.7, Confidence: 1,
		State: models.VolBandHigh,
	})

	// High band caps leverage at 1.5; half confidence lands midway from 1.
	d := g.Gate(buyIntent("SOLUSDT", 500, 0.5), time.Now())
	if d.Outcome != models.RiskAccept {
		t.Fatalf("outcome = %s, want ACCEPT", d.Outcome)
	}
	if math.Abs(d.Leverage-1.25) > 1e-9 {
		t.Fatalf("leverage = %v, want 1.25", d.Leverage)
	}

	d = g.Gate(buyIntent("SOLUSDT", 500, 1), time.Now())
	if math.Abs(d.Leverage-1.5) > 1e-9 {
		t.Fatalf("full-confidence leverage = %v, want band cap 1.5", d.Leverage)
	}
}

func TestGateCorrelationBucket(t *testing.T) {
	ret := func(pattern []float64, n int) []float64 {
		out := make([]float64, 0, n)
		for len(out) < n {
			out = append(out, pattern...)
		}
		return out[:n]
	}
	rs := stubReturns{
		"SOLUSDT": ret([]float64{0.01, -0.02, 0.015, -0.005}, 40),
		"WIFUSDT": ret([]float64{0.01, -0.02, 0.015, -0.005}, 40), // identical, corr 1
	}
	pf := &stubPortfolio{
		equity: 10000,
		positions: []models.Position{
			{Symbol: "WIFUSDT", Size: 3800, EntryVWAP: 1},
		},
	}
	g, _ := newTestGate(t, testParams(), pf, rs)

	// Correlated bucket shares the 4000 category budget: headroom 200.
	d := g.Gate(buyIntent("SOLUSDT", 1000, 1), time.Now())
	if d.Outcome != models.RiskResize {
		t.Fatalf("outcome = %s, want RESIZE", d.Outcome)
	}
	if math.Abs(d.AdjustedNotional-200) > 1e-9 {
		t.Fatalf("adjusted = %v, want 200", d.AdjustedNotional)
	}
	if d.Reasons[0] != models.RiskReasonCorrelation {
		t.Fatalf("reasons = %v", d.Reasons)
	}
}

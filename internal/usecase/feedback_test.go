package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

type captureDirectives struct {
	directives []*models.AdjustmentDirective
}

func (c *captureDirectives) Enqueue(_ context.Context, d *models.AdjustmentDirective) error {
	c.directives = append(c.directives, d)
	return nil
}

func (c *captureDirectives) byKey(key string) *models.AdjustmentDirective {
	for _, d := range c.directives {
		if d.Key == key {
			return d
		}
	}
	return nil
}

func feedbackConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Learning.EvalWindow = 2
	cfg.Learning.Rate = 0.1
	cfg.Learning.PoorQuality = 0.4
	cfg.Risk.DrawdownWarn = 0.1
	cfg.Risk.SingleAssetLimit = 0.2
	cfg.Risk.LeverageMax = 3
	return cfg
}

func newTestFeedback(t *testing.T, pf Portfolio) (*FeedbackProcessor, *captureDirectives) {
	t.Helper()
	reg, err := NewParamRegister(testParams(), nil, nil, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	sink := &captureDirectives{}
	return NewFeedbackProcessor(reg, pf, sink, feedbackConfig(), nil), sink
}

func losingReport(at time.Time) *models.PerformanceReport {
	return &models.PerformanceReport{
		IntentID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy,
		RealizedPnL: -50, Quality: 0.9,
		Attribution: map[string]float64{models.DomainSwing: 1},
		ClosedAt:    at,
	}
}

func TestFeedbackWaitsForFullWindow(t *testing.T) {
	fb, sink := newTestFeedback(t, &stubPortfolio{equity: 10000})
	fb.OnReport(context.Background(), losingReport(time.Now()))
	if len(sink.directives) != 0 {
		t.Fatalf("directives emitted before the window filled: %d", len(sink.directives))
	}
}

func TestFeedbackDowngradesNegativeAttribution(t *testing.T) {
	fb, sink := newTestFeedback(t, &stubPortfolio{equity: 10000})
	ctx := context.Background()
	now := time.Now()

	fb.OnReport(ctx, losingReport(now))
	fb.OnReport(ctx, losingReport(now.Add(time.Minute)))

	d := sink.byKey(models.DomainSwing)
	if d == nil {
		t.Fatalf("no directive for the losing domain, got %v", sink.directives)
	}
	if d.Target != models.TargetAnalyzer || d.Reason != "negative_attribution" {
		t.Fatalf("directive = %+v", d)
	}
	// Two full-share losses over a window of two: delta = -rate.
	if math.Abs(d.Delta-(-0.1)) > 1e-9 {
		t.Fatalf("delta = %v, want -0.1", d.Delta)
	}
	if d.Delta >= 0 {
		t.Fatalf("losing domain must be downgraded")
	}
}

func TestFeedbackFlagsPoorExecutionQuality(t *testing.T) {
	fb, sink := newTestFeedback(t, &stubPortfolio{equity: 10000})
	ctx := context.Background()
	now := time.Now()

	winner := func(at time.Time) *models.PerformanceReport {
		return &models.PerformanceReport{
			IntentID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy,
			RealizedPnL: 50, Quality: 0.2,
			Attribution: map[string]float64{models.DomainSwing: 1},
			ClosedAt:    at,
		}
	}
	fb.OnReport(ctx, winner(now))
	fb.OnReport(ctx, winner(now.Add(time.Minute)))

	d := sink.byKey("urgency_multiplier")
	if d == nil {
		t.Fatalf("no urgency directive, got %v", sink.directives)
	}
	if d.Target != models.TargetPlanner || d.Delta >= 0 {
		t.Fatalf("directive = %+v", d)
	}
	if sink.byKey(models.DomainSwing) != nil {
		t.Fatalf("winning domain must not be downgraded")
	}
}

func TestFeedbackTightensRiskOnDrawdownWarn(t *testing.T) {
	fb, sink := newTestFeedback(t, &stubPortfolio{equity: 9000, drawdown: 0.12})
	ctx := context.Background()
	now := time.Now()

	fb.OnReport(ctx, losingReport(now))
	fb.OnReport(ctx, losingReport(now.Add(time.Minute)))

	if d := sink.byKey("single_asset_limit"); d == nil || d.Target != models.TargetRisk || d.Delta >= 0 {
		t.Fatalf("single asset directive = %+v", d)
	}
	if d := sink.byKey("l_max"); d == nil || d.Target != models.TargetRisk || d.Delta >= 0 {
		t.Fatalf("leverage directive = %+v", d)
	}
}

func TestFeedbackRestoresLimitsAfterRecovery(t *testing.T) {
	p := testParams()
	p.SingleAssetLimit = 0.1
	p.LeverageMax = 2
	reg, err := NewParamRegister(p, nil, nil, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	sink := &captureDirectives{}
	pf := &stubPortfolio{equity: 9000, drawdown: 0.12}
	cfg := feedbackConfig()
	cfg.Risk.RecoveryPeriod = 24 * time.Hour
	fb := NewFeedbackProcessor(reg, pf, sink, cfg, nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	winner := func(at time.Time) *models.PerformanceReport {
		return &models.PerformanceReport{
			IntentID: "intent-2", Symbol: "SOLUSDT", Side: models.SideBuy,
			RealizedPnL: 50, Quality: 0.9,
			Attribution: map[string]float64{models.DomainSwing: 1},
			ClosedAt:    at,
		}
	}

	// Drawdown phase tightens.
	fb.OnReport(ctx, losingReport(now))
	fb.OnReport(ctx, losingReport(now.Add(time.Minute)))
	if sink.byKey("single_asset_limit") == nil {
		t.Fatalf("expected tightening during drawdown")
	}

	// Drawdown healed, but the recovery period since the last loss has not
	// elapsed: no restore yet.
	sink.directives = nil
	pf.drawdown = 0.05
	fb.OnReport(ctx, winner(now.Add(time.Hour)))
	if sink.byKey("single_asset_limit") != nil {
		t.Fatalf("limits restored before the recovery period elapsed")
	}

	// A full recovery period of non-losing trades walks the limits back to
	// their configured baselines.
	sink.directives = nil
	fb.OnReport(ctx, winner(now.Add(30*time.Hour)))
	d := sink.byKey("single_asset_limit")
	if d == nil || d.Reason != "drawdown_recovered" {
		t.Fatalf("restore directive = %+v", d)
	}
	if math.Abs(d.Delta-0.1) > 1e-9 {
		t.Fatalf("restore delta = %v, want back to the configured 0.2", d.Delta)
	}
	l := sink.byKey("l_max")
	if l == nil || math.Abs(l.Delta-1) > 1e-9 {
		t.Fatalf("leverage restore directive = %+v", l)
	}
}

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// DirectiveSink carries adjustment directives to the learner, either through
// the queue or directly in-process.
type DirectiveSink interface {
	Enqueue(ctx context.Context, d *models.AdjustmentDirective) error
}

// FeedbackProcessor turns closed-trade reports into bounded adjustment
// directives. Every rule is clamped; the learner enforces the clamps again
// before publishing.
type FeedbackProcessor struct {
	mu        sync.Mutex
	reports   []models.PerformanceReport
	tightened bool
	lastLoss  time.Time

	params    *ParamRegister
	portfolio Portfolio
	sink      DirectiveSink
	cfg       config.Config
	log       *logger.Logger
}

// NewFeedbackProcessor creates a feedback processor.
func NewFeedbackProcessor(params *ParamRegister, portfolio Portfolio, sink DirectiveSink, cfg *config.Config, log *logger.Logger) *FeedbackProcessor {
	return &FeedbackProcessor{
		params:    params,
		portfolio: portfolio,
		sink:      sink,
		cfg:       *cfg,
		log:       log,
	}
}

// OnReport folds one report into the window and, once the window is full,
// evaluates the adjustment rules.
func (f *FeedbackProcessor) OnReport(ctx context.Context, report *models.PerformanceReport) {
	f.mu.Lock()
	f.reports = append(f.reports, *report)
	if report.RealizedPnL < 0 {
		f.lastLoss = report.ClosedAt
	}
	window := f.cfg.Learning.EvalWindow
	if len(f.reports) > window {
		f.reports = f.reports[len(f.reports)-window:]
	}
	ready := len(f.reports) >= window
	reports := append([]models.PerformanceReport(nil), f.reports...)
	f.mu.Unlock()

	if !ready {
		return
	}
	f.evaluate(ctx, reports, report.ClosedAt)
}

func (f *FeedbackProcessor) evaluate(ctx context.Context, reports []models.PerformanceReport, now time.Time) {
	p := f.params.Current()
	eta := f.cfg.Learning.Rate

	// Per-domain signed attribution over the window: each report contributes
	// its attribution shares signed by the trade's outcome.
	signed := make(map[string]float64)
	var sumQuality float64
	for _, r := range reports {
		outcome := 0.0
		switch {
		case r.RealizedPnL > 0:
			outcome = 1
		case r.RealizedPnL < 0:
			outcome = -1
		}
		for d, share := range r.Attribution {
			signed[d] += share * outcome
		}
		sumQuality += r.Quality
	}
	n := float64(len(reports))

	for d, s := range signed {
		if s >= 0 {
			continue
		}
		f.emit(ctx, &models.AdjustmentDirective{
			ID:        uuid.NewString(),
			Target:    models.TargetAnalyzer,
			Key:       d,
			Delta:     -eta * abs(s) / n,
			ClampMin:  p.WeightMin,
			ClampMax:  p.WeightMax,
			Reason:    "negative_attribution",
			CreatedAt: now,
		})
	}

	if avgQuality := sumQuality / n; avgQuality < f.cfg.Learning.PoorQuality {
		f.emit(ctx, &models.AdjustmentDirective{
			ID:        uuid.NewString(),
			Target:    models.TargetPlanner,
			Key:       "urgency_multiplier",
			Delta:     -eta * (f.cfg.Learning.PoorQuality - avgQuality),
			ClampMin:  0,
			ClampMax:  2,
			Reason:    "poor_execution_quality",
			CreatedAt: now,
		})
	}

	dd := f.portfolio.Drawdown()
	switch {
	case dd > f.cfg.Risk.DrawdownWarn:
		f.mu.Lock()
		f.tightened = true
		f.mu.Unlock()
		f.emit(ctx, &models.AdjustmentDirective{
			ID:        uuid.NewString(),
			Target:    models.TargetRisk,
			Key:       "single_asset_limit",
			Delta:     -eta * p.SingleAssetLimit,
			ClampMin:  f.cfg.Risk.SingleAssetLimit / 4,
			ClampMax:  f.cfg.Risk.SingleAssetLimit,
			Reason:    "drawdown_warn",
			CreatedAt: now,
		})
		f.emit(ctx, &models.AdjustmentDirective{
			ID:        uuid.NewString(),
			Target:    models.TargetRisk,
			Key:       "l_max",
			Delta:     -eta * p.LeverageMax,
			ClampMin:  p.LeverageMin,
			ClampMax:  f.cfg.Risk.LeverageMax,
			Reason:    "drawdown_warn",
			CreatedAt: now,
		})
	case f.recovered(now, dd):
		// Limits tightened during the drawdown walk back to their configured
		// baselines once the recovery period passes without a losing trade.
		if delta := f.cfg.Risk.SingleAssetLimit - p.SingleAssetLimit; delta > 0 {
			f.emit(ctx, &models.AdjustmentDirective{
				ID:        uuid.NewString(),
				Target:    models.TargetRisk,
				Key:       "single_asset_limit",
				Delta:     delta,
				ClampMin:  f.cfg.Risk.SingleAssetLimit / 4,
				ClampMax:  f.cfg.Risk.SingleAssetLimit,
				Reason:    "drawdown_recovered",
				CreatedAt: now,
			})
		}
		if delta := f.cfg.Risk.LeverageMax - p.LeverageMax; delta > 0 {
			f.emit(ctx, &models.AdjustmentDirective{
				ID:        uuid.NewString(),
				Target:    models.TargetRisk,
				Key:       "l_max",
				Delta:     delta,
				ClampMin:  p.LeverageMin,
				ClampMax:  f.cfg.Risk.LeverageMax,
				Reason:    "drawdown_recovered",
				CreatedAt: now,
			})
		}
		f.mu.Lock()
		f.tightened = false
		f.mu.Unlock()
	}
}

// recovered reports whether tightened limits may be restored: drawdown back
// under the warning line and a full recovery period since the last loss.
func (f *FeedbackProcessor) recovered(now time.Time, dd float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tightened && dd <= f.cfg.Risk.DrawdownWarn &&
		now.Sub(f.lastLoss) >= f.cfg.Risk.RecoveryPeriod
}

func (f *FeedbackProcessor) emit(ctx context.Context, d *models.AdjustmentDirective) {
	if err := f.sink.Enqueue(ctx, d); err != nil && f.log != nil {
		f.log.Error("enqueue directive failed",
			logger.String("key", d.Key), logger.Error(err))
		return
	}
	if f.log != nil {
		f.log.Info("directive emitted",
			logger.String("target", string(d.Target)),
			logger.String("key", d.Key),
			logger.Float64("delta", d.Delta),
			logger.String("reason", d.Reason))
	}
}

var _ ReportSink = (*FeedbackProcessor)(nil)

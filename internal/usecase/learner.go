package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/queue"
)

// Learner applies adjustment directives to the live parameter set. Each
// application is atomic: clone the current generation, apply the clamped
// delta, validate, publish. A directive that fails validation is refused and
// the prior generation stays in force. Replayed directive ids are dropped.
type Learner struct {
	params    *ParamRegister
	store     domrepo.ParamStore
	replayTTL time.Duration
	log       *logger.Logger
}

// NewLearner creates a learner.
func NewLearner(params *ParamRegister, store domrepo.ParamStore, replayTTL time.Duration, log *logger.Logger) *Learner {
	if replayTTL <= 0 {
		replayTTL = 7 * 24 * time.Hour
	}
	return &Learner{params: params, store: store, replayTTL: replayTTL, log: log}
}

// Enqueue applies the directive in-process; it makes the learner usable as a
// direct sink when no queue is configured.
func (l *Learner) Enqueue(ctx context.Context, d *models.AdjustmentDirective) error {
	return l.Apply(ctx, d)
}

// Apply installs one directive as a new parameter generation.
func (l *Learner) Apply(ctx context.Context, d *models.AdjustmentDirective) error {
	if d.ID == "" {
		return fmt.Errorf("apply directive: missing id")
	}
	if l.store != nil {
		first, err := l.store.MarkApplied(ctx, d.ID, l.replayTTL)
		if err != nil {
			return fmt.Errorf("apply directive %s: replay check: %w", d.ID, err)
		}
		if !first {
			if l.log != nil {
				l.log.Debug("directive replay dropped", logger.String("id", d.ID))
			}
			return nil
		}
	}

	cur := l.params.Current()
	next := cur.Clone()
	next.Generation = cur.Generation + 1
	next.CreatedAt = d.CreatedAt
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now()
	}

	if err := applyDelta(next, d); err != nil {
		return fmt.Errorf("apply directive %s: %w", d.ID, err)
	}
	if err := l.params.Publish(ctx, next); err != nil {
		if l.log != nil {
			l.log.Error("generation refused",
				logger.String("directive", d.ID),
				logger.String("key", d.Key),
				logger.Error(err))
		}
		return err
	}
	return nil
}

// applyDelta mutates one parameter with the directive's clamped delta.
func applyDelta(p *models.Parameters, d *models.AdjustmentDirective) error {
	clamp := func(v float64) float64 {
		if d.ClampMax > d.ClampMin {
			if v < d.ClampMin {
				return d.ClampMin
			}
			if v > d.ClampMax {
				return d.ClampMax
			}
		}
		return v
	}

	switch d.Target {
	case models.TargetAnalyzer:
		w, ok := p.Weights[d.Key]
		if !ok {
			return fmt.Errorf("unknown analyzer weight %q", d.Key)
		}
		p.Weights[d.Key] = clamp(w + d.Delta)
	case models.TargetRisk:
		switch d.Key {
		case "single_asset_limit":
			p.SingleAssetLimit = clamp(p.SingleAssetLimit + d.Delta)
		case "category_limit":
			p.CategoryLimit = clamp(p.CategoryLimit + d.Delta)
		case "platform_limit":
			p.PlatformLimit = clamp(p.PlatformLimit + d.Delta)
		case "total_exposure":
			p.TotalExposure = clamp(p.TotalExposure + d.Delta)
		case "max_drawdown":
			p.MaxDrawdown = clamp(p.MaxDrawdown + d.Delta)
		case "l_max":
			p.LeverageMax = clamp(p.LeverageMax + d.Delta)
		case "correlation_max":
			p.CorrelationMax = clamp(p.CorrelationMax + d.Delta)
		default:
			return fmt.Errorf("unknown risk parameter %q", d.Key)
		}
	case models.TargetPlanner:
		switch d.Key {
		case "urgency_multiplier":
			p.UrgencyMultiplier = clamp(p.UrgencyMultiplier + d.Delta)
		case "max_slippage":
			p.MaxSlippage = clamp(p.MaxSlippage + d.Delta)
		default:
			return fmt.Errorf("unknown planner parameter %q", d.Key)
		}
	default:
		return fmt.Errorf("unknown directive target %q", d.Target)
	}
	return nil
}

// DirectiveJob adapts the learner to the queue's job contract so directives
// can arrive through Redis.
type DirectiveJob struct {
	learner *Learner
}

// NewDirectiveJob creates the queue job wrapping the learner.
func NewDirectiveJob(l *Learner) *DirectiveJob {
	return &DirectiveJob{learner: l}
}

func (j *DirectiveJob) Name() string { return "learner.apply_directive" }
func (j *DirectiveJob) Type() string { return "adjustment_directive" }

func (j *DirectiveJob) Handle(ctx context.Context, payload interface{}) error {
	d, err := queue.ParsePayload[models.AdjustmentDirective](payload)
	if err != nil {
		return fmt.Errorf("parse directive: %w", err)
	}
	return j.learner.Apply(ctx, d)
}

// QueueDirectiveSink publishes directives onto the queue for the learner's
// job to consume, decoupling feedback from parameter application.
type QueueDirectiveSink struct {
	queue queue.QueueService
}

// NewQueueDirectiveSink creates a queue-backed sink.
func NewQueueDirectiveSink(q queue.QueueService) *QueueDirectiveSink {
	return &QueueDirectiveSink{queue: q}
}

func (s *QueueDirectiveSink) Enqueue(ctx context.Context, d *models.AdjustmentDirective) error {
	return s.queue.PublishMessage(ctx, "adjustment_directive", d)
}

var _ DirectiveSink = (*Learner)(nil)
var _ DirectiveSink = (*QueueDirectiveSink)(nil)
var _ queue.Job = (*DirectiveJob)(nil)

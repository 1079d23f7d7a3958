package usecase

import (
	"time"

	"github.com/google/uuid"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/bus"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// PlanGuard reports whether a symbol currently has an open execution plan.
// Open plans are never pre-empted; the decision engine holds instead.
type PlanGuard interface {
	HasOpenPlan(symbol string) bool
}

// leanEpsilon absorbs float summation residue so opposing contributions that
// cancel on paper also cancel here.
const leanEpsilon = 1e-9

// The domains whose lean determines trade direction.
var directionalDomains = []string{
	models.DomainAccumulation,
	models.DomainSwing,
	models.DomainBuyingPressure,
	models.DomainCatalyst,
}

// DecisionEngine fuses the latest per-domain assessments for a symbol into a
// trade intent or a hold. Holds are normal outcomes and carry their reasons.
type DecisionEngine struct {
	bus       *bus.Bus
	params    *ParamRegister
	frozen    *FreezeList
	guard     PlanGuard
	staleness map[string]time.Duration
	metrics   domrepo.Metrics
	log       *logger.Logger
}

// NewDecisionEngine creates a decision engine.
func NewDecisionEngine(
	b *bus.Bus,
	params *ParamRegister,
	frozen *FreezeList,
	guard PlanGuard,
	staleness map[string]time.Duration,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *DecisionEngine {
	return &DecisionEngine{
		bus:       b,
		params:    params,
		frozen:    frozen,
		guard:     guard,
		staleness: staleness,
		metrics:   metrics,
		log:       log,
	}
}

// Decide runs one decision tick for symbol.
func (e *DecisionEngine) Decide(symbol string, now time.Time) models.Decision {
	d := e.decide(symbol, now)
	if e.metrics != nil {
		outcome := "hold"
		if d.Intent != nil {
			outcome = string(d.Intent.Side)
		}
		e.metrics.RecordDecision(symbol, outcome)
	}
	if e.log != nil && d.Intent != nil {
		e.log.Info("trade intent",
			logger.String("symbol", symbol),
			logger.String("side", string(d.Intent.Side)),
			logger.Float64("score", d.Intent.Score),
			logger.Float64("notional", d.Intent.TargetNotional))
	}
	return d
}

func (e *DecisionEngine) decide(symbol string, now time.Time) models.Decision {
	if reason, frozen := e.frozen.Frozen(symbol); frozen {
		return hold(symbol, now, models.HoldSymbolFrozen+": "+reason)
	}
	if e.guard != nil && e.guard.HasOpenPlan(symbol) {
		return hold(symbol, now, models.HoldPlanOpen)
	}

	p := e.params.Current()
	view := e.bus.FusedView(symbol, now, e.staleness)
	if len(view.Domains) < p.Quorum {
		return hold(symbol, now, models.HoldInsufficientSignals)
	}

	// Weighted aggregate over present domains.
	var num, den float64
	for d, a := range view.Domains {
		w := p.Weights[d]
		num += w * a.Score * a.Confidence
		den += w * a.Confidence
	}
	if den == 0 {
		return hold(symbol, now, models.HoldInsufficientSignals)
	}
	score := num / den

	side, sideReason := e.direction(view, p)

	// Vetoes, in order. The volatility ceiling blocks the tick outright.
	if vol, ok := view.Get(models.DomainVolatility); ok {
		if vol.Component("ceiling_exceeded", 0) >= 1 || vol.Score > p.VolatilityCeiling {
			return hold(symbol, now, models.HoldVolatilityCeiling)
		}
	}
	if fg, ok := view.Get(models.DomainFearGreed); ok {
		if fg.State == models.FGExtremeFear && side == models.SideBuy {
			return hold(symbol, now, models.HoldExtremeFear)
		}
		if fg.State == models.FGExtremeGreed && side == models.SideBuy {
			return hold(symbol, now, models.HoldExtremeGreed)
		}
	}
	if s, ok := view.Get(models.DomainSentiment); ok && s.State == models.SentimentPanic {
		return hold(symbol, now, models.HoldSentimentPanic)
	}

	if side == "" {
		return hold(symbol, now, sideReason)
	}
	if score < p.EnterThreshold {
		return hold(symbol, now, models.HoldBelowThreshold)
	}

	urgency := 0.5
	if cat, ok := view.Get(models.DomainCatalyst); ok {
		urgency = cat.Component("short_term", 0.5)
	}
	notional := p.BaseSize * score * (1 + urgency*p.UrgencyMultiplier)

	var sumConf float64
	rationale := make([]string, 0, len(view.Domains))
	for d, a := range view.Domains {
		sumConf += a.Confidence
		if a.State != "" {
			rationale = append(rationale, d+"="+a.State)
		}
	}

	intent := &models.TradeIntent{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		Side:           side,
		TargetNotional: notional,
		Urgency:        urgency,
		Rationale:      rationale,
		Confidence:     sumConf / float64(len(view.Domains)),
		Score:          score,
		DomainShares:   domainShares(view, p),
		Generation:     p.Generation,
		CreatedAt:      now,
	}
	return models.Decision{Symbol: symbol, Intent: intent, AsOf: now}
}

// direction reads the directional lean from the four directional domains.
// Returns "" with a hold reason when no side qualifies.
func (e *DecisionEngine) direction(view models.FusedView, p *models.Parameters) (models.Side, string) {
	var lean, longConf, shortConf float64
	present := 0
	for _, d := range directionalDomains {
		a, ok := view.Get(d)
		if !ok {
			continue
		}
		present++
		contrib := p.Weights[d] * (a.Score - 0.5) * a.Confidence
		lean += contrib
		if contrib > 0 {
			longConf += a.Confidence
		} else if contrib < 0 {
			shortConf += a.Confidence
		}
	}
	if present == 0 {
		return "", models.HoldInsufficientSignals
	}
	switch {
	case lean > leanEpsilon:
		return models.SideBuy, ""
	case lean < -leanEpsilon:
		return models.SideSell, ""
	}
	// Balanced lean within float residue: prefer the side with higher summed
	// confidence.
	switch {
	case longConf > shortConf:
		return models.SideBuy, ""
	case shortConf > longConf:
		return models.SideSell, ""
	}
	return "", models.HoldTie
}

// domainShares normalizes w·score·confidence over present domains; it is the
// attribution basis stored with the intent. Shares sum to 1.
func domainShares(view models.FusedView, p *models.Parameters) map[string]float64 {
	shares := make(map[string]float64, len(view.Domains))
	var total float64
	for d, a := range view.Domains {
		v := p.Weights[d] * a.Score * a.Confidence
		if v < 0 {
			v = 0
		}
		shares[d] = v
		total += v
	}
	if total == 0 {
		// Degenerate tick: split evenly so shares still sum to 1.
		for d := range shares {
			shares[d] = 1 / float64(len(shares))
		}
		return shares
	}
	for d := range shares {
		shares[d] /= total
	}
	return shares
}

func hold(symbol string, now time.Time, reasons ...string) models.Decision {
	return models.Decision{Symbol: symbol, Hold: true, Reasons: reasons, AsOf: now}
}

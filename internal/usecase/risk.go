package usecase

import (
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/bus"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// Portfolio is the account state the risk gate reads: equity, trailing
// drawdown, the drawdown-brake latch, and the open position mirror.
type Portfolio interface {
	Equity() float64
	Drawdown() float64
	BrakeActive(now time.Time) bool
	OpenPositions() []models.Position
}

// ReturnSource serves recent per-symbol returns for correlation bucketing.
type ReturnSource interface {
	Returns(symbol string, n int) []float64
}

// RiskGate applies the ordered portfolio caps to an intent, each able to
// resize or reject. Rejections are normal outcomes.
type RiskGate struct {
	params     *ParamRegister
	portfolio  Portfolio
	returns    ReturnSource
	bus        *bus.Bus
	categories map[string]string
	corrWindow int
	metrics    domrepo.Metrics
	log        *logger.Logger
}

// NewRiskGate creates a risk gate.
func NewRiskGate(
	params *ParamRegister,
	portfolio Portfolio,
	returns ReturnSource,
	b *bus.Bus,
	categories map[string]string,
	corrWindow int,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *RiskGate {
	if corrWindow <= 1 {
		corrWindow = 120
	}
	return &RiskGate{
		params:     params,
		portfolio:  portfolio,
		returns:    returns,
		bus:        b,
		categories: categories,
		corrWindow: corrWindow,
		metrics:    metrics,
		log:        log,
	}
}

// Gate evaluates one intent against the live limits.
func (g *RiskGate) Gate(intent *models.TradeIntent, now time.Time) models.RiskDecision {
	d := g.gate(intent, now)
	if g.metrics != nil {
		g.metrics.RecordRisk(string(d.Outcome))
	}
	if g.log != nil && d.Outcome != models.RiskAccept {
		g.log.Info("risk gate",
			logger.String("symbol", intent.Symbol),
			logger.String("outcome", string(d.Outcome)),
			logger.Any("reasons", d.Reasons))
	}
	return d
}

func (g *RiskGate) gate(intent *models.TradeIntent, now time.Time) models.RiskDecision {
	p := g.params.Current()
	d := models.RiskDecision{
		IntentID:         intent.ID,
		Outcome:          models.RiskAccept,
		AdjustedNotional: intent.TargetNotional,
		DecidedAt:        now,
	}

	// Closes reduce exposure; they bypass the admission caps.
	if intent.Side == models.SideClose {
		d.Leverage = p.LeverageMin
		return d
	}

	equity := g.portfolio.Equity()
	positions := g.portfolio.OpenPositions()

	resize := func(cap float64, reason string) *models.RiskDecision {
		if cap <= 0 {
			d.Outcome = models.RiskReject
			d.AdjustedNotional = 0
			d.Reasons = append(d.Reasons, reason)
			return &d
		}
		if d.AdjustedNotional > cap {
			d.Outcome = models.RiskResize
			d.AdjustedNotional = cap
			d.Reasons = append(d.Reasons, reason)
		}
		return nil
	}

	// 1. Per-symbol cap.
	if final := resize(p.SingleAssetLimit*equity-symbolNotional(positions, intent.Symbol), models.RiskReasonSingleAsset); final != nil {
		return *final
	}

	// 2. Category and platform caps.
	if cat, ok := g.categories[intent.Symbol]; ok {
		if final := resize(p.CategoryLimit*equity-g.categoryNotional(positions, cat), models.RiskReasonCategory); final != nil {
			return *final
		}
	}
	if final := resize(p.PlatformLimit*equity-totalNotional(positions), models.RiskReasonPlatform); final != nil {
		return *final
	}

	// 3. Aggregate exposure cap.
	if final := resize(p.TotalExposure*equity-totalNotional(positions), models.RiskReasonTotalExposure); final != nil {
		return *final
	}

	// 4. Correlation cap: correlated positions share one exposure bucket.
	if final := resize(p.CategoryLimit*equity-g.correlatedNotional(positions, intent.Symbol, p.CorrelationMax), models.RiskReasonCorrelation); final != nil {
		return *final
	}

	// 5. Drawdown brake: no new BUYs until the recovery condition holds.
	if intent.Side == models.SideBuy && g.portfolio.BrakeActive(now) {
		d.Outcome = models.RiskReject
		d.AdjustedNotional = 0
		d.Reasons = append(d.Reasons, models.RiskReasonDrawdown)
		return d
	}

	if d.AdjustedNotional <= 0 {
		d.Outcome = models.RiskReject
		d.AdjustedNotional = 0
		d.Reasons = append(d.Reasons, models.RiskReasonZeroSize)
		return d
	}

	// 6. Leverage by volatility band, scaled by intent confidence.
	d.Leverage = g.leverage(intent, p)
	return d
}

// leverage picks L within the band cap: low confidence stays near L_min,
// full confidence reaches the cap.
func (g *RiskGate) leverage(intent *models.TradeIntent, p *models.Parameters) float64 {
	ceil := p.LeverageMax
	if vol, ok := g.bus.Latest(models.DomainVolatility, intent.Symbol); ok {
		if bandCap, ok := p.LeverageVolCaps[vol.State]; ok && bandCap < ceil {
			ceil = bandCap
		}
	}
	if p.LeverageAbsMax > 0 && ceil > p.LeverageAbsMax {
		ceil = p.LeverageAbsMax
	}
	l := p.LeverageMin + (ceil-p.LeverageMin)*intent.Confidence
	if l < p.LeverageMin {
		l = p.LeverageMin
	}
	if l > ceil {
		l = ceil
	}
	return l
}

// correlatedNotional sums open exposure of symbols whose rolling return
// correlation with the intent's symbol exceeds the cap.
func (g *RiskGate) correlatedNotional(positions []models.Position, symbol string, corrMax float64) float64 {
	if g.returns == nil {
		return 0
	}
	base := g.returns.Returns(symbol, g.corrWindow)
	if len(base) < 2 {
		return 0
	}
	var total float64
	for _, pos := range positions {
		if pos.Symbol == symbol {
			total += pos.Notional()
			continue
		}
		other := g.returns.Returns(pos.Symbol, g.corrWindow)
		n := len(base)
		if len(other) < n {
			n = len(other)
		}
		if n < 2 {
			continue
		}
		if features.Pearson(base[len(base)-n:], other[len(other)-n:]) > corrMax {
			total += pos.Notional()
		}
	}
	return total
}

func (g *RiskGate) categoryNotional(positions []models.Position, category string) float64 {
	var total float64
	for _, pos := range positions {
		if g.categories[pos.Symbol] == category {
			total += pos.Notional()
		}
	}
	return total
}

func symbolNotional(positions []models.Position, symbol string) float64 {
	var total float64
	for _, pos := range positions {
		if pos.Symbol == symbol {
			total += pos.Notional()
		}
	}
	return total
}

func totalNotional(positions []models.Position) float64 {
	var total float64
	for _, pos := range positions {
		total += pos.Notional()
	}
	return total
}

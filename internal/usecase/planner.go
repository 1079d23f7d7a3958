package usecase

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// MarketState is the market view the planner reads: last price, recent
// snapshots for book liquidity, candles for the volume profile, and returns
// for realized volatility.
type MarketState interface {
	LastPrice(symbol string) float64
	Snapshots(symbol string, window time.Duration, now time.Time) []models.MarketSnapshot
	Candles(symbol string, n int) []models.Candle
	Returns(symbol string, n int) []float64
}

// Planner converts a gated intent into a sized, leveraged, time-sliced
// execution plan with volatility-scaled stop and take-profit levels.
type Planner struct {
	params *ParamRegister
	market MarketState
	cfg    config.Config
	log    *logger.Logger
}

// NewPlanner creates an execution planner.
func NewPlanner(params *ParamRegister, market MarketState, cfg *config.Config, log *logger.Logger) *Planner {
	return &Planner{params: params, market: market, cfg: *cfg, log: log}
}

// Plan builds the execution plan for an accepted or resized intent.
func (p *Planner) Plan(intent *models.TradeIntent, risk *models.RiskDecision, now time.Time) *models.ExecutionPlan {
	params := p.params.Current()
	exec := p.cfg.Execution

	price := p.market.LastPrice(intent.Symbol)
	sigma, intensity := p.volState(intent.Symbol)
	liquidity := p.bookLiquidity(intent.Symbol, now)

	relSize := 1.0
	if liquidity > 0 {
		relSize = risk.AdjustedNotional / liquidity
	}

	style := p.style(intent.Urgency, relSize, intensity)
	slices := p.slices(intent.Symbol, style, risk.AdjustedNotional, now)

	plan := &models.ExecutionPlan{
		ID:          uuid.NewString(),
		IntentID:    intent.ID,
		Symbol:      intent.Symbol,
		Side:        intent.Side,
		Leverage:    risk.Leverage,
		Slices:      slices,
		MaxSlippage: params.MaxSlippage,
		CreatedAt:   now,
	}
	if price > 0 && sigma > 0 {
		sign := intent.Side.Sign()
		plan.StopLoss = price * (1 - sign*exec.StopLossSigma*sigma)
		plan.TakeProfit = price * (1 + sign*exec.TakeProfitSigma*sigma)
	}
	if p.log != nil {
		p.log.Debug("plan built",
			logger.String("symbol", intent.Symbol),
			logger.String("style", string(style)),
			logger.Int("slices", len(slices)),
			logger.Float64("notional", risk.AdjustedNotional))
	}
	return plan
}

// style selects the slicing style from urgency and size relative to book
// liquidity; an unstable book forces ADAPTIVE.
func (p *Planner) style(urgency, relSize, intensity float64) models.ExecStyle {
	exec := p.cfg.Execution
	if intensity >= p.params.Current().VolatilityCeiling*0.75 {
		return models.StyleAdaptive
	}
	switch {
	case urgency >= exec.HighUrgency && relSize <= exec.SmallSizeRatio:
		return models.StyleImmediate
	case relSize > exec.LargeSizeRatio:
		return models.StyleVWAP
	default:
		return models.StyleTWAP
	}
}

// slices splits the notional per style. IMMEDIATE is one slice now; TWAP is
// equal slices over the window; VWAP weights slices by the recent volume
// profile; ADAPTIVE starts TWAP-shaped and is reshaped by the engine.
func (p *Planner) slices(symbol string, style models.ExecStyle, notional float64, now time.Time) []models.PlanSlice {
	exec := p.cfg.Execution
	if style == models.StyleImmediate || exec.SliceCount <= 1 {
		return []models.PlanSlice{{
			ID:          uuid.NewString(),
			Size:        notional,
			ScheduledAt: now,
			Style:       style,
			State:       models.SlicePending,
		}}
	}

	n := exec.SliceCount
	interval := exec.SliceWindow / time.Duration(n)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	if style == models.StyleVWAP {
		if profile := p.volumeProfile(symbol, n); profile != nil {
			weights = profile
		}
	}
	var total float64
	for _, w := range weights {
		total += w
	}

	slices := make([]models.PlanSlice, n)
	for i := range slices {
		slices[i] = models.PlanSlice{
			ID:          uuid.NewString(),
			Size:        notional * weights[i] / total,
			ScheduledAt: now.Add(time.Duration(i) * interval),
			Style:       style,
			State:       models.SlicePending,
		}
	}
	return slices
}

// volumeProfile returns the last n candle volumes as slice weights, oldest
// first, or nil when history is too thin.
func (p *Planner) volumeProfile(symbol string, n int) []float64 {
	candles := p.market.Candles(symbol, n)
	if len(candles) < n {
		return nil
	}
	weights := make([]float64, n)
	any := false
	for i, c := range candles[len(candles)-n:] {
		weights[i] = c.Volume
		if c.Volume > 0 {
			any = true
		}
	}
	if !any {
		return nil
	}
	return weights
}

// volState returns the per-bar sigma used for stop placement and the
// normalized volatility intensity used for style selection.
func (p *Planner) volState(symbol string) (sigma, intensity float64) {
	rets := p.market.Returns(symbol, 60)
	if len(rets) < 2 {
		return 0, 0
	}
	sigma = features.RealizedVolatility(rets, len(rets), 1)
	annualized := features.RealizedVolatility(rets, len(rets), features.BarsPerYearForTF("1m"))
	intensity = 1 - math.Exp(-annualized/1.5)
	return sigma, intensity
}

// bookLiquidity reads resting depth near the touch from the latest snapshot.
func (p *Planner) bookLiquidity(symbol string, now time.Time) float64 {
	snaps := p.market.Snapshots(symbol, time.Minute, now)
	if len(snaps) == 0 {
		return 0
	}
	last := snaps[len(snaps)-1]
	return (last.BidDepth() + last.AskDepth()) * last.Mid()
}

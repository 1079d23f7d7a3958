package analyzers

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// Swing reports the most recent confirmed swing high/low, the structure
// strength and a direction prediction. An optional estimator refines the
// direction from features; without one the structural read stands alone.
type Swing struct {
	base
	lookback  int
	estimator domsvc.Estimator
}

// NewSwing creates the swing-point analyzer. est may be nil.
func NewSwing(cfg config.AnalyzerConfig, lookback int, est domsvc.Estimator) *Swing {
	if lookback < 2 {
		lookback = 3
	}
	return &Swing{
		base: newBase(models.DomainSwing, cfg, []string{
			"swing_high", "swing_low", "strength", "direction",
		}),
		lookback:  lookback,
		estimator: est,
	}
}

func (s *Swing) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	candles := in.Candles
	if len(candles) < 2*s.lookback+2 {
		return nil, nil
	}
	high, low := features.LastSwings(candles, s.lookback)
	if high == nil && low == nil {
		return nil, nil
	}

	last := candles[len(candles)-1].Close
	var highRel, lowRel float64
	if high != nil && last > 0 {
		highRel = (high.Price - last) / last
	}
	if low != nil && last > 0 {
		lowRel = (last - low.Price) / last
	}

	// Direction: higher lows and closes above the midpoint of the last swing
	// pair read bullish; the converse reads bearish.
	direction := 0.0
	strength := 0.0
	switch {
	case high != nil && low != nil:
		mid := (high.Price + low.Price) / 2
		span := high.Price - low.Price
		if span > 0 {
			direction = clamp((last-mid)/(span/2), -1, 1)
			strength = clamp01(span / last * 10)
		}
		if low.Index > high.Index {
			// most recent confirmed structure is a low: bullish tilt
			direction = clamp(direction+0.25, -1, 1)
		} else {
			direction = clamp(direction-0.25, -1, 1)
		}
	case high != nil:
		direction = -0.5
		strength = 0.4
	default:
		direction = 0.5
		strength = 0.4
	}

	conf := clamp01(0.4 + 0.3*strength + 0.1*float64(len(candles))/100)

	if s.estimator != nil {
		rets := features.ComputeLogReturns(candles)
		feats := map[string]float64{
			"direction":  direction,
			"strength":   strength,
			"ret_last":   lastOrZero(rets),
			"swing_high": highRel,
			"swing_low":  lowRel,
		}
		if p, err := s.estimator.Predict(ctx, feats); err == nil {
			// blend the model's probability of an up move into the read
			direction = clamp(0.7*direction+0.3*(2*p-1), -1, 1)
			conf = clamp01(conf + 0.1)
		}
	}

	state := "down"
	if direction >= 0 {
		state = "up"
	}

	return s.emit(in.Symbol, in.Now, clamp01(0.5+0.5*direction*strength+0.25*direction), conf, map[string]float64{
		"swing_high": highRel,
		"swing_low":  lowRel,
		"strength":   strength,
		"direction":  direction,
	}, state), nil
}

func lastOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

var _ domsvc.Analyzer = (*Swing)(nil)

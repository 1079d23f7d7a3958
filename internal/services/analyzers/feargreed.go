package analyzers

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// FearGreed builds a fear/greed index from momentum, volatility (inverted),
// volume breadth and, when available, social tone. 0 is extreme fear, 1 is
// extreme greed. The state label drives the decision engine's greed/fear
// vetoes.
type FearGreed struct {
	base
}

// NewFearGreed creates the fear/greed analyzer.
func NewFearGreed(cfg config.AnalyzerConfig) *FearGreed {
	return &FearGreed{
		base: newBase(models.DomainFearGreed, cfg, []string{
			"momentum", "volatility", "volume_breadth", "social", "index",
		}),
	}
}

func (f *FearGreed) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	if len(in.Candles) < 10 {
		return nil, nil
	}
	rets := features.ComputeLogReturns(in.Candles)

	var sum float64
	for _, r := range rets {
		sum += r
	}
	momentum := clamp01(0.5 + sum*8)

	sigma := features.RealizedVolatility(rets, minInt(len(rets), 60), features.BarsPerYearForTF("1m"))
	volComponent := clamp01(1 - sigma/3) // calm markets read greedy

	breadth := clamp01(0.5 + volumeBias(in.Candles)/2)

	weights := [4]float64{0.35, 0.2, 0.25, 0.2}
	social := 0.5
	haveSocial := len(in.Social) >= f.minSamples
	if haveSocial {
		var bull, bear float64
		for _, s := range in.Social {
			b, r := textScore(s)
			bull += b
			bear += r
		}
		if bull+bear > 0 {
			social = clamp01(0.5 + (bull-bear)/(bull+bear)/2)
		}
	} else {
		// renormalize over market components only
		weights = [4]float64{0.45, 0.25, 0.3, 0}
	}

	index := clamp01(weights[0]*momentum + weights[1]*volComponent + weights[2]*breadth + weights[3]*social)

	conf := clamp01(0.4 + 0.3*float64(len(in.Candles))/60)
	if haveSocial {
		conf = clamp01(conf + 0.2)
	}

	return f.emit(in.Symbol, in.Now, index, conf, map[string]float64{
		"momentum":       momentum,
		"volatility":     volComponent,
		"volume_breadth": breadth,
		"social":         social,
		"index":          index,
	}, fearGreedState(index)), nil
}

func fearGreedState(index float64) string {
	switch {
	case index < 0.2:
		return models.FGExtremeFear
	case index < 0.4:
		return models.FGFear
	case index < 0.6:
		return models.FGNeutral
	case index < 0.8:
		return models.FGGreed
	default:
		return models.FGExtremeGreed
	}
}

var _ domsvc.Analyzer = (*FearGreed)(nil)

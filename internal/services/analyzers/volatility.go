package analyzers

import (
	"context"
	"math"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// Volatility maps realized volatility onto an intensity in [0,1], a band
// label and a stability measure. Assessments carry `ceiling_exceeded` so the
// decision engine can veto BUY intents without re-deriving the band.
//
// Intensity normalization: annualized sigma is squashed through
// 1 - exp(-sigma/sigmaRef), so sigmaRef lands at ~0.63 intensity.
type Volatility struct {
	base
	ceiling  float64
	sigmaRef float64
}

// NewVolatility creates the volatility analyzer. ceiling is the intensity
// above which BUY intents must be blocked.
func NewVolatility(cfg config.AnalyzerConfig, ceiling float64) *Volatility {
	if ceiling <= 0 || ceiling > 1 {
		ceiling = 0.8
	}
	return &Volatility{
		base: newBase(models.DomainVolatility, cfg, []string{
			"intensity", "stability", "ceiling_exceeded",
		}),
		ceiling:  ceiling,
		sigmaRef: 1.5,
	}
}

// Ceiling exposes the configured intensity ceiling.
func (v *Volatility) Ceiling() float64 { return v.ceiling }

func (v *Volatility) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	rets := features.ComputeLogReturns(in.Candles)
	if len(rets) < 10 {
		return nil, nil
	}

	bpY := features.BarsPerYearForTF("1m")
	window := len(rets)
	if window > 60 {
		window = 60
	}
	sigma := features.RealizedVolatility(rets, window, bpY)
	intensity := clamp01(1 - math.Exp(-sigma/v.sigmaRef))

	// Stability: how steady sigma has been over the recent half versus the
	// full window. Large shifts mean an unstable regime.
	half := window / 2
	if half < 2 {
		half = 2
	}
	recent := features.RealizedVolatility(rets, half, bpY)
	stability := 1.0
	if sigma > 0 {
		stability = clamp01(1 - abs(recent-sigma)/sigma)
	}

	exceeded := 0.0
	if intensity > v.ceiling {
		exceeded = 1
	}

	conf := clamp01(0.4 + 0.6*float64(len(rets))/120)

	return v.emit(in.Symbol, in.Now, intensity, conf, map[string]float64{
		"intensity":        intensity,
		"stability":        stability,
		"ceiling_exceeded": exceeded,
	}, volBand(intensity)), nil
}

func volBand(intensity float64) string {
	switch {
	case intensity >= 0.8:
		return models.VolBandExtreme
	case intensity >= 0.55:
		return models.VolBandHigh
	case intensity >= 0.3:
		return models.VolBandModerate
	default:
		return models.VolBandLow
	}
}

var _ domsvc.Analyzer = (*Volatility)(nil)

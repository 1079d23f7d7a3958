package analyzers

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// Accumulation classifies the market into accumulation/markup/distribution/
// markdown phases from price-volume structure and scores how far along and
// how durable the current phase looks.
//
// Phase logic: a fast/slow EMA trend split separates markup and markdown;
// ranging periods are sub-classified by where price sits in the range and
// whether volume concentrates on up-bars (accumulation) or down-bars
// (distribution).
type Accumulation struct {
	base
	minPhaseLength int
}

// NewAccumulation creates the accumulation/distribution analyzer.
func NewAccumulation(cfg config.AnalyzerConfig, minPhaseLength int) *Accumulation {
	if minPhaseLength < 2 {
		minPhaseLength = 2
	}
	return &Accumulation{
		base: newBase(models.DomainAccumulation, cfg, []string{
			"phase_progress", "intensity", "sustainability", "volume_bias",
		}),
		minPhaseLength: minPhaseLength,
	}
}

func (a *Accumulation) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	candles := in.Candles
	if len(candles) < a.minPhaseLength {
		return nil, nil
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	fast := features.LastEMA(closes, a.minPhaseLength/3+1)
	slow := features.LastEMA(closes, a.minPhaseLength)
	last := closes[len(closes)-1]

	trend := 0.0
	if slow > 0 {
		trend = (fast - slow) / slow
	}

	// Range position over the phase window.
	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles {
		if c.Low < lo {
			lo = c.Low
		}
		if c.High > hi {
			hi = c.High
		}
	}
	rangePos := 0.5
	if hi > lo {
		rangePos = (last - lo) / (hi - lo)
	}
	rangeWidth := 0.0
	if lo > 0 {
		rangeWidth = (hi - lo) / lo
	}

	volBias := volumeBias(candles)
	ranging := trend > -0.01 && trend < 0.01

	var phase string
	var progress float64
	switch {
	case !ranging && trend > 0:
		phase = models.PhaseMarkup
		progress = clamp01(trend * 20)
	case !ranging && trend < 0:
		phase = models.PhaseMarkdown
		progress = clamp01(-trend * 20)
	case volBias >= 0:
		phase, progress = accumulationSubPhase(rangePos, volBias)
	default:
		phase, progress = distributionSubPhase(rangePos, volBias)
	}

	intensity := clamp01((volBias+1)/2*0.6 + progress*0.4)
	// Sustained narrow ranges with supportive volume are more durable.
	sustainability := clamp01(0.5 + volBias*0.3 - features.Clamp(rangeWidth-0.1, 0, 0.5))

	score := phaseScore(phase, progress, intensity)
	confidence := clamp01(0.3 + 0.4*float64(len(candles))/float64(2*a.minPhaseLength) + 0.3*abs(volBias))

	return a.emit(in.Symbol, in.Now, score, confidence, map[string]float64{
		"phase_progress": progress,
		"intensity":      intensity,
		"sustainability": sustainability,
		"volume_bias":    volBias,
	}, phase), nil
}

// volumeBias is the signed share of volume landing on up-bars, in [-1,1].
func volumeBias(candles []models.Candle) float64 {
	var up, down float64
	for _, c := range candles {
		if c.Close >= c.Open {
			up += c.Volume
		} else {
			down += c.Volume
		}
	}
	total := up + down
	if total == 0 {
		return 0
	}
	return (up - down) / total
}

func accumulationSubPhase(rangePos, volBias float64) (string, float64) {
	switch {
	case rangePos < 0.25:
		return models.PhaseAccumulationA, rangePos * 4
	case rangePos < 0.45:
		return models.PhaseAccumulationB, (rangePos - 0.25) * 5
	case rangePos < 0.6:
		return models.PhaseAccumulationC, (rangePos - 0.45) * 6.6
	case rangePos < 0.8:
		return models.PhaseAccumulationD, (rangePos - 0.6) * 5
	default:
		return models.PhaseAccumulationE, clamp01((rangePos - 0.8) * 5)
	}
}

func distributionSubPhase(rangePos, volBias float64) (string, float64) {
	switch {
	case rangePos > 0.7:
		return models.PhaseDistributionA, clamp01((1 - rangePos) * 3.3)
	case rangePos > 0.4:
		return models.PhaseDistributionB, clamp01((0.7 - rangePos) * 3.3)
	default:
		return models.PhaseDistributionC, clamp01((0.4 - rangePos) * 2.5)
	}
}

// phaseScore maps the phase to a bullishness score: late accumulation and
// markup score high, distribution and markdown score low.
func phaseScore(phase string, progress, intensity float64) float64 {
	switch phase {
	case models.PhaseAccumulationA, models.PhaseAccumulationB:
		return 0.45 + 0.1*progress
	case models.PhaseAccumulationC:
		return 0.55 + 0.1*progress
	case models.PhaseAccumulationD, models.PhaseAccumulationE:
		return 0.65 + 0.2*progress*intensity
	case models.PhaseMarkup:
		return 0.7 + 0.25*progress
	case models.PhaseDistributionA:
		return 0.4 - 0.1*progress
	case models.PhaseDistributionB, models.PhaseDistributionC:
		return 0.3 - 0.15*progress
	case models.PhaseMarkdown:
		return 0.15 - 0.1*progress
	default:
		return 0.5
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

var _ domsvc.Analyzer = (*Accumulation)(nil)

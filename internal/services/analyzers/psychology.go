package analyzers

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// Psychology reads crowd behavior from the tape and the text stream:
// herding (return autocorrelation), fomo (price acceleration with rising
// reach) and capitulation (drawdown with bearish text). High fomo and high
// capitulation both argue against following the crowd.
type Psychology struct {
	base
}

// NewPsychology creates the market-psychology analyzer.
func NewPsychology(cfg config.AnalyzerConfig) *Psychology {
	return &Psychology{
		base: newBase(models.DomainPsychology, cfg, []string{
			"herding", "fomo", "capitulation",
		}),
	}
}

func (p *Psychology) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	if len(in.Candles) < 12 || len(in.Social) < p.minSamples {
		return nil, nil
	}
	rets := features.ComputeLogReturns(in.Candles)
	if len(rets) < 4 {
		return nil, nil
	}

	herding := clamp01((features.Pearson(rets[:len(rets)-1], rets[1:]) + 1) / 2)

	// Acceleration: second half momentum minus first half momentum.
	half := len(rets) / 2
	var first, second float64
	for i, r := range rets {
		if i < half {
			first += r
		} else {
			second += r
		}
	}
	accel := second - first

	reachGrowth := socialBurst(in.Social)
	fomo := clamp01(accel*10 + 0.5*reachGrowth)

	closes := make([]float64, len(in.Candles))
	for i, c := range in.Candles {
		closes[i] = c.Close
	}
	dd := features.MaxDrawdown(closes)
	var bull, bear float64
	for _, s := range in.Social {
		b, r := textScore(s)
		bull += b
		bear += r
	}
	bearTone := 0.0
	if bull+bear > 0 {
		bearTone = bear / (bull + bear)
	}
	capitulation := clamp01(dd*3*bearTone + dd)

	// Crowd extremes cut both ways: the score rewards balanced psychology.
	score := clamp01(0.5 + 0.3*(fomo-capitulation) - 0.2*maxFloat(fomo, capitulation))
	conf := clamp01(0.3 + 0.4*float64(len(in.Social))/float64(4*p.minSamples) + 0.2*herding)

	state := ""
	switch {
	case capitulation > 0.7:
		state = "capitulation"
	case fomo > 0.7:
		state = "fomo"
	}

	return p.emit(in.Symbol, in.Now, score, conf, map[string]float64{
		"herding":      herding,
		"fomo":         fomo,
		"capitulation": capitulation,
	}, state), nil
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

var _ domsvc.Analyzer = (*Psychology)(nil)

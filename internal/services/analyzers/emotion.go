package analyzers

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// Emotion maps tape and text onto an excitement/anxiety/conviction triple.
// Excitement tracks engagement velocity with rising prices; anxiety tracks
// realized volatility with falling prices; conviction is how one-sided the
// text stream is.
type Emotion struct {
	base
}

// NewEmotion creates the emotion analyzer.
func NewEmotion(cfg config.AnalyzerConfig) *Emotion {
	return &Emotion{
		base: newBase(models.DomainEmotion, cfg, []string{
			"excitement", "anxiety", "conviction",
		}),
	}
}

func (e *Emotion) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	if len(in.Social) < e.minSamples || len(in.Candles) < 5 {
		return nil, nil
	}

	rets := features.ComputeLogReturns(in.Candles)
	var sum float64
	for _, r := range rets {
		sum += r
	}
	sigma := features.RealizedVolatility(rets, minInt(len(rets), 30), features.BarsPerYearForTF("1m"))

	engagement := 0.0
	var bull, bear float64
	for _, s := range in.Social {
		engagement += 1 + s.Reach/1000
		b, r := textScore(s)
		bull += b
		bear += r
	}
	engagement /= float64(len(in.Social))

	excitement := clamp01(0.3 + sum*10 + 0.1*engagement)
	anxiety := clamp01(sigma/3 - sum*5)
	conviction := 0.0
	if bull+bear > 0 {
		conviction = abs(bull-bear) / (bull + bear)
	}

	score := clamp01(0.5 + 0.4*(excitement-anxiety))
	conf := clamp01(0.3 + 0.4*float64(len(in.Social))/float64(4*e.minSamples) + 0.3*conviction)

	return e.emit(in.Symbol, in.Now, score, conf, map[string]float64{
		"excitement": excitement,
		"anxiety":    anxiety,
		"conviction": conviction,
	}, ""), nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var _ domsvc.Analyzer = (*Emotion)(nil)

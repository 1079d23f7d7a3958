package analyzers

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// Sentiment scores the text stream into a scalar index with a state label.
// It suppresses its assessment when the sample count is below min_samples.
type Sentiment struct {
	base
}

// NewSentiment creates the sentiment analyzer.
func NewSentiment(cfg config.AnalyzerConfig) *Sentiment {
	return &Sentiment{
		base: newBase(models.DomainSentiment, cfg, []string{
			"positive_ratio", "negative_ratio", "net", "sample_size",
		}),
	}
}

func (s *Sentiment) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	if len(in.Social) < s.minSamples {
		return nil, nil
	}

	var bull, bear float64
	for _, sample := range in.Social {
		b, r := textScore(sample)
		bull += b
		bear += r
	}
	total := bull + bear
	if total == 0 {
		// samples present but none scored; weakly neutral
		return s.emit(in.Symbol, in.Now, 0.5, s.minConfidence, map[string]float64{
			"positive_ratio": 0,
			"negative_ratio": 0,
			"net":            0,
			"sample_size":    float64(len(in.Social)),
		}, models.SentimentNeutral), nil
	}

	posRatio := bull / total
	negRatio := bear / total
	net := posRatio - negRatio
	score := clamp01((net + 1) / 2)

	conf := clamp01(0.3 + 0.5*float64(len(in.Social))/float64(4*s.minSamples) + 0.2*abs(net))

	return s.emit(in.Symbol, in.Now, score, conf, map[string]float64{
		"positive_ratio": posRatio,
		"negative_ratio": negRatio,
		"net":            net,
		"sample_size":    float64(len(in.Social)),
	}, sentimentState(net)), nil
}

func sentimentState(net float64) string {
	switch {
	case net <= -0.6:
		return models.SentimentPanic
	case net <= -0.2:
		return models.SentimentNegative
	case net < 0.2:
		return models.SentimentNeutral
	case net < 0.6:
		return models.SentimentPositive
	default:
		return models.SentimentEuphoria
	}
}

var _ domsvc.Analyzer = (*Sentiment)(nil)

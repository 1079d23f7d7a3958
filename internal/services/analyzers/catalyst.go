package analyzers

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/features"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// Catalyst combines technical, fundamental and social signals into a
// short/medium/long-term impact tuple. The short-term component doubles as
// the urgency input for intent sizing downstream.
type Catalyst struct {
	base
}

// NewCatalyst creates the catalyst analyzer.
func NewCatalyst(cfg config.AnalyzerConfig) *Catalyst {
	return &Catalyst{
		base: newBase(models.DomainCatalyst, cfg, []string{
			"short_term", "medium_term", "long_term", "technical", "fundamental", "social",
		}),
	}
}

func (c *Catalyst) Assess(ctx context.Context, in domsvc.AnalyzerInputs) (*models.Assessment, error) {
	if len(in.Candles) < 10 {
		return nil, nil
	}

	technical := technicalImpulse(in.Candles)
	fundamental := fundamentalRead(in.Snapshots)
	social := socialBurst(in.Social)

	short := clamp01(0.5*technical + 0.1*fundamental + 0.4*social)
	medium := clamp01(0.4*technical + 0.4*fundamental + 0.2*social)
	long := clamp01(0.2*technical + 0.7*fundamental + 0.1*social)

	score := clamp01(0.5*short + 0.3*medium + 0.2*long)

	// Social absence lowers confidence but does not suppress the assessment;
	// catalyst still reads tape and funding.
	conf := clamp01(0.35 + 0.3*float64(len(in.Candles))/60)
	if len(in.Social) >= c.minSamples {
		conf = clamp01(conf + 0.25)
	}

	return c.emit(in.Symbol, in.Now, score, conf, map[string]float64{
		"short_term":  short,
		"medium_term": medium,
		"long_term":   long,
		"technical":   technical,
		"fundamental": fundamental,
		"social":      social,
	}, ""), nil
}

// technicalImpulse scores recent momentum and volume surge in [0,1].
func technicalImpulse(candles []models.Candle) float64 {
	rets := features.ComputeLogReturns(candles)
	if len(rets) == 0 {
		return 0
	}
	n := len(rets)
	short := n / 4
	if short < 1 {
		short = 1
	}
	var recent float64
	for _, r := range rets[n-short:] {
		recent += r
	}

	// volume surge: last quarter vs full window average
	var volAll, volRecent float64
	q := len(candles) / 4
	if q < 1 {
		q = 1
	}
	for i, c := range candles {
		volAll += c.Volume
		if i >= len(candles)-q {
			volRecent += c.Volume
		}
	}
	surge := 0.0
	if volAll > 0 {
		avgAll := volAll / float64(len(candles))
		avgRecent := volRecent / float64(q)
		if avgAll > 0 {
			surge = clamp01(avgRecent/avgAll - 1)
		}
	}
	return clamp01(0.5 + recent*10 + 0.3*surge)
}

// fundamentalRead proxies fundamentals from funding-rate posture and hourly
// volume growth: positive but modest funding with rising volume reads well.
func fundamentalRead(snaps []models.MarketSnapshot) float64 {
	if len(snaps) == 0 {
		return 0.5
	}
	last := snaps[len(snaps)-1]
	funding := clamp(last.FundingRate*1000, -1, 1)
	growth := 0.0
	if first := snaps[0]; first.Volume1h > 0 {
		growth = clamp(last.Volume1h/first.Volume1h-1, -1, 1)
	}
	// crowded positive funding is a headwind, mild positive is healthy
	fundingScore := 0.5 + 0.3*funding
	if funding > 0.5 {
		fundingScore = 0.8 - 0.4*(funding-0.5)
	}
	return clamp01(0.6*fundingScore + 0.4*(0.5+0.5*growth))
}

// socialBurst measures reach-weighted sample acceleration in [0,1].
func socialBurst(samples []models.SocialSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	half := len(samples) / 2
	var early, late float64
	for i, s := range samples {
		w := 1 + s.Reach/1000
		if i < half {
			early += w
		} else {
			late += w
		}
	}
	if early == 0 {
		return clamp01(late / 10)
	}
	return clamp01((late/early - 1) / 2)
}

var _ domsvc.Analyzer = (*Catalyst)(nil)

package analyzers

import (
	"fmt"

	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// swingLookback is the pivot confirmation depth used by the swing analyzer.
const swingLookback = 3

// BuildRegistry constructs and registers the full analyzer population from
// config. The swing estimator may be nil; the swing analyzer then scores on
// market structure alone.
func BuildRegistry(cfg *config.Config, swingEst domsvc.Estimator) (*Registry, error) {
	r := NewRegistry()
	population := []domsvc.Analyzer{
		NewAccumulation(cfg.AnalyzerFor("accumulation"), cfg.Analyzers.Accumulation.MinPhaseLength),
		NewBuyingPressure(cfg.AnalyzerFor("buying_pressure")),
		NewVolatility(cfg.AnalyzerFor("volatility"), cfg.Analyzers.Volatility.Ceiling),
		NewSwing(cfg.AnalyzerFor("swing"), swingLookback, swingEst),
		NewCatalyst(cfg.AnalyzerFor("catalyst")),
		NewSentiment(cfg.AnalyzerFor("sentiment")),
		NewEmotion(cfg.AnalyzerFor("emotion")),
		NewFearGreed(cfg.AnalyzerFor("fear_greed")),
		NewPsychology(cfg.AnalyzerFor("psychology")),
	}
	for _, a := range population {
		if err := r.Register(a); err != nil {
			return nil, fmt.Errorf("build analyzer registry: %w", err)
		}
	}
	return r, nil
}

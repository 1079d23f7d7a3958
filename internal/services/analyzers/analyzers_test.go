package analyzers

import (
	"context"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

func analyzerCfg() config.AnalyzerConfig {
	return config.AnalyzerConfig{
		CadenceMs:      5000,
		MaxStalenessMs: 30000,
		MinConfidence:  0.3,
		MinSamples:     5,
		WindowSec:      3600,
		RetentionSec:   600,
	}
}

// candleSeries builds 1m candles walking through the closes, each candle
// opening at the prior close.
func candleSeries(base time.Time, closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	open := closes[0]
	for i, c := range closes {
		out[i] = models.Candle{
			Bucket: base.Add(time.Duration(i) * time.Minute),
			Symbol: "SOLUSDT",
			Open:   open, High: maxOf(open, c), Low: minOf(open, c), Close: c,
			Volume: 10,
		}
		open = c
	}
	return out
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func inputs(candles []models.Candle, social []models.SocialSample) domsvc.AnalyzerInputs {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return domsvc.AnalyzerInputs{Symbol: "SOLUSDT", Now: now, Candles: candles, Social: social}
}

func TestVolatilityThinHistoryReturnsNothing(t *testing.T) {
	v := NewVolatility(analyzerCfg(), 0.8)
	a, err := v.Assess(context.Background(), inputs(candleSeries(time.Now(), []float64{100, 101, 102}), nil))
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if a != nil {
		t.Fatalf("thin history must yield no assessment, got %+v", a)
	}
}

func TestVolatilityBands(t *testing.T) {
	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	v := NewVolatility(analyzerCfg(), 0.8)

	calm := make([]float64, 41)
	for i := range calm {
		calm[i] = 100
		if i%2 == 1 {
			calm[i] = 100.05
		}
	}
	a, err := v.Assess(context.Background(), inputs(candleSeries(base, calm), nil))
	if err != nil || a == nil {
		t.Fatalf("assess calm: %v %v", a, err)
	}
	if a.State != models.VolBandLow {
		t.Fatalf("calm band = %s, want low", a.State)
	}
	if a.Component("ceiling_exceeded", -1) != 0 {
		t.Fatalf("calm market flagged as exceeding the ceiling")
	}

	wild := make([]float64, 41)
	for i := range wild {
		wild[i] = 100
		if i%2 == 1 {
			wild[i] = 105
		}
	}
	a, err = v.Assess(context.Background(), inputs(candleSeries(base, wild), nil))
	if err != nil || a == nil {
		t.Fatalf("assess wild: %v %v", a, err)
	}
	if a.State != models.VolBandExtreme {
		t.Fatalf("wild band = %s, want extreme", a.State)
	}
	if a.Component("ceiling_exceeded", 0) != 1 {
		t.Fatalf("wild market must exceed the ceiling")
	}
	if a.Score <= 0.8 {
		t.Fatalf("wild intensity = %v, want above the ceiling", a.Score)
	}
}

func TestVolatilityConfidenceGate(t *testing.T) {
	cfg := analyzerCfg()
	cfg.MinConfidence = 0.95
	v := NewVolatility(cfg, 0.8)

	closes := make([]float64, 41)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	a, err := v.Assess(context.Background(), inputs(candleSeries(time.Now(), closes), nil))
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if a != nil {
		t.Fatalf("assessment below the confidence gate must be suppressed")
	}
}

func TestFearGreedStates(t *testing.T) {
	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	fg := NewFearGreed(analyzerCfg())

	falling := make([]float64, 41)
	falling[0] = 100
	for i := 1; i < len(falling); i++ {
		drop := 0.01
		if i%2 == 0 {
			drop = 0.05
		}
		falling[i] = falling[i-1] * (1 - drop)
	}
	a, err := fg.Assess(context.Background(), inputs(candleSeries(base, falling), nil))
	if err != nil || a == nil {
		t.Fatalf("assess falling: %v %v", a, err)
	}
	if a.State != models.FGExtremeFear && a.State != models.FGFear {
		t.Fatalf("falling market state = %s, want fear", a.State)
	}

	rising := make([]float64, 41)
	rising[0] = 100
	for i := 1; i < len(rising); i++ {
		gain := 0.01
		if i%2 == 0 {
			gain = 0.05
		}
		rising[i] = rising[i-1] * (1 + gain)
	}
	b, err := fg.Assess(context.Background(), inputs(candleSeries(base, rising), nil))
	if err != nil || b == nil {
		t.Fatalf("assess rising: %v %v", b, err)
	}
	if b.Score <= a.Score {
		t.Fatalf("rising market index %v not above falling %v", b.Score, a.Score)
	}
	if b.State == models.FGExtremeFear || b.State == models.FGFear {
		t.Fatalf("rising market state = %s", b.State)
	}
}

func TestFearGreedSocialTone(t *testing.T) {
	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	fg := NewFearGreed(analyzerCfg())

	flat := make([]float64, 41)
	for i := range flat {
		flat[i] = 100
	}
	quiet, err := fg.Assess(context.Background(), inputs(candleSeries(base, flat), nil))
	if err != nil || quiet == nil {
		t.Fatalf("assess quiet: %v %v", quiet, err)
	}

	social := make([]models.SocialSample, 6)
	for i := range social {
		social[i] = models.SocialSample{
			Source: models.SourceTwitter, Symbol: "SOLUSDT",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Text:      "moon pump rally", Reach: 500, AuthorWeight: 1,
		}
	}
	loud, err := fg.Assess(context.Background(), inputs(candleSeries(base, flat), social))
	if err != nil || loud == nil {
		t.Fatalf("assess loud: %v %v", loud, err)
	}
	if loud.Score <= quiet.Score {
		t.Fatalf("bullish social tone must lift the index: %v <= %v", loud.Score, quiet.Score)
	}
	if loud.Component("social", 0) <= 0.5 {
		t.Fatalf("social component = %v, want bullish", loud.Component("social", 0))
	}
}

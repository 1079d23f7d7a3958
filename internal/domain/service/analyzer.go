package service

import (
	"context"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

// AnalyzerInputs is everything an analyzer may look at for one assessment.
// Analyzers are pure with respect to these inputs and their parameter set.
type AnalyzerInputs struct {
	Symbol    string
	Now       time.Time
	Snapshots []models.MarketSnapshot
	Candles   []models.Candle
	Social    []models.SocialSample
}

// Analyzer is the capability contract every analyzer implements. Plug-in is
// by registration, never by reflection. Assess may return (nil, nil) when
// inputs are insufficient or confidence falls below MinConfidence.
type Analyzer interface {
	Domain() string
	Cadence() time.Duration
	MaxStaleness() time.Duration
	MinConfidence() float64
	ComponentKeys() []string
	Assess(ctx context.Context, in AnalyzerInputs) (*models.Assessment, error)
}

// Estimator is an opaque trained scorer: features in, probability-like score
// out. The slow retraining path swaps estimators atomically; a candidate is
// activated only after clearing the held-out accuracy floor.
type Estimator interface {
	Predict(ctx context.Context, features map[string]float64) (float64, error)
	Version() int
}

// TrainableEstimator extends Estimator with the retraining contract.
type TrainableEstimator interface {
	Estimator
	Train(ctx context.Context, features []map[string]float64, labels []float64) error
	Evaluate(ctx context.Context, features []map[string]float64, labels []float64) (accuracy float64, err error)
}

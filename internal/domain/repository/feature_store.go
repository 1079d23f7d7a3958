package repository

import (
	"context"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1s Timeframe = "1s"
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
)

// CandleSource provides read-only candle history for analyzer cold starts
// and estimator training windows.
type CandleSource interface {
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}

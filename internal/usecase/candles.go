package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/history"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/util"
)

// CandlesUseCase serves candle history from the snapshot store and seeds the
// rolling history at startup so analyzers do not cold-start empty.
type CandlesUseCase struct {
	store domrepo.SnapshotStore
	log   *logger.Logger
}

func NewCandlesUseCase(store domrepo.SnapshotStore, log *logger.Logger) *CandlesUseCase {
	return &CandlesUseCase{store: store, log: log}
}

// GetCandles returns up to limit latest candles for symbol.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, symbol string, limit int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > 10000 {
		limit = 10000
	}
	if uc.store == nil {
		return nil, nil
	}
	candles, err := uc.store.GetLatestNCandles(ctx, symbol, limit, tf)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	return candles, nil
}

// GetCandlesUntil returns up to limit candles whose bucket is at or before the
// given boundary. The boundary is floored to the timeframe so callers can pass
// arbitrary wall-clock times.
func (uc *CandlesUseCase) GetCandlesUntil(ctx context.Context, symbol string, limit int, tf domrepo.Timeframe, until time.Time) ([]models.Candle, error) {
	candles, err := uc.GetCandles(ctx, symbol, limit, tf)
	if err != nil || len(candles) == 0 {
		return candles, err
	}
	boundary := util.TruncateToTimeframe(until, string(tf))
	out := candles[:0]
	for _, c := range candles {
		if !c.Bucket.After(boundary) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Backfill seeds the rolling history with persisted candles for each symbol.
// Missing persistence is tolerated; analyzers then warm up from the live feed.
func (uc *CandlesUseCase) Backfill(ctx context.Context, hist *history.Store, symbols []string, n int) {
	if uc.store == nil {
		return
	}
	for _, symbol := range symbols {
		candles, err := uc.store.GetLatestNCandles(ctx, symbol, n, domrepo.TF1m)
		if err != nil {
			if uc.log != nil {
				uc.log.Warn("candle backfill failed",
					logger.String("symbol", symbol), logger.Error(err))
			}
			continue
		}
		hist.Backfill(symbol, candles)
		if uc.log != nil {
			uc.log.Info("candles backfilled",
				logger.String("symbol", symbol), logger.Int("count", len(candles)))
		}
	}
}

package features

import (
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

// SwingPoint is a confirmed local extreme: a pivot high or low that held for
// `lookback` bars on both sides.
type SwingPoint struct {
	Bucket time.Time
	Price  float64
	High   bool // true for swing high, false for swing low
	Index  int
}

// FindSwings detects confirmed pivot highs/lows with the given lookback.
// The most recent `lookback` bars can never confirm a pivot yet.
func FindSwings(candles []models.Candle, lookback int) []SwingPoint {
	if lookback < 1 || len(candles) < 2*lookback+1 {
		return nil
	}
	var out []SwingPoint
	for i := lookback; i < len(candles)-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			out = append(out, SwingPoint{Bucket: candles[i].Bucket, Price: candles[i].High, High: true, Index: i})
		}
		if isLow {
			out = append(out, SwingPoint{Bucket: candles[i].Bucket, Price: candles[i].Low, High: false, Index: i})
		}
	}
	return out
}

// LastSwings returns the most recent confirmed swing high and low, either of
// which may be absent.
func LastSwings(candles []models.Candle, lookback int) (high, low *SwingPoint) {
	swings := FindSwings(candles, lookback)
	for i := len(swings) - 1; i >= 0; i-- {
		s := swings[i]
		if s.High && high == nil {
			c := s
			high = &c
		}
		if !s.High && low == nil {
			c := s
			low = &c
		}
		if high != nil && low != nil {
			break
		}
	}
	return high, low
}

package features

import (
	"math"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over a rolling
// window using the provided number of bars per year. Returns the latest
// window sigma.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYearForTF returns the approximate number of bars per year for a
// timeframe.
func BarsPerYearForTF(tf string) float64 {
	switch tf {
	case "1s":
		return 365 * 24 * 60 * 60
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	default:
		return 365 * 24 * 60
	}
}

// EMA computes the exponential moving average series with period n.
func EMA(xs []float64, n int) []float64 {
	if len(xs) == 0 || n <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(n) + 1)
	out := make([]float64, len(xs))
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// LastEMA computes only the final EMA value with period n.
func LastEMA(xs []float64, n int) float64 {
	s := EMA(xs, n)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// ZScore returns (x - mean) / stddev over xs, or 0 when stddev vanishes.
func ZScore(xs []float64, x float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum, sum2 float64
	for _, v := range xs {
		sum += v
		sum2 += v * v
	}
	n := float64(len(xs))
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance <= 0 {
		return 0
	}
	return (x - mean) / math.Sqrt(variance)
}

// Pearson computes the correlation coefficient of two equal-length series.
// It returns 0 when either series is degenerate.
func Pearson(a, b []float64) float64 {
	n := len(a)
	if n != len(b) || n < 2 {
		return 0
	}
	var sa, sb, saa, sbb, sab float64
	for i := 0; i < n; i++ {
		sa += a[i]
		sb += b[i]
		saa += a[i] * a[i]
		sbb += b[i] * b[i]
		sab += a[i] * b[i]
	}
	fn := float64(n)
	cov := sab - sa*sb/fn
	va := saa - sa*sa/fn
	vb := sbb - sb*sb/fn
	if va <= 0 || vb <= 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// VWAP computes the volume-weighted average close of candles; 0 when volume
// is absent.
func VWAP(candles []models.Candle) float64 {
	var pv, v float64
	for _, c := range candles {
		pv += c.Close * c.Volume
		v += c.Volume
	}
	if v == 0 {
		return 0
	}
	return pv / v
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 bounds x to [0,1].
func Clamp01(x float64) float64 { return Clamp(x, 0, 1) }

// MaxDrawdown returns the largest peak-to-trough decline fraction of the
// close series.
func MaxDrawdown(closes []float64) float64 {
	var peak, maxDD float64
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (peak - c) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

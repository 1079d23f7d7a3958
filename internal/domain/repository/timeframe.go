package repository

import "time"

// NormalizeTimeframe maps a raw query string to a supported timeframe,
// defaulting to the canonical 1m bucket.
func NormalizeTimeframe(s string) Timeframe {
	switch tf := Timeframe(s); tf {
	case TF1s, TF1m, TF5m:
		return tf
	default:
		return TF1m
	}
}

// Duration returns the bucket width. The zero return for unknown values never
// happens for normalized timeframes.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1s:
		return time.Second
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	}
	return 0
}

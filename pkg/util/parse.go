package util

import (
	"strconv"
	"time"
)

// ParseIntDefault parses s as an int, falling back to def when empty or invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ParseTime accepts RFC3339, RFC3339Nano, unix seconds, and unix milliseconds
// (venue feeds report milliseconds). Returns (t, true) when any form parsed.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e12 {
			return time.UnixMilli(ts), true
		}
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses a time or returns def when empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// TruncateToTimeframe floors t to the candle boundary for tf. Unknown
// timeframes floor to the minute, matching the canonical candle bucket.
func TruncateToTimeframe(t time.Time, tf string) time.Time {
	switch tf {
	case "1s":
		return t.Truncate(time.Second)
	case "5m":
		return t.Truncate(5 * time.Minute)
	default:
		return t.Truncate(time.Minute)
	}
}

package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2026-03-01T09:30:00Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnixSecondsAndMillis(t *testing.T) {
	ref := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	got, ok := ParseTime(strconv.FormatInt(ref.Unix(), 10))
	if !ok || got.Unix() != ref.Unix() {
		t.Fatalf("seconds: got %v ok=%v", got, ok)
	}

	got, ok = ParseTime(strconv.FormatInt(ref.UnixMilli(), 10))
	if !ok || !got.Equal(ref) {
		t.Fatalf("millis: got %v ok=%v", got, ok)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if got := ParseTimeDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default, got %v", got)
	}
	if got := ParseTimeDefault("not-a-time", def); !got.Equal(def) {
		t.Fatalf("expected default on garbage, got %v", got)
	}
}

func TestTruncateToTimeframe(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 33, 42, 0, time.UTC)
	if got := TruncateToTimeframe(ts, "5m"); got.Minute() != 30 {
		t.Fatalf("5m: got %v", got)
	}
	if got := TruncateToTimeframe(ts, "1m"); got.Second() != 0 || got.Minute() != 33 {
		t.Fatalf("1m: got %v", got)
	}
	if got := TruncateToTimeframe(ts, "bogus"); got.Second() != 0 {
		t.Fatalf("default: got %v", got)
	}
}

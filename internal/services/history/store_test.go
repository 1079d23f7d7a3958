package history

import (
	"math"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

func snapAt(ts time.Time, price, vol float64) *models.MarketSnapshot {
	return &models.MarketSnapshot{Symbol: "SOLUSDT", Timestamp: ts, Price: price, Volume1m: vol}
}

func TestAddSnapshotRejectsOutOfOrder(t *testing.T) {
	s := New()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !s.AddSnapshot(snapAt(ts, 100, 1)) {
		t.Fatalf("first snapshot rejected")
	}
	if s.AddSnapshot(snapAt(ts.Add(-time.Second), 99, 1)) {
		t.Fatalf("older snapshot accepted")
	}
	if s.AddSnapshot(snapAt(ts, 101, 1)) {
		t.Fatalf("equal-timestamp snapshot accepted")
	}
	if s.LastPrice("SOLUSDT") != 100 {
		t.Fatalf("last price = %v, want 100", s.LastPrice("SOLUSDT"))
	}
}

func TestCandleFolding(t *testing.T) {
	s := New(WithCandleBucket(time.Minute))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.AddSnapshot(snapAt(base.Add(5*time.Second), 100, 2))
	s.AddSnapshot(snapAt(base.Add(20*time.Second), 104, 3))
	s.AddSnapshot(snapAt(base.Add(40*time.Second), 98, 1))
	s.AddSnapshot(snapAt(base.Add(70*time.Second), 101, 5)) // next bucket

	cs := s.Candles("SOLUSDT", 10)
	if len(cs) != 2 {
		t.Fatalf("candle count = %d, want 2", len(cs))
	}
	c := cs[0]
	if c.Open != 100 || c.High != 104 || c.Low != 98 || c.Close != 98 {
		t.Fatalf("ohlc = %v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume != 6 {
		t.Fatalf("volume = %v, want 6", c.Volume)
	}
	if cs[1].Open != 101 || !cs[1].Bucket.Equal(base.Add(time.Minute)) {
		t.Fatalf("second candle = %+v", cs[1])
	}
}

func TestSnapshotRetention(t *testing.T) {
	s := New(WithRetention(time.Minute))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.AddSnapshot(snapAt(base.Add(time.Duration(i)*30*time.Second), 100, 1))
	}
	got := s.Snapshots("SOLUSDT", time.Hour, base.Add(2*time.Minute))
	if len(got) != 3 {
		t.Fatalf("retained %d snapshots, want 3", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(time.Minute)) {
		t.Fatalf("oldest retained = %v", got[0].Timestamp)
	}
}

func TestSocialUnknownSourceRejected(t *testing.T) {
	s := New()
	now := time.Now()
	ok := s.AddSocial(&models.SocialSample{Source: "myspace", Symbol: "SOLUSDT", Timestamp: now})
	if ok {
		t.Fatalf("unknown source accepted")
	}
	if !s.AddSocial(&models.SocialSample{Source: models.SourceTwitter, Symbol: "SOLUSDT", Timestamp: now, Text: "sol szn"}) {
		t.Fatalf("known source rejected")
	}
	if got := s.Social("SOLUSDT", time.Hour, now); len(got) != 1 {
		t.Fatalf("social count = %d, want 1", len(got))
	}
}

func TestBackfillDoesNotOverwriteLiveCandles(t *testing.T) {
	s := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.Backfill("SOLUSDT", []models.Candle{{Bucket: base, Symbol: "SOLUSDT", Close: 50}})
	if got := s.Candles("SOLUSDT", 10); len(got) != 1 || got[0].Close != 50 {
		t.Fatalf("backfill not applied: %v", got)
	}
	// Second backfill is ignored once candles exist.
	s.Backfill("SOLUSDT", []models.Candle{{Bucket: base, Symbol: "SOLUSDT", Close: 60}})
	if got := s.Candles("SOLUSDT", 10); got[0].Close != 50 {
		t.Fatalf("backfill overwrote existing candles")
	}
}

func TestReturns(t *testing.T) {
	s := New(WithCandleBucket(time.Minute))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.AddSnapshot(snapAt(base, 100, 1))
	s.AddSnapshot(snapAt(base.Add(time.Minute), 110, 1))
	s.AddSnapshot(snapAt(base.Add(2*time.Minute), 99, 1))

	rets := s.Returns("SOLUSDT", 10)
	if len(rets) != 2 {
		t.Fatalf("returns = %v, want 2 values", rets)
	}
	if math.Abs(rets[0]-math.Log(1.1)) > 1e-9 {
		t.Fatalf("first return = %v", rets[0])
	}
	if math.Abs(rets[1]-math.Log(0.9)) > 1e-9 {
		t.Fatalf("second return = %v", rets[1])
	}
}

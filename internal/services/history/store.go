package history

import (
	"math"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

// Store keeps the rolling in-memory market and social history analyzers read
// from. Feeds apply backpressure by letting the store drop the oldest
// records beyond retention. One writer (the collector) and many readers.
type Store struct {
	mu        sync.RWMutex
	retention time.Duration
	maxSnaps  int
	snaps     map[string][]models.MarketSnapshot
	social    map[string][]models.SocialSample
	candles   map[string][]models.Candle
	bucket    time.Duration
	maxCand   int
}

// Option configures a Store.
type Option func(*Store)

// WithRetention bounds the snapshot/social retention window.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithCandleBucket sets the candle aggregation bucket.
func WithCandleBucket(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.bucket = d
		}
	}
}

// WithMaxCandles bounds the retained candle count per symbol.
func WithMaxCandles(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxCand = n
		}
	}
}

// New creates a history store.
func New(opts ...Option) *Store {
	s := &Store{
		retention: time.Hour,
		maxSnaps:  10000,
		snaps:     make(map[string][]models.MarketSnapshot),
		social:    make(map[string][]models.SocialSample),
		candles:   make(map[string][]models.Candle),
		bucket:    time.Minute,
		maxCand:   1440,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSnapshot appends a market snapshot and folds it into the current candle.
// Non-monotonic snapshots are rejected; the caller counts the drop.
func (s *Store) AddSnapshot(snap *models.MarketSnapshot) bool {
	if snap == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	xs := s.snaps[snap.Symbol]
	if n := len(xs); n > 0 && !snap.Timestamp.After(xs[n-1].Timestamp) {
		return false
	}
	xs = append(xs, *snap)
	cutoff := snap.Timestamp.Add(-s.retention)
	for len(xs) > 1 && (xs[0].Timestamp.Before(cutoff) || len(xs) > s.maxSnaps) {
		xs = xs[1:]
	}
	s.snaps[snap.Symbol] = xs

	s.foldCandle(snap)
	return true
}

func (s *Store) foldCandle(snap *models.MarketSnapshot) {
	bucket := snap.Timestamp.Truncate(s.bucket)
	cs := s.candles[snap.Symbol]
	if n := len(cs); n > 0 && cs[n-1].Bucket.Equal(bucket) {
		c := &cs[n-1]
		if snap.Price > c.High {
			c.High = snap.Price
		}
		if snap.Price < c.Low {
			c.Low = snap.Price
		}
		c.Close = snap.Price
		c.Volume += snap.Volume1m
		return
	}
	cs = append(cs, models.Candle{
		Bucket: bucket,
		Symbol: snap.Symbol,
		Open:   snap.Price,
		High:   snap.Price,
		Low:    snap.Price,
		Close:  snap.Price,
		Volume: snap.Volume1m,
	})
	if len(cs) > s.maxCand {
		cs = cs[len(cs)-s.maxCand:]
	}
	s.candles[snap.Symbol] = cs
}

// AddSocial appends a social sample. Unknown sources are rejected.
func (s *Store) AddSocial(sample *models.SocialSample) bool {
	if sample == nil || !models.KnownSource(sample.Source) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	xs := append(s.social[sample.Symbol], *sample)
	cutoff := sample.Timestamp.Add(-s.retention)
	for len(xs) > 1 && xs[0].Timestamp.Before(cutoff) {
		xs = xs[1:]
	}
	s.social[sample.Symbol] = xs
	return true
}

// Backfill seeds candle history (e.g. from ClickHouse at startup). Existing
// candles win on bucket collision.
func (s *Store) Backfill(symbol string, candles []models.Candle) {
	if len(candles) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.candles[symbol]) == 0 {
		cs := append([]models.Candle(nil), candles...)
		if len(cs) > s.maxCand {
			cs = cs[len(cs)-s.maxCand:]
		}
		s.candles[symbol] = cs
	}
}

// Snapshots returns snapshots for symbol no older than window, ascending.
func (s *Store) Snapshots(symbol string, window time.Duration, now time.Time) []models.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	xs := s.snaps[symbol]
	cutoff := now.Add(-window)
	i := 0
	for i < len(xs) && xs[i].Timestamp.Before(cutoff) {
		i++
	}
	return append([]models.MarketSnapshot(nil), xs[i:]...)
}

// Candles returns up to n most recent candles for symbol, ascending.
func (s *Store) Candles(symbol string, n int) []models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs := s.candles[symbol]
	if len(cs) > n {
		cs = cs[len(cs)-n:]
	}
	return append([]models.Candle(nil), cs...)
}

// Social returns social samples for symbol no older than window, ascending.
func (s *Store) Social(symbol string, window time.Duration, now time.Time) []models.SocialSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	xs := s.social[symbol]
	cutoff := now.Add(-window)
	i := 0
	for i < len(xs) && xs[i].Timestamp.Before(cutoff) {
		i++
	}
	return append([]models.SocialSample(nil), xs[i:]...)
}

// LastPrice returns the most recent price for symbol, 0 when unseen.
func (s *Store) LastPrice(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	xs := s.snaps[symbol]
	if len(xs) == 0 {
		cs := s.candles[symbol]
		if len(cs) == 0 {
			return 0
		}
		return cs[len(cs)-1].Close
	}
	return xs[len(xs)-1].Price
}

// Returns computes log returns over the latest n candles of symbol.
func (s *Store) Returns(symbol string, n int) []float64 {
	cs := s.Candles(symbol, n)
	if len(cs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(cs)-1)
	for i := 1; i < len(cs); i++ {
		prev, cur := cs[i-1].Close, cs[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

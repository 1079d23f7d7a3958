package bus

import (
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
)

// Handler consumes assessments for one domain. Handlers run on their own
// goroutine and may not stall publishers.
type Handler func(models.Assessment)

type streamKey struct {
	domain string
	symbol string
}

type stream struct {
	window []models.Assessment // ts-ascending
}

type subscriber struct {
	domain string
	ch     chan models.Assessment
}

// Bus is the in-process assessment pub/sub. Per (domain, symbol) it retains
// at least the configured retention window and delivers assessments to
// subscribers in ts-monotone order. Late arrivals are dropped and counted.
type Bus struct {
	mu        sync.RWMutex
	streams   map[streamKey]*stream
	subs      []*subscriber
	retention map[string]time.Duration

	defaultRetention time.Duration
	subBuffer        int
	metrics          drepo.Metrics

	closed bool
	wg     sync.WaitGroup
}

// Option configures a Bus.
type Option func(*Bus)

// WithRetention sets the retention window for one domain.
func WithRetention(domain string, w time.Duration) Option {
	return func(b *Bus) { b.retention[domain] = w }
}

// WithDefaultRetention sets the retention for domains without an explicit window.
func WithDefaultRetention(w time.Duration) Option {
	return func(b *Bus) {
		if w > 0 {
			b.defaultRetention = w
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber channel depth.
func WithSubscriberBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.subBuffer = n
		}
	}
}

// New creates an assessment bus.
func New(metrics drepo.Metrics, opts ...Option) *Bus {
	b := &Bus{
		streams:          make(map[streamKey]*stream),
		retention:        make(map[string]time.Duration),
		defaultRetention: 10 * time.Minute,
		subBuffer:        256,
		metrics:          metrics,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish accepts an assessment, retains it, and fans it out. It never
// blocks: slow subscribers drop instead of stalling the publisher.
// An assessment older than the stream head is dropped and counted; one with
// an identical ts is a no-op (idempotent republish).
func (b *Bus) Publish(a models.Assessment) {
	if !a.Valid() {
		if b.metrics != nil {
			b.metrics.RecordDataDrop("assessment_invalid")
		}
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	k := streamKey{domain: a.Domain, symbol: a.Symbol}
	s, ok := b.streams[k]
	if !ok {
		s = &stream{}
		b.streams[k] = s
	}
	if n := len(s.window); n > 0 {
		head := s.window[n-1].Timestamp
		if a.Timestamp.Before(head) {
			b.mu.Unlock()
			if b.metrics != nil {
				b.metrics.RecordLateDrop(a.Domain)
			}
			return
		}
		if a.Timestamp.Equal(head) {
			b.mu.Unlock()
			return
		}
	}
	s.window = append(s.window, a)
	b.prune(s, a.Domain, a.Timestamp)

	subs := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.domain == a.Domain || sub.domain == "" {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordAssessment(a.Domain, a.Symbol)
	}
	for _, sub := range subs {
		select {
		case sub.ch <- a:
		default:
			if b.metrics != nil {
				b.metrics.RecordDataDrop("subscriber_overflow")
			}
		}
	}
}

// prune keeps at least the retention window; callers hold the write lock.
func (b *Bus) prune(s *stream, domain string, now time.Time) {
	w, ok := b.retention[domain]
	if !ok {
		w = b.defaultRetention
	}
	cutoff := now.Add(-w)
	i := 0
	for i < len(s.window)-1 && s.window[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.window = append(s.window[:0:0], s.window[i:]...)
	}
}

// Latest returns the assessment with the largest ts seen for (domain, symbol).
func (b *Bus) Latest(domain, symbol string) (models.Assessment, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.streams[streamKey{domain: domain, symbol: symbol}]
	if !ok || len(s.window) == 0 {
		return models.Assessment{}, false
	}
	return s.window[len(s.window)-1], true
}

// Window returns the retained assessments for (domain, symbol) no older than d
// relative to the stream head, in ts-ascending order.
func (b *Bus) Window(domain, symbol string, d time.Duration) []models.Assessment {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.streams[streamKey{domain: domain, symbol: symbol}]
	if !ok || len(s.window) == 0 {
		return nil
	}
	cutoff := s.window[len(s.window)-1].Timestamp.Add(-d)
	out := make([]models.Assessment, 0, len(s.window))
	for _, a := range s.window {
		if !a.Timestamp.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// Subscribe registers a handler for one domain ("" for all domains). The
// handler runs in its own goroutine until Close.
func (b *Bus) Subscribe(domain string, h Handler) {
	sub := &subscriber{domain: domain, ch: make(chan models.Assessment, b.subBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for a := range sub.ch {
			h(a)
		}
	}()
}

// FusedView snapshots the latest assessment per required domain for symbol,
// atomically with respect to publishes. Domains whose latest assessment is
// older than its max staleness are reported missing, never zero-filled.
func (b *Bus) FusedView(symbol string, now time.Time, maxStaleness map[string]time.Duration) models.FusedView {
	v := models.FusedView{
		Symbol:  symbol,
		AsOf:    now,
		Domains: make(map[string]models.Assessment),
	}

	b.mu.RLock()
	for domain, st := range maxStaleness {
		s, ok := b.streams[streamKey{domain: domain, symbol: symbol}]
		if !ok || len(s.window) == 0 {
			v.Missing = append(v.Missing, domain)
			continue
		}
		a := s.window[len(s.window)-1]
		if st > 0 && now.Sub(a.Timestamp) > st {
			v.Missing = append(v.Missing, domain)
			continue
		}
		v.Domains[domain] = a
	}
	b.mu.RUnlock()
	return v
}

// Close stops delivery and waits for subscriber goroutines to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
	b.wg.Wait()
}

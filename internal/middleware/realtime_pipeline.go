package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"

	"golang.org/x/time/rate"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, s *models.MarketSnapshot) error
}

// RealtimePipeline sits between the market feed and the snapshot processor.
// It rejects malformed snapshots, throttles per symbol, and buffers work
// while downstream is failing. Overflow beyond the buffer is dropped and
// counted rather than blocking the feed reader.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan *models.MarketSnapshot
	stopCh  chan struct{}

	mu       sync.Mutex
	started  bool
	limiters map[string]*rate.Limiter
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max snapshots per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   50,
		bufSize:  2000,
		stopCh:   make(chan struct{}),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.MarketSnapshot, p.bufSize)
	return p
}

// Start launches background flushing of buffered snapshots.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.flushLoop(ctx)
}

// Stop stops the background flushing.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Process validates, throttles, and forwards a snapshot downstream,
// buffering on errors.
func (p *RealtimePipeline) Process(ctx context.Context, s *models.MarketSnapshot) error {
	start := time.Now()
	if err := validateSnapshot(s); err != nil {
		p.metrics.RecordDataDrop("snapshot_invalid")
		return err
	}
	if !p.allow(s.Symbol) {
		p.metrics.RecordDataDrop("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.buffer(s)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// flushLoop retries buffered snapshots with capped exponential backoff.
// Backoff resets on the first success.
func (p *RealtimePipeline) flushLoop(ctx context.Context) {
	const (
		baseBackoff = 50 * time.Millisecond
		maxBackoff  = 2 * time.Second
	)
	backoff := baseBackoff

	for {
		select {
		case <-p.stopCh:
			return
		case s := <-p.bufCh:
			if s == nil {
				continue
			}
			if err := p.proc.Process(ctx, s); err != nil {
				p.metrics.RecordError("pipeline_flush")
				if backoff < maxBackoff {
					backoff *= 2
				}
				time.Sleep(backoff)
				p.buffer(s)
				continue
			}
			backoff = baseBackoff
		}
	}
}

func (p *RealtimePipeline) buffer(s *models.MarketSnapshot) {
	select {
	case p.bufCh <- s:
	default:
		p.metrics.RecordDataDrop("pipeline_buffer")
	}
}

func (p *RealtimePipeline) allow(symbol string) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	lim, ok := p.limiters[symbol]
	if !ok {
		// Burst matches the sustained rate so a one-second gap does not
		// forfeit a full second of budget.
		lim = rate.NewLimiter(rate.Limit(p.maxRPS), p.maxRPS)
		p.limiters[symbol] = lim
	}
	p.mu.Unlock()
	return lim.Allow()
}

func validateSnapshot(s *models.MarketSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot nil")
	}
	if s.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp invalid")
	}
	if s.Price < 0 || s.Volume1m < 0 {
		return fmt.Errorf("negative price/volume")
	}
	return nil
}

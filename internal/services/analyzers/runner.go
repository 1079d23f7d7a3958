package analyzers

import (
	"context"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/bus"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/scheduler"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/history"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// Runner binds the analyzer population to the scheduler: one job per
// analyzer, at the analyzer's cadence, assessing every configured symbol
// from the rolling history and publishing results on the bus.
type Runner struct {
	registry *Registry
	store    *history.Store
	bus      *bus.Bus
	sched    *scheduler.Scheduler
	symbols  []string
	windows  map[string]time.Duration
	metrics  domrepo.Metrics
	log      *logger.Logger
}

// NewRunner creates a runner over the configured symbols.
func NewRunner(
	registry *Registry,
	store *history.Store,
	b *bus.Bus,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Runner {
	windows := make(map[string]time.Duration)
	for _, a := range registry.All() {
		windows[a.Domain()] = cfg.AnalyzerFor(a.Domain()).Window()
	}
	return &Runner{
		registry: registry,
		store:    store,
		bus:      b,
		sched:    sched,
		symbols:  append([]string(nil), cfg.Symbols...),
		windows:  windows,
		metrics:  metrics,
		log:      log,
	}
}

// Schedule registers one scheduler job per analyzer.
func (r *Runner) Schedule() {
	for _, a := range r.registry.All() {
		a := a
		r.sched.Register("analyzer."+a.Domain(), a.Cadence(), func(ctx context.Context) {
			r.runOnce(ctx, a)
		})
	}
	if r.log != nil {
		r.log.Info("analyzers scheduled",
			logger.Int("analyzers", len(r.registry.All())),
			logger.Int("symbols", len(r.symbols)))
	}
}

// runOnce assesses every symbol with one analyzer. Errors are logged and
// counted without stopping the other symbols.
func (r *Runner) runOnce(ctx context.Context, a domsvc.Analyzer) {
	now := r.sched.Now()
	window := r.windows[a.Domain()]
	for _, symbol := range r.symbols {
		start := time.Now()
		assessment, err := a.Assess(ctx, domsvc.AnalyzerInputs{
			Symbol:    symbol,
			Now:       now,
			Snapshots: r.store.Snapshots(symbol, window, now),
			Candles:   r.store.Candles(symbol, candlesFor(window)),
			Social:    r.store.Social(symbol, window, now),
		})
		if r.metrics != nil {
			r.metrics.RecordLatency("analyze."+a.Domain(), time.Since(start).Seconds())
		}
		if err != nil {
			if r.metrics != nil {
				r.metrics.RecordError("analyzer_" + a.Domain())
			}
			if r.log != nil {
				r.log.Error("analyzer failed",
					logger.String("domain", a.Domain()),
					logger.String("symbol", symbol),
					logger.Error(err))
			}
			continue
		}
		if assessment == nil {
			continue
		}
		r.bus.Publish(*assessment)
	}
}

// MaxStaleness returns the staleness bound per registered domain, the shape
// the bus fused view expects.
func (r *Runner) MaxStaleness() map[string]time.Duration {
	out := make(map[string]time.Duration, len(r.registry.All()))
	for _, a := range r.registry.All() {
		out[a.Domain()] = a.MaxStaleness()
	}
	return out
}

// candlesFor converts an analysis window into a candle count at the 1m bucket.
func candlesFor(window time.Duration) int {
	n := int(window / time.Minute)
	if n < 30 {
		n = 30
	}
	return n
}

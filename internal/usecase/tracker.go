package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/estimator"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// ReportSink receives performance reports for closed intents.
type ReportSink interface {
	OnReport(ctx context.Context, report *models.PerformanceReport)
}

// openTrade is the tracker's record of one open position's originating
// intent, kept until the position closes so realized P&L can be attributed.
type openTrade struct {
	intent    *models.TradeIntent
	entry     *models.PlanResult
	openedAt  time.Time
}

// Tracker mirrors positions, tracks equity and trailing drawdown, and turns
// closed trades into attributed performance reports. The exchange adapter is
// authoritative for positions; the mirror is reconciled on terminal events.
type Tracker struct {
	mu        sync.Mutex
	positions map[string]models.Position
	trades    map[string]*openTrade // symbol -> open trade
	equity    float64
	peak      float64
	lastLoss  time.Time
	brake     bool

	maxDrawdown float64
	recovery    time.Duration
	maxSlippage float64
	seeded      bool

	store     domrepo.AttributionStore
	analysis  domrepo.AnalysisLog
	estimator *estimator.Manager
	frozen    *FreezeList
	busy      func(symbol string) bool
	sink      ReportSink
	metrics   domrepo.Metrics
	log       *logger.Logger
}

// NewTracker creates a tracker seeded with the starting equity.
func NewTracker(
	initialEquity, maxDrawdown float64,
	recovery time.Duration,
	maxSlippage float64,
	store domrepo.AttributionStore,
	analysis domrepo.AnalysisLog,
	est *estimator.Manager,
	frozen *FreezeList,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Tracker {
	return &Tracker{
		positions:   make(map[string]models.Position),
		trades:      make(map[string]*openTrade),
		equity:      initialEquity,
		peak:        initialEquity,
		maxDrawdown: maxDrawdown,
		recovery:    recovery,
		maxSlippage: maxSlippage,
		store:       store,
		analysis:    analysis,
		estimator:   est,
		frozen:      frozen,
		metrics:     metrics,
		log:         log,
	}
}

// SetSink wires the report consumer; done after construction to break the
// tracker/feedback cycle.
func (t *Tracker) SetSink(sink ReportSink) {
	t.mu.Lock()
	t.sink = sink
	t.mu.Unlock()
}

// SetBusy wires the predicate that reports whether a symbol has a plan in
// flight; reconciliation skips busy symbols since their mirror is in motion.
func (t *Tracker) SetBusy(busy func(symbol string) bool) {
	t.mu.Lock()
	t.busy = busy
	t.mu.Unlock()
}

// Equity returns current equity.
func (t *Tracker) Equity() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.equity
}

// Drawdown returns the trailing drawdown from the equity peak.
func (t *Tracker) Drawdown() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drawdownLocked()
}

func (t *Tracker) drawdownLocked() float64 {
	if t.peak <= 0 {
		return 0
	}
	dd := (t.peak - t.equity) / t.peak
	if dd < 0 {
		return 0
	}
	return dd
}

// BrakeActive reports whether the drawdown brake is latched. The brake
// engages at max_drawdown and releases only after the recovery period of
// non-negative realized P&L.
func (t *Tracker) BrakeActive(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.drawdownLocked() >= t.maxDrawdown {
		t.brake = true
	}
	if t.brake && now.Sub(t.lastLoss) >= t.recovery && t.drawdownLocked() < t.maxDrawdown {
		t.brake = false
	}
	return t.brake
}

// OpenPositions returns the mirrored open positions.
func (t *Tracker) OpenPositions() []models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// Reconcile replaces the mirror with the exchange's authoritative view. After
// the first seeding pass, a symbol whose mirrored size disagrees with the
// venue is frozen unless a plan is working it.
func (t *Tracker) Reconcile(ctx context.Context, exchange domrepo.Exchange) error {
	positions, err := exchange.Positions(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]models.Position, len(positions))
	for _, p := range positions {
		if p.Size != 0 {
			next[p.Symbol] = p
		}
	}

	t.mu.Lock()
	prev := t.positions
	t.positions = next
	seeded := t.seeded
	t.seeded = true
	frozen, busy := t.frozen, t.busy
	t.mu.Unlock()

	if !seeded || frozen == nil {
		return nil
	}
	checked := make(map[string]bool, len(prev)+len(next))
	for _, book := range []map[string]models.Position{prev, next} {
		for sym := range book {
			if checked[sym] {
				continue
			}
			checked[sym] = true
			if busy != nil && busy(sym) {
				continue
			}
			if diff := abs(prev[sym].Size - next[sym].Size); diff > 1e-6 {
				frozen.Freeze(sym, invariantErr("position mirror diverged from venue by %v", diff).Error())
				if t.metrics != nil {
					t.metrics.RecordError("reconcile_divergence")
				}
			}
		}
	}
	return nil
}

// OnPlanResult folds a terminal plan into the mirror. Entries open a trade
// record; closes realize P&L and emit the attributed report.
func (t *Tracker) OnPlanResult(ctx context.Context, intent *models.TradeIntent, result *models.PlanResult) {
	if t.analysis != nil {
		_ = t.analysis.Append(ctx, "plan_result", result)
	}
	if result.FilledSize < 0 {
		if t.frozen != nil {
			t.frozen.Freeze(result.Symbol,
				invariantErr("negative filled size %v", result.FilledSize).Error())
		}
		if t.metrics != nil {
			t.metrics.RecordError("negative_fill")
		}
		return
	}
	if result.FilledSize == 0 {
		t.mu.Lock()
		delete(t.trades, result.Symbol)
		t.mu.Unlock()
		return
	}

	if result.Side == models.SideClose {
		t.closeTrade(ctx, result)
		return
	}

	t.mu.Lock()
	signed := result.Side.Sign() * result.FilledSize
	pos := t.positions[result.Symbol]
	pos.Symbol = result.Symbol
	// Entries that stack onto an open position merge into a volume-weighted
	// entry price rather than replacing it.
	total := pos.Size + signed
	if total != 0 {
		pos.EntryVWAP = (pos.EntryVWAP*pos.Size + result.AvgPrice*signed) / total
	}
	pos.Size = total
	pos.Leverage = result.Leverage
	pos.UpdatedAt = result.FinishedAt
	t.positions[result.Symbol] = pos
	if _, open := t.trades[result.Symbol]; !open {
		t.trades[result.Symbol] = &openTrade{intent: intent, entry: result, openedAt: result.FinishedAt}
	}
	t.equity -= result.Fees
	t.mu.Unlock()
	t.publishEquity()
}

// closeTrade realizes P&L against the recorded entry and reports it.
func (t *Tracker) closeTrade(ctx context.Context, exit *models.PlanResult) {
	t.mu.Lock()
	trade, ok := t.trades[exit.Symbol]
	pos, held := t.positions[exit.Symbol]
	delete(t.trades, exit.Symbol)
	delete(t.positions, exit.Symbol)
	t.mu.Unlock()
	if !ok || !held {
		return
	}

	sign := trade.intent.Side.Sign()
	size := exit.FilledSize
	if s := abs(pos.Size); s < size {
		size = s
	}
	pnl := sign*(exit.AvgPrice-pos.EntryVWAP)*size - exit.Fees

	t.mu.Lock()
	t.equity += pnl
	if t.equity > t.peak {
		t.peak = t.equity
	}
	if pnl < 0 {
		t.lastLoss = exit.FinishedAt
	}
	t.mu.Unlock()
	t.publishEquity()

	if err := validAttribution(trade.intent.DomainShares); err != nil {
		if t.frozen != nil {
			t.frozen.Freeze(exit.Symbol, err.Error())
		}
		if t.metrics != nil {
			t.metrics.RecordError("attribution_invariant")
		}
		if t.log != nil {
			t.log.Error("report suppressed", logger.String("symbol", exit.Symbol), logger.Error(err))
		}
		return
	}

	report := &models.PerformanceReport{
		IntentID:    trade.intent.ID,
		Symbol:      exit.Symbol,
		Side:        trade.intent.Side,
		RealizedPnL: pnl,
		Slippage:    exit.AggSlippage,
		Quality:     t.executionQuality(trade.entry, exit),
		Attribution: trade.intent.DomainShares,
		ClosedAt:    exit.FinishedAt,
	}
	if t.log != nil {
		t.log.Info("trade closed",
			logger.String("symbol", report.Symbol),
			logger.Float64("pnl", pnl),
			logger.Float64("quality", report.Quality))
	}
	if t.store != nil {
		if err := t.store.StoreReport(ctx, report); err != nil && t.log != nil {
			t.log.Error("store report failed", logger.Error(err))
		}
	}
	if t.analysis != nil {
		_ = t.analysis.Append(ctx, "performance_report", report)
	}
	if t.estimator != nil {
		label := 0.0
		if pnl > 0 {
			label = 1
		}
		t.estimator.AddSample(estimator.Sample{
			Features: trainFeatures(trade.intent),
			Label:    label,
			At:       exit.FinishedAt,
		})
	}

	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()
	if sink != nil {
		sink.OnReport(ctx, report)
	}
}

// MarkToMarket refreshes unrealized P&L on the mirror from last prices and
// republishes equity gauges. Registered as a scheduler job.
func (t *Tracker) MarkToMarket(market MarketState, now time.Time) {
	t.mu.Lock()
	for sym, pos := range t.positions {
		price := market.LastPrice(sym)
		if price <= 0 {
			continue
		}
		pos.UnrealizedPnL = (price - pos.EntryVWAP) * pos.Size
		pos.UpdatedAt = now
		t.positions[sym] = pos
	}
	t.mu.Unlock()
	t.publishEquity()
}

// executionQuality scores how well the fills matched the plan: completion,
// slippage against the budget, and retry burn.
func (t *Tracker) executionQuality(entry, exit *models.PlanResult) float64 {
	q := 1.0
	for _, r := range []*models.PlanResult{entry, exit} {
		if r == nil {
			continue
		}
		if t.maxSlippage > 0 {
			q -= 0.25 * abs(r.AggSlippage) / t.maxSlippage
		}
		q -= 0.05 * float64(r.RetriesUsed)
		if !r.Completed {
			q -= 0.2
		}
	}
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

func (t *Tracker) publishEquity() {
	if t.metrics == nil {
		return
	}
	t.mu.Lock()
	eq := t.equity
	dd := t.drawdownLocked()
	t.mu.Unlock()
	t.metrics.RecordEquity(eq, dd)
}

// trainFeatures builds the estimator feature vector stored with each closed
// trade: the attribution shares plus the decision score and confidence.
func trainFeatures(intent *models.TradeIntent) map[string]float64 {
	features := make(map[string]float64, len(intent.DomainShares)+2)
	for d, s := range intent.DomainShares {
		features["share_"+d] = s
	}
	features["score"] = intent.Score
	features["confidence"] = intent.Confidence
	return features
}

// validAttribution checks the attribution vector: no negative shares and a
// sum of one within tolerance. An empty vector is allowed.
func validAttribution(shares map[string]float64) error {
	if len(shares) == 0 {
		return nil
	}
	var sum float64
	for d, s := range shares {
		if s < 0 {
			return invariantErr("attribution share %s is negative: %v", d, s)
		}
		sum += s
	}
	if sum < 1-1e-6 || sum > 1+1e-6 {
		return invariantErr("attribution shares sum to %v, want 1", sum)
	}
	return nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

var _ Portfolio = (*Tracker)(nil)
var _ ResultSink = (*Tracker)(nil)

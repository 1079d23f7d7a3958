package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// ResultSink receives terminal plan results.
type ResultSink interface {
	OnPlanResult(ctx context.Context, intent *models.TradeIntent, result *models.PlanResult)
}

// activePlan is the engine's working state for one open plan. The engine owns
// the slice lifecycle until every slice is terminal. Venue fill queries are
// cumulative per order; reported holds the high-water mark already folded
// into fills so each quantity is counted once.
type activePlan struct {
	plan     *models.ExecutionPlan
	intent   *models.TradeIntent
	orders   map[string]string  // slice id -> working order id
	refs     map[string]float64 // slice id -> reference price at send
	sent     map[string]float64 // order id -> base size requested
	reported map[string]float64 // order id -> cumulative base size seen
	fees     map[string]float64 // order id -> cumulative fees seen
	fills    []models.Fill
	retries  int
	replans  int
	cancel   bool
}

// positionGuard holds the stop/take-profit levels watched after entry. The
// stop ratchets as a trailing stop when price moves favorably.
type positionGuard struct {
	side       models.Side
	stop       float64
	takeProfit float64
	best       float64
}

// ExecutionEngine drives plans against the exchange adapter: it schedules
// slices, walks each through its state machine, retries transient failures,
// re-plans ADAPTIVE plans, and reports terminal results. Commands for one
// symbol are serialized; one open plan per symbol.
type ExecutionEngine struct {
	mu     sync.Mutex
	open   map[string]*activePlan   // symbol -> plan in flight
	guards map[string]*positionGuard

	exchange domrepo.Exchange
	market   MarketState
	sink     ResultSink
	cfg      config.Config
	metrics  domrepo.Metrics
	log      *logger.Logger
}

// NewExecutionEngine creates an execution engine.
func NewExecutionEngine(exchange domrepo.Exchange, market MarketState, sink ResultSink, cfg *config.Config, metrics domrepo.Metrics, log *logger.Logger) *ExecutionEngine {
	return &ExecutionEngine{
		open:     make(map[string]*activePlan),
		guards:   make(map[string]*positionGuard),
		exchange: exchange,
		market:   market,
		sink:     sink,
		cfg:      *cfg,
		metrics:  metrics,
		log:      log,
	}
}

// HasOpenPlan reports whether symbol has a plan in flight.
func (e *ExecutionEngine) HasOpenPlan(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.open[symbol]
	return ok
}

// Submit admits a plan for execution. A symbol with an open plan refuses a
// second one.
func (e *ExecutionEngine) Submit(intent *models.TradeIntent, plan *models.ExecutionPlan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.open[plan.Symbol]; busy {
		return fmt.Errorf("submit %s: plan already open", plan.Symbol)
	}
	e.open[plan.Symbol] = &activePlan{
		plan:     plan,
		intent:   intent,
		orders:   make(map[string]string),
		refs:     make(map[string]float64),
		sent:     make(map[string]float64),
		reported: make(map[string]float64),
		fees:     make(map[string]float64),
	}
	if e.log != nil {
		e.log.Info("plan admitted",
			logger.String("symbol", plan.Symbol),
			logger.String("plan_id", plan.ID),
			logger.Int("slices", len(plan.Slices)))
	}
	return nil
}

// Cancel requests cancellation of the open plan for symbol. Non-terminal
// slices are cancelled once the exchange confirms; open positions are left
// untouched.
func (e *ExecutionEngine) Cancel(symbol string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ap, ok := e.open[symbol]
	if !ok {
		return false
	}
	ap.cancel = true
	return true
}

// Tick advances every open plan and position guard. It is registered as a
// scheduler job; now comes from the scheduler's clock.
func (e *ExecutionEngine) Tick(ctx context.Context, now time.Time) {
	e.mu.Lock()
	symbols := make([]string, 0, len(e.open))
	for s := range e.open {
		symbols = append(symbols, s)
	}
	guarded := make([]string, 0, len(e.guards))
	for s := range e.guards {
		guarded = append(guarded, s)
	}
	e.mu.Unlock()

	for _, s := range symbols {
		e.advance(ctx, s, now)
	}
	for _, s := range guarded {
		e.watchGuard(ctx, s, now)
	}
}

// advance runs one symbol's plan forward under the per-symbol serialization.
func (e *ExecutionEngine) advance(ctx context.Context, symbol string, now time.Time) {
	e.mu.Lock()
	ap, ok := e.open[symbol]
	e.mu.Unlock()
	if !ok {
		return
	}

	if ap.cancel {
		e.cancelRemaining(ctx, ap)
	} else {
		for i := range ap.plan.Slices {
			slice := &ap.plan.Slices[i]
			switch slice.State {
			case models.SlicePending:
				if !slice.ScheduledAt.After(now) {
					e.sendSlice(ctx, ap, slice, now)
				}
			case models.SliceSent, models.SlicePartial:
				e.pollSlice(ctx, ap, slice, now)
			}
		}
	}

	if allTerminal(ap.plan.Slices) {
		e.finalize(ctx, ap, now)
	}
}

// sendSlice places an order for the slice's unfilled remainder. A retry
// after a partial fill re-sends only what earlier fills did not cover.
func (e *ExecutionEngine) sendSlice(ctx context.Context, ap *activePlan, slice *models.PlanSlice, now time.Time) {
	price := e.market.LastPrice(ap.plan.Symbol)
	if price <= 0 {
		return // no reference price yet, retry next tick
	}
	remaining := slice.Size - notionalFilled(ap.fills, slice.ID)
	if remaining <= slice.Size*1e-9 {
		slice.State = models.SliceFilled
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Exchange.RESTTimeout)
	defer cancel()

	size := remaining / price
	orderID, err := e.exchange.PlaceOrder(callCtx, models.OrderRequest{
		Symbol:   ap.plan.Symbol,
		Side:     ap.plan.Side,
		Size:     size,
		Type:     "market",
		Leverage: ap.plan.Leverage,
		TIF:      "IOC",
	})
	if err != nil {
		e.sliceFailed(ctx, ap, slice, now, err)
		return
	}
	ap.orders[slice.ID] = orderID
	ap.refs[slice.ID] = price
	ap.sent[orderID] = size
	slice.State = models.SliceSent
}

// pollSlice folds new fill quantity into the plan. The venue reports
// cumulative fill state per order; only the delta above the high-water mark
// is recorded, so summed fills never exceed the slice size.
func (e *ExecutionEngine) pollSlice(ctx context.Context, ap *activePlan, slice *models.PlanSlice, now time.Time) {
	orderID := ap.orders[slice.ID]
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Exchange.RESTTimeout)
	defer cancel()

	fill, err := e.exchange.Fill(callCtx, orderID)
	if err != nil {
		e.sliceFailed(ctx, ap, slice, now, err)
		return
	}
	if fill == nil {
		return // still working
	}
	delta := fill.FilledSize - ap.reported[orderID]
	if delta <= 0 {
		return
	}
	ap.reported[orderID] = fill.FilledSize
	feeDelta := fill.Fees - ap.fees[orderID]
	if feeDelta < 0 {
		feeDelta = 0
	}
	ap.fees[orderID] = fill.Fees

	ref := ap.refs[slice.ID]
	f := *fill
	f.SliceID = slice.ID
	f.FilledSize = delta
	f.Fees = feeDelta
	f.ReferencePrice = ref
	if ref > 0 {
		// Sign-aligned: positive slippage is adverse for the plan's side.
		f.Slippage = (f.AvgPrice - ref) / ref * ap.plan.Side.Sign()
	}
	if math.IsNaN(f.Slippage) || math.IsInf(f.Slippage, 0) {
		f.Slippage = 0
	}
	ap.fills = append(ap.fills, f)
	if e.metrics != nil {
		e.metrics.RecordFill(ap.plan.Symbol, f.Slippage)
	}

	if fill.FilledSize >= ap.sent[orderID]*0.999 {
		slice.State = models.SliceFilled
	} else {
		slice.State = models.SlicePartial
	}

	if f.Slippage > ap.plan.MaxSlippage {
		e.sliceFailed(ctx, ap, slice, now, fmt.Errorf("slippage %.4f above limit %.4f", f.Slippage, ap.plan.MaxSlippage))
	}
}

// sliceFailed applies the retry policy: retry until the budget is spent, then
// re-plan ADAPTIVE plans once or abort the remainder. Any working order is
// voided at the venue before the slice re-queues.
func (e *ExecutionEngine) sliceFailed(ctx context.Context, ap *activePlan, slice *models.PlanSlice, now time.Time, cause error) {
	if slice.State.Terminal() {
		return
	}
	if orderID, live := ap.orders[slice.ID]; live {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Exchange.RESTTimeout)
		_ = e.exchange.Cancel(callCtx, orderID)
		cancel()
		delete(ap.orders, slice.ID)
	}
	if slice.RetriesUsed < e.cfg.Execution.Retries {
		slice.RetriesUsed++
		ap.retries++
		slice.State = models.SlicePending
		if e.log != nil {
			e.log.Warn("slice retry",
				logger.String("symbol", ap.plan.Symbol),
				logger.String("slice", slice.ID),
				logger.Int("attempt", slice.RetriesUsed),
				logger.Error(cause))
		}
		return
	}

	slice.State = models.SliceRejected
	if e.metrics != nil {
		e.metrics.RecordError("slice_rejected")
	}
	if ap.plan.Slices[0].Style == models.StyleAdaptive && ap.replans == 0 {
		e.replan(ctx, ap, now)
		return
	}
	e.abortRemaining(ap)
}

// replan reshapes the unfilled remainder of an ADAPTIVE plan into fresh,
// smaller slices spread over a new window. Working orders are cancelled at
// the venue first; a slice whose cancel is unconfirmed stays live and its
// budget is excluded from the reshape.
func (e *ExecutionEngine) replan(ctx context.Context, ap *activePlan, now time.Time) {
	var remaining float64
	for i := range ap.plan.Slices {
		s := &ap.plan.Slices[i]
		switch {
		case s.State == models.SliceRejected:
			// unfilled budget returns to the reshape
		case s.State.Terminal():
			continue
		default:
			if orderID, live := ap.orders[s.ID]; live {
				callCtx, cancel := context.WithTimeout(ctx, e.cfg.Exchange.RESTTimeout)
				err := e.exchange.Cancel(callCtx, orderID)
				cancel()
				if err != nil {
					continue
				}
				delete(ap.orders, s.ID)
			}
			s.State = models.SliceCancelled
		}
		if rem := s.Size - notionalFilled(ap.fills, s.ID); rem > 0 {
			remaining += rem
		}
	}
	if remaining <= 0 {
		return
	}
	ap.replans++

	n := e.cfg.Execution.SliceCount
	window := e.cfg.Execution.SliceWindow
	interval := window / time.Duration(n)
	for i := 0; i < n; i++ {
		ap.plan.Slices = append(ap.plan.Slices, models.PlanSlice{
			ID:          fmt.Sprintf("%s-r%d-%d", ap.plan.ID, ap.replans, i),
			Size:        remaining / float64(n),
			ScheduledAt: now.Add(time.Duration(i) * interval),
			Style:       models.StyleAdaptive,
			State:       models.SlicePending,
		})
	}
	if e.log != nil {
		e.log.Info("plan reshaped",
			logger.String("symbol", ap.plan.Symbol),
			logger.Float64("remaining", remaining),
			logger.Int("slices", n))
	}
}

func (e *ExecutionEngine) abortRemaining(ap *activePlan) {
	for i := range ap.plan.Slices {
		if s := &ap.plan.Slices[i]; !s.State.Terminal() && s.State != models.SliceSent && s.State != models.SlicePartial {
			s.State = models.SliceCancelled
		}
	}
	ap.cancel = true
}

// cancelRemaining cancels working orders, awaiting exchange confirmation
// before marking each slice CANCELLED.
func (e *ExecutionEngine) cancelRemaining(ctx context.Context, ap *activePlan) {
	for i := range ap.plan.Slices {
		slice := &ap.plan.Slices[i]
		if slice.State.Terminal() {
			continue
		}
		if orderID, sent := ap.orders[slice.ID]; sent {
			callCtx, cancel := context.WithTimeout(ctx, e.cfg.Exchange.RESTTimeout)
			err := e.exchange.Cancel(callCtx, orderID)
			cancel()
			if err != nil {
				// Confirmation pending; try again next tick.
				continue
			}
		}
		slice.State = models.SliceCancelled
	}
}

// finalize builds the terminal result, installs the position guard on
// completed entries, and hands the result to the sink.
func (e *ExecutionEngine) finalize(ctx context.Context, ap *activePlan, now time.Time) {
	res := &models.PlanResult{
		PlanID:      ap.plan.ID,
		IntentID:    ap.plan.IntentID,
		Symbol:      ap.plan.Symbol,
		Side:        ap.plan.Side,
		Fills:       ap.fills,
		Leverage:    ap.plan.Leverage,
		RetriesUsed: ap.retries,
		Cancelled:   ap.cancel,
		FinishedAt:  now,
	}
	var notional float64
	for _, f := range ap.fills {
		res.FilledSize += f.FilledSize
		res.Fees += f.Fees
		notional += f.FilledSize * f.AvgPrice
		res.AggSlippage += f.FilledSize * f.Slippage
	}
	if res.FilledSize > 0 {
		res.AvgPrice = notional / res.FilledSize
		res.AggSlippage /= res.FilledSize
	} else {
		res.AggSlippage = 0
	}
	res.Completed = !ap.cancel && allFilled(ap.plan.Slices)

	e.mu.Lock()
	delete(e.open, ap.plan.Symbol)
	if res.FilledSize > 0 && ap.plan.Side != models.SideClose && ap.plan.StopLoss > 0 {
		e.guards[ap.plan.Symbol] = &positionGuard{
			side:       ap.plan.Side,
			stop:       ap.plan.StopLoss,
			takeProfit: ap.plan.TakeProfit,
			best:       res.AvgPrice,
		}
	}
	if ap.plan.Side == models.SideClose {
		delete(e.guards, ap.plan.Symbol)
	}
	e.mu.Unlock()

	if e.log != nil {
		e.log.Info("plan finished",
			logger.String("symbol", res.Symbol),
			logger.String("plan_id", res.PlanID),
			logger.Float64("filled", res.FilledSize),
			logger.Float64("agg_slippage", res.AggSlippage),
			logger.Int("retries", res.RetriesUsed))
	}
	if e.sink != nil {
		e.sink.OnPlanResult(ctx, ap.intent, res)
	}
}

// watchGuard ratchets the trailing stop and closes the position when the
// stop or take-profit is crossed.
func (e *ExecutionEngine) watchGuard(ctx context.Context, symbol string, now time.Time) {
	price := e.market.LastPrice(symbol)
	if price <= 0 {
		return
	}

	e.mu.Lock()
	g, ok := e.guards[symbol]
	if !ok {
		e.mu.Unlock()
		return
	}
	trail := e.cfg.Execution.TrailingPct
	exit := false
	if g.side == models.SideBuy {
		if price > g.best {
			g.best = price
			if ratchet := price * (1 - trail); ratchet > g.stop {
				g.stop = ratchet
			}
		}
		exit = price <= g.stop || (g.takeProfit > 0 && price >= g.takeProfit)
	} else {
		if g.best == 0 || price < g.best {
			g.best = price
			if ratchet := price * (1 + trail); g.stop == 0 || ratchet < g.stop {
				g.stop = ratchet
			}
		}
		exit = (g.stop > 0 && price >= g.stop) || (g.takeProfit > 0 && price <= g.takeProfit)
	}
	if exit {
		delete(e.guards, symbol)
	}
	busy := false
	if _, open := e.open[symbol]; open {
		busy = true
	}
	e.mu.Unlock()

	if !exit || busy {
		return
	}
	e.closePosition(ctx, symbol, now)
}

// closePosition issues a market close for the symbol's open position.
func (e *ExecutionEngine) closePosition(ctx context.Context, symbol string, now time.Time) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Exchange.RESTTimeout)
	positions, err := e.exchange.Positions(callCtx)
	cancel()
	if err != nil {
		if e.log != nil {
			e.log.Error("close position lookup failed", logger.String("symbol", symbol), logger.Error(err))
		}
		return
	}
	for _, pos := range positions {
		if pos.Symbol != symbol || pos.Size == 0 {
			continue
		}
		size := pos.Size
		if size < 0 {
			size = -size
		}
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Exchange.RESTTimeout)
		_, err := e.exchange.PlaceOrder(callCtx, models.OrderRequest{
			Symbol:   symbol,
			Side:     models.SideClose,
			Size:     size,
			Type:     "market",
			Leverage: pos.Leverage,
			TIF:      "IOC",
		})
		cancel()
		if err != nil && e.log != nil {
			e.log.Error("close order failed", logger.String("symbol", symbol), logger.Error(err))
		}
		if err == nil && e.log != nil {
			e.log.Info("position closed by guard", logger.String("symbol", symbol), logger.Float64("size", size))
		}
	}
}

func allTerminal(slices []models.PlanSlice) bool {
	for _, s := range slices {
		if !s.State.Terminal() {
			return false
		}
	}
	return true
}

func allFilled(slices []models.PlanSlice) bool {
	for _, s := range slices {
		if s.State != models.SliceFilled {
			return false
		}
	}
	return true
}

// notionalFilled sums the quote notional already filled against a slice.
func notionalFilled(fills []models.Fill, sliceID string) float64 {
	var total float64
	for _, f := range fills {
		if f.SliceID != sliceID {
			continue
		}
		price := f.AvgPrice
		if price <= 0 {
			price = f.ReferencePrice
		}
		total += f.FilledSize * price
	}
	return total
}

var _ PlanGuard = (*ExecutionEngine)(nil)

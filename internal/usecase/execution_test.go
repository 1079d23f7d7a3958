package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

type fakeExchange struct {
	failPlace int
	fillPrice float64
	nextID    int
	reqs      map[string]models.OrderRequest
	positions []models.Position
	cancels   []string
	// fillFn overrides the default fill response; it reports the cumulative
	// fill state for the order, nil meaning still working.
	fillFn func(orderID string, req models.OrderRequest) *models.Fill
}

func newFakeExchange(fillPrice float64) *fakeExchange {
	return &fakeExchange{fillPrice: fillPrice, reqs: make(map[string]models.OrderRequest)}
}

func (f *fakeExchange) Connect(context.Context) error                    { return nil }
func (f *fakeExchange) SubscribeOrderbook(context.Context, string) error { return nil }
func (f *fakeExchange) Close() error                                     { return nil }

func (f *fakeExchange) PlaceOrder(_ context.Context, req models.OrderRequest) (string, error) {
	if f.failPlace > 0 {
		f.failPlace--
		return "", errors.New("venue unavailable")
	}
	f.nextID++
	id := fmt.Sprintf("ord-%d", f.nextID)
	f.reqs[id] = req
	return id, nil
}

func (f *fakeExchange) Cancel(_ context.Context, orderID string) error {
	f.cancels = append(f.cancels, orderID)
	return nil
}

func (f *fakeExchange) Positions(context.Context) ([]models.Position, error) {
	return f.positions, nil
}

func (f *fakeExchange) Events(context.Context) (<-chan models.ExchangeEvent, <-chan error) {
	return nil, nil
}

func (f *fakeExchange) Fill(_ context.Context, orderID string) (*models.Fill, error) {
	req, ok := f.reqs[orderID]
	if !ok {
		return nil, errors.New("unknown order")
	}
	if f.fillFn != nil {
		return f.fillFn(orderID, req), nil
	}
	return &models.Fill{
		Timestamp:  time.Now(),
		FilledSize: req.Size,
		AvgPrice:   f.fillPrice,
		Fees:       0.1,
	}, nil
}

type captureSink struct {
	intent *models.TradeIntent
	result *models.PlanResult
}

func (s *captureSink) OnPlanResult(_ context.Context, intent *models.TradeIntent, res *models.PlanResult) {
	s.intent = intent
	s.result = res
}

func engineConfig() *config.Config {
	cfg := plannerConfig()
	cfg.Execution.Retries = 3
	cfg.Execution.TrailingPct = 0.02
	cfg.Exchange.RESTTimeout = time.Second
	return cfg
}

func onePlan(now time.Time, side models.Side, size float64) (*models.TradeIntent, *models.ExecutionPlan) {
	intent := &models.TradeIntent{ID: "intent-1", Symbol: "SOLUSDT", Side: side}
	plan := &models.ExecutionPlan{
		ID:       "plan-1",
		IntentID: intent.ID,
		Symbol:   "SOLUSDT",
		Side:     side,
		Leverage: 2,
		Slices: []models.PlanSlice{{
			ID: "slice-1", Size: size, ScheduledAt: now,
			Style: models.StyleImmediate, State: models.SlicePending,
		}},
		MaxSlippage: 0.01,
		CreatedAt:   now,
	}
	return intent, plan
}

func TestEngineRetriesThenFills(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := newFakeExchange(100.5)
	fx.failPlace = 2
	sink := &captureSink{}
	e := NewExecutionEngine(fx, &fakeMarket{price: 100}, sink, engineConfig(), nil, nil)

	intent, plan := onePlan(now, models.SideBuy, 500)
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx := context.Background()
	e.Tick(ctx, now) // fails, retry 1
	e.Tick(ctx, now) // fails, retry 2
	e.Tick(ctx, now) // placed
	e.Tick(ctx, now) // filled, finalized

	if sink.result == nil {
		t.Fatalf("plan never finalized")
	}
	r := sink.result
	if !r.Completed || r.Cancelled {
		t.Fatalf("result completed=%v cancelled=%v", r.Completed, r.Cancelled)
	}
	if r.RetriesUsed != 2 {
		t.Fatalf("retries used = %d, want 2", r.RetriesUsed)
	}
	if math.Abs(r.FilledSize-5) > 1e-9 {
		t.Fatalf("filled size = %v, want 5", r.FilledSize)
	}
	if math.Abs(r.AvgPrice-100.5) > 1e-9 {
		t.Fatalf("avg price = %v", r.AvgPrice)
	}
	if math.Abs(r.AggSlippage-0.005) > 1e-9 {
		t.Fatalf("agg slippage = %v, want 0.005", r.AggSlippage)
	}
	if e.HasOpenPlan("SOLUSDT") {
		t.Fatalf("plan still open after finalize")
	}
}

func TestEngineRejectsSecondPlanForSymbol(t *testing.T) {
	now := time.Now()
	e := NewExecutionEngine(newFakeExchange(100), &fakeMarket{price: 100}, nil, engineConfig(), nil, nil)

	intent, plan := onePlan(now, models.SideBuy, 500)
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if !e.HasOpenPlan("SOLUSDT") {
		t.Fatalf("expected open plan")
	}
	_, second := onePlan(now, models.SideBuy, 500)
	second.ID = "plan-2"
	if err := e.Submit(intent, second); err == nil {
		t.Fatalf("second submit must be refused while a plan is open")
	}
}

func TestEngineExhaustedRetriesAbort(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := newFakeExchange(100)
	fx.failPlace = 100
	sink := &captureSink{}
	e := NewExecutionEngine(fx, &fakeMarket{price: 100}, sink, engineConfig(), nil, nil)

	intent, plan := onePlan(now, models.SideBuy, 500)
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		e.Tick(ctx, now)
	}
	if sink.result == nil {
		t.Fatalf("plan never finalized")
	}
	if sink.result.Completed {
		t.Fatalf("aborted plan reported as completed")
	}
	if sink.result.FilledSize != 0 {
		t.Fatalf("filled size = %v, want 0", sink.result.FilledSize)
	}
	if sink.result.RetriesUsed != 3 {
		t.Fatalf("retries used = %d, want the full budget", sink.result.RetriesUsed)
	}
}

func TestEngineCancelDiscardsPendingSlices(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := newFakeExchange(100)
	sink := &captureSink{}
	e := NewExecutionEngine(fx, &fakeMarket{price: 100}, sink, engineConfig(), nil, nil)

	intent, plan := onePlan(now, models.SideBuy, 500)
	plan.Slices[0].ScheduledAt = now.Add(time.Hour) // never due
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !e.Cancel("SOLUSDT") {
		t.Fatalf("cancel refused for open plan")
	}
	e.Tick(context.Background(), now)

	if sink.result == nil || !sink.result.Cancelled {
		t.Fatalf("cancelled plan must finalize with Cancelled set")
	}
	if len(fx.cancels) != 0 {
		t.Fatalf("no working order existed, nothing to cancel at the venue")
	}
	if e.HasOpenPlan("SOLUSDT") {
		t.Fatalf("plan still open after cancel")
	}
}

func TestEngineRetryAfterPartialSendsRemainder(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := newFakeExchange(100)
	// The first order half-fills at a price outside the slippage budget, so
	// the engine voids it and retries. The retry fills clean.
	fx.fillFn = func(orderID string, req models.OrderRequest) *models.Fill {
		if orderID == "ord-1" {
			return &models.Fill{Timestamp: time.Now(), FilledSize: req.Size / 2, AvgPrice: 102}
		}
		return &models.Fill{Timestamp: time.Now(), FilledSize: req.Size, AvgPrice: 100}
	}
	sink := &captureSink{}
	e := NewExecutionEngine(fx, &fakeMarket{price: 100}, sink, engineConfig(), nil, nil)

	intent, plan := onePlan(now, models.SideBuy, 500)
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 6 && sink.result == nil; i++ {
		e.Tick(ctx, now)
	}
	if sink.result == nil {
		t.Fatalf("plan never finalized")
	}

	if len(fx.cancels) != 1 || fx.cancels[0] != "ord-1" {
		t.Fatalf("working order must be voided at the venue before the retry, cancels=%v", fx.cancels)
	}
	second, ok := fx.reqs["ord-2"]
	if !ok {
		t.Fatalf("no retry order placed")
	}
	wantRemainder := (500 - 2.5*102) / 100
	if math.Abs(second.Size-wantRemainder) > 1e-9 {
		t.Fatalf("retry size = %v, want only the unfilled remainder %v", second.Size, wantRemainder)
	}
	var notional float64
	for _, fl := range sink.result.Fills {
		notional += fl.FilledSize * fl.AvgPrice
	}
	if notional > 500+1e-9 {
		t.Fatalf("fills total %v of notional, above the slice budget 500", notional)
	}
}

func TestEngineCountsCumulativeFillsOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := newFakeExchange(100)
	// The venue reports cumulative fill state: half, then complete. The
	// second poll repeats the first half inside its total.
	polls := 0
	fx.fillFn = func(_ string, req models.OrderRequest) *models.Fill {
		polls++
		size := req.Size / 2
		if polls > 1 {
			size = req.Size
		}
		return &models.Fill{Timestamp: time.Now(), FilledSize: size, AvgPrice: 100}
	}
	sink := &captureSink{}
	e := NewExecutionEngine(fx, &fakeMarket{price: 100}, sink, engineConfig(), nil, nil)

	intent, plan := onePlan(now, models.SideBuy, 500)
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 6 && sink.result == nil; i++ {
		e.Tick(ctx, now)
	}
	if sink.result == nil {
		t.Fatalf("plan never finalized")
	}
	if math.Abs(sink.result.FilledSize-5) > 1e-9 {
		t.Fatalf("filled size = %v, want 5: cumulative polls must fold in once", sink.result.FilledSize)
	}
	var sum float64
	for _, fl := range sink.result.Fills {
		sum += fl.FilledSize
	}
	if math.Abs(sum-5) > 1e-9 {
		t.Fatalf("summed fills = %v, want 5", sum)
	}
}

func TestEngineReplanCancelsAtVenueAndReschedules(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := newFakeExchange(100)
	// Orders for the first slice keep half-filling outside the slippage
	// budget until retries exhaust; the second slice's order never reports.
	fx.fillFn = func(orderID string, req models.OrderRequest) *models.Fill {
		if orderID == "ord-2" {
			return nil
		}
		return &models.Fill{Timestamp: time.Now(), FilledSize: req.Size / 2, AvgPrice: 103}
	}
	sink := &captureSink{}
	e := NewExecutionEngine(fx, &fakeMarket{price: 100}, sink, engineConfig(), nil, nil)

	intent := &models.TradeIntent{ID: "intent-1", Symbol: "SOLUSDT", Side: models.SideBuy}
	plan := &models.ExecutionPlan{
		ID:       "plan-1",
		IntentID: intent.ID,
		Symbol:   "SOLUSDT",
		Side:     models.SideBuy,
		Leverage: 2,
		Slices: []models.PlanSlice{
			{ID: "slice-1", Size: 250, ScheduledAt: now, Style: models.StyleAdaptive, State: models.SlicePending},
			{ID: "slice-2", Size: 250, ScheduledAt: now, Style: models.StyleAdaptive, State: models.SlicePending},
		},
		MaxSlippage: 0.01,
		CreatedAt:   now,
	}
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		e.Tick(ctx, now)
	}

	cancelled := false
	for _, id := range fx.cancels {
		if id == "ord-2" {
			cancelled = true
		}
	}
	if !cancelled {
		t.Fatalf("reshape must void the working order at the venue, cancels=%v", fx.cancels)
	}

	fresh := plan.Slices[2:]
	if len(fresh) != engineConfig().Execution.SliceCount {
		t.Fatalf("reshaped slice count = %d, want %d", len(fresh), engineConfig().Execution.SliceCount)
	}
	window := engineConfig().Execution.SliceWindow
	for _, s := range fresh {
		if s.ScheduledAt.Before(now) || s.ScheduledAt.After(now.Add(window)) {
			t.Fatalf("reshaped slice scheduled at %v, want inside the tick's window from %v", s.ScheduledAt, now)
		}
	}
}

func TestEngineTrailingStopClosesPosition(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fx := newFakeExchange(100)
	market := &fakeMarket{price: 100}
	sink := &captureSink{}
	e := NewExecutionEngine(fx, market, sink, engineConfig(), nil, nil)

	intent, plan := onePlan(now, models.SideBuy, 500)
	plan.StopLoss = 95
	plan.TakeProfit = 150
	if err := e.Submit(intent, plan); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ctx := context.Background()
	e.Tick(ctx, now) // place
	e.Tick(ctx, now) // fill + install guard
	if sink.result == nil {
		t.Fatalf("entry plan never finalized")
	}
	fx.positions = []models.Position{{Symbol: "SOLUSDT", Size: 5, EntryVWAP: 100, Leverage: 2}}

	// Price runs up: the stop ratchets to 110*(1-0.02) = 107.8.
	market.price = 110
	e.Tick(ctx, now)
	ordersBefore := len(fx.reqs)

	// Pullback through the ratcheted stop triggers a market close.
	market.price = 107
	e.Tick(ctx, now)

	if len(fx.reqs) != ordersBefore+1 {
		t.Fatalf("expected one close order, placed %d", len(fx.reqs)-ordersBefore)
	}
	var closeReq *models.OrderRequest
	for _, req := range fx.reqs {
		if req.Side == models.SideClose {
			r := req
			closeReq = &r
		}
	}
	if closeReq == nil {
		t.Fatalf("no CLOSE order placed")
	}
	if math.Abs(closeReq.Size-5) > 1e-9 {
		t.Fatalf("close size = %v, want the open position size", closeReq.Size)
	}
}

package exchange

import (
	"context"
	"math"
	"testing"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

type priceMap map[string]float64

func (p priceMap) LastPrice(symbol string) float64 { return p[symbol] }

func newTestPaper(prices priceMap) *Paper {
	p := NewPaper(PaperConfig{
		Equity:       10000,
		FeeRate:      0.001,
		FillLatency:  0, // fill on first poll
		SlippageBps:  10,
		PartialRatio: 1,
	}, prices, nil)
	_ = p.Connect(context.Background())
	return p
}

func TestPaperRequiresConnectAndPrice(t *testing.T) {
	ctx := context.Background()
	prices := priceMap{"SOLUSDT": 100}

	cold := NewPaper(PaperConfig{Equity: 10000}, prices, nil)
	if _, err := cold.PlaceOrder(ctx, models.OrderRequest{Symbol: "SOLUSDT", Side: models.SideBuy, Size: 1}); err == nil {
		t.Fatalf("order before connect must fail")
	}

	p := newTestPaper(prices)
	if _, err := p.PlaceOrder(ctx, models.OrderRequest{Symbol: "WIFUSDT", Side: models.SideBuy, Size: 1}); err == nil {
		t.Fatalf("order without a price must fail")
	}
	if _, err := p.PlaceOrder(ctx, models.OrderRequest{Symbol: "SOLUSDT", Side: models.SideBuy, Size: 0}); err == nil {
		t.Fatalf("zero-size order must fail")
	}
}

func TestPaperRoundTripRealizesPnL(t *testing.T) {
	ctx := context.Background()
	prices := priceMap{"SOLUSDT": 100}
	p := newTestPaper(prices)

	id, err := p.PlaceOrder(ctx, models.OrderRequest{
		Symbol: "SOLUSDT", Side: models.SideBuy, Size: 5, Type: "market", Leverage: 2,
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	fill, err := p.Fill(ctx, id)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	// 10bps adverse: a buy fills at 100.1.
	if math.Abs(fill.AvgPrice-100.1) > 1e-9 {
		t.Fatalf("buy fill price = %v, want 100.1", fill.AvgPrice)
	}
	if math.Abs(fill.FilledSize-5) > 1e-9 {
		t.Fatalf("filled = %v, want 5", fill.FilledSize)
	}
	if fill.Slippage <= 0 {
		t.Fatalf("adverse fill must report positive slippage, got %v", fill.Slippage)
	}

	positions, err := p.Positions(ctx)
	if err != nil || len(positions) != 1 {
		t.Fatalf("positions = %v, %v", positions, err)
	}
	pos := positions[0]
	if pos.Size != 5 || math.Abs(pos.EntryVWAP-100.1) > 1e-9 {
		t.Fatalf("position = %+v", pos)
	}
	if math.Abs(pos.Margin-pos.Notional()/2) > 1e-9 {
		t.Fatalf("margin = %v at 2x leverage", pos.Margin)
	}

	prices["SOLUSDT"] = 110
	closeID, err := p.PlaceOrder(ctx, models.OrderRequest{
		Symbol: "SOLUSDT", Side: models.SideClose, Size: 5, Type: "market",
	})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Fill(ctx, closeID); err != nil {
		t.Fatalf("close fill: %v", err)
	}

	positions, _ = p.Positions(ctx)
	if len(positions) != 0 {
		t.Fatalf("position survived close: %v", positions)
	}
	// Long close gives up the shift: fills at 110 - 0.11.
	wantEquity := 10000 + (109.89-100.1)*5
	if math.Abs(p.Equity()-wantEquity) > 1e-9 {
		t.Fatalf("equity = %v, want %v", p.Equity(), wantEquity)
	}
}

func TestPaperFillIsAppliedOnce(t *testing.T) {
	ctx := context.Background()
	p := newTestPaper(priceMap{"SOLUSDT": 100})

	id, err := p.PlaceOrder(ctx, models.OrderRequest{Symbol: "SOLUSDT", Side: models.SideBuy, Size: 5})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := p.Fill(ctx, id); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if _, err := p.Fill(ctx, id); err != nil {
		t.Fatalf("second poll: %v", err)
	}

	positions, _ := p.Positions(ctx)
	if len(positions) != 1 || positions[0].Size != 5 {
		t.Fatalf("repeated polls must not double-apply: %v", positions)
	}
}

func TestPaperPartialFillAppliesIncrementOnce(t *testing.T) {
	ctx := context.Background()
	p := NewPaper(PaperConfig{Equity: 10000, PartialRatio: 0.5}, priceMap{"SOLUSDT": 100}, nil)
	_ = p.Connect(ctx)

	id, err := p.PlaceOrder(ctx, models.OrderRequest{Symbol: "SOLUSDT", Side: models.SideBuy, Size: 5})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	// Cancelling caps the order at its partial ratio.
	if err := p.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	first, err := p.Fill(ctx, id)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if math.Abs(first.FilledSize-2.5) > 1e-9 {
		t.Fatalf("cumulative fill = %v, want 2.5", first.FilledSize)
	}
	second, err := p.Fill(ctx, id)
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if math.Abs(second.FilledSize-2.5) > 1e-9 {
		t.Fatalf("cumulative fill moved without progress: %v", second.FilledSize)
	}

	positions, _ := p.Positions(ctx)
	if len(positions) != 1 {
		t.Fatalf("positions = %v", positions)
	}
	if math.Abs(positions[0].Size-2.5) > 1e-9 {
		t.Fatalf("book size = %v, want only the filled 2.5", positions[0].Size)
	}
}

func TestPaperEmitsPositionEvents(t *testing.T) {
	ctx := context.Background()
	p := newTestPaper(priceMap{"SOLUSDT": 100})
	events, _ := p.Events(ctx)

	id, _ := p.PlaceOrder(ctx, models.OrderRequest{Symbol: "SOLUSDT", Side: models.SideBuy, Size: 5})
	if _, err := p.Fill(ctx, id); err != nil {
		t.Fatalf("fill: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != models.EventPosition || ev.Symbol != "SOLUSDT" {
			t.Fatalf("event = %+v", ev)
		}
		if ev.Position == nil || ev.Position.Size != 5 {
			t.Fatalf("event position = %+v", ev.Position)
		}
	default:
		t.Fatalf("no position event emitted")
	}
}

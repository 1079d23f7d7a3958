package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// PriceSource provides the last observed price for a symbol. A zero return
// means no price has been seen yet.
type PriceSource interface {
	LastPrice(symbol string) float64
}

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	Equity       float64
	FeeRate      float64
	FillLatency  time.Duration
	SlippageBps  float64
	PartialRatio float64
}

type paperOrder struct {
	id        string
	req       models.OrderRequest
	refPrice  float64
	fillPrice float64
	createdAt time.Time
	cancelled bool
	// appliedSize is the base quantity already folded into the position
	// book, so repeated polls apply each increment exactly once.
	appliedSize float64
}

// Paper is a simulated exchange adapter. Orders fill against the last
// observed price shifted adversely by a fixed slippage; PartialRatio below 1
// yields a partial fill on the first poll and completion on the next.
type Paper struct {
	cfg    PaperConfig
	prices PriceSource
	log    *logger.Logger

	mu        sync.Mutex
	connected bool
	equity    float64
	orders    map[string]*paperOrder
	positions map[string]*models.Position
	events    chan models.ExchangeEvent
	errs      chan error
}

var _ drepo.Exchange = (*Paper)(nil)

// NewPaper creates a simulated exchange backed by a price source.
func NewPaper(cfg PaperConfig, prices PriceSource, log *logger.Logger) *Paper {
	if cfg.PartialRatio <= 0 || cfg.PartialRatio > 1 {
		cfg.PartialRatio = 1
	}
	return &Paper{
		cfg:       cfg,
		prices:    prices,
		log:       log,
		equity:    cfg.Equity,
		orders:    make(map[string]*paperOrder),
		positions: make(map[string]*models.Position),
		events:    make(chan models.ExchangeEvent, 256),
		errs:      make(chan error, 1),
	}
}

// Connect marks the venue as ready.
func (p *Paper) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	if p.log != nil {
		p.log.Info("paper exchange ready", logger.Float64("equity", p.cfg.Equity))
	}
	return nil
}

// SubscribeOrderbook is a no-op on the simulated venue; the price source
// already carries the market stream.
func (p *Paper) SubscribeOrderbook(ctx context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return fmt.Errorf("paper exchange not connected")
	}
	return nil
}

// PlaceOrder accepts a market order and schedules its fill.
func (p *Paper) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	if req.Size <= 0 {
		return "", fmt.Errorf("order size must be positive, got %v", req.Size)
	}
	ref := p.prices.LastPrice(req.Symbol)
	if ref <= 0 {
		return "", fmt.Errorf("no price for %s", req.Symbol)
	}

	// positive bps move the fill against the order's direction
	shift := ref * p.cfg.SlippageBps / 10000
	fill := ref + req.Side.Sign()*shift
	if req.Side == models.SideClose {
		// closing a short pays up, closing a long gives up the shift
		fill = ref - p.closeSign(req.Symbol)*shift
	}

	o := &paperOrder{
		id:        uuid.NewString(),
		req:       req,
		refPrice:  ref,
		fillPrice: fill,
		createdAt: time.Now(),
	}
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return "", fmt.Errorf("paper exchange not connected")
	}
	p.orders[o.id] = o
	p.mu.Unlock()
	return o.id, nil
}

// Cancel voids any unfilled remainder of an order.
func (p *Paper) Cancel(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	o.cancelled = true
	return nil
}

// Fill reports the cumulative fill for an order. Before FillLatency elapses
// nothing is filled; after one latency the partial ratio is filled; after two
// the order completes.
func (p *Paper) Fill(ctx context.Context, orderID string) (*models.Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}

	elapsed := time.Since(o.createdAt)
	var ratio float64
	switch {
	case elapsed < p.cfg.FillLatency:
		ratio = 0
	case elapsed < 2*p.cfg.FillLatency:
		ratio = p.cfg.PartialRatio
	default:
		ratio = 1
	}
	if o.cancelled && ratio > p.cfg.PartialRatio {
		ratio = p.cfg.PartialRatio
	}

	filled := o.req.Size * ratio
	if delta := filled - o.appliedSize; delta > 0 {
		o.appliedSize = filled
		p.applyFill(o, delta)
	}
	slip := (o.fillPrice - o.refPrice) / o.refPrice * o.req.Side.Sign()
	return &models.Fill{
		SliceID:        orderID,
		Timestamp:      time.Now(),
		FilledSize:     filled,
		AvgPrice:       o.fillPrice,
		Fees:           filled * o.fillPrice * p.cfg.FeeRate,
		ReferencePrice: o.refPrice,
		Slippage:       slip,
	}, nil
}

// applyFill folds a fill increment into the position book. Caller holds the
// mutex; delta is the newly filled base quantity.
func (p *Paper) applyFill(o *paperOrder, delta float64) {
	sym := o.req.Symbol
	pos := p.positions[sym]

	switch o.req.Side {
	case models.SideClose:
		if pos == nil {
			return
		}
		sign := 1.0
		if pos.Size < 0 {
			sign = -1
		}
		closed := delta
		if open := pos.Size * sign; closed > open {
			closed = open
		}
		p.equity += (o.fillPrice - pos.EntryVWAP) * closed * sign
		pos.Size -= closed * sign
		if pos.Size == 0 {
			delete(p.positions, sym)
			p.emitPosition(&models.Position{Symbol: sym, UpdatedAt: time.Now()})
			return
		}
		pos.UpdatedAt = time.Now()
		cp := *pos
		p.emitPosition(&cp)
	default:
		signed := delta * o.req.Side.Sign()
		if pos == nil {
			pos = &models.Position{Symbol: sym, Leverage: o.req.Leverage}
			p.positions[sym] = pos
		}
		total := pos.Size + signed
		if total != 0 {
			pos.EntryVWAP = (pos.EntryVWAP*pos.Size + o.fillPrice*signed) / total
		}
		pos.Size = total
		if o.req.Leverage > 0 {
			pos.Leverage = o.req.Leverage
			pos.Margin = pos.Notional() / o.req.Leverage
		}
		pos.UpdatedAt = time.Now()
		cp := *pos
		p.emitPosition(&cp)
	}
}

func (p *Paper) emitPosition(pos *models.Position) {
	ev := models.ExchangeEvent{
		Kind:      models.EventPosition,
		Symbol:    pos.Symbol,
		Timestamp: pos.UpdatedAt,
		Position:  pos,
	}
	select {
	case p.events <- ev:
	default:
	}
}

// closeSign returns the sign of the position being closed, +1 for long.
func (p *Paper) closeSign(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[symbol]; ok && pos.Size < 0 {
		return -1
	}
	return 1
}

// Positions returns a copy of the current position book.
func (p *Paper) Positions(ctx context.Context) ([]models.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		cp := *pos
		// mark against the latest price when one exists
		if last := p.prices.LastPrice(pos.Symbol); last > 0 {
			cp.UnrealizedPnL = (last - pos.EntryVWAP) * pos.Size
		}
		out = append(out, cp)
	}
	return out, nil
}

// Events streams position updates.
func (p *Paper) Events(ctx context.Context) (<-chan models.ExchangeEvent, <-chan error) {
	return p.events, p.errs
}

// Equity returns simulated account equity including realized PnL.
func (p *Paper) Equity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity
}

// Close disconnects the venue.
func (p *Paper) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	p.connected = false
	close(p.events)
	return nil
}

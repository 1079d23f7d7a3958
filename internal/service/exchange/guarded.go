package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// Guarded wraps an exchange adapter with a circuit breaker on order-path
// calls and a token-bucket limit on outbound request rate. When the breaker
// is open, order calls fail fast instead of hammering a degraded venue.
type Guarded struct {
	inner   drepo.Exchange
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	log     *logger.Logger
}

var _ drepo.Exchange = (*Guarded)(nil)

// NewGuarded builds the guarded decorator. rps is the sustained request rate,
// burst the bucket depth.
func NewGuarded(inner drepo.Exchange, name string, rps float64, burst int, log *logger.Logger) *Guarded {
	st := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("exchange breaker state change",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()))
			}
		},
	}
	return &Guarded{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		log:     log,
	}
}

func (g *Guarded) call(ctx context.Context, op string, fn func() (interface{}, error)) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate wait: %w", op, err)
	}
	v, err := g.breaker.Execute(fn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// Connect passes through; connection setup is not breaker-guarded so a
// restart can always attempt it.
func (g *Guarded) Connect(ctx context.Context) error { return g.inner.Connect(ctx) }

func (g *Guarded) SubscribeOrderbook(ctx context.Context, symbol string) error {
	return g.inner.SubscribeOrderbook(ctx, symbol)
}

func (g *Guarded) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	v, err := g.call(ctx, "place_order", func() (interface{}, error) {
		return g.inner.PlaceOrder(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (g *Guarded) Cancel(ctx context.Context, orderID string) error {
	_, err := g.call(ctx, "cancel", func() (interface{}, error) {
		return nil, g.inner.Cancel(ctx, orderID)
	})
	return err
}

func (g *Guarded) Positions(ctx context.Context) ([]models.Position, error) {
	v, err := g.call(ctx, "positions", func() (interface{}, error) {
		return g.inner.Positions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Position), nil
}

func (g *Guarded) Fill(ctx context.Context, orderID string) (*models.Fill, error) {
	v, err := g.call(ctx, "fill", func() (interface{}, error) {
		return g.inner.Fill(ctx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Fill), nil
}

func (g *Guarded) Events(ctx context.Context) (<-chan models.ExchangeEvent, <-chan error) {
	return g.inner.Events(ctx)
}

func (g *Guarded) Close() error { return g.inner.Close() }

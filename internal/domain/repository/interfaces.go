package repository

import (
	"context"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
)

// MarketFeed pushes time-stamped market snapshots for subscribed symbols.
type MarketFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SocialFeed pushes text/engagement samples tagged by source. A missing
// source is tolerated; it simply absents the downstream domains.
type SocialFeed interface {
	Start(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.SocialSample, <-chan error)
	Close() error
}

// Exchange is the venue adapter contract. Orders are identified by opaque
// strings; sizes are in base units. On disconnect the adapter reconnects with
// exponential backoff and replays position state before accepting new orders.
type Exchange interface {
	Connect(ctx context.Context) error
	SubscribeOrderbook(ctx context.Context, symbol string) error
	PlaceOrder(ctx context.Context, req models.OrderRequest) (orderID string, err error)
	Cancel(ctx context.Context, orderID string) error
	Positions(ctx context.Context) ([]models.Position, error)
	Events(ctx context.Context) (<-chan models.ExchangeEvent, <-chan error)
	// Fill reports the cumulative fill state of an order: FilledSize is the
	// total base quantity filled so far, not an increment since the last poll.
	Fill(ctx context.Context, orderID string) (*models.Fill, error)
	Close() error
}

// SnapshotStore persists market snapshots and serves candle history for
// analyzer cold starts.
type SnapshotStore interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, s *models.MarketSnapshot) error
	StoreBatch(ctx context.Context, snaps []*models.MarketSnapshot) error
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

// AttributionStore persists closed-trade attribution records.
type AttributionStore interface {
	StoreReport(ctx context.Context, r *models.PerformanceReport) error
	RecentReports(ctx context.Context, n int) ([]models.PerformanceReport, error)
}

// ParamStore persists parameter generations with a monotonic generation id
// and replay ids for applied directives. Startup restores the last
// consistent generation.
type ParamStore interface {
	SaveGeneration(ctx context.Context, p *models.Parameters) error
	LoadLatest(ctx context.Context) (*models.Parameters, error)
	MarkApplied(ctx context.Context, directiveID string, ttl time.Duration) (first bool, err error)
}

// AnalysisLog appends analysis records as JSON, one per line. Records are
// opaque to the log; callers pass any JSON-marshalable value.
type AnalysisLog interface {
	Append(ctx context.Context, kind string, record any) error
	Close() error
}

// Metrics is the operational metrics sink.
type Metrics interface {
	RecordLateDrop(domain string)
	RecordDataDrop(kind string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordAssessment(domain, symbol string)
	RecordDecision(symbol, outcome string)
	RecordRisk(outcome string)
	RecordFill(symbol string, slippage float64)
	RecordEquity(equity, drawdown float64)
	RecordGeneration(gen uint64)
	RecordLatency(op string, seconds float64)
}

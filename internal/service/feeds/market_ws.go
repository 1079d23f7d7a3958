package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// MarketWS implements MarketFeed over a WebSocket market-data stream.
// Reconnects use exponential backoff starting from reconnectDelay.
type MarketWS struct {
	apiKey         string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	symbols   []string
	connected bool
	attempts  int
}

// NewMarketWS creates a WebSocket market feed.
func NewMarketWS(apiKey, websocketURL string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *MarketWS {
	return &MarketWS{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *MarketWS) Connect(ctx context.Context) error {
	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("market ws connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("market feed connected", logger.String("url", c.websocketURL))
	}
	return nil
}

// Subscribe subscribes to the given symbols.
func (c *MarketWS) Subscribe(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	c.symbols = append([]string(nil), symbols...)
	c.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("market ws not connected")
	}
	for _, s := range symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	return nil
}

// wire format for one snapshot frame
type wsTick struct {
	Symbol  string             `json:"s"`
	T       int64              `json:"t"` // ms
	Price   float64            `json:"p"`
	Bid     float64            `json:"b"`
	Ask     float64            `json:"a"`
	Bids    [][2]float64       `json:"bids"`
	Asks    [][2]float64       `json:"asks"`
	Vol1m   float64            `json:"v1m"`
	Vol1h   float64            `json:"v1h"`
	Funding float64            `json:"fr"`
}

type wsFrame struct {
	Type string   `json:"type"`
	Data []wsTick `json:"data"`
}

// Read streams snapshots and errors until ctx is done or the socket fails.
func (c *MarketWS) Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error) {
	snaps := make(chan *models.MarketSnapshot, 1024)
	errs := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(snaps)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				errs <- fmt.Errorf("market ws conn nil")
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("market ws read: %w", err)
				return
			}
			var frame wsFrame
			if err := json.Unmarshal(b, &frame); err != nil {
				continue // non-data frame
			}
			if frame.Type != "snapshot" {
				continue
			}
			for _, t := range frame.Data {
				s := toSnapshot(t)
				select {
				case snaps <- s:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return snaps, errs
}

func toSnapshot(t wsTick) *models.MarketSnapshot {
	s := &models.MarketSnapshot{
		Symbol:      t.Symbol,
		Timestamp:   time.UnixMilli(t.T),
		Price:       t.Price,
		Bid:         t.Bid,
		Ask:         t.Ask,
		Volume1m:    t.Vol1m,
		Volume1h:    t.Vol1h,
		FundingRate: t.Funding,
	}
	for _, l := range t.Bids {
		s.Bids = append(s.Bids, models.DepthLevel{Price: l[0], Size: l[1]})
	}
	for _, l := range t.Asks {
		s.Asks = append(s.Asks, models.DepthLevel{Price: l[0], Size: l[1]})
	}
	return s
}

// Reconnect closes and reconnects with exponential backoff, then resubscribes.
func (c *MarketWS) Reconnect(ctx context.Context) error {
	_ = c.Close()

	c.mu.Lock()
	c.attempts++
	delay := c.reconnectDelay
	for i := 1; i < c.attempts && delay < 30*time.Second; i++ {
		delay *= 2
	}
	symbols := append([]string(nil), c.symbols...)
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx, symbols)
}

// Close closes the socket.
func (c *MarketWS) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *MarketWS) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.MarketFeed = (*MarketWS)(nil)

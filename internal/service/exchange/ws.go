package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	drepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	pkghttp "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/http"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// WSConfig configures the live venue adapter. The WebSocket carries events;
// order placement goes over the venue's REST surface derived from the same
// host.
type WSConfig struct {
	WebSocketURL   string
	APIKey         string
	RESTTimeout    time.Duration
	PingInterval   time.Duration
	ReconnectDelay time.Duration
}

// WS is the live exchange adapter. On disconnect it reconnects with
// exponential backoff and replays position state before accepting orders.
type WS struct {
	cfg  WSConfig
	rest *pkghttp.Client
	base string
	log  *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	attempts  int
	books     []string

	events chan models.ExchangeEvent
	errs   chan error
}

var _ drepo.Exchange = (*WS)(nil)

// NewWS creates a live exchange adapter.
func NewWS(cfg WSConfig, log *logger.Logger) *WS {
	return &WS{
		cfg:    cfg,
		rest:   pkghttp.NewClient(pkghttp.WithTimeout(cfg.RESTTimeout)),
		base:   restBase(cfg.WebSocketURL),
		log:    log,
		events: make(chan models.ExchangeEvent, 1024),
		errs:   make(chan error, 1),
	}
}

// restBase derives the HTTPS API root from the WebSocket URL.
func restBase(wsURL string) string {
	u := strings.TrimSuffix(wsURL, "/ws")
	u = strings.Replace(u, "wss://", "https://", 1)
	return strings.Replace(u, "ws://", "http://", 1)
}

// Connect dials the event socket and starts the read and ping loops.
func (w *WS) Connect(ctx context.Context) error {
	hdr := http.Header{}
	if w.cfg.APIKey != "" {
		hdr.Set("X-API-Key", w.cfg.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.cfg.WebSocketURL, hdr)
	if err != nil {
		return fmt.Errorf("exchange ws connect: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.attempts = 0
	books := append([]string(nil), w.books...)
	w.mu.Unlock()

	// replay position state before any new orders go out
	if positions, err := w.Positions(ctx); err == nil {
		now := time.Now()
		for i := range positions {
			w.emit(models.ExchangeEvent{
				Kind:      models.EventPosition,
				Symbol:    positions[i].Symbol,
				Timestamp: now,
				Position:  &positions[i],
			})
		}
	} else if w.log != nil {
		w.log.Warn("position replay failed", logger.Error(err))
	}
	for _, s := range books {
		if err := w.SubscribeOrderbook(ctx, s); err != nil && w.log != nil {
			w.log.Warn("resubscribe failed", logger.String("symbol", s), logger.Error(err))
		}
	}

	go w.readLoop(ctx, conn)
	go w.pingLoop(ctx, conn)
	if w.log != nil {
		w.log.Info("exchange connected", logger.String("url", w.cfg.WebSocketURL))
	}
	return nil
}

// SubscribeOrderbook subscribes the event socket to one symbol's book.
func (w *WS) SubscribeOrderbook(ctx context.Context, symbol string) error {
	w.mu.Lock()
	conn, connected := w.conn, w.connected
	if !contains(w.books, symbol) {
		w.books = append(w.books, symbol)
	}
	w.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("exchange not connected")
	}
	msg := map[string]string{"op": "subscribe", "channel": "orderbook", "symbol": symbol}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe orderbook %s: %w", symbol, err)
	}
	return nil
}

type wsEvent struct {
	Kind     string                 `json:"kind"`
	Symbol   string                 `json:"symbol"`
	T        int64                  `json:"t"` // ms
	Snapshot *models.MarketSnapshot `json:"snapshot,omitempty"`
	Position *models.Position       `json:"position,omitempty"`
	Funding  float64                `json:"funding,omitempty"`
}

func (w *WS) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			w.mu.Lock()
			current := conn == w.conn
			if current {
				w.connected = false
			}
			w.mu.Unlock()
			if current {
				select {
				case w.errs <- fmt.Errorf("exchange ws read: %w", err):
				default:
				}
			}
			return
		}
		var ev wsEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		w.emit(models.ExchangeEvent{
			Kind:      models.ExchangeEventKind(ev.Kind),
			Symbol:    ev.Symbol,
			Timestamp: time.UnixMilli(ev.T),
			Snapshot:  ev.Snapshot,
			Position:  ev.Position,
			Funding:   ev.Funding,
		})
	}
}

func (w *WS) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			current := conn == w.conn
			w.mu.Unlock()
			if !current {
				return
			}
			_ = conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

func (w *WS) emit(ev models.ExchangeEvent) {
	select {
	case w.events <- ev:
	default:
		// backpressure: drop rather than stall the socket
	}
}

// Reconnect redials with exponential backoff, doubling from ReconnectDelay
// up to a 30s cap.
func (w *WS) Reconnect(ctx context.Context) error {
	w.mu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.connected = false
	w.attempts++
	attempts := w.attempts
	w.mu.Unlock()

	delay := w.cfg.ReconnectDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
			break
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}
	return w.Connect(ctx)
}

type orderResponse struct {
	OrderID string `json:"order_id"`
}

// PlaceOrder submits an order over REST.
func (w *WS) PlaceOrder(ctx context.Context, req models.OrderRequest) (string, error) {
	w.mu.Lock()
	connected := w.connected
	w.mu.Unlock()
	if !connected {
		return "", fmt.Errorf("exchange not connected")
	}
	var resp orderResponse
	err := w.rest.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  http.MethodPost,
		URL:     w.base + "/v1/orders",
		Headers: w.headers(),
		Body:    req,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	return resp.OrderID, nil
}

// Cancel voids an open order.
func (w *WS) Cancel(ctx context.Context, orderID string) error {
	err := w.rest.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  http.MethodDelete,
		URL:     w.base + "/v1/orders/" + orderID,
		Headers: w.headers(),
	}, nil)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// Fill reports the cumulative fill state of an order.
func (w *WS) Fill(ctx context.Context, orderID string) (*models.Fill, error) {
	var f models.Fill
	err := w.rest.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  http.MethodGet,
		URL:     w.base + "/v1/orders/" + orderID + "/fill",
		Headers: w.headers(),
	}, &f)
	if err != nil {
		return nil, fmt.Errorf("fill %s: %w", orderID, err)
	}
	return &f, nil
}

// Positions fetches the venue's position book.
func (w *WS) Positions(ctx context.Context) ([]models.Position, error) {
	var out []models.Position
	err := w.rest.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  http.MethodGet,
		URL:     w.base + "/v1/positions",
		Headers: w.headers(),
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	return out, nil
}

// Events streams exchange events and socket errors.
func (w *WS) Events(ctx context.Context) (<-chan models.ExchangeEvent, <-chan error) {
	return w.events, w.errs
}

// Close shuts the socket down.
func (w *WS) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	if w.conn != nil {
		err := w.conn.Close()
		w.conn = nil
		return err
	}
	return nil
}

func (w *WS) headers() map[string]string {
	h := map[string]string{}
	if w.cfg.APIKey != "" {
		h["X-API-Key"] = w.cfg.APIKey
	}
	return h
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

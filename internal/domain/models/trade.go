package models

import "time"

// Side of a trade intent.
type Side string

const (
	SideBuy   Side = "BUY"
	SideSell  Side = "SELL"
	SideClose Side = "CLOSE"
)

// Sign returns +1 for BUY, -1 for SELL/CLOSE.
func (s Side) Sign() float64 {
	if s == SideBuy {
		return 1
	}
	return -1
}

// TradeIntent is an immutable decision to trade, produced by the decision
// engine. DomainShares captures each present domain's normalized contribution
// at decision time and is the basis for closed-trade attribution.
type TradeIntent struct {
	ID             string             `json:"id"`
	Symbol         string             `json:"symbol"`
	Side           Side               `json:"side"`
	TargetNotional float64            `json:"target_notional"`
	Urgency        float64            `json:"urgency"`
	Rationale      []string           `json:"rationale"`
	Confidence     float64            `json:"confidence"`
	Score          float64            `json:"score"`
	DomainShares   map[string]float64 `json:"domain_shares"`
	Generation     uint64             `json:"generation"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Hold reasons emitted by the decision engine.
const (
	HoldInsufficientSignals = "insufficient_signals"
	HoldVolatilityCeiling   = "volatility_ceiling"
	HoldExtremeFear         = "extreme_fear"
	HoldExtremeGreed        = "extreme_greed"
	HoldSentimentPanic      = "sentiment_panic"
	HoldBelowThreshold      = "below_threshold"
	HoldTie                 = "tie"
	HoldPlanOpen            = "plan_open"
	HoldSymbolFrozen        = "symbol_frozen"
)

// Decision is the outcome of one decision tick: either an intent or a hold
// with reasons. Holds are normal outcomes, not errors.
type Decision struct {
	Symbol  string       `json:"symbol"`
	Intent  *TradeIntent `json:"intent,omitempty"`
	Hold    bool         `json:"hold"`
	Reasons []string     `json:"reasons,omitempty"`
	AsOf    time.Time    `json:"as_of"`
}

// RiskOutcome of gating an intent.
type RiskOutcome string

const (
	RiskAccept RiskOutcome = "ACCEPT"
	RiskResize RiskOutcome = "RESIZE"
	RiskReject RiskOutcome = "REJECT"
)

// Risk rejection/resizing reasons.
const (
	RiskReasonSingleAsset   = "single_asset_cap"
	RiskReasonCategory      = "category_cap"
	RiskReasonPlatform      = "platform_cap"
	RiskReasonTotalExposure = "total_exposure_cap"
	RiskReasonCorrelation   = "correlation_cap"
	RiskReasonDrawdown      = "drawdown_brake"
	RiskReasonZeroSize      = "zero_size"
)

// RiskDecision is the risk gate's verdict on one intent.
type RiskDecision struct {
	IntentID         string      `json:"intent_id"`
	Outcome          RiskOutcome `json:"outcome"`
	AdjustedNotional float64     `json:"adjusted_notional,omitempty"`
	Leverage         float64     `json:"leverage"`
	Reasons          []string    `json:"reasons,omitempty"`
	DecidedAt        time.Time   `json:"decided_at"`
}

// ExecStyle is the slice scheduling style.
type ExecStyle string

const (
	StyleImmediate ExecStyle = "IMMEDIATE"
	StyleTWAP      ExecStyle = "TWAP"
	StyleVWAP      ExecStyle = "VWAP"
	StyleAdaptive  ExecStyle = "ADAPTIVE"
)

// SliceState is the lifecycle state of one plan slice.
type SliceState string

const (
	SlicePending   SliceState = "PENDING"
	SliceSent      SliceState = "SENT"
	SlicePartial   SliceState = "PARTIAL"
	SliceFilled    SliceState = "FILLED"
	SliceCancelled SliceState = "CANCELLED"
	SliceRejected  SliceState = "REJECTED"
)

// Terminal reports whether the state is final.
func (s SliceState) Terminal() bool {
	switch s {
	case SliceFilled, SliceCancelled, SliceRejected:
		return true
	}
	return false
}

// PlanSlice is one sized, scheduled portion of an execution plan.
type PlanSlice struct {
	ID          string     `json:"id"`
	Size        float64    `json:"size"`
	ScheduledAt time.Time  `json:"scheduled_ts"`
	Style       ExecStyle  `json:"style"`
	State       SliceState `json:"state"`
	RetriesUsed int        `json:"retries_used"`
}

// ExecutionPlan is the sliced, leveraged schedule for driving one intent
// against the exchange.
type ExecutionPlan struct {
	ID          string      `json:"id"`
	IntentID    string      `json:"intent_id"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Leverage    float64     `json:"leverage"`
	Slices      []PlanSlice `json:"slices"`
	StopLoss    float64     `json:"stop_loss"`
	TakeProfit  float64     `json:"take_profit"`
	MaxSlippage float64     `json:"max_slippage"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TotalSize sums all slice sizes.
func (p *ExecutionPlan) TotalSize() float64 {
	var t float64
	for _, s := range p.Slices {
		t += s.Size
	}
	return t
}

// Fill reports a (partial) execution of one slice. Slippage is signed so that
// positive means adverse for the plan's side.
type Fill struct {
	SliceID        string    `json:"slice_id"`
	Timestamp      time.Time `json:"ts"`
	FilledSize     float64   `json:"filled_size"`
	AvgPrice       float64   `json:"avg_price"`
	Fees           float64   `json:"fees"`
	ReferencePrice float64   `json:"reference_price"`
	Slippage       float64   `json:"slippage"`
}

// PlanResult is the terminal report for a completed, aborted, or cancelled
// plan. AggSlippage is the size-weighted average of per-fill slippage.
type PlanResult struct {
	PlanID      string    `json:"plan_id"`
	IntentID    string    `json:"intent_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Fills       []Fill    `json:"fills"`
	Leverage    float64   `json:"leverage"`
	FilledSize  float64   `json:"filled_size"`
	AvgPrice    float64   `json:"avg_price"`
	Fees        float64   `json:"fees"`
	AggSlippage float64   `json:"agg_slippage"`
	RetriesUsed int       `json:"retries_used"`
	Completed   bool      `json:"completed"`
	Cancelled   bool      `json:"cancelled"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Position mirrors the exchange's view of one open position. The exchange
// adapter is authoritative; this copy is reconciled after terminal events.
type Position struct {
	Symbol        string    `json:"symbol"`
	Size          float64   `json:"size"`
	EntryVWAP     float64   `json:"entry_vwap"`
	Leverage      float64   `json:"leverage"`
	Margin        float64   `json:"margin"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Notional is the absolute position value at entry.
func (p *Position) Notional() float64 {
	n := p.Size * p.EntryVWAP
	if n < 0 {
		return -n
	}
	return n
}

// OrderRequest is the exchange adapter's order contract.
type OrderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Size     float64 `json:"size"`
	Type     string  `json:"type"`
	Leverage float64 `json:"leverage"`
	TIF      string  `json:"tif"`
}

// ExchangeEventKind tags events from the exchange stream.
type ExchangeEventKind string

const (
	EventOrderbook ExchangeEventKind = "orderbook"
	EventTrade     ExchangeEventKind = "trade"
	EventPosition  ExchangeEventKind = "position"
	EventFunding   ExchangeEventKind = "funding"
)

// ExchangeEvent is one message from the exchange adapter's event stream.
type ExchangeEvent struct {
	Kind      ExchangeEventKind `json:"kind"`
	Symbol    string            `json:"symbol"`
	Timestamp time.Time         `json:"ts"`
	Snapshot  *MarketSnapshot   `json:"snapshot,omitempty"`
	Position  *Position         `json:"position,omitempty"`
	Funding   float64           `json:"funding,omitempty"`
}

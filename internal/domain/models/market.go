package models

import "time"

// DepthLevel is a single price level on one side of the book.
type DepthLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// MarketSnapshot is an immutable point-in-time view of one symbol's market.
// Timestamps are monotonic per symbol; out-of-order snapshots are dropped
// upstream by the feed pipeline.
type MarketSnapshot struct {
	Symbol      string       `json:"symbol"`
	Timestamp   time.Time    `json:"ts"`
	Price       float64      `json:"price"`
	Bid         float64      `json:"bid"`
	Ask         float64      `json:"ask"`
	Bids        []DepthLevel `json:"bids,omitempty"`
	Asks        []DepthLevel `json:"asks,omitempty"`
	Volume1m    float64      `json:"volume_1m"`
	Volume1h    float64      `json:"volume_1h"`
	FundingRate float64      `json:"funding_rate"`
}

// BidDepth sums the size of all bid levels.
func (s *MarketSnapshot) BidDepth() float64 {
	var d float64
	for _, l := range s.Bids {
		d += l.Size
	}
	return d
}

// AskDepth sums the size of all ask levels.
func (s *MarketSnapshot) AskDepth() float64 {
	var d float64
	for _, l := range s.Asks {
		d += l.Size
	}
	return d
}

// Mid returns the book midpoint, falling back to last price.
func (s *MarketSnapshot) Mid() float64 {
	if s.Bid > 0 && s.Ask > 0 {
		return (s.Bid + s.Ask) / 2
	}
	return s.Price
}

// SocialSample is a single immutable text/engagement observation.
type SocialSample struct {
	Source       string    `json:"source"`
	Symbol       string    `json:"symbol"`
	Timestamp    time.Time `json:"ts"`
	Text         string    `json:"text"`
	Reach        float64   `json:"reach"`
	AuthorWeight float64   `json:"author_weight"`
}

// Social sources are a fixed set; samples from unknown sources are dropped.
const (
	SourceTwitter  = "twitter"
	SourceTelegram = "telegram"
	SourceDiscord  = "discord"
	SourceNews     = "news"
)

// KnownSource reports whether src belongs to the fixed source set.
func KnownSource(src string) bool {
	switch src {
	case SourceTwitter, SourceTelegram, SourceDiscord, SourceNews:
		return true
	}
	return false
}

// Candle is an OHLCV record built from snapshots, used for analyzer input
// windows and estimator training.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

package analyzers

import (
	"strings"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
)

// base carries the contract fields every analyzer declares: domain name,
// cadence, staleness bound, confidence gate and the component keys its
// assessments always contain.
type base struct {
	domain        string
	cadence       time.Duration
	maxStaleness  time.Duration
	minConfidence float64
	minSamples    int
	window        time.Duration
	keys          []string
}

func newBase(domain string, cfg config.AnalyzerConfig, keys []string) base {
	return base{
		domain:        domain,
		cadence:       cfg.Cadence(),
		maxStaleness:  cfg.MaxStaleness(),
		minConfidence: cfg.MinConfidence,
		minSamples:    cfg.MinSamples,
		window:        cfg.Window(),
		keys:          keys,
	}
}

func (b *base) Domain() string              { return b.domain }
func (b *base) Cadence() time.Duration      { return b.cadence }
func (b *base) MaxStaleness() time.Duration { return b.maxStaleness }
func (b *base) MinConfidence() float64      { return b.minConfidence }
func (b *base) ComponentKeys() []string     { return append([]string(nil), b.keys...) }

// emit builds a valid assessment, or nil when confidence is below the gate.
func (b *base) emit(symbol string, now time.Time, score, confidence float64, components map[string]float64, state string) *models.Assessment {
	if confidence < b.minConfidence {
		return nil
	}
	a := &models.Assessment{
		Domain:     b.domain,
		Symbol:     symbol,
		Timestamp:  now,
		Score:      clamp01(score),
		Confidence: clamp01(confidence),
		Components: components,
		State:      state,
	}
	if !a.Valid() {
		return nil
	}
	return a
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Word lists for text scoring. Scores are reach- and author-weighted; each
// hit contributes its weight to the bullish or bearish tally.
var bullishWords = []string{
	"moon", "pump", "bull", "buy", "long", "breakout", "ath", "rally",
	"accumulate", "undervalued", "gem", "send", "up", "green", "listing",
}

var bearishWords = []string{
	"dump", "rug", "bear", "sell", "short", "crash", "scam", "exit",
	"down", "red", "liquidated", "panic", "fear", "dead", "bleed",
}

// textScore returns weighted bullish and bearish tallies for one sample.
func textScore(sample models.SocialSample) (bull, bear float64) {
	text := strings.ToLower(sample.Text)
	w := sample.AuthorWeight
	if w <= 0 {
		w = 1
	}
	if sample.Reach > 0 {
		// diminishing returns on reach
		w *= 1 + min(sample.Reach/1000, 4)
	}
	for _, word := range bullishWords {
		if strings.Contains(text, word) {
			bull += w
		}
	}
	for _, word := range bearishWords {
		if strings.Contains(text, word) {
			bear += w
		}
	}
	return bull, bear
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

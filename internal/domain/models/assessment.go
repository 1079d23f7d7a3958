package models

import (
	"math"
	"time"
)

// Analyzer domains. Every Assessment carries exactly one of these.
const (
	DomainAccumulation   = "accumulation"
	DomainBuyingPressure = "buying_pressure"
	DomainVolatility     = "volatility"
	DomainSwing          = "swing"
	DomainCatalyst       = "catalyst"
	DomainSentiment      = "sentiment"
	DomainEmotion        = "emotion"
	DomainFearGreed      = "fear_greed"
	DomainPsychology     = "psychology"
)

// AllDomains lists every analyzer domain in registration order.
func AllDomains() []string {
	return []string{
		DomainAccumulation,
		DomainBuyingPressure,
		DomainVolatility,
		DomainSwing,
		DomainCatalyst,
		DomainSentiment,
		DomainEmotion,
		DomainFearGreed,
		DomainPsychology,
	}
}

// Accumulation/distribution phase labels.
const (
	PhaseAccumulationA = "accumulation_a"
	PhaseAccumulationB = "accumulation_b"
	PhaseAccumulationC = "accumulation_c"
	PhaseAccumulationD = "accumulation_d"
	PhaseAccumulationE = "accumulation_e"
	PhaseMarkup        = "markup"
	PhaseDistributionA = "distribution_a"
	PhaseDistributionB = "distribution_b"
	PhaseDistributionC = "distribution_c"
	PhaseMarkdown      = "markdown"
)

// Volatility intensity bands.
const (
	VolBandExtreme  = "extreme"
	VolBandHigh     = "high"
	VolBandModerate = "moderate"
	VolBandLow      = "low"
)

// Fear/greed states.
const (
	FGExtremeFear  = "extreme_fear"
	FGFear         = "fear"
	FGNeutral      = "neutral"
	FGGreed        = "greed"
	FGExtremeGreed = "extreme_greed"
)

// Sentiment states.
const (
	SentimentPanic    = "panic"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
	SentimentPositive = "positive"
	SentimentEuphoria = "euphoria"
)

// Assessment is one analyzer's time-stamped scored opinion in its domain.
// Score and Confidence are in [0,1]; Components always contains every key
// the analyzer's contract declares.
type Assessment struct {
	Domain     string             `json:"domain"`
	Symbol     string             `json:"symbol"`
	Timestamp  time.Time          `json:"ts"`
	Score      float64            `json:"score"`
	Confidence float64            `json:"confidence"`
	Components map[string]float64 `json:"components"`
	State      string             `json:"state,omitempty"`
}

// Valid reports whether the assessment satisfies the publication invariants:
// finite score/confidence in [0,1] and a non-zero timestamp.
func (a *Assessment) Valid() bool {
	if a.Domain == "" || a.Symbol == "" || a.Timestamp.IsZero() {
		return false
	}
	for _, v := range []float64{a.Score, a.Confidence} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return false
		}
	}
	for _, v := range a.Components {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Component returns the named component, or def if absent.
func (a *Assessment) Component(key string, def float64) float64 {
	if v, ok := a.Components[key]; ok {
		return v
	}
	return def
}

// FusedView is the latest non-stale Assessment per domain for one symbol.
// Missing domains are absent from Domains, never zero-filled.
type FusedView struct {
	Symbol  string                `json:"symbol"`
	AsOf    time.Time             `json:"as_of"`
	Domains map[string]Assessment `json:"domains"`
	Missing []string              `json:"missing,omitempty"`
}

// Present reports whether domain d is present in the view.
func (v *FusedView) Present(d string) bool {
	_, ok := v.Domains[d]
	return ok
}

// Get returns the assessment for domain d when present.
func (v *FusedView) Get(d string) (Assessment, bool) {
	a, ok := v.Domains[d]
	return a, ok
}

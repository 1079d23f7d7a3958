package models

import (
	"fmt"
	"time"
)

// PerformanceReport attributes one closed intent's realized outcome.
// Attribution is normalized so its values sum to 1 across the domains that
// were present at decision time.
type PerformanceReport struct {
	IntentID    string             `json:"intent_id"`
	Symbol      string             `json:"symbol"`
	Side        Side               `json:"side"`
	RealizedPnL float64            `json:"realized_pnl"`
	Slippage    float64            `json:"slippage"`
	Quality     float64            `json:"quality"`
	Attribution map[string]float64 `json:"attribution"`
	ClosedAt    time.Time          `json:"closed_at"`
}

// DirectiveTarget selects which parameter family a directive adjusts.
type DirectiveTarget string

const (
	TargetAnalyzer DirectiveTarget = "analyzer"
	TargetRisk     DirectiveTarget = "risk"
	TargetPlanner  DirectiveTarget = "planner"
)

// AdjustmentDirective is one bounded parameter update. ID is the replay key:
// the learner drops directives it has already applied.
type AdjustmentDirective struct {
	ID        string          `json:"id"`
	Target    DirectiveTarget `json:"target"`
	Key       string          `json:"key"`
	Delta     float64         `json:"delta"`
	ClampMin  float64         `json:"clamp_min"`
	ClampMax  float64         `json:"clamp_max"`
	Reason    string          `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

// Parameters is one immutable, atomically-published generation of every
// tunable parameter. Readers hold a snapshot for the whole of one tick so
// they never observe a torn mix of generations.
type Parameters struct {
	Generation uint64    `json:"generation"`
	CreatedAt  time.Time `json:"created_at"`

	// Decision policy.
	Weights        map[string]float64 `json:"weights"` // per-domain, owned by the learner
	EnterThreshold float64            `json:"enter_threshold"`
	HoldThreshold  float64            `json:"hold_threshold"`
	Quorum         int                `json:"quorum"`
	BaseSize       float64            `json:"base_size"`

	// Risk limits.
	SingleAssetLimit float64            `json:"single_asset_limit"`
	CategoryLimit    float64            `json:"category_limit"`
	PlatformLimit    float64            `json:"platform_limit"`
	TotalExposure    float64            `json:"total_exposure"`
	MaxDrawdown      float64            `json:"max_drawdown"`
	LeverageMin      float64            `json:"l_min"`
	LeverageMax      float64            `json:"l_max"`
	LeverageVolCaps  map[string]float64 `json:"leverage_vol_caps"` // band -> cap
	CorrelationMax   float64            `json:"correlation_max"`

	// Execution policy.
	UrgencyMultiplier float64 `json:"urgency_multiplier"`
	MaxSlippage       float64 `json:"max_slippage"`

	// Absolute bounds the learner may never cross, copied from config.
	WeightMin        float64 `json:"w_min"`
	WeightMax        float64 `json:"w_max"`
	LeverageAbsMax   float64 `json:"leverage_abs_max"`
	VolatilityCeiling float64 `json:"volatility_ceiling"`
}

// Clone deep-copies the parameter set so a new generation can be built
// without mutating the published one.
func (p *Parameters) Clone() *Parameters {
	cp := *p
	cp.Weights = make(map[string]float64, len(p.Weights))
	for k, v := range p.Weights {
		cp.Weights[k] = v
	}
	cp.LeverageVolCaps = make(map[string]float64, len(p.LeverageVolCaps))
	for k, v := range p.LeverageVolCaps {
		cp.LeverageVolCaps[k] = v
	}
	return &cp
}

// Validate enforces the generation invariants. A generation that fails
// validation is never published; the prior one stays in force.
func (p *Parameters) Validate() error {
	for d, w := range p.Weights {
		if w < 0 {
			return fmt.Errorf("weight %s negative: %v", d, w)
		}
		if w < p.WeightMin || w > p.WeightMax {
			return fmt.Errorf("weight %s out of clamp [%v,%v]: %v", d, p.WeightMin, p.WeightMax, w)
		}
	}
	if p.LeverageMin < 1 || p.LeverageMax < p.LeverageMin {
		return fmt.Errorf("leverage bounds invalid: [%v,%v]", p.LeverageMin, p.LeverageMax)
	}
	if p.LeverageAbsMax > 0 && p.LeverageMax > p.LeverageAbsMax {
		return fmt.Errorf("leverage max %v exceeds absolute bound %v", p.LeverageMax, p.LeverageAbsMax)
	}
	if p.EnterThreshold <= 0 || p.EnterThreshold > 1 {
		return fmt.Errorf("enter_threshold out of (0,1]: %v", p.EnterThreshold)
	}
	if p.SingleAssetLimit <= 0 || p.TotalExposure <= 0 {
		return fmt.Errorf("exposure limits must be positive")
	}
	if p.MaxDrawdown <= 0 || p.MaxDrawdown >= 1 {
		return fmt.Errorf("max_drawdown out of (0,1): %v", p.MaxDrawdown)
	}
	return nil
}

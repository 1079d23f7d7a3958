package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// ParamRegister is the copy-on-write holder of the live parameter generation.
// Publish validates and persists before swapping, so readers only ever see a
// complete, validated generation. Readers snapshot once per tick.
type ParamRegister struct {
	mu      sync.RWMutex
	current *models.Parameters

	store   domrepo.ParamStore
	metrics domrepo.Metrics
	log     *logger.Logger
}

// NewParamRegister creates a register seeded with an initial generation.
func NewParamRegister(initial *models.Parameters, store domrepo.ParamStore, metrics domrepo.Metrics, log *logger.Logger) (*ParamRegister, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial parameters: %w", err)
	}
	return &ParamRegister{current: initial, store: store, metrics: metrics, log: log}, nil
}

// Restore replaces the seed with the last persisted generation when one
// exists and is newer. Called once at startup.
func (r *ParamRegister) Restore(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	p, err := r.store.LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("restore parameters: %w", err)
	}
	if p == nil {
		return nil
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("restore parameters: persisted generation invalid: %w", err)
	}
	r.mu.Lock()
	if p.Generation > r.current.Generation {
		r.current = p
	}
	gen := r.current.Generation
	r.mu.Unlock()
	if r.metrics != nil {
		r.metrics.RecordGeneration(gen)
	}
	if r.log != nil {
		r.log.Info("parameters restored", logger.Int("generation", int(gen)))
	}
	return nil
}

// Current returns the live generation. The returned pointer is shared and
// must be treated as immutable; mutate via Clone + Publish.
func (r *ParamRegister) Current() *models.Parameters {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Publish validates and atomically installs a new generation. A generation
// that fails validation or is not strictly newer is refused and the prior one
// stays in force.
func (r *ParamRegister) Publish(ctx context.Context, p *models.Parameters) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("publish generation %d: %w: %w", p.Generation, ErrInvariant, err)
	}

	r.mu.Lock()
	if p.Generation <= r.current.Generation {
		cur := r.current.Generation
		r.mu.Unlock()
		return fmt.Errorf("publish generation %d: not newer than %d", p.Generation, cur)
	}
	r.current = p
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveGeneration(ctx, p); err != nil {
			// The in-memory generation stands; persistence catches up on the
			// next publish.
			if r.log != nil {
				r.log.Error("persist generation failed",
					logger.Int("generation", int(p.Generation)), logger.Error(err))
			}
		}
	}
	if r.metrics != nil {
		r.metrics.RecordGeneration(p.Generation)
	}
	if r.log != nil {
		r.log.Info("parameter generation published", logger.Int("generation", int(p.Generation)))
	}
	return nil
}

// InitialParameters builds generation 1 from configuration. Unlisted domains
// get weight 1.
func InitialParameters(cfg *config.Config, now time.Time) *models.Parameters {
	weights := make(map[string]float64, len(models.AllDomains()))
	for _, d := range models.AllDomains() {
		weights[d] = 1
	}
	for d, w := range cfg.Decision.Weights {
		weights[d] = w
	}
	return &models.Parameters{
		Generation: 1,
		CreatedAt:  now,

		Weights:        weights,
		EnterThreshold: cfg.Decision.EnterThreshold,
		HoldThreshold:  cfg.Decision.HoldThreshold,
		Quorum:         cfg.Decision.Quorum,
		BaseSize:       cfg.Decision.BaseSize,

		SingleAssetLimit: cfg.Risk.SingleAssetLimit,
		CategoryLimit:    cfg.Risk.CategoryLimit,
		PlatformLimit:    cfg.Risk.PlatformLimit,
		TotalExposure:    cfg.Risk.TotalExposure,
		MaxDrawdown:      cfg.Risk.MaxDrawdown,
		LeverageMin:      cfg.Risk.LeverageMin,
		LeverageMax:      cfg.Risk.LeverageMax,
		LeverageVolCaps: map[string]float64{
			models.VolBandExtreme:  cfg.Risk.LeverageMin,
			models.VolBandHigh:     cfg.Risk.LeverageVolCaps.High,
			models.VolBandModerate: cfg.Risk.LeverageVolCaps.Medium,
			models.VolBandLow:      cfg.Risk.LeverageVolCaps.Low,
		},
		CorrelationMax: cfg.Risk.CorrelationMax,

		UrgencyMultiplier: 1,
		MaxSlippage:       cfg.Execution.MaxSlippage,

		WeightMin:         cfg.Learning.WeightMin,
		WeightMax:         cfg.Learning.WeightMax,
		LeverageAbsMax:    cfg.Risk.LeverageAbsMax,
		VolatilityCeiling: cfg.Analyzers.Volatility.Ceiling,
	}
}

// FreezeList tracks symbols halted after an invariant violation. A frozen
// symbol produces Hold until an operator acknowledges it.
type FreezeList struct {
	mu     sync.RWMutex
	frozen map[string]string // symbol -> reason
	log    *logger.Logger
}

// NewFreezeList creates an empty freeze list.
func NewFreezeList(log *logger.Logger) *FreezeList {
	return &FreezeList{frozen: make(map[string]string), log: log}
}

// Freeze halts new intents for symbol.
func (f *FreezeList) Freeze(symbol, reason string) {
	f.mu.Lock()
	f.frozen[symbol] = reason
	f.mu.Unlock()
	if f.log != nil {
		f.log.Error("symbol frozen",
			logger.String("symbol", symbol), logger.String("reason", reason))
	}
}

// Frozen reports whether symbol is halted, with the freeze reason.
func (f *FreezeList) Frozen(symbol string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	reason, ok := f.frozen[symbol]
	return reason, ok
}

// Acknowledge clears a freeze; returns false when the symbol was not frozen.
func (f *FreezeList) Acknowledge(symbol string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.frozen[symbol]; !ok {
		return false
	}
	delete(f.frozen, symbol)
	if f.log != nil {
		f.log.Info("symbol freeze acknowledged", logger.String("symbol", symbol))
	}
	return true
}

// All returns the frozen symbols and reasons.
func (f *FreezeList) All() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.frozen))
	for s, r := range f.frozen {
		out[s] = r
	}
	return out
}

package usecase

import (
	"fmt"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/bus"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/estimator"
)

// AgentStatus is the operator-facing process summary.
type AgentStatus struct {
	Equity           float64            `json:"equity"`
	Drawdown         float64            `json:"drawdown"`
	Generation       uint64             `json:"generation"`
	EstimatorVersion int                `json:"estimator_version"`
	OpenPositions    []models.Position  `json:"open_positions"`
	Frozen           map[string]string  `json:"frozen,omitempty"`
	AsOf             time.Time          `json:"as_of"`
}

// SymbolSignals is the fused per-symbol view plus the latest decision.
type SymbolSignals struct {
	View     models.FusedView `json:"view"`
	Decision *models.Decision `json:"decision,omitempty"`
}

// StatusUseCase serves the operator API: process status, per-symbol fused
// signals, and freeze acknowledgement.
type StatusUseCase struct {
	bus       *bus.Bus
	loop      *AgentLoop
	tracker   *Tracker
	params    *ParamRegister
	frozen    *FreezeList
	estimator *estimator.Manager
	staleness map[string]time.Duration
	symbols   map[string]struct{}
}

// NewStatusUseCase creates the operator status usecase.
func NewStatusUseCase(
	b *bus.Bus,
	loop *AgentLoop,
	tracker *Tracker,
	params *ParamRegister,
	frozen *FreezeList,
	est *estimator.Manager,
	staleness map[string]time.Duration,
	symbols []string,
) *StatusUseCase {
	known := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		known[s] = struct{}{}
	}
	return &StatusUseCase{
		bus:       b,
		loop:      loop,
		tracker:   tracker,
		params:    params,
		frozen:    frozen,
		estimator: est,
		staleness: staleness,
		symbols:   known,
	}
}

// Status returns the process summary.
func (uc *StatusUseCase) Status(now time.Time) *AgentStatus {
	s := &AgentStatus{
		Equity:        uc.tracker.Equity(),
		Drawdown:      uc.tracker.Drawdown(),
		Generation:    uc.params.Current().Generation,
		OpenPositions: uc.tracker.OpenPositions(),
		AsOf:          now,
	}
	if uc.estimator != nil {
		s.EstimatorVersion = uc.estimator.Version()
	}
	if frozen := uc.frozen.All(); len(frozen) > 0 {
		s.Frozen = frozen
	}
	return s
}

// Signals returns the fused view and latest decision for symbol.
func (uc *StatusUseCase) Signals(symbol string, now time.Time) (*SymbolSignals, error) {
	if _, ok := uc.symbols[symbol]; !ok {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}
	out := &SymbolSignals{View: uc.bus.FusedView(symbol, now, uc.staleness)}
	if d, ok := uc.loop.LastDecision(symbol); ok {
		out.Decision = &d
	}
	return out, nil
}

// Acknowledge clears a symbol freeze.
func (uc *StatusUseCase) Acknowledge(symbol string) error {
	if _, ok := uc.symbols[symbol]; !ok {
		return fmt.Errorf("unknown symbol %q", symbol)
	}
	if !uc.frozen.Acknowledge(symbol) {
		return fmt.Errorf("symbol %q is not frozen", symbol)
	}
	return nil
}

// Positions returns the mirrored open positions.
func (uc *StatusUseCase) Positions() []models.Position {
	return uc.tracker.OpenPositions()
}

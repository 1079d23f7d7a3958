package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/models"
	domrepo "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/repository"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/scheduler"
	"github.com/sjn96/solana-ai-trading-bot-sub002/internal/services/estimator"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// AgentLoop owns the control-plane cadences: the decision tick per symbol,
// the execution tick, mark-to-market, and the slow retrain path. Each cadence
// is a scheduler job; the loop itself holds no tickers.
type AgentLoop struct {
	decision  *DecisionEngine
	risk      *RiskGate
	planner   *Planner
	engine    *ExecutionEngine
	tracker   *Tracker
	estimator *estimator.Manager
	market    MarketState
	exchange  domrepo.Exchange
	analysis  domrepo.AnalysisLog
	frozen    *FreezeList
	sched     *scheduler.Scheduler
	symbols   []string
	cfg       config.Config
	metrics   domrepo.Metrics
	log       *logger.Logger

	mu   sync.RWMutex
	last map[string]models.Decision
}

// NewAgentLoop wires the control plane.
func NewAgentLoop(
	decision *DecisionEngine,
	risk *RiskGate,
	planner *Planner,
	engine *ExecutionEngine,
	tracker *Tracker,
	est *estimator.Manager,
	market MarketState,
	exchange domrepo.Exchange,
	analysis domrepo.AnalysisLog,
	frozen *FreezeList,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *AgentLoop {
	return &AgentLoop{
		decision:  decision,
		risk:      risk,
		planner:   planner,
		engine:    engine,
		tracker:   tracker,
		estimator: est,
		market:    market,
		exchange:  exchange,
		analysis:  analysis,
		frozen:    frozen,
		sched:     sched,
		symbols:   append([]string(nil), cfg.Symbols...),
		cfg:       *cfg,
		metrics:   metrics,
		log:       log,
		last:      make(map[string]models.Decision),
	}
}

// Schedule registers the control-plane jobs.
func (l *AgentLoop) Schedule() {
	tick := time.Duration(l.cfg.Decision.TickMs) * time.Millisecond
	l.sched.Register("decision.tick", tick, l.decisionTick)
	l.sched.Register("execution.tick", 500*time.Millisecond, func(ctx context.Context) {
		l.engine.Tick(ctx, l.sched.Now())
	})
	l.sched.Register("tracker.mark", 10*time.Second, func(ctx context.Context) {
		l.tracker.MarkToMarket(l.market, l.sched.Now())
	})
	if l.exchange != nil {
		l.sched.Register("tracker.reconcile", time.Minute, func(ctx context.Context) {
			if err := l.tracker.Reconcile(ctx, l.exchange); err != nil {
				l.metrics.RecordError("reconcile")
				if l.log != nil {
					l.log.Error("reconcile failed", logger.Error(err))
				}
			}
		})
	}
	if l.estimator != nil {
		l.sched.Register("estimator.retrain", l.cfg.Learning.RetrainEvery, func(ctx context.Context) {
			if err := l.estimator.Retrain(ctx); err != nil {
				l.metrics.RecordError("retrain")
				if l.log != nil {
					l.log.Error("retrain failed", logger.Error(err))
				}
			}
		})
	}
}

// decisionTick runs decide → gate → plan → submit for every symbol.
func (l *AgentLoop) decisionTick(ctx context.Context) {
	now := l.sched.Now()
	for _, symbol := range l.symbols {
		start := time.Now()
		l.runSymbol(ctx, symbol, now)
		l.metrics.RecordLatency("decision_tick", time.Since(start).Seconds())
	}
}

func (l *AgentLoop) runSymbol(ctx context.Context, symbol string, now time.Time) {
	decision := l.decision.Decide(symbol, now)
	l.mu.Lock()
	l.last[symbol] = decision
	l.mu.Unlock()
	l.append(ctx, "decision", decision)
	if decision.Intent == nil {
		return
	}

	riskDec := l.risk.Gate(decision.Intent, now)
	l.append(ctx, "risk_decision", riskDec)
	if riskDec.Outcome == models.RiskReject {
		return
	}

	plan := l.planner.Plan(decision.Intent, &riskDec, now)
	l.append(ctx, "execution_plan", plan)
	if err := l.engine.Submit(decision.Intent, plan); err != nil {
		l.metrics.RecordError("plan_submit")
		if l.log != nil {
			l.log.Warn("plan submit refused",
				logger.String("symbol", symbol), logger.Error(err))
		}
	}
}

// LastDecision returns the most recent decision for symbol.
func (l *AgentLoop) LastDecision(symbol string) (models.Decision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.last[symbol]
	return d, ok
}

func (l *AgentLoop) append(ctx context.Context, kind string, record any) {
	if l.analysis == nil {
		return
	}
	if err := l.analysis.Append(ctx, kind, record); err != nil {
		l.metrics.RecordError("analysis_log")
	}
}

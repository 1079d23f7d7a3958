package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain/repository.Metrics using Prometheus.
type Recorder struct {
	lateDrops   *prometheus.CounterVec
	dataDrops   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	assessments *prometheus.CounterVec
	decisions   *prometheus.CounterVec
	riskTotal   *prometheus.CounterVec
	fillsTotal  *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	equity      prometheus.Gauge
	drawdown    prometheus.Gauge
	generation  prometheus.Gauge
	slippage    *prometheus.HistogramVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		lateDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenagent_late_drops_total",
				Help: "Assessments dropped for arriving out of ts order",
			},
			[]string{"domain"},
		),
		dataDrops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenagent_data_drops_total",
				Help: "Feed records dropped for data-quality reasons",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenagent_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		assessments: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenagent_assessments_total",
				Help: "Assessments published to the bus",
			},
			[]string{"domain", "symbol"},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenagent_decisions_total",
				Help: "Decision engine outcomes",
			},
			[]string{"symbol", "outcome"},
		),
		riskTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenagent_risk_decisions_total",
				Help: "Risk gate outcomes",
			},
			[]string{"outcome"},
		),
		fillsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokenagent_fills_total",
				Help: "Order fills reported by the execution engine",
			},
			[]string{"symbol"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tokenagent_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		equity: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tokenagent_equity",
			Help: "Current account equity",
		}),
		drawdown: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tokenagent_drawdown",
			Help: "Current trailing drawdown fraction",
		}),
		generation: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tokenagent_parameter_generation",
			Help: "Currently published parameter generation",
		}),
		slippage: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenagent_fill_slippage",
				Help:    "Per-fill signed slippage",
				Buckets: []float64{-0.01, -0.005, -0.001, 0, 0.001, 0.005, 0.01, 0.02, 0.05},
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tokenagent_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordLateDrop counts an out-of-order assessment dropped by the bus.
func (r *Recorder) RecordLateDrop(domain string) {
	r.lateDrops.WithLabelValues(domain).Inc()
}

// RecordDataDrop counts a feed record dropped for data-quality reasons.
func (r *Recorder) RecordDataDrop(kind string) {
	r.dataDrops.WithLabelValues(kind).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordAssessment counts a published assessment.
func (r *Recorder) RecordAssessment(domain, symbol string) {
	r.assessments.WithLabelValues(domain, symbol).Inc()
}

// RecordDecision counts a decision outcome ("intent" or a hold reason).
func (r *Recorder) RecordDecision(symbol, outcome string) {
	r.decisions.WithLabelValues(symbol, outcome).Inc()
}

// RecordRisk counts a risk gate outcome.
func (r *Recorder) RecordRisk(outcome string) {
	r.riskTotal.WithLabelValues(outcome).Inc()
}

// RecordFill counts a fill and observes its slippage.
func (r *Recorder) RecordFill(symbol string, slippage float64) {
	r.fillsTotal.WithLabelValues(symbol).Inc()
	r.slippage.WithLabelValues(symbol).Observe(slippage)
}

// RecordEquity records current equity and drawdown.
func (r *Recorder) RecordEquity(equity, drawdown float64) {
	r.equity.Set(equity)
	r.drawdown.Set(drawdown)
}

// RecordGeneration records the published parameter generation.
func (r *Recorder) RecordGeneration(gen uint64) {
	r.generation.Set(float64(gen))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

package estimator

import (
	"context"
	"fmt"
	"sync"
	"time"

	domsvc "github.com/sjn96/solana-ai-trading-bot-sub002/internal/domain/service"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// Sample is one labelled observation: the assessment components seen at
// decision time and whether the resulting trade closed profitably.
type Sample struct {
	Features map[string]float64
	Label    float64
	At       time.Time
}

// Manager owns the live estimator, a bounded inference pool, and the slow
// retraining path. A retrained candidate replaces the active model only after
// clearing the held-out accuracy floor; otherwise the active model stays.
type Manager struct {
	mu      sync.RWMutex
	active  domsvc.TrainableEstimator
	samples []Sample

	maxSamples  int
	minSamples  int
	minAccuracy float64
	sem         chan struct{}
	log         *logger.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMaxSamples bounds the retained sample buffer.
func WithMaxSamples(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxSamples = n
		}
	}
}

// WithMinSamples sets the sample count below which retraining is skipped.
func WithMinSamples(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.minSamples = n
		}
	}
}

// NewManager creates an estimator manager around an initial model.
func NewManager(initial domsvc.TrainableEstimator, minAccuracy float64, inferenceWorkers int, log *logger.Logger, opts ...ManagerOption) *Manager {
	if inferenceWorkers <= 0 {
		inferenceWorkers = 1
	}
	m := &Manager{
		active:      initial,
		maxSamples:  5000,
		minSamples:  50,
		minAccuracy: minAccuracy,
		sem:         make(chan struct{}, inferenceWorkers),
		log:         log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Predict runs inference on the active model through the bounded pool, so a
// burst of callers cannot pile unbounded concurrent scoring work.
func (m *Manager) Predict(ctx context.Context, features map[string]float64) (float64, error) {
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	return active.Predict(ctx, features)
}

// Version reports the active model's training generation.
func (m *Manager) Version() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active.Version()
}

// AddSample records one labelled observation for the next retrain.
func (m *Manager) AddSample(s Sample) {
	if len(s.Features) == 0 {
		return
	}
	m.mu.Lock()
	m.samples = append(m.samples, s)
	if len(m.samples) > m.maxSamples {
		m.samples = m.samples[len(m.samples)-m.maxSamples:]
	}
	m.mu.Unlock()
}

// SampleCount returns the buffered sample count.
func (m *Manager) SampleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples)
}

// Retrain fits a candidate on the older 80% of the buffer, evaluates it on
// the newest 20%, and activates it only above the accuracy floor. The caller
// schedules this on the slow cadence.
func (m *Manager) Retrain(ctx context.Context) error {
	m.mu.RLock()
	samples := append([]Sample(nil), m.samples...)
	m.mu.RUnlock()

	if len(samples) < m.minSamples {
		return nil
	}

	split := len(samples) * 4 / 5
	trainF, trainL := split2(samples[:split])
	testF, testL := split2(samples[split:])
	if len(testL) == 0 {
		return nil
	}

	candidate := NewLogistic()
	if err := candidate.Train(ctx, trainF, trainL); err != nil {
		return fmt.Errorf("retrain: %w", err)
	}
	accuracy, err := candidate.Evaluate(ctx, testF, testL)
	if err != nil {
		return fmt.Errorf("retrain evaluate: %w", err)
	}

	if accuracy < m.minAccuracy {
		if m.log != nil {
			m.log.Warn("retrain rejected below accuracy floor",
				logger.Float64("accuracy", accuracy),
				logger.Float64("floor", m.minAccuracy),
				logger.Int("samples", len(samples)))
		}
		return nil
	}

	m.mu.Lock()
	m.active = candidate
	m.mu.Unlock()

	if m.log != nil {
		m.log.Info("estimator activated",
			logger.Int("version", candidate.Version()),
			logger.Float64("accuracy", accuracy),
			logger.Int("samples", len(samples)))
	}
	return nil
}

func split2(samples []Sample) ([]map[string]float64, []float64) {
	features := make([]map[string]float64, len(samples))
	labels := make([]float64, len(samples))
	for i, s := range samples {
		features[i] = s.Features
		labels[i] = s.Label
	}
	return features, labels
}

var _ domsvc.Estimator = (*Manager)(nil)

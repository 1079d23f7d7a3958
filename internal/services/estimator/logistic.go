package estimator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Logistic is a small logistic-regression scorer over named features. It is
// deliberately simple: the value is in the retraining loop around it, not in
// the model class.
type Logistic struct {
	mu      sync.RWMutex
	weights map[string]float64
	bias    float64
	version int

	epochs int
	lr     float64
	l2     float64
}

// LogisticOption configures training hyperparameters.
type LogisticOption func(*Logistic)

// WithEpochs sets the SGD epoch count.
func WithEpochs(n int) LogisticOption {
	return func(l *Logistic) {
		if n > 0 {
			l.epochs = n
		}
	}
}

// WithLearningRate sets the SGD step size.
func WithLearningRate(lr float64) LogisticOption {
	return func(l *Logistic) {
		if lr > 0 {
			l.lr = lr
		}
	}
}

// NewLogistic creates an untrained scorer.
func NewLogistic(opts ...LogisticOption) *Logistic {
	l := &Logistic{
		weights: make(map[string]float64),
		epochs:  50,
		lr:      0.05,
		l2:      1e-4,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Predict returns a probability-like score in [0,1].
func (l *Logistic) Predict(_ context.Context, features map[string]float64) (float64, error) {
	if len(features) == 0 {
		return 0, fmt.Errorf("predict: empty feature vector")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	z := l.bias
	for k, v := range features {
		z += l.weights[k] * v
	}
	return sigmoid(z), nil
}

// Version returns the training generation; 0 means untrained.
func (l *Logistic) Version() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Train fits the model with SGD over the labelled set. Labels are in {0,1}.
func (l *Logistic) Train(ctx context.Context, features []map[string]float64, labels []float64) error {
	if len(features) == 0 || len(features) != len(labels) {
		return fmt.Errorf("train: %d feature rows vs %d labels", len(features), len(labels))
	}

	keys := collectKeys(features)
	w := make(map[string]float64, len(keys))
	var bias float64

	for epoch := 0; epoch < l.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, row := range features {
			z := bias
			for _, k := range keys {
				z += w[k] * row[k]
			}
			grad := sigmoid(z) - labels[i]
			bias -= l.lr * grad
			for _, k := range keys {
				w[k] -= l.lr * (grad*row[k] + l.l2*w[k])
			}
		}
	}

	l.mu.Lock()
	l.weights = w
	l.bias = bias
	l.version++
	l.mu.Unlock()
	return nil
}

// Evaluate returns classification accuracy at the 0.5 threshold.
func (l *Logistic) Evaluate(ctx context.Context, features []map[string]float64, labels []float64) (float64, error) {
	if len(features) == 0 || len(features) != len(labels) {
		return 0, fmt.Errorf("evaluate: %d feature rows vs %d labels", len(features), len(labels))
	}
	correct := 0
	for i, row := range features {
		p, err := l.Predict(ctx, row)
		if err != nil {
			return 0, err
		}
		if (p >= 0.5) == (labels[i] >= 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

func collectKeys(rows []map[string]float64) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

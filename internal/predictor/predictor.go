// Package predictor serves risk predictions from a loaded model
// package. The active package is swapped atomically, so a reload never
// disturbs in-flight predictions.
package predictor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
	"github.com/opensource-finance/harrier/internal/ml"
)

// ErrModelNotLoaded is returned when Predict is called before a model
// has been trained or loaded.
var ErrModelNotLoaded = errors.New("model not loaded")

// loaded bundles a package with its decoded model and fitted engineer.
// Built once per Swap, never mutated afterwards.
type loaded struct {
	pkg   *domain.ModelPackage
	model ml.Classifier
	eng   *features.Engineer
}

// Predictor scores transactions against the active model package.
type Predictor struct {
	mu     sync.RWMutex
	active *loaded
	logger *slog.Logger
}

// New creates an empty predictor. Call Swap before predicting.
func New(logger *slog.Logger) *Predictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{logger: logger}
}

// Swap validates and installs a new model package, replacing the active
// one atomically. The previous package keeps serving until the swap
// completes.
func (p *Predictor) Swap(pkg *domain.ModelPackage) error {
	if pkg == nil {
		return fmt.Errorf("predictor: nil package")
	}
	model, err := ml.Decode(pkg.ModelType, pkg.Model)
	if err != nil {
		return fmt.Errorf("predictor: %w", err)
	}
	eng, err := features.NewFittedEngineer(pkg.Encoders, pkg.Scaler, pkg.FeatureNames)
	if err != nil {
		return fmt.Errorf("predictor: %w", err)
	}

	p.mu.Lock()
	p.active = &loaded{pkg: pkg, model: model, eng: eng}
	p.mu.Unlock()

	p.logger.Info("model swapped",
		"model", pkg.ModelName,
		"timestamp", pkg.Timestamp,
	)
	return nil
}

// Loaded reports whether a model package is active.
func (p *Predictor) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active != nil
}

// Package returns the active model package, or nil.
func (p *Predictor) Package() *domain.ModelPackage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.active == nil {
		return nil
	}
	return p.active.pkg
}

// Predict scores a single transaction.
func (p *Predictor) Predict(tx *domain.Transaction) (*domain.PredictionResult, error) {
	results, err := p.PredictBatch([]*domain.Transaction{tx})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// PredictBatch scores transactions with the active package. The fitted
// encoders, scaler, and feature order are used verbatim; nothing is
// refit at prediction time.
func (p *Predictor) PredictBatch(txs []*domain.Transaction) ([]*domain.PredictionResult, error) {
	p.mu.RLock()
	active := p.active
	p.mu.RUnlock()

	if active == nil {
		return nil, ErrModelNotLoaded
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("predictor: no transactions")
	}

	X, err := active.eng.Transform(txs)
	if err != nil {
		return nil, fmt.Errorf("predictor: transform: %w", err)
	}

	probs := active.model.PredictProba(X)
	labels := active.model.Predict(X)

	results := make([]*domain.PredictionResult, len(txs))
	for i := range txs {
		label := domain.LabelLowRisk
		if labels[i] == 1 {
			label = domain.LabelHighRisk
		}
		results[i] = &domain.PredictionResult{
			RiskProbability: probs[i],
			RiskLabel:       label,
			RiskScore:       probs[i] * 100,
		}
	}
	return results, nil
}

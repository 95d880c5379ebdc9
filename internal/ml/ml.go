// Package ml provides the learners behind the risk engine: a bagging
// forest, a boosting ensemble, and a density-based isolation forest,
// together with dataset splitting and evaluation metrics. All learners
// are deterministic for a fixed seed.
package ml

import (
	"encoding/json"
	"fmt"
)

// Classifier is the capability set shared by all model variants:
// fit, hard predictions, and a probability-or-equivalent score.
// For the density-based variant the score is a normalized anomaly
// measure rather than a calibrated probability.
type Classifier interface {
	// Fit trains the model. X is row-major, y holds {0,1} labels.
	// The density-based variant ignores y.
	Fit(X [][]float64, y []int) error

	// Predict returns the hard {0,1} label per row.
	Predict(X [][]float64) []int

	// PredictProba returns the positive-class probability (or
	// equivalent score in [0,1]) per row.
	PredictProba(X [][]float64) []float64
}

// FeatureImportancer is the optional capability of reporting a
// per-feature importance vector. Callers branch on this interface,
// never on field probing.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// Model type tags used in serialized artifacts.
const (
	TypeRandomForest     = "random_forest"
	TypeGradientBoosting = "gradient_boosting"
	TypeIsolationForest  = "isolation_forest"
)

// Encode serializes a trained classifier into a type-tagged payload.
func Encode(c Classifier) (modelType string, payload json.RawMessage, err error) {
	switch m := c.(type) {
	case *RandomForest:
		payload, err = json.Marshal(m)
		return TypeRandomForest, payload, err
	case *GradientBoosting:
		payload, err = json.Marshal(m)
		return TypeGradientBoosting, payload, err
	case *IsolationForest:
		payload, err = json.Marshal(m)
		return TypeIsolationForest, payload, err
	default:
		return "", nil, fmt.Errorf("unknown model type %T", c)
	}
}

// Decode deserializes a classifier from its type tag and payload.
func Decode(modelType string, payload json.RawMessage) (Classifier, error) {
	switch modelType {
	case TypeRandomForest:
		var m RandomForest
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", modelType, err)
		}
		return &m, nil
	case TypeGradientBoosting:
		var m GradientBoosting
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", modelType, err)
		}
		return &m, nil
	case TypeIsolationForest:
		var m IsolationForest
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", modelType, err)
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("unknown model type %q", modelType)
	}
}

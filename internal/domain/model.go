package domain

import (
	"encoding/json"
	"sync"
	"time"
)

// LabelEncoder maps category strings to stable integer codes.
// Encoders are fit once at training time and treated as immutable
// afterwards; Transform never mutates the vocabulary.
type LabelEncoder struct {
	// Classes holds the fitted vocabulary in code order, so
	// Classes[code] is the category for that code.
	Classes []string `json:"classes"`

	// codes is the reverse index, built once from Classes on first use.
	// Transform is called concurrently from the serving path, so the
	// build is guarded.
	codesOnce sync.Once
	codes     map[string]int
}

// Transform returns the code for a category. Categories absent from the
// fitted vocabulary resolve to the fallback code 0 so a single unseen
// value never aborts a prediction. Safe for concurrent use.
func (e *LabelEncoder) Transform(category string) int {
	e.codesOnce.Do(func() {
		codes := make(map[string]int, len(e.Classes))
		for i, c := range e.Classes {
			codes[c] = i
		}
		e.codes = codes
	})
	if code, ok := e.codes[category]; ok {
		return code
	}
	return 0
}

// Scaler holds fitted zero-mean/unit-variance standardization parameters.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Transform standardizes a feature vector in place-safe fashion,
// returning a new slice. Zero-variance columns divide by 1.
func (s *Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		std := s.Stds[i]
		if std == 0 {
			std = 1
		}
		out[i] = (v - s.Means[i]) / std
	}
	return out
}

// ModelMetrics holds held-out evaluation metrics for one candidate.
type ModelMetrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
}

// ModelPackage is the atomic bundle of a trained classifier plus all
// preprocessing state needed to reproduce its feature pipeline at
// inference time. A package is only valid for scoring if its feature-name
// list and encoder vocabularies match the feature engineer that produced
// it. The fitted scaler and encoders are owned exclusively by the package
// that contains them and are never shared mutably between packages.
type ModelPackage struct {
	// ModelName is the selected candidate's registry name.
	ModelName string `json:"modelName"`

	// ModelType tags the serialized classifier for decoding.
	ModelType string `json:"modelType"`

	// Model is the encoded classifier payload.
	Model json.RawMessage `json:"model"`

	Scaler   *Scaler                  `json:"scaler"`
	Encoders map[string]*LabelEncoder `json:"labelEncoders"`

	// FeatureNames is the ordered feature list, authoritative for both
	// training and inference.
	FeatureNames []string `json:"featureNames"`

	// Metrics maps candidate name to its held-out metrics.
	Metrics map[string]ModelMetrics `json:"modelMetrics"`

	// Timestamp is the creation time, informational only.
	Timestamp string `json:"timestamp"`
}

// TimestampFormat is the artifact versioning timestamp layout.
const TimestampFormat = "20060102_150405"

// NewTimestamp returns a creation timestamp in the artifact format.
func NewTimestamp() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// ArtifactInfo describes a persisted model artifact for listing.
type ArtifactInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// PredictionResult is the serving-path output for a single transaction.
type PredictionResult struct {
	RiskProbability float64 `json:"riskProbability"` // [0, 1]
	RiskLabel       string  `json:"riskLabel"`       // HIGH_RISK or LOW_RISK
	RiskScore       float64 `json:"riskScore"`       // probability x 100
}

// Prediction labels.
const (
	LabelHighRisk = "HIGH_RISK"
	LabelLowRisk  = "LOW_RISK"
)

package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagging ensemble of gini CART trees with bootstrap
// sampling and sqrt-feature subsetting per split.
type RandomForest struct {
	NEstimators    int         `json:"nEstimators"`
	MaxDepth       int         `json:"maxDepth"`
	MinSamplesLeaf int         `json:"minSamplesLeaf"`
	Seed           int64       `json:"seed"`
	Trees          []*TreeNode `json:"trees"`
	Importances    []float64   `json:"importances,omitempty"`
}

// NewRandomForest creates a forest with the reference defaults.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		NEstimators:    100,
		MinSamplesLeaf: 1,
		Seed:           seed,
	}
}

// Fit trains the forest on labeled data.
func (f *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("random forest: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("random forest: %d samples but %d labels", len(X), len(y))
	}

	rng := rand.New(rand.NewSource(f.Seed))
	n := len(X)
	nFeatures := len(X[0])

	cfg := treeConfig{
		maxDepth:       f.MaxDepth,
		minSamplesLeaf: f.MinSamplesLeaf,
		maxFeatures:    int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures))))),
	}

	f.Trees = make([]*TreeNode, 0, f.NEstimators)
	f.Importances = make([]float64, nFeatures)

	for t := 0; t < f.NEstimators; t++ {
		// Bootstrap sample
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		tree := buildClassificationTree(X, y, idx, 0, cfg, rng, f.Importances, n)
		f.Trees = append(f.Trees, tree)
	}

	// Normalize mean-decrease-in-impurity importances.
	if sum := floats.Sum(f.Importances); sum > 0 {
		floats.Scale(1/sum, f.Importances)
	}
	return nil
}

// PredictProba averages the leaf positive-class fractions over trees.
func (f *RandomForest) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, row := range X {
		sum := 0.0
		for _, tree := range f.Trees {
			sum += tree.traverse(row).Value
		}
		probs[i] = sum / float64(len(f.Trees))
	}
	return probs
}

// Predict returns the majority-probability label per row.
func (f *RandomForest) Predict(X [][]float64) []int {
	probs := f.PredictProba(X)
	labels := make([]int, len(probs))
	for i, p := range probs {
		if p >= 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

// FeatureImportances returns the normalized importance vector.
func (f *RandomForest) FeatureImportances() []float64 {
	return f.Importances
}

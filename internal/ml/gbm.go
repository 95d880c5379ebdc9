package ml

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// GradientBoosting is a boosting ensemble of shallow regression trees
// fit to logistic-loss gradients, with Newton leaf updates.
type GradientBoosting struct {
	NEstimators    int     `json:"nEstimators"`
	LearningRate   float64 `json:"learningRate"`
	MaxDepth       int     `json:"maxDepth"`
	MinSamplesLeaf int     `json:"minSamplesLeaf"`
	Seed           int64   `json:"seed"`

	// InitScore is the prior log-odds.
	InitScore   float64     `json:"initScore"`
	Trees       []*TreeNode `json:"trees"`
	Importances []float64   `json:"importances,omitempty"`
}

// NewGradientBoosting creates a booster with the reference defaults.
func NewGradientBoosting(seed int64) *GradientBoosting {
	return &GradientBoosting{
		NEstimators:    100,
		LearningRate:   0.1,
		MaxDepth:       3,
		MinSamplesLeaf: 1,
		Seed:           seed,
	}
}

// Fit trains the booster on labeled data.
func (g *GradientBoosting) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("gradient boosting: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("gradient boosting: %d samples but %d labels", len(X), len(y))
	}

	n := len(X)
	nFeatures := len(X[0])
	rng := rand.New(rand.NewSource(g.Seed))

	// Prior: log-odds of the positive class, clamped away from the
	// degenerate single-class boundaries.
	pos := 0
	for _, label := range y {
		if label == 1 {
			pos++
		}
	}
	p := float64(pos) / float64(n)
	const eps = 1e-6
	p = math.Min(math.Max(p, eps), 1-eps)
	g.InitScore = math.Log(p / (1 - p))

	cfg := treeConfig{
		maxDepth:       g.MaxDepth,
		minSamplesLeaf: g.MinSamplesLeaf,
	}

	score := make([]float64, n)
	for i := range score {
		score[i] = g.InitScore
	}

	residual := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	g.Trees = make([]*TreeNode, 0, g.NEstimators)
	g.Importances = make([]float64, nFeatures)

	for m := 0; m < g.NEstimators; m++ {
		// Negative gradient of the logistic loss.
		for i := range residual {
			residual[i] = float64(y[i]) - sigmoid(score[i])
		}

		tree := buildRegressionTree(X, residual, all, cfg, rng, g.Importances, n)

		// Newton step per leaf: sum(residual) / sum(p(1-p)).
		for leaf, idx := range tree.leaves {
			num, den := 0.0, 0.0
			for _, i := range idx {
				pr := sigmoid(score[i])
				num += residual[i]
				den += pr * (1 - pr)
			}
			if den < 1e-12 {
				leaf.Value = 0
			} else {
				leaf.Value = num / den
			}
		}

		for i, row := range X {
			score[i] += g.LearningRate * tree.root.traverse(row).Value
		}
		g.Trees = append(g.Trees, tree.root)
	}

	if sum := floats.Sum(g.Importances); sum > 0 {
		floats.Scale(1/sum, g.Importances)
	}
	return nil
}

// PredictProba returns the sigmoid of the boosted score.
func (g *GradientBoosting) PredictProba(X [][]float64) []float64 {
	probs := make([]float64, len(X))
	for i, row := range X {
		score := g.InitScore
		for _, tree := range g.Trees {
			score += g.LearningRate * tree.traverse(row).Value
		}
		probs[i] = sigmoid(score)
	}
	return probs
}

// Predict returns the thresholded label per row.
func (g *GradientBoosting) Predict(X [][]float64) []int {
	probs := g.PredictProba(X)
	labels := make([]int, len(probs))
	for i, p := range probs {
		if p >= 0.5 {
			labels[i] = 1
		}
	}
	return labels
}

// FeatureImportances returns the normalized importance vector.
func (g *GradientBoosting) FeatureImportances() []float64 {
	return g.Importances
}

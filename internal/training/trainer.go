// Package training runs the model competition: featurize the labeled
// dataset, train the candidate learners, evaluate them on a held-out
// split, and select the best supervised candidate by F1.
package training

import (
	"fmt"
	"log/slog"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
	"github.com/opensource-finance/harrier/internal/ml"
)

// Config holds the training parameters.
type Config struct {
	// TestSize is the held-out fraction for evaluation.
	TestSize float64

	// Seed drives the split and every candidate learner.
	Seed int64

	// CVFolds is the fold count for the diagnostic cross-validation
	// on the training split. CV scores are logged, never gating.
	CVFolds int

	// Contamination configures the unsupervised diagnostic candidate.
	Contamination float64

	// MaxWorkers bounds concurrent candidate training. Zero or one
	// trains sequentially.
	MaxWorkers int
}

// DefaultConfig mirrors domain.DefaultAnalysisConfig for standalone use.
func DefaultConfig() Config {
	return Config{
		TestSize:      0.3,
		Seed:          42,
		CVFolds:       5,
		Contamination: 0.15,
		MaxWorkers:    3,
	}
}

// candidate is one entrant in the competition. Registration order
// breaks F1 ties: the first-registered candidate wins.
type candidate struct {
	name  string
	build func(cfg Config) ml.Classifier

	// supervised candidates are eligible for selection and get a
	// diagnostic CV run; the density candidate is evaluated on
	// accuracy only.
	supervised bool
}

func candidates() []candidate {
	return []candidate{
		{
			name:       ml.TypeRandomForest,
			supervised: true,
			build: func(cfg Config) ml.Classifier {
				return ml.NewRandomForest(cfg.Seed)
			},
		},
		{
			name:       ml.TypeGradientBoosting,
			supervised: true,
			build: func(cfg Config) ml.Classifier {
				return ml.NewGradientBoosting(cfg.Seed)
			},
		},
		{
			name:       "isolation_forest_classifier",
			supervised: false,
			build: func(cfg Config) ml.Classifier {
				return ml.NewIsolationForest(cfg.Contamination, cfg.Seed)
			},
		},
	}
}

// Result is the outcome of one training run.
type Result struct {
	Package      *domain.ModelPackage
	SelectedName string
	Metrics      map[string]domain.ModelMetrics
}

// Trainer orchestrates the competition.
type Trainer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a trainer.
func New(cfg Config, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{cfg: cfg, logger: logger}
}

// Train runs the full pipeline on a labeled dataset and returns the
// selected model packaged with its fitted preprocessing state.
func (t *Trainer) Train(txs []*domain.Transaction) (*Result, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("training: empty dataset")
	}

	eng := features.NewEngineer()
	X, err := eng.Fit(txs)
	if err != nil {
		return nil, fmt.Errorf("training: featurize: %w", err)
	}
	y := features.Labels(txs)

	trainIdx, testIdx := ml.StratifiedSplit(y, t.cfg.TestSize, t.cfg.Seed)
	XTrain, yTrain := ml.Subset(X, trainIdx), ml.SubsetLabels(y, trainIdx)
	XTest, yTest := ml.Subset(X, testIdx), ml.SubsetLabels(y, testIdx)

	t.logger.Info("training started",
		"samples", len(X),
		"train", len(trainIdx),
		"test", len(testIdx),
		"features", len(eng.FeatureNames()),
	)

	entrants := candidates()
	trained := make([]ml.Classifier, len(entrants))
	errs := make([]error, len(entrants))

	var wg sync.WaitGroup
	sem := make(chan struct{}, max(t.cfg.MaxWorkers, 1))
	for i, c := range entrants {
		wg.Add(1)
		go func(idx int, c candidate) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			trained[idx], errs[idx] = t.trainCandidate(c, XTrain, yTrain)
		}(i, c)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("training: candidate %s: %w", entrants[i].name, err)
		}
	}

	metrics := make(map[string]domain.ModelMetrics, len(entrants))
	var selected ml.Classifier
	var selectedName string
	bestF1 := 0.0
	for i, c := range entrants {
		m := t.evaluate(c, trained[i], XTest, yTest)
		metrics[c.name] = m
		if !c.supervised {
			continue
		}
		if selected == nil || m.F1Score > bestF1 {
			selected = trained[i]
			selectedName = c.name
			bestF1 = m.F1Score
		}
	}

	t.logger.Info("model selected", "model", selectedName, "f1", bestF1)
	t.logFeatureImportance(selected, eng.FeatureNames())

	modelType, payload, err := ml.Encode(selected)
	if err != nil {
		return nil, fmt.Errorf("training: encode model: %w", err)
	}

	return &Result{
		Package: &domain.ModelPackage{
			ModelName:    selectedName,
			ModelType:    modelType,
			Model:        payload,
			Scaler:       eng.Scaler(),
			Encoders:     eng.Encoders(),
			FeatureNames: eng.FeatureNames(),
			Metrics:      metrics,
			Timestamp:    domain.NewTimestamp(),
		},
		SelectedName: selectedName,
		Metrics:      metrics,
	}, nil
}

// trainCandidate fits one entrant and logs its diagnostic CV score.
func (t *Trainer) trainCandidate(c candidate, XTrain [][]float64, yTrain []int) (ml.Classifier, error) {
	model := c.build(t.cfg)
	if err := model.Fit(XTrain, yTrain); err != nil {
		return nil, err
	}

	if c.supervised && t.cfg.CVFolds > 1 && len(yTrain) >= t.cfg.CVFolds {
		scores, err := ml.CrossValScore(func() ml.Classifier {
			return c.build(t.cfg)
		}, XTrain, yTrain, t.cfg.CVFolds, t.cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("cross-validation: %w", err)
		}
		mean := stat.Mean(scores, nil)
		std := stat.StdDev(scores, nil)
		t.logger.Info("cross-validation",
			"model", c.name,
			"folds", len(scores),
			"mean_f1", mean,
			"spread", 2*std,
		)
	}
	return model, nil
}

// evaluate computes held-out metrics. The unsupervised candidate gets
// accuracy only: its outlier flags are compared against the labels.
func (t *Trainer) evaluate(c candidate, model ml.Classifier, XTest [][]float64, yTest []int) domain.ModelMetrics {
	if len(yTest) == 0 {
		return domain.ModelMetrics{}
	}
	pred := model.Predict(XTest)
	if !c.supervised {
		var correct float64
		for i := range yTest {
			if pred[i] == yTest[i] {
				correct++
			}
		}
		return domain.ModelMetrics{Accuracy: correct / float64(len(yTest))}
	}

	m := ml.Evaluate(yTest, pred)
	t.logger.Info("candidate evaluated",
		"model", c.name,
		"accuracy", m.Accuracy,
		"precision", m.Precision,
		"recall", m.Recall,
		"f1", m.F1Score,
	)
	return m
}

func (t *Trainer) logFeatureImportance(model ml.Classifier, names []string) {
	fi, ok := model.(ml.FeatureImportancer)
	if !ok {
		return
	}
	imps := fi.FeatureImportances()
	type pair struct {
		name  string
		value float64
	}
	top := make([]pair, 0, len(imps))
	for i, v := range imps {
		if i < len(names) {
			top = append(top, pair{names[i], v})
		}
	}
	// Log the strongest few signals.
	for n := 0; n < 3 && n < len(top); n++ {
		bestIdx := n
		for j := n + 1; j < len(top); j++ {
			if top[j].value > top[bestIdx].value {
				bestIdx = j
			}
		}
		top[n], top[bestIdx] = top[bestIdx], top[n]
		t.logger.Info("feature importance",
			"rank", n+1,
			"feature", top[n].name,
			"importance", top[n].value,
		)
	}
}

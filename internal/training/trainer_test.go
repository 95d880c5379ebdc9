package training

import (
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/features"
	"github.com/opensource-finance/harrier/internal/ml"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// labeledDataset builds a separable mix: ordinary daytime domestic
// payments against night-time cross-border structuring transfers.
func labeledDataset(perClass int) []*domain.Transaction {
	txs := make([]*domain.Transaction, 0, perClass*2)
	for i := 0; i < perClass; i++ {
		txs = append(txs, &domain.Transaction{
			ID:               "ok-" + strconv.Itoa(i),
			SenderAccount:    "S" + strconv.Itoa(i%7),
			ReceiverAccount:  "R" + strconv.Itoa(i%5),
			Amount:           800 + float64(i%30)*25,
			PaymentCurrency:  "USD",
			ReceivedCurrency: "USD",
			SenderLocation:   "US-NYC",
			ReceiverLocation: "US-NYC",
			PaymentType:      "card",
			Timestamp:        time.Date(2025, 3, 10+(i%5), 11+(i%6), i%60, 0, 0, time.UTC),
		})
		txs = append(txs, &domain.Transaction{
			ID:               "ml-" + strconv.Itoa(i),
			SenderAccount:    "X" + strconv.Itoa(i%4),
			ReceiverAccount:  "Y" + strconv.Itoa(i%3),
			Amount:           9000 + float64(i%20)*45,
			PaymentCurrency:  "USD",
			ReceivedCurrency: "AED",
			SenderLocation:   "US-NYC",
			ReceiverLocation: "AE-DXB",
			PaymentType:      "wire",
			Timestamp:        time.Date(2025, 3, 10+(i%5), 2, i%60, 0, 0, time.UTC),
			IsLaundering:     true,
			LaunderingType:   "structuring",
		})
	}
	return txs
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.CVFolds = 3
	return cfg
}

func TestTrainEmptyDataset(t *testing.T) {
	tr := New(fastConfig(), discard())
	if _, err := tr.Train(nil); err == nil {
		t.Fatal("expected error for empty dataset")
	}
}

func TestTrainSelectsSupervisedCandidate(t *testing.T) {
	tr := New(fastConfig(), discard())
	res, err := tr.Train(labeledDataset(40))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if res.SelectedName == "isolation_forest_classifier" {
		t.Fatal("unsupervised candidate selected")
	}
	if res.SelectedName != ml.TypeRandomForest && res.SelectedName != ml.TypeGradientBoosting {
		t.Fatalf("unexpected selection %q", res.SelectedName)
	}

	pkg := res.Package
	if pkg == nil {
		t.Fatal("nil model package")
	}
	if pkg.ModelName != res.SelectedName {
		t.Errorf("package name %q != selected %q", pkg.ModelName, res.SelectedName)
	}
	if len(pkg.Model) == 0 {
		t.Error("package missing encoded model")
	}
	if pkg.Scaler == nil || len(pkg.Encoders) == 0 {
		t.Error("package missing preprocessing state")
	}
	if err := features.CheckNames(pkg.FeatureNames); err != nil {
		t.Errorf("package feature names: %v", err)
	}
	if _, err := time.Parse(domain.TimestampFormat, pkg.Timestamp); err != nil {
		t.Errorf("package timestamp %q: %v", pkg.Timestamp, err)
	}
}

func TestTrainMetricsPerCandidate(t *testing.T) {
	tr := New(fastConfig(), discard())
	res, err := tr.Train(labeledDataset(40))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	for _, name := range []string{
		ml.TypeRandomForest, ml.TypeGradientBoosting, "isolation_forest_classifier",
	} {
		if _, ok := res.Metrics[name]; !ok {
			t.Errorf("missing metrics for %s", name)
		}
	}

	// Separable data: the winner should classify the held-out split well.
	winner := res.Metrics[res.SelectedName]
	if winner.F1Score < 0.9 {
		t.Errorf("winner F1 = %v, want >= 0.9 on separable data", winner.F1Score)
	}

	// The unsupervised diagnostic reports accuracy only.
	iso := res.Metrics["isolation_forest_classifier"]
	if iso.Precision != 0 || iso.Recall != 0 || iso.F1Score != 0 {
		t.Errorf("unsupervised candidate carries supervised metrics: %+v", iso)
	}
}

func TestTrainDeterministic(t *testing.T) {
	txs := labeledDataset(30)
	tr := New(fastConfig(), discard())

	first, err := tr.Train(txs)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	second, err := tr.Train(txs)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if first.SelectedName != second.SelectedName {
		t.Fatalf("selection differs: %q vs %q", first.SelectedName, second.SelectedName)
	}
	for name, m := range first.Metrics {
		if second.Metrics[name] != m {
			t.Fatalf("metrics for %s differ between identical runs", name)
		}
	}
}

func TestTrainSingleClassLabels(t *testing.T) {
	txs := labeledDataset(20)
	for _, tx := range txs {
		tx.IsLaundering = false
	}

	tr := New(fastConfig(), discard())
	res, err := tr.Train(txs)
	if err != nil {
		t.Fatalf("Train on single-class labels: %v", err)
	}

	// No positives anywhere: every F1 is 0 and the first-registered
	// supervised candidate wins.
	if res.SelectedName != ml.TypeRandomForest {
		t.Errorf("selected %q, want first-registered random_forest", res.SelectedName)
	}
	for _, name := range []string{ml.TypeRandomForest, ml.TypeGradientBoosting} {
		if f1 := res.Metrics[name].F1Score; f1 != 0 {
			t.Errorf("%s F1 = %v, want 0", name, f1)
		}
	}
}

func TestTrainedPackageRoundTripsThroughCodec(t *testing.T) {
	tr := New(fastConfig(), discard())
	res, err := tr.Train(labeledDataset(30))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	model, err := ml.Decode(res.Package.ModelType, res.Package.Model)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	eng, err := features.NewFittedEngineer(res.Package.Encoders, res.Package.Scaler, res.Package.FeatureNames)
	if err != nil {
		t.Fatalf("NewFittedEngineer: %v", err)
	}
	X, err := eng.Transform(labeledDataset(5))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	probs := model.PredictProba(X)
	if len(probs) != 10 {
		t.Fatalf("got %d probabilities, want 10", len(probs))
	}
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Fatalf("probability %v out of [0,1]", p)
		}
	}
}

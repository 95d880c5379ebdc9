package features

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func sample() []*domain.Transaction {
	return []*domain.Transaction{
		{
			ID:               "t1",
			SenderAccount:    "A",
			ReceiverAccount:  "B",
			Amount:           9500, // structuring band
			PaymentCurrency:  "USD",
			ReceivedCurrency: "AED",
			SenderLocation:   "US-NYC",
			ReceiverLocation: "AE-DXB",
			PaymentType:      "wire",
			// Saturday, 23:15
			Timestamp: time.Date(2025, 3, 8, 23, 15, 0, 0, time.UTC),
		},
		{
			ID:               "t2",
			SenderAccount:    "A",
			ReceiverAccount:  "C",
			Amount:           2000, // round amount
			PaymentCurrency:  "USD",
			ReceivedCurrency: "USD",
			SenderLocation:   "US-NYC",
			ReceiverLocation: "US-NYC",
			PaymentType:      "card",
			// Monday, 10:30
			Timestamp: time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC),
		},
		{
			ID:               "t3",
			SenderAccount:    "B",
			ReceiverAccount:  "C",
			Amount:           137.5,
			PaymentCurrency:  "EUR",
			ReceivedCurrency: "EUR",
			SenderLocation:   "DE-FRA",
			ReceiverLocation: "DE-FRA",
			PaymentType:      "card",
			Timestamp:        time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC),
		},
	}
}

func TestNamesOrderFixed(t *testing.T) {
	names := Names()
	if len(names) != 15 {
		t.Fatalf("got %d features, want 15", len(names))
	}
	if names[0] != FeatureHour || names[3] != FeatureLogAmount || names[14] != FeatureReceivedCcyCode {
		t.Fatalf("canonical order changed: %v", names)
	}
}

func TestFitEmptyDataset(t *testing.T) {
	if _, err := NewEngineer().Fit(nil); err == nil {
		t.Fatal("expected error fitting on empty dataset")
	}
}

func TestDerivationRules(t *testing.T) {
	eng := NewEngineer()
	if _, err := eng.Fit(sample()); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	raw, err := eng.Raw(sample())
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}

	idx := map[string]int{}
	for i, n := range Names() {
		idx[n] = i
	}

	t1 := raw[0]
	if t1[idx[FeatureHour]] != 23 {
		t.Errorf("hour = %v, want 23", t1[idx[FeatureHour]])
	}
	if t1[idx[FeatureIsWeekend]] != 1 {
		t.Error("Saturday not marked weekend")
	}
	if t1[idx[FeatureIsNight]] != 1 {
		t.Error("23:15 not marked night")
	}
	if got, want := t1[idx[FeatureLogAmount]], math.Log1p(9500); got != want {
		t.Errorf("log amount = %v, want %v", got, want)
	}
	if t1[idx[FeatureIsRoundAmount]] != 0 {
		t.Error("9500 marked as round thousand")
	}
	if t1[idx[FeatureIsStructuring]] != 1 {
		t.Error("9500 not marked structuring")
	}
	if t1[idx[FeatureIsCrossBorder]] != 1 || t1[idx[FeatureCurrencyMismatch]] != 1 {
		t.Error("cross-border / currency mismatch not set for t1")
	}
	// A sends twice, B receives once.
	if t1[idx[FeatureSenderFrequency]] != 2 {
		t.Errorf("sender frequency = %v, want 2", t1[idx[FeatureSenderFrequency]])
	}
	if t1[idx[FeatureReceiverFrequency]] != 1 {
		t.Errorf("receiver frequency = %v, want 1", t1[idx[FeatureReceiverFrequency]])
	}

	t2 := raw[1]
	if t2[idx[FeatureIsWeekend]] != 0 || t2[idx[FeatureIsNight]] != 0 {
		t.Error("Monday 10:30 marked weekend or night")
	}
	if t2[idx[FeatureIsRoundAmount]] != 1 {
		t.Error("2000 not marked round")
	}
	if t2[idx[FeatureIsStructuring]] != 0 {
		t.Error("2000 marked structuring")
	}

	// Sorted vocabulary: card=0, wire=1.
	if t1[idx[FeaturePaymentTypeCode]] != 1 || t2[idx[FeaturePaymentTypeCode]] != 0 {
		t.Errorf("payment type codes = %v/%v, want 1/0",
			t1[idx[FeaturePaymentTypeCode]], t2[idx[FeaturePaymentTypeCode]])
	}
}

func TestFitReturnsStandardizedMatrix(t *testing.T) {
	eng := NewEngineer()
	X, err := eng.Fit(sample())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	// Each column has zero mean after standardization; zero-variance
	// columns transform with divisor 1 and are exactly zero.
	for j := range X[0] {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		if mean := sum / float64(len(X)); math.Abs(mean) > 1e-9 {
			t.Errorf("column %d mean = %v after scaling", j, mean)
		}
	}
}

func TestTransformMatchesFit(t *testing.T) {
	eng := NewEngineer()
	fitX, err := eng.Fit(sample())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	trX, err := eng.Transform(sample())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for i := range fitX {
		for j := range fitX[i] {
			if fitX[i][j] != trX[i][j] {
				t.Fatalf("[%d][%d]: fit %v != transform %v", i, j, fitX[i][j], trX[i][j])
			}
		}
	}
}

func TestTransformBeforeFit(t *testing.T) {
	if _, err := NewEngineer().Transform(sample()); err == nil {
		t.Fatal("expected error transforming with unfitted engineer")
	}
}

func TestUnseenCategoryFallsBackToZero(t *testing.T) {
	eng := NewEngineer()
	if _, err := eng.Fit(sample()); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	tx := sample()[0]
	tx.PaymentType = "cheque"
	raw, err := eng.Raw([]*domain.Transaction{tx})
	if err != nil {
		t.Fatalf("Raw: %v", err)
	}

	idx := 0
	for i, n := range Names() {
		if n == FeaturePaymentTypeCode {
			idx = i
		}
	}
	if raw[0][idx] != 0 {
		t.Errorf("unseen category code = %v, want 0", raw[0][idx])
	}
}

func TestCheckNames(t *testing.T) {
	if err := CheckNames(Names()); err != nil {
		t.Fatalf("canonical list rejected: %v", err)
	}
	if err := CheckNames(Names()[:14]); err == nil {
		t.Error("truncated list accepted")
	}
	reordered := Names()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	if err := CheckNames(reordered); err == nil {
		t.Error("reordered list accepted")
	}
}

func TestFittedEngineerRoundTrip(t *testing.T) {
	eng := NewEngineer()
	X, err := eng.Fit(sample())
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	revived, err := NewFittedEngineer(eng.Encoders(), eng.Scaler(), eng.FeatureNames())
	if err != nil {
		t.Fatalf("NewFittedEngineer: %v", err)
	}
	Y, err := revived.Transform(sample())
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for i := range X {
		for j := range X[i] {
			if X[i][j] != Y[i][j] {
				t.Fatalf("[%d][%d]: %v != %v through revived engineer", i, j, X[i][j], Y[i][j])
			}
		}
	}
}

func TestNewFittedEngineerValidation(t *testing.T) {
	eng := NewEngineer()
	if _, err := eng.Fit(sample()); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	if _, err := NewFittedEngineer(eng.Encoders(), nil, eng.FeatureNames()); err == nil {
		t.Error("nil scaler accepted")
	}

	encoders := eng.Encoders()
	broken := map[string]*domain.LabelEncoder{}
	for k, v := range encoders {
		broken[k] = v
	}
	delete(broken, FieldPaymentType)
	if _, err := NewFittedEngineer(broken, eng.Scaler(), eng.FeatureNames()); err == nil {
		t.Error("missing encoder accepted")
	}
}

func TestLabels(t *testing.T) {
	txs := sample()
	txs[1].IsLaundering = true
	y := Labels(txs)
	if y[0] != 0 || y[1] != 1 || y[2] != 0 {
		t.Fatalf("labels = %v, want [0 1 0]", y)
	}
}

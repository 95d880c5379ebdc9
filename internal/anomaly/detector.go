// Package anomaly runs the transaction anomaly ensemble: a density
// detector over a standardized per-run feature matrix, combined with
// fixed statistical rules on amount and time of day.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/ml"
)

// Config holds the detector thresholds.
type Config struct {
	// Contamination is the expected outlier fraction for the density
	// detector.
	Contamination float64

	// ZScoreThreshold flags amounts with |z| above it.
	ZScoreThreshold float64

	// EarlyHourMins / LateHourMins bound the normal-hours window in
	// minutes since midnight. Transactions strictly before the early
	// bound or strictly after the late bound are flagged.
	EarlyHourMins int
	LateHourMins  int

	// Seed drives the density detector's sampling.
	Seed int64
}

// DefaultConfig mirrors domain.DefaultAnalysisConfig for standalone use.
func DefaultConfig() Config {
	return Config{
		Contamination:   0.1,
		ZScoreThreshold: 3,
		EarlyHourMins:   300,
		LateHourMins:    1320,
		Seed:            42,
	}
}

// Detector scores a dataset in one pass. Encoders and scaler are fit
// fresh on each call, so results depend only on the presented dataset.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a detector.
func New(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Detect returns one record per transaction, in input order.
func (d *Detector) Detect(txs []*domain.Transaction) ([]*domain.AnomalyRecord, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("anomaly: empty dataset")
	}

	matrix := d.featureMatrix(txs)

	forest := ml.NewIsolationForest(d.cfg.Contamination, d.cfg.Seed)
	if err := forest.Fit(matrix, nil); err != nil {
		return nil, fmt.Errorf("anomaly: fit density detector: %w", err)
	}
	isoFlags := forest.Predict(matrix)
	isoScores := forest.ScoreSamples(matrix)

	zScores := amountZScores(txs)

	records := make([]*domain.AnomalyRecord, len(txs))
	var isoCount, statCount, composite int
	for i, tx := range txs {
		rec := &domain.AnomalyRecord{
			TxID:            tx.ID,
			SenderAccount:   tx.SenderAccount,
			ReceiverAccount: tx.ReceiverAccount,
			Amount:          tx.Amount,
			IsolationFlag:   isoFlags[i] == 1,
			IsolationScore:  isoScores[i],
			AmountZScore:    zScores[i],
			IsLaundering:    tx.IsLaundering,
		}

		mins := tx.MinutesSinceMidnight()
		rec.StatisticalFlag = zScores[i] > d.cfg.ZScoreThreshold ||
			mins < d.cfg.EarlyHourMins || mins > d.cfg.LateHourMins

		rec.CompositeFlag = rec.IsolationFlag || rec.StatisticalFlag
		rec.RiskScore = compositeScore(rec)

		if rec.IsolationFlag {
			isoCount++
		}
		if rec.StatisticalFlag {
			statCount++
		}
		if rec.CompositeFlag {
			composite++
		}
		records[i] = rec
	}

	d.logger.Info("anomaly detection complete",
		"transactions", len(txs),
		"isolation", isoCount,
		"statistical", statCount,
		"composite", composite,
	)
	return records, nil
}

// compositeScore combines the ensemble into a [0, 100] score.
func compositeScore(rec *domain.AnomalyRecord) float64 {
	var score float64
	if rec.IsolationFlag {
		score += 50
	}
	if rec.StatisticalFlag {
		score += 30
	}
	// IsolationScore is negative; more negative means more anomalous.
	margin := -rec.IsolationScore * 100
	if margin < 0 {
		margin = 0
	} else if margin > 20 {
		margin = 20
	}
	return score + margin
}

// featureMatrix builds the standardized per-run matrix: amount, minutes
// since midnight, three encoded categoricals, and two binary indicators.
func (d *Detector) featureMatrix(txs []*domain.Transaction) [][]float64 {
	paymentTypes := fitEncoder(txs, func(tx *domain.Transaction) string { return tx.PaymentType })
	senderLocs := fitEncoder(txs, func(tx *domain.Transaction) string { return tx.SenderLocation })
	receiverLocs := fitEncoder(txs, func(tx *domain.Transaction) string { return tx.ReceiverLocation })

	raw := make([][]float64, len(txs))
	for i, tx := range txs {
		var crossBorder, mismatch float64
		if tx.IsCrossBorder() {
			crossBorder = 1
		}
		if tx.IsCurrencyMismatch() {
			mismatch = 1
		}
		raw[i] = []float64{
			tx.Amount,
			float64(tx.MinutesSinceMidnight()),
			float64(paymentTypes.Transform(tx.PaymentType)),
			float64(senderLocs.Transform(tx.SenderLocation)),
			float64(receiverLocs.Transform(tx.ReceiverLocation)),
			crossBorder,
			mismatch,
		}
	}

	scaler := fitScaler(raw)
	for i := range raw {
		raw[i] = scaler.Transform(raw[i])
	}
	return raw
}

func fitEncoder(txs []*domain.Transaction, field func(*domain.Transaction) string) *domain.LabelEncoder {
	seen := map[string]bool{}
	for _, tx := range txs {
		seen[field(tx)] = true
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return &domain.LabelEncoder{Classes: classes}
}

func fitScaler(rows [][]float64) *domain.Scaler {
	nFeatures := len(rows[0])
	scaler := &domain.Scaler{
		Means: make([]float64, nFeatures),
		Stds:  make([]float64, nFeatures),
	}
	col := make([]float64, len(rows))
	for j := 0; j < nFeatures; j++ {
		for i := range rows {
			col[i] = rows[i][j]
		}
		scaler.Means[j] = stat.Mean(col, nil)
		scaler.Stds[j] = math.Sqrt(stat.PopVariance(col, nil))
	}
	return scaler
}

// amountZScores uses the dataset mean and sample standard deviation.
func amountZScores(txs []*domain.Transaction) []float64 {
	amounts := make([]float64, len(txs))
	for i, tx := range txs {
		amounts[i] = tx.Amount
	}
	mean := stat.Mean(amounts, nil)
	std := stat.StdDev(amounts, nil)

	z := make([]float64, len(txs))
	if std == 0 || math.IsNaN(std) {
		return z
	}
	for i, a := range amounts {
		z[i] = math.Abs((a - mean) / std)
	}
	return z
}

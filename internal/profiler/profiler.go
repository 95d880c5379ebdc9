// Package profiler builds per-account behavioral profiles and risk
// classifications from a transaction dataset.
package profiler

import (
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Profiler computes one profile per account appearing as sender or
// receiver in the dataset. Output is deterministic: profiles are sorted
// by account.
type Profiler struct {
	highRisk map[string]bool
	logger   *slog.Logger
}

// New creates a profiler flagging the given locations as high risk.
func New(highRiskLocations []string, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	hr := make(map[string]bool, len(highRiskLocations))
	for _, loc := range highRiskLocations {
		hr[loc] = true
	}
	return &Profiler{highRisk: hr, logger: logger}
}

// Profile builds profiles for every account in the dataset.
func (p *Profiler) Profile(txs []*domain.Transaction) ([]*domain.CustomerProfile, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("profiler: empty dataset")
	}

	accounts := map[string]bool{}
	for _, tx := range txs {
		accounts[tx.SenderAccount] = true
		accounts[tx.ReceiverAccount] = true
	}

	names := make([]string, 0, len(accounts))
	for a := range accounts {
		names = append(names, a)
	}
	sort.Strings(names)

	profiles := make([]*domain.CustomerProfile, 0, len(names))
	var high int
	for _, account := range names {
		prof := p.build(account, txs)
		if prof.RiskClassification == domain.RiskHigh {
			high++
		}
		profiles = append(profiles, prof)
	}

	p.logger.Info("customer profiling complete",
		"accounts", len(profiles),
		"high_risk", high,
	)
	return profiles, nil
}

// build aggregates one account's activity. A transaction where the
// account is both sender and receiver contributes to both sides.
func (p *Profiler) build(account string, txs []*domain.Transaction) *domain.CustomerProfile {
	prof := &domain.CustomerProfile{Account: account}

	var amounts []float64
	currencies := map[string]bool{}
	paymentTypes := map[string]bool{}
	counterparties := map[string]bool{}
	perDay := map[string]int{}

	record := func(tx *domain.Transaction) {
		prof.TotalTransactions++
		prof.TotalVolume += tx.Amount
		amounts = append(amounts, tx.Amount)
		currencies[tx.PaymentCurrency] = true
		paymentTypes[tx.PaymentType] = true
		perDay[tx.DateKey()]++
		if tx.IsLaundering {
			prof.SuspiciousTransactions++
		}
		if tx.IsCrossBorder() {
			prof.CrossBorderCount++
		}
		if p.highRisk[tx.SenderLocation] || p.highRisk[tx.ReceiverLocation] {
			prof.HighRiskLocations++
		}
		if tx.IsStructuringAmount() {
			prof.StructuringIndicators++
		}
	}

	for _, tx := range txs {
		if tx.SenderAccount == account {
			prof.SentTransactions++
			prof.SentVolume += tx.Amount
			counterparties[tx.ReceiverAccount] = true
			record(tx)
		}
		if tx.ReceiverAccount == account {
			prof.ReceivedTransactions++
			prof.ReceivedVolume += tx.Amount
			counterparties[tx.SenderAccount] = true
			record(tx)
		}
	}

	if len(amounts) > 0 {
		prof.AvgTransaction = floats.Sum(amounts) / float64(len(amounts))
		prof.MaxTransaction = floats.Max(amounts)
		prof.MinTransaction = floats.Min(amounts)
	}
	if prof.TotalTransactions >= 2 {
		var busiest int
		for _, n := range perDay {
			if n > busiest {
				busiest = n
			}
		}
		prof.RapidTransactions = busiest - 1
	}
	prof.CurrenciesUsed = len(currencies)
	prof.PaymentTypesUsed = len(paymentTypes)
	prof.UniqueCounterparties = len(counterparties)

	prof.RiskScore = p.score(prof)
	prof.RiskClassification = domain.ClassifyRiskScore(prof.RiskScore)
	return prof
}

// score computes the [0, 100] heuristic risk score.
func (p *Profiler) score(prof *domain.CustomerProfile) float64 {
	total := float64(prof.TotalTransactions)
	if total < 1 {
		total = 1
	}

	score := float64(prof.SuspiciousTransactions) / total * 30

	switch {
	case prof.AvgTransaction > 50000:
		score += 20
	case prof.AvgTransaction > 20000:
		score += 10
	}

	score += float64(prof.CrossBorderCount) / total * 20
	score += min(float64(prof.HighRiskLocations)*5, 15)
	score += min(float64(prof.StructuringIndicators)*10, 15)

	return min(score, 100)
}

// Benchmark tool for testing Harrier against labeled AML data.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -count 5000
//   go run cmd/benchmark/main.go -csv /path/to/saml.csv -url http://localhost:8080
//
// This tool:
//  1. Reads labeled transactions from a SAML-D style CSV, or generates a
//     synthetic dataset with planted laundering patterns
//  2. Ingests the dataset into Harrier in batches
//  3. Triggers a full analysis run
//  4. Compares composite anomaly flags with the actual laundering labels
//  5. Calculates precision, recall, F1-score, and a confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Record matches Harrier's ingest payload for a single transaction.
type Record struct {
	ID               string  `json:"id,omitempty"`
	Date             string  `json:"date"`
	Time             string  `json:"time"`
	SenderAccount    string  `json:"senderAccount"`
	ReceiverAccount  string  `json:"receiverAccount"`
	Amount           float64 `json:"amount"`
	PaymentCurrency  string  `json:"paymentCurrency"`
	ReceivedCurrency string  `json:"receivedCurrency"`
	SenderLocation   string  `json:"senderLocation"`
	ReceiverLocation string  `json:"receiverLocation"`
	PaymentType      string  `json:"paymentType"`
	IsLaundering     bool    `json:"isLaundering,omitempty"`
	LaunderingType   string  `json:"launderingType,omitempty"`
}

// IngestRequest is the Harrier ingest API request format.
type IngestRequest struct {
	Transactions []Record `json:"transactions"`
	Source       string   `json:"source,omitempty"`
}

// RunSummary is the analysis run returned by POST /analyze.
type RunSummary struct {
	ID               string  `json:"id"`
	TransactionCount int     `json:"transactionCount"`
	ProfileCount     int     `json:"profileCount"`
	AnomalyCount     int     `json:"anomalyCount"`
	AlertCount       int     `json:"alertCount"`
	SelectedModel    string  `json:"selectedModel"`
	SelectedF1       float64 `json:"selectedF1"`
	ModelLoaded      bool    `json:"modelLoaded"`
}

// AnomalyRecord mirrors the anomaly fields the benchmark scores against.
type AnomalyRecord struct {
	TxID          string  `json:"txId"`
	CompositeFlag bool    `json:"compositeFlag"`
	RiskScore     float64 `json:"riskScore"`
	IsLaundering  bool    `json:"isLaundering"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int // laundering flagged as anomalous
	FalsePositives int // clean flagged as anomalous
	TrueNegatives  int // clean not flagged
	FalseNegatives int // laundering not flagged (missed!)

	TotalScored     int
	TotalLaundering int
	TotalClean      int
}

func main() {
	csvPath := flag.String("csv", "", "Path to a SAML-D style CSV (optional; synthetic data if empty)")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	count := flag.Int("count", 5000, "Synthetic transactions to generate")
	launderingRate := flag.Float64("laundering-rate", 0.05, "Fraction of synthetic laundering transactions")
	batchSize := flag.Int("batch", 500, "Ingest batch size")
	limit := flag.Int("limit", 50000, "Maximum CSV transactions to load (0 = all)")
	seed := flag.Int64("seed", 42, "Synthetic data random seed")
	verbose := flag.Bool("verbose", false, "Print each flagged transaction")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║        HARRIER BENCHMARK - Anomaly Detection Accuracy         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	if *csvPath != "" {
		fmt.Printf("CSV File:    %s\n", *csvPath)
	} else {
		fmt.Printf("Synthetic:   %d transactions, %.1f%% laundering, seed %d\n",
			*count, *launderingRate*100, *seed)
	}
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Load or generate the dataset
	var records []Record
	var err error
	if *csvPath != "" {
		fmt.Printf("\nReading transactions from %s...\n", *csvPath)
		records, err = readCSV(*csvPath, *limit)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		records = generate(*count, *launderingRate, *seed)
	}

	launderingCount := 0
	for _, r := range records {
		if r.IsLaundering {
			launderingCount++
		}
	}
	fmt.Printf("✓ Loaded %d transactions\n", len(records))
	fmt.Printf("  - Laundering: %d (%.2f%%)\n", launderingCount,
		100*float64(launderingCount)/float64(len(records)))
	fmt.Printf("  - Clean:      %d\n", len(records)-launderingCount)

	client := &http.Client{Timeout: 10 * time.Minute}

	// Ingest in batches
	fmt.Printf("\nIngesting in batches of %d...\n", *batchSize)
	ingestStart := time.Now()
	for i := 0; i < len(records); i += *batchSize {
		end := i + *batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ingest(client, *baseURL, records[i:end]); err != nil {
			fmt.Printf("ERROR: Ingest failed at batch %d: %v\n", i / *batchSize, err)
			os.Exit(1)
		}
	}
	ingestDuration := time.Since(ingestStart)
	fmt.Printf("✓ Ingested %d transactions in %v (%.0f tx/sec)\n",
		len(records), ingestDuration.Round(time.Millisecond),
		float64(len(records))/ingestDuration.Seconds())

	// Run the analysis
	fmt.Println("\nRunning analysis...")
	analysisStart := time.Now()
	run, err := analyze(client, *baseURL)
	if err != nil {
		fmt.Printf("ERROR: Analysis failed: %v\n", err)
		os.Exit(1)
	}
	analysisDuration := time.Since(analysisStart)

	fmt.Printf("✓ Analysis complete in %v\n", analysisDuration.Round(time.Millisecond))
	fmt.Printf("  Run ID:    %s\n", run.ID)
	fmt.Printf("  Profiles:  %d\n", run.ProfileCount)
	fmt.Printf("  Anomalies: %d\n", run.AnomalyCount)
	fmt.Printf("  Alerts:    %d\n", run.AlertCount)
	if run.SelectedModel != "" {
		reused := ""
		if run.ModelLoaded {
			reused = " (persisted model reused)"
		}
		fmt.Printf("  Model:     %s (F1 %.4f)%s\n", run.SelectedModel, run.SelectedF1, reused)
	}

	// Score composite flags against labels
	anomalies, err := fetchAnomalies(client, *baseURL, run.ID)
	if err != nil {
		fmt.Printf("ERROR: Failed to fetch anomalies: %v\n", err)
		os.Exit(1)
	}

	metrics := score(anomalies, *verbose)
	printResults(metrics, ingestDuration, analysisDuration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// locations weighted towards ordinary corridors, with the high-risk pair
// appearing in laundering flows.
var (
	locations  = []string{"US-NYC", "UK-LON", "DE-FRA", "SG-SIN", "JP-TYO"}
	currencies = []string{"USD", "GBP", "EUR", "SGD", "JPY"}
	payTypes   = []string{"card", "wire", "ach", "cheque"}
)

// generate builds a synthetic labeled dataset: ordinary daytime domestic
// traffic plus planted night-time cross-border structuring flows.
func generate(count int, launderingRate float64, seed int64) []Record {
	rng := rand.New(rand.NewSource(seed))
	records := make([]Record, 0, count)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	launderingCount := int(float64(count) * launderingRate)
	cleanCount := count - launderingCount

	for i := 0; i < cleanCount; i++ {
		loc := rng.Intn(len(locations))
		ts := day.AddDate(0, 0, rng.Intn(28)).
			Add(time.Duration(8+rng.Intn(11)) * time.Hour).
			Add(time.Duration(rng.Intn(60)) * time.Minute)
		records = append(records, Record{
			ID:               fmt.Sprintf("bench-ok-%06d", i),
			Date:             ts.Format("2006-01-02"),
			Time:             ts.Format("15:04:05"),
			SenderAccount:    fmt.Sprintf("acc-%04d", rng.Intn(500)),
			ReceiverAccount:  fmt.Sprintf("acc-%04d", rng.Intn(500)),
			Amount:           50 + rng.Float64()*2500,
			PaymentCurrency:  currencies[loc],
			ReceivedCurrency: currencies[loc],
			SenderLocation:   locations[loc],
			ReceiverLocation: locations[loc],
			PaymentType:      payTypes[rng.Intn(len(payTypes))],
		})
	}

	for i := 0; i < launderingCount; i++ {
		// Night-time structuring wires into a high-risk corridor.
		ts := day.AddDate(0, 0, rng.Intn(28)).
			Add(time.Duration(1+rng.Intn(3)) * time.Hour).
			Add(time.Duration(rng.Intn(60)) * time.Minute)
		records = append(records, Record{
			ID:               fmt.Sprintf("bench-ml-%06d", i),
			Date:             ts.Format("2006-01-02"),
			Time:             ts.Format("15:04:05"),
			SenderAccount:    fmt.Sprintf("mule-%03d", rng.Intn(20)),
			ReceiverAccount:  fmt.Sprintf("acc-%04d", rng.Intn(500)),
			Amount:           9000 + rng.Float64()*999,
			PaymentCurrency:  "USD",
			ReceivedCurrency: "AED",
			SenderLocation:   "US-NYC",
			ReceiverLocation: "AE-DXB",
			PaymentType:      "wire",
			IsLaundering:     true,
			LaunderingType:   "structuring",
		})
	}

	rng.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
	return records
}

// readCSV loads a SAML-D style export: Time, Date, Sender_account,
// Receiver_account, Amount, Payment_currency, Received_currency,
// Sender_bank_location, Receiver_bank_location, Payment_type,
// Is_laundering, Laundering_type.
func readCSV(path string, limit int) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var records []Record
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}
		row++

		amount, _ := strconv.ParseFloat(record[colIndex["amount"]], 64)

		records = append(records, Record{
			ID:               fmt.Sprintf("csv-%06d", row),
			Date:             record[colIndex["date"]],
			Time:             record[colIndex["time"]],
			SenderAccount:    record[colIndex["sender_account"]],
			ReceiverAccount:  record[colIndex["receiver_account"]],
			Amount:           amount,
			PaymentCurrency:  record[colIndex["payment_currency"]],
			ReceivedCurrency: record[colIndex["received_currency"]],
			SenderLocation:   record[colIndex["sender_bank_location"]],
			ReceiverLocation: record[colIndex["receiver_bank_location"]],
			PaymentType:      record[colIndex["payment_type"]],
			IsLaundering:     record[colIndex["is_laundering"]] == "1",
			LaunderingType:   record[colIndex["laundering_type"]],
		})

		if limit > 0 && len(records) >= limit {
			break
		}
	}

	return records, nil
}

func ingest(client *http.Client, baseURL string, batch []Record) error {
	body, err := json.Marshal(IngestRequest{Transactions: batch, Source: "benchmark"})
	if err != nil {
		return err
	}

	resp, err := client.Post(baseURL+"/transactions", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return nil
}

func analyze(client *http.Client, baseURL string) (*RunSummary, error) {
	resp, err := client.Post(baseURL+"/analyze", "application/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}

	var result struct {
		Run *RunSummary `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Run == nil {
		return nil, fmt.Errorf("no run summary in response")
	}
	return result.Run, nil
}

func fetchAnomalies(client *http.Client, baseURL, runID string) ([]AnomalyRecord, error) {
	resp, err := client.Get(baseURL + "/runs/" + runID + "/anomalies")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result struct {
		Anomalies []AnomalyRecord `json:"anomalies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Anomalies, nil
}

func score(anomalies []AnomalyRecord, verbose bool) *Metrics {
	m := &Metrics{}

	for _, rec := range anomalies {
		m.TotalScored++
		if rec.IsLaundering {
			m.TotalLaundering++
		} else {
			m.TotalClean++
		}

		switch {
		case rec.CompositeFlag && rec.IsLaundering:
			m.TruePositives++
		case rec.CompositeFlag && !rec.IsLaundering:
			m.FalsePositives++
		case !rec.CompositeFlag && !rec.IsLaundering:
			m.TrueNegatives++
		default:
			m.FalseNegatives++
		}

		if verbose && rec.CompositeFlag {
			marker := "✓"
			if !rec.IsLaundering {
				marker = "✗"
			}
			fmt.Printf("%s %-20s | Score: %6.2f | Laundering: %v\n",
				marker, rec.TxID, rec.RiskScore, rec.IsLaundering)
		}
	}

	return m
}

func printResults(m *Metrics, ingestDuration, analysisDuration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Scored:     %d\n", m.TotalScored)
	fmt.Printf("   Laundering:       %d\n", m.TotalLaundering)
	fmt.Printf("   Clean:            %d\n", m.TotalClean)

	fmt.Printf("\n📈 CONFUSION MATRIX (composite anomaly flag)\n")
	fmt.Println("                        Predicted")
	fmt.Println("                  Flagged     Unflagged")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  L  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of flagged, how many were laundering)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of laundering, how many were flagged)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalLaundering > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalLaundering) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalLaundering) * 100
		fmt.Printf("   Laundering Caught: %d / %d (%.2f%%)\n", m.TruePositives, m.TotalLaundering, detectionRate)
		fmt.Printf("   Laundering Missed: %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalLaundering, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Ingest:     %v\n", ingestDuration.Round(time.Millisecond))
	fmt.Printf("   Analysis:   %v\n", analysisDuration.Round(time.Millisecond))
	if m.TotalScored > 0 && analysisDuration > 0 {
		tps := float64(m.TotalScored) / analysisDuration.Seconds()
		fmt.Printf("   Throughput: %.2f tx/sec analyzed\n", tps)
	}

	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most laundering")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some laundering")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant laundering being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most laundering is being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - flags are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/modelstore"
	"github.com/opensource-finance/harrier/internal/predictor"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
)

func newTestPipeline(t *testing.T, eventBus domain.EventBus) (*analysis.Pipeline, domain.Repository) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	tmpFile, err := os.CreateTemp("", "worker-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	cfg := domain.DefaultAnalysisConfig()
	cfg.ModelDir = t.TempDir()
	cfg.TrainOnRun = false // keep async runs fast

	store, err := modelstore.New(cfg.ModelDir, modelstore.ModePackage, logger)
	if err != nil {
		t.Fatalf("failed to create model store: %v", err)
	}

	engine, err := rules.NewEngine(func(ctx context.Context, account string, windowSecs int) (int64, error) {
		return 0, nil
	}, 4)
	if err != nil {
		t.Fatalf("failed to create rule engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	if err := engine.LoadRules(rules.BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}

	scenarioEngine := rules.NewScenarioEngine()
	scenarioEngine.LoadScenarios(rules.BuiltinScenarios())

	pipeline := analysis.New(cfg, analysis.Deps{
		Repo:           repo,
		Cache:          cache.NewLRUCache(100),
		Bus:            eventBus,
		Store:          store,
		Predictor:      predictor.New(logger),
		RuleEngine:     engine,
		ScenarioEngine: scenarioEngine,
		Logger:         logger,
	})

	return pipeline, repo
}

func seedTransactions(t *testing.T, repo domain.Repository, n int) {
	t.Helper()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	txs := make([]*domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		txs = append(txs, &domain.Transaction{
			ID:               fmt.Sprintf("tx-%03d", i),
			SenderAccount:    fmt.Sprintf("acc-%02d", i%5),
			ReceiverAccount:  fmt.Sprintf("acc-%02d", (i+1)%5),
			Amount:           150 + float64(i%20)*25,
			PaymentCurrency:  "USD",
			ReceivedCurrency: "USD",
			SenderLocation:   "US-NYC",
			ReceiverLocation: "US-NYC",
			PaymentType:      "card",
			Timestamp:        day.Add(time.Duration(9+i%8) * time.Hour),
		})
	}
	if err := repo.SaveTransactions(context.Background(), txs); err != nil {
		t.Fatalf("failed to seed transactions: %v", err)
	}
}

func TestWorker(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("StartAndStop", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		pipeline, _ := newTestPipeline(t, eventBus)
		w := NewWorker(eventBus, pipeline, logger)

		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}
		if len(stats.Topics) != 1 || stats.Topics[0] != domain.TopicDatasetIngested {
			t.Errorf("expected subscription to %s, got %v", domain.TopicDatasetIngested, stats.Topics)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("IngestionTriggersAnalysis", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		pipeline, repo := newTestPipeline(t, eventBus)
		seedTransactions(t, repo, 30)

		w := NewWorker(eventBus, pipeline, logger)
		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		var completeReceived atomic.Bool
		var completePayload atomic.Pointer[[]byte]

		eventBus.Subscribe(context.Background(), domain.TopicAnalysisComplete, func(ctx context.Context, msg *domain.Message) error {
			payload := msg.Payload
			completePayload.Store(&payload)
			completeReceived.Store(true)
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(IngestedMessage{Count: 30, Source: "test"})
		if err := eventBus.Publish(context.Background(), domain.TopicDatasetIngested, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		deadline := time.Now().Add(10 * time.Second)
		for !completeReceived.Load() && time.Now().Before(deadline) {
			time.Sleep(25 * time.Millisecond)
		}
		if !completeReceived.Load() {
			t.Fatal("expected analysis-complete message after ingestion event")
		}

		if p := completePayload.Load(); p != nil {
			var run domain.AnalysisRun
			if err := json.Unmarshal(*p, &run); err != nil {
				t.Fatalf("failed to parse run summary: %v", err)
			}
			if run.ID == "" {
				t.Error("expected run ID in completion message")
			}
			if run.TransactionCount != 30 {
				t.Errorf("expected 30 transactions in run, got %d", run.TransactionCount)
			}
		}

		// The run should be queryable afterwards.
		if _, err := repo.LatestRun(context.Background()); err != nil {
			t.Errorf("LatestRun after async analysis failed: %v", err)
		}
	})

	t.Run("EmptyDatasetSkipped", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		pipeline, repo := newTestPipeline(t, eventBus)

		w := NewWorker(eventBus, pipeline, logger)
		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		payload, _ := json.Marshal(IngestedMessage{Count: 0})
		eventBus.Publish(context.Background(), domain.TopicDatasetIngested, payload)

		time.Sleep(200 * time.Millisecond)

		if _, err := repo.LatestRun(context.Background()); err == nil {
			t.Error("expected no run for empty dataset")
		}
	})

	t.Run("MalformedMessage", func(t *testing.T) {
		eventBus := bus.NewChannelBus(100)
		defer eventBus.Close()

		pipeline, _ := newTestPipeline(t, eventBus)

		w := NewWorker(eventBus, pipeline, logger)
		if err := w.Start(); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		time.Sleep(50 * time.Millisecond)

		eventBus.Publish(context.Background(), domain.TopicDatasetIngested, []byte("{not json"))

		time.Sleep(100 * time.Millisecond)

		// Worker survives and stays subscribed.
		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected worker to remain subscribed, got %d subscriptions", stats.SubscriptionCount)
		}
	})
}

func TestIngestedMessageParsing(t *testing.T) {
	msg := IngestedMessage{Count: 42, Source: "csv-upload"}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed IngestedMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.Count != msg.Count {
		t.Errorf("expected Count %d, got %d", msg.Count, parsed.Count)
	}
	if parsed.Source != msg.Source {
		t.Errorf("expected Source '%s', got '%s'", msg.Source, parsed.Source)
	}
}

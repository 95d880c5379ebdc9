// Harrier - Risk scoring and anomaly detection for financial transactions.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/modelstore"
	"github.com/opensource-finance/harrier/internal/predictor"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/velocity"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if dir := os.Getenv("HARRIER_MODEL_DIR"); dir != "" {
		cfg.Analysis.ModelDir = dir
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model_dir", cfg.Analysis.ModelDir,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Velocity Service
	velocitySvc := velocity.NewService(repo, cacheImpl)
	slog.Info("velocity service initialized")

	// Initialize Rule Engine with velocity getter
	engine, err := rules.NewEngine(velocitySvc.GetVelocityGetter(), 100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := loadRules(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize Scenario Engine
	scenarioEngine := rules.NewScenarioEngine()
	if err := loadScenarios(ctx, repo, scenarioEngine); err != nil {
		slog.Error("failed to load scenarios", "error", err)
		os.Exit(1)
	}
	slog.Info("scenario engine initialized", "scenario_count", scenarioEngine.ScenarioCount())

	// Initialize Model Store and Predictor
	store, err := modelstore.New(cfg.Analysis.ModelDir, modelstore.ModePackage, logger)
	if err != nil {
		slog.Error("failed to initialize model store", "error", err)
		os.Exit(1)
	}

	pred := predictor.New(logger)
	if store.Exists() {
		pkg, err := store.Load()
		if err != nil {
			slog.Warn("saved model could not be loaded, starting without one", "error", err)
		} else if err := pred.Swap(pkg); err != nil {
			slog.Warn("saved model could not be activated", "error", err)
		} else {
			slog.Info("persisted model loaded", "model", pkg.ModelName)
		}
	}

	// Initialize Analysis Pipeline
	pipeline := analysis.New(cfg.Analysis, analysis.Deps{
		Repo:           repo,
		Cache:          cacheImpl,
		Bus:            busImpl,
		Store:          store,
		Predictor:      pred,
		RuleEngine:     engine,
		ScenarioEngine: scenarioEngine,
		Logger:         logger,
	})

	// Initialize async Worker: analyses triggered by ingestion events.
	var asyncWorker *worker.Worker
	if os.Getenv("HARRIER_ASYNC_WORKER") != "false" {
		asyncWorker = worker.NewWorker(busImpl, pipeline, logger)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:           repo,
		Cache:          cacheImpl,
		Bus:            busImpl,
		Pipeline:       pipeline,
		Predictor:      pred,
		Store:          store,
		RuleEngine:     engine,
		ScenarioEngine: scenarioEngine,
	}, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

// loadRules loads screening rules from the database into the engine,
// seeding the builtin set on first startup.
func loadRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return engine.LoadRules(rules.BuiltinRules())
	}

	if len(dbRules) == 0 {
		slog.Info("seeding builtin rules", "count", len(rules.BuiltinRules()))
		for _, rule := range rules.BuiltinRules() {
			if err := repo.SaveRuleConfig(ctx, rule); err != nil {
				slog.Warn("failed to seed rule", "id", rule.ID, "error", err)
			}
		}
		return engine.LoadRules(rules.BuiltinRules())
	}

	slog.Info("loading rules from database", "count", len(dbRules))
	return engine.LoadRules(dbRules)
}

// loadScenarios loads scenarios from the database into the engine,
// seeding the builtin set on first startup.
func loadScenarios(ctx context.Context, repo domain.Repository, engine *rules.ScenarioEngine) error {
	dbScenarios, err := repo.ListScenarios(ctx)
	if err != nil {
		slog.Warn("failed to list scenarios from database", "error", err)
		engine.LoadScenarios(rules.BuiltinScenarios())
		return nil
	}

	if len(dbScenarios) == 0 {
		slog.Info("seeding builtin scenarios", "count", len(rules.BuiltinScenarios()))
		for _, scenario := range rules.BuiltinScenarios() {
			if err := repo.SaveScenario(ctx, scenario); err != nil {
				slog.Warn("failed to seed scenario", "id", scenario.ID, "error", err)
			}
		}
		engine.LoadScenarios(rules.BuiltinScenarios())
		return nil
	}

	slog.Info("loading scenarios from database", "count", len(dbScenarios))
	engine.LoadScenarios(dbScenarios)
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 HARRIER                  ║")
	fmt.Println("  ║   Risk Scoring & Anomaly Detection        ║")
	fmt.Println("  ║     Low and slow over every ledger.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /transactions        - Ingest a transaction batch")
	fmt.Println("    POST /analyze             - Run the full analysis pipeline")
	fmt.Println("    GET  /runs/latest         - Latest analysis run summary")
	fmt.Println("    GET  /runs/{id}/profiles  - Customer profiles for a run")
	fmt.Println("    GET  /runs/{id}/anomalies - Anomaly records for a run")
	fmt.Println("    POST /predict             - Score a transaction")
	fmt.Println("    GET  /models              - List persisted model artifacts")
	fmt.Println("    POST /models/reload       - Reload the saved model")
	fmt.Println("    GET  /rules               - List screening rules")
	fmt.Println("    POST /rules/reload        - Hot-reload rules from database")
	fmt.Println("    GET  /scenarios           - List scenarios")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println("    GET  /metrics             - Prometheus metrics")
	fmt.Println()
}

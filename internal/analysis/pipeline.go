// Package analysis orchestrates the batch analysis pipeline: customer
// profiling, anomaly detection, model training or loading, and rule
// screening over a materialized transaction dataset.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/harrier/internal/anomaly"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/modelstore"
	"github.com/opensource-finance/harrier/internal/predictor"
	"github.com/opensource-finance/harrier/internal/profiler"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/training"
)

// ErrEmptyDataset is returned when an analysis is requested with no
// transactions ingested.
var ErrEmptyDataset = errors.New("no transactions to analyze")

var tracer = otel.Tracer("harrier-analysis")

// Velocity window used when deriving rule inputs, in seconds.
const screeningVelocityWindow = 3600

// Profile cache TTL.
const profileTTL = 30 * time.Minute

// Deps bundles the pipeline's collaborators.
type Deps struct {
	Repo           domain.Repository
	Cache          domain.Cache
	Bus            domain.EventBus
	Store          *modelstore.Store
	Predictor      *predictor.Predictor
	RuleEngine     *rules.Engine
	ScenarioEngine *rules.ScenarioEngine
	Logger         *slog.Logger
}

// Result is the outcome of one full analysis run.
type Result struct {
	Run       *domain.AnalysisRun       `json:"run"`
	Profiles  []*domain.CustomerProfile `json:"profiles"`
	Anomalies []*domain.AnomalyRecord   `json:"anomalies"`
	Triggered []domain.ScenarioResult   `json:"triggeredScenarios"`
}

// Pipeline runs the analysis stages in order.
type Pipeline struct {
	cfg      domain.AnalysisConfig
	deps     Deps
	profiler *profiler.Profiler
	detector *anomaly.Detector
	trainer  *training.Trainer
	logger   *slog.Logger
}

// New creates an analysis pipeline.
func New(cfg domain.AnalysisConfig, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	detectorCfg := anomaly.DefaultConfig()
	if cfg.Contamination > 0 {
		detectorCfg.Contamination = cfg.Contamination
	}
	if cfg.ZScoreThreshold > 0 {
		detectorCfg.ZScoreThreshold = cfg.ZScoreThreshold
	}
	if cfg.EarlyHourMins > 0 {
		detectorCfg.EarlyHourMins = cfg.EarlyHourMins
	}
	if cfg.LateHourMins > 0 {
		detectorCfg.LateHourMins = cfg.LateHourMins
	}
	if cfg.RandomSeed != 0 {
		detectorCfg.Seed = cfg.RandomSeed
	}

	trainerCfg := training.DefaultConfig()
	if cfg.TestSize > 0 {
		trainerCfg.TestSize = cfg.TestSize
	}
	if cfg.RandomSeed != 0 {
		trainerCfg.Seed = cfg.RandomSeed
	}
	if cfg.CVFolds > 0 {
		trainerCfg.CVFolds = cfg.CVFolds
	}

	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		profiler: profiler.New(cfg.HighRiskLocations, logger),
		detector: anomaly.New(detectorCfg, logger),
		trainer:  training.New(trainerCfg, logger),
		logger:   logger,
	}
}

// Run loads the ingested dataset from the repository and analyzes it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	txs, err := p.deps.Repo.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return p.RunDataset(ctx, txs)
}

// RunDataset analyzes the given transaction set.
func (p *Pipeline) RunDataset(ctx context.Context, txs []*domain.Transaction) (*Result, error) {
	if len(txs) == 0 {
		return nil, ErrEmptyDataset
	}

	ctx, span := tracer.Start(ctx, "analysis.run")
	defer span.End()

	run := &domain.AnalysisRun{
		ID:               uuid.New().String(),
		StartedAt:        time.Now().UTC(),
		TransactionCount: len(txs),
	}
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("run.transactions", len(txs)),
	)

	p.logger.Info("analysis run started",
		"run_id", run.ID,
		"transactions", len(txs),
	)
	p.publish(ctx, domain.TopicAnalysisStarted, run)

	result := &Result{Run: run}
	alertCount := 0

	// Stage 1: customer profiling
	profiles, err := p.profileStage(ctx, run, txs, &alertCount)
	if err != nil {
		return nil, err
	}
	result.Profiles = profiles

	// Stage 2: anomaly detection
	anomalies, err := p.anomalyStage(ctx, run, txs, &alertCount)
	if err != nil {
		return nil, err
	}
	result.Anomalies = anomalies

	// Stage 3: risk model (load persisted or train)
	if err := p.modelStage(ctx, run, txs); err != nil {
		return nil, err
	}

	// Stage 4: rule screening
	triggered, err := p.screeningStage(ctx, run, txs, &alertCount)
	if err != nil {
		return nil, err
	}
	result.Triggered = triggered

	run.AlertCount = alertCount
	run.FinishedAt = time.Now().UTC()

	if err := p.deps.Repo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run summary: %w", err)
	}

	p.publish(ctx, domain.TopicAnalysisComplete, run)
	p.logger.Info("analysis run complete",
		"run_id", run.ID,
		"profiles", run.ProfileCount,
		"anomalies", run.AnomalyCount,
		"alerts", run.AlertCount,
		"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	)

	return result, nil
}

func (p *Pipeline) profileStage(ctx context.Context, run *domain.AnalysisRun, txs []*domain.Transaction, alertCount *int) ([]*domain.CustomerProfile, error) {
	ctx, span := tracer.Start(ctx, "analysis.profile")
	defer span.End()

	profiles, err := p.profiler.Profile(txs)
	if err != nil {
		return nil, fmt.Errorf("profiling failed: %w", err)
	}

	if err := p.deps.Repo.SaveProfiles(ctx, run.ID, profiles); err != nil {
		return nil, fmt.Errorf("failed to save profiles: %w", err)
	}

	for _, profile := range profiles {
		if p.deps.Cache != nil {
			_ = p.deps.Cache.SetProfile(ctx, profile, profileTTL)
		}
		if profile.RiskClassification == domain.RiskHigh {
			p.alert(ctx, &domain.Alert{
				Kind:      domain.AlertHighRiskAccount,
				Account:   profile.Account,
				RiskScore: profile.RiskScore,
				RunID:     run.ID,
			}, alertCount)
		}
	}

	run.ProfileCount = len(profiles)
	span.SetAttributes(attribute.Int("profiles", len(profiles)))
	return profiles, nil
}

func (p *Pipeline) anomalyStage(ctx context.Context, run *domain.AnalysisRun, txs []*domain.Transaction, alertCount *int) ([]*domain.AnomalyRecord, error) {
	ctx, span := tracer.Start(ctx, "analysis.anomalies")
	defer span.End()

	records, err := p.detector.Detect(txs)
	if err != nil {
		return nil, fmt.Errorf("anomaly detection failed: %w", err)
	}

	if err := p.deps.Repo.SaveAnomalies(ctx, run.ID, records); err != nil {
		return nil, fmt.Errorf("failed to save anomaly records: %w", err)
	}

	flagged := 0
	for _, rec := range records {
		if !rec.CompositeFlag {
			continue
		}
		flagged++
		p.alert(ctx, &domain.Alert{
			Kind:      domain.AlertAnomalousTx,
			TxID:      rec.TxID,
			Account:   rec.SenderAccount,
			RiskScore: rec.RiskScore,
			RunID:     run.ID,
		}, alertCount)
	}

	run.AnomalyCount = flagged
	span.SetAttributes(attribute.Int("anomalies", flagged))
	return records, nil
}

func (p *Pipeline) modelStage(ctx context.Context, run *domain.AnalysisRun, txs []*domain.Transaction) error {
	_, span := tracer.Start(ctx, "analysis.model")
	defer span.End()

	if p.deps.Predictor == nil {
		return nil
	}

	// Reuse a persisted model when one exists.
	if p.deps.Store != nil && p.deps.Store.Exists() {
		pkg, err := p.deps.Store.Load()
		if err != nil {
			return fmt.Errorf("failed to load persisted model: %w", err)
		}
		if err := p.deps.Predictor.Swap(pkg); err != nil {
			return fmt.Errorf("failed to activate persisted model: %w", err)
		}
		run.SelectedModel = pkg.ModelName
		if m, ok := pkg.Metrics[pkg.ModelName]; ok {
			run.SelectedF1 = m.F1Score
		}
		run.ModelLoaded = true
		span.SetAttributes(attribute.String("model", pkg.ModelName), attribute.Bool("loaded", true))
		return nil
	}

	if !p.cfg.TrainOnRun {
		return nil
	}

	trained, err := p.trainer.Train(txs)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	if err := p.deps.Predictor.Swap(trained.Package); err != nil {
		return fmt.Errorf("failed to activate trained model: %w", err)
	}

	run.SelectedModel = trained.SelectedName
	run.SelectedF1 = trained.Metrics[trained.SelectedName].F1Score

	if p.cfg.SaveOnTrain && p.deps.Store != nil {
		if err := p.deps.Store.Save(trained.Package); err != nil {
			return fmt.Errorf("failed to persist model package: %w", err)
		}
	}

	span.SetAttributes(attribute.String("model", trained.SelectedName), attribute.Bool("loaded", false))
	return nil
}

func (p *Pipeline) screeningStage(ctx context.Context, run *domain.AnalysisRun, txs []*domain.Transaction, alertCount *int) ([]domain.ScenarioResult, error) {
	ctx, span := tracer.Start(ctx, "analysis.screening")
	defer span.End()

	if p.deps.RuleEngine == nil || p.deps.RuleEngine.RulesCount() == 0 {
		return nil, nil
	}

	var triggered []domain.ScenarioResult
	for _, tx := range txs {
		input := rules.InputFromTransaction(tx, screeningVelocityWindow)

		ruleResults, err := p.deps.RuleEngine.EvaluateAll(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("rule evaluation failed for %s: %w", tx.ID, err)
		}

		if p.deps.ScenarioEngine == nil {
			continue
		}
		for _, sr := range p.deps.ScenarioEngine.GetTriggeredScenarios(ruleResults) {
			triggered = append(triggered, sr)
			p.alert(ctx, &domain.Alert{
				Kind:      domain.AlertScenarioTriggered,
				TxID:      tx.ID,
				Account:   tx.SenderAccount,
				Scenario:  sr.ScenarioID,
				RiskScore: sr.Score,
				RunID:     run.ID,
			}, alertCount)
		}
	}

	span.SetAttributes(attribute.Int("scenarios_triggered", len(triggered)))
	return triggered, nil
}

// alert publishes an alert on the bus and counts it for the run summary.
func (p *Pipeline) alert(ctx context.Context, a *domain.Alert, count *int) {
	*count++
	if p.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := p.deps.Bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
		p.logger.Warn("failed to publish alert",
			"kind", a.Kind,
			"error", err,
		)
	}
}

// publish sends a JSON payload on the bus, logging failures.
func (p *Pipeline) publish(ctx context.Context, topic string, v any) {
	if p.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := p.deps.Bus.Publish(ctx, topic, payload); err != nil {
		p.logger.Warn("failed to publish event",
			"topic", topic,
			"error", err,
		)
	}
}

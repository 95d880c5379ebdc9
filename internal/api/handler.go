package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/modelstore"
	"github.com/opensource-finance/harrier/internal/predictor"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo           domain.Repository
	cache          domain.Cache
	bus            domain.EventBus
	pipeline       *analysis.Pipeline
	predictor      *predictor.Predictor
	store          *modelstore.Store
	engine         *rules.Engine
	scenarioEngine *rules.ScenarioEngine
	version        string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, version string) *Handler {
	return &Handler{
		repo:           deps.Repo,
		cache:          deps.Cache,
		bus:            deps.Bus,
		pipeline:       deps.Pipeline,
		predictor:      deps.Predictor,
		store:          deps.Store,
		engine:         deps.RuleEngine,
		scenarioEngine: deps.ScenarioEngine,
		version:        version,
	}
}

// IngestRequest is the request body for POST /transactions.
type IngestRequest struct {
	Transactions []*domain.TransactionRecord `json:"transactions"`
	Source       string                      `json:"source,omitempty"`
}

// IngestResponse is the response for POST /transactions.
type IngestResponse struct {
	Ingested int    `json:"ingested"`
	Message  string `json:"message"`
}

// IngestTransactions handles POST /transactions. The batch is accepted
// whole or rejected whole: any invalid record fails the request with the
// offending indexes and field names.
func (h *Handler) IngestTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must not be empty",
		})
		return
	}

	txs := make([]*domain.Transaction, 0, len(req.Transactions))
	var invalid []string
	for i, record := range req.Transactions {
		tx, err := record.ToTransaction()
		if err != nil {
			invalid = append(invalid, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		txs = append(txs, tx)
	}
	if len(invalid) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid transaction records",
			"details": invalid,
		})
		return
	}

	if err := h.repo.SaveTransactions(ctx, txs); err != nil {
		slog.Error("failed to save transactions", "count", len(txs), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transactions",
		})
		return
	}

	transactionsIngested.Add(float64(len(txs)))

	// Notify the async worker that the dataset grew.
	if h.bus != nil {
		payload, _ := json.Marshal(struct {
			Count  int    `json:"count"`
			Source string `json:"source,omitempty"`
		}{Count: len(txs), Source: req.Source})
		if err := h.bus.Publish(ctx, domain.TopicDatasetIngested, payload); err != nil {
			slog.Warn("failed to publish ingestion event", "error", err)
		}
	}

	slog.Info("transactions ingested", "count", len(txs), "source", req.Source)
	writeJSON(w, http.StatusAccepted, IngestResponse{
		Ingested: len(txs),
		Message:  "transactions accepted",
	})
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	Run       *domain.AnalysisRun     `json:"run"`
	Triggered []domain.ScenarioResult `json:"triggeredScenarios,omitempty"`
}

// RunAnalysis handles POST /analyze: executes the full pipeline over the
// stored dataset and returns the run summary.
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	result, err := h.pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyDataset) {
			analysisRunsTotal.WithLabelValues("empty").Inc()
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "no transactions to analyze",
			})
			return
		}
		analysisRunsTotal.WithLabelValues("failure").Inc()
		slog.Error("analysis run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	analysisRunsTotal.WithLabelValues("success").Inc()
	analysisDuration.Observe(time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Run:       result.Run,
		Triggered: result.Triggered,
	})
}

// GetRun retrieves an analysis run summary by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "run not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// LatestRun retrieves the most recent analysis run summary.
func (h *Handler) LatestRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	run, err := h.repo.LatestRun(ctx)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no analysis runs yet",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListProfiles returns all customer profiles for a run.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")

	profiles, err := h.repo.ListProfiles(ctx, runID)
	if err != nil {
		slog.Error("failed to list profiles", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list profiles",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runId":    runID,
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// GetProfile returns a single account's profile from the most recent
// analysis, served from cache when the pipeline populated it.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	account := chi.URLParam(r, "account")

	if h.cache != nil {
		if profile, err := h.cache.GetProfile(ctx, account); err == nil && profile != nil {
			writeJSON(w, http.StatusOK, profile)
			return
		}
	}

	run, err := h.repo.LatestRun(ctx)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no analysis runs yet",
		})
		return
	}

	profile, err := h.repo.GetProfile(ctx, run.ID, account)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "profile not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// ListAnomalies returns anomaly records for a run. With ?composite=true
// only composite-flagged records are returned.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	onlyComposite := r.URL.Query().Get("composite") == "true"

	records, err := h.repo.ListAnomalies(ctx, runID, onlyComposite)
	if err != nil {
		slog.Error("failed to list anomalies", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list anomalies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runId":     runID,
		"anomalies": records,
		"count":     len(records),
	})
}

// PredictResponse is the response for POST /predict.
type PredictResponse struct {
	TxID        string  `json:"txId,omitempty"`
	Label       string  `json:"riskLabel"`
	Score       float64 `json:"riskScore"`
	Probability float64 `json:"riskProbability"`
	Model       string  `json:"model"`
}

// Predict scores a single transaction with the loaded model.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	var record domain.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	tx, err := record.ToTransaction()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	result, err := h.predictor.Predict(tx)
	if err != nil {
		if errors.Is(err, predictor.ErrModelNotLoaded) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "no model loaded; run an analysis or reload a saved model first",
			})
			return
		}
		slog.Error("prediction failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "prediction failed",
		})
		return
	}

	predictionsTotal.WithLabelValues(result.RiskLabel).Inc()

	writeJSON(w, http.StatusOK, PredictResponse{
		TxID:        tx.ID,
		Label:       result.RiskLabel,
		Score:       result.RiskScore,
		Probability: result.RiskProbability,
		Model:       h.predictor.Package().ModelName,
	})
}

// PredictBatchRequest is the request body for POST /predict/batch.
type PredictBatchRequest struct {
	Transactions []*domain.TransactionRecord `json:"transactions"`
}

// PredictBatch scores a batch of transactions with the loaded model.
func (h *Handler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var req PredictBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Transactions) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transactions must not be empty",
		})
		return
	}

	txs := make([]*domain.Transaction, 0, len(req.Transactions))
	for i, record := range req.Transactions {
		tx, err := record.ToTransaction()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("record %d: %v", i, err),
			})
			return
		}
		txs = append(txs, tx)
	}

	results, err := h.predictor.PredictBatch(txs)
	if err != nil {
		if errors.Is(err, predictor.ErrModelNotLoaded) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "no model loaded; run an analysis or reload a saved model first",
			})
			return
		}
		slog.Error("batch prediction failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "prediction failed",
		})
		return
	}

	for _, res := range results {
		predictionsTotal.WithLabelValues(res.RiskLabel).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": results,
		"count":       len(results),
		"model":       h.predictor.Package().ModelName,
	})
}

// ListModels returns the persisted model artifacts.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.store.List()
	if err != nil {
		slog.Error("failed to list model artifacts", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list model artifacts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

// CurrentModel returns a summary of the model currently serving predictions.
func (h *Handler) CurrentModel(w http.ResponseWriter, r *http.Request) {
	pkg := h.predictor.Package()
	if pkg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no model loaded",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"modelName":    pkg.ModelName,
		"modelType":    pkg.ModelType,
		"featureNames": pkg.FeatureNames,
		"metrics":      pkg.Metrics,
		"timestamp":    pkg.Timestamp,
	})
}

// ReloadModel loads the persisted model package into the predictor.
func (h *Handler) ReloadModel(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.store.Load()
	if err != nil {
		if errors.Is(err, modelstore.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "no saved model artifact",
			})
			return
		}
		slog.Error("failed to load model artifact", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "model artifact is corrupt or unreadable",
		})
		return
	}

	if err := h.predictor.Swap(pkg); err != nil {
		slog.Error("failed to swap model package", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to activate model",
		})
		return
	}

	slog.Info("model reloaded", "model", pkg.ModelName)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "model reloaded successfully",
		"modelName": pkg.ModelName,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded screening rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Bands       []domain.RuleBand `json:"bands"`
	Weight      float64           `json:"weight"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule creates a new screening rule and saves it to the database.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Bands:       req.Bands,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// CreateScenarioRequest is the request body for creating a scenario.
type CreateScenarioRequest struct {
	ID             string                      `json:"id"`
	Name           string                      `json:"name"`
	Description    string                      `json:"description,omitempty"`
	Rules          []domain.ScenarioRuleWeight `json:"rules"`
	AlertThreshold float64                     `json:"alertThreshold"`
	Enabled        bool                        `json:"enabled"`
}

// ListScenarios returns all loaded scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	scenarios := h.scenarioEngine.GetLoadedScenarios()

	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenarios,
		"count":     len(scenarios),
	})
}

// GetScenario retrieves a scenario by ID.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	scenarioID := chi.URLParam(r, "id")

	for _, s := range h.scenarioEngine.GetLoadedScenarios() {
		if s.ID == scenarioID {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "scenario not found",
	})
}

// validateScenarioRules checks member rule references and weights against
// the rules currently loaded in the engine.
func (h *Handler) validateScenarioRules(memberRules []domain.ScenarioRuleWeight) error {
	loadedRules := h.engine.GetLoadedRules()
	ruleIDSet := make(map[string]bool, len(loadedRules))
	for _, r := range loadedRules {
		ruleIDSet[r.ID] = true
	}

	var totalWeight float64
	for _, rule := range memberRules {
		if rule.RuleID == "" {
			return errors.New("ruleId cannot be empty")
		}
		if !ruleIDSet[rule.RuleID] {
			return fmt.Errorf("ruleId '%s' does not exist in rule engine", rule.RuleID)
		}
		if rule.Weight < 0 || rule.Weight > 1 {
			return errors.New("rule weight must be between 0 and 1")
		}
		totalWeight += rule.Weight
	}

	if totalWeight < 0.99 || totalWeight > 1.01 {
		slog.Warn("scenario weights do not sum to 1.0", "total_weight", totalWeight)
	}
	return nil
}

// CreateScenario creates a new scenario and saves it to the database.
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}
	if len(req.Rules) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one rule is required",
		})
		return
	}
	if err := h.validateScenarioRules(req.Rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	// Threshold must be > 0 to avoid triggering on every transaction
	if req.AlertThreshold <= 0 || req.AlertThreshold > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alertThreshold must be between 0 (exclusive) and 1",
		})
		return
	}

	scenario := &domain.Scenario{
		ID:             req.ID,
		Name:           req.Name,
		Description:    req.Description,
		Version:        "1.0.0",
		Rules:          req.Rules,
		AlertThreshold: req.AlertThreshold,
		Enabled:        req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveScenario(ctx, scenario); err != nil {
			slog.Error("failed to save scenario", "id", scenario.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save scenario",
			})
			return
		}
	}

	slog.Info("scenario created", "id", scenario.ID, "name", scenario.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"scenario": scenario,
		"message":  "Scenario created. Call POST /scenarios/reload to apply changes.",
	})
}

// UpdateScenario updates an existing scenario.
func (h *Handler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scenarioID := chi.URLParam(r, "id")

	var req CreateScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.validateScenarioRules(req.Rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	scenario := &domain.Scenario{
		ID:             scenarioID,
		Name:           req.Name,
		Description:    req.Description,
		Version:        "1.0.0",
		Rules:          req.Rules,
		AlertThreshold: req.AlertThreshold,
		Enabled:        req.Enabled,
	}

	if h.repo != nil {
		if err := h.repo.SaveScenario(ctx, scenario); err != nil {
			slog.Error("failed to update scenario", "id", scenarioID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to update scenario",
			})
			return
		}
	}

	slog.Info("scenario updated", "id", scenarioID)
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario": scenario,
		"message":  "Scenario updated. Call POST /scenarios/reload to apply changes.",
	})
}

// DeleteScenario deletes a scenario and auto-reloads the engine.
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scenarioID := chi.URLParam(r, "id")

	if h.repo != nil {
		if err := h.repo.DeleteScenario(ctx, scenarioID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "scenario not found",
			})
			return
		}

		// Auto-reload scenario engine after delete
		dbScenarios, err := h.repo.ListScenarios(ctx)
		if err != nil {
			slog.Error("failed to reload scenarios after delete", "error", err)
		} else {
			h.scenarioEngine.ReloadScenarios(dbScenarios)
			slog.Info("scenarios auto-reloaded after delete", "count", len(dbScenarios))
		}
	}

	slog.Info("scenario deleted", "id", scenarioID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Scenario deleted and engine reloaded.",
	})
}

// ReloadScenarios reloads all scenarios from the database into the engine.
func (h *Handler) ReloadScenarios(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbScenarios, err := h.repo.ListScenarios(ctx)
	if err != nil {
		slog.Error("failed to list scenarios from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load scenarios from database",
		})
		return
	}

	h.scenarioEngine.ReloadScenarios(dbScenarios)

	slog.Info("scenarios reloaded from database", "count", len(dbScenarios))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "scenarios reloaded successfully",
		"count":   len(dbScenarios),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/modelstore"
	"github.com/opensource-finance/harrier/internal/predictor"
	"github.com/opensource-finance/harrier/internal/rules"
)

// Deps bundles the handler dependencies.
type Deps struct {
	Repo           domain.Repository
	Cache          domain.Cache
	Bus            domain.EventBus
	Pipeline       *analysis.Pipeline
	Predictor      *predictor.Predictor
	Store          *modelstore.Store
	RuleEngine     *rules.Engine
	ScenarioEngine *rules.ScenarioEngine
}

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Deps, version string) *Server {
	handler := NewHandler(deps, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(MetricsMiddleware)      // Prometheus request metrics
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health and observability endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	router.Handle("/metrics", promhttp.Handler())

	// Dataset ingestion and retrieval
	router.Post("/transactions", handler.IngestTransactions)
	router.Get("/transactions/{id}", handler.GetTransaction)

	// Analysis runs
	router.Post("/analyze", handler.RunAnalysis)
	router.Get("/runs/latest", handler.LatestRun)
	router.Get("/runs/{id}", handler.GetRun)
	router.Get("/runs/{id}/profiles", handler.ListProfiles)
	router.Get("/runs/{id}/anomalies", handler.ListAnomalies)
	router.Get("/profiles/{account}", handler.GetProfile)

	// Model serving
	router.Post("/predict", handler.Predict)
	router.Post("/predict/batch", handler.PredictBatch)
	router.Get("/models", handler.ListModels)
	router.Get("/models/current", handler.CurrentModel)
	router.Post("/models/reload", handler.ReloadModel)

	// Screening rule management
	router.Get("/rules", handler.ListRules)
	router.Get("/rules/{id}", handler.GetRule)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	// Scenario management
	router.Get("/scenarios", handler.ListScenarios)
	router.Get("/scenarios/{id}", handler.GetScenario)
	router.Post("/scenarios", handler.CreateScenario)
	router.Put("/scenarios/{id}", handler.UpdateScenario)
	router.Delete("/scenarios/{id}", handler.DeleteScenario)
	router.Post("/scenarios/reload", handler.ReloadScenarios)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

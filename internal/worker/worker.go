// Package worker provides async analysis processing off the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/domain"
)

// Worker listens for dataset ingestion events and runs the analysis
// pipeline in the background.
type Worker struct {
	bus      domain.EventBus
	pipeline *analysis.Pipeline
	logger   *slog.Logger

	subscriptions []domain.Subscription
	running       atomic.Bool
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// IngestedMessage is the payload published on the dataset-ingested topic.
type IngestedMessage struct {
	Count  int    `json:"count"`
	Source string `json:"source,omitempty"`
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, pipeline *analysis.Pipeline, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		pipeline: pipeline,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the dataset-ingested topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicDatasetIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("worker started",
		"topic", domain.TopicDatasetIngested,
	)
	return nil
}

// handleMessage triggers an analysis run for an ingestion event.
// Only one run is in flight at a time; events arriving during a run are
// dropped, since the next run covers the full dataset anyway.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var ingested IngestedMessage
	if err := json.Unmarshal(msg.Payload, &ingested); err != nil {
		w.logger.Error("failed to parse ingestion message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if !w.running.CompareAndSwap(false, true) {
		w.logger.Debug("analysis already in flight, skipping trigger",
			"message_id", msg.ID,
		)
		return nil
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.running.Store(false)
		w.runAnalysis(ingested)
	}()

	return nil
}

func (w *Worker) runAnalysis(trigger IngestedMessage) {
	start := time.Now()

	w.logger.Info("async analysis triggered",
		"ingested", trigger.Count,
		"source", trigger.Source,
	)

	result, err := w.pipeline.Run(w.ctx)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyDataset) {
			w.logger.Warn("analysis skipped, dataset empty")
			return
		}
		w.logger.Error("async analysis failed",
			"error", err,
		)
		return
	}

	w.logger.Info("async analysis finished",
		"run_id", result.Run.ID,
		"alerts", result.Run.AlertCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	AnalysisRunning   bool     `json:"analysisRunning"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		AnalysisRunning:   w.running.Load(),
	}
}

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harrier_http_requests_total",
		Help: "Total HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harrier_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	transactionsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harrier_transactions_ingested_total",
		Help: "Total transactions accepted through the ingest endpoint.",
	})

	analysisRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harrier_analysis_runs_total",
		Help: "Total analysis runs by outcome.",
	}, []string{"outcome"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harrier_analysis_duration_seconds",
		Help:    "Analysis run duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	predictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harrier_predictions_total",
		Help: "Total predictions served by risk label.",
	}, []string{"label"})
)

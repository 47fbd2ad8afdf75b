// Projectrank - Project Recommendation and Trending Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/projectrank

package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the batch engines:
// - Database query performance (DuckDB / SQLite)
// - Inference runs, per-user outcomes and skipped chunks
// - Trending runs per window kind
// - Scheduled job runs
// - Score store replacements and fallbacks
// - Read API latency and score cache lookups

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectrank_db_query_duration_seconds",
			Help:    "Duration of source database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_db_query_errors_total",
			Help: "Total number of source database query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// Inference Metrics
	InferenceRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "projectrank_inference_run_duration_seconds",
			Help:    "Duration of full inference runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	InferenceUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_inference_users_total",
			Help: "Users processed by the inference engine by outcome",
		},
		[]string{"outcome"}, // "model", "cold_start", "failed"
	)

	InferenceChunksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projectrank_inference_chunks_skipped_total",
			Help: "Similarity chunks skipped after resource exhaustion",
		},
	)

	InferenceLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "projectrank_inference_last_success_timestamp",
			Help: "Unix timestamp of the last successful inference run",
		},
	)

	// Checkpoint Metrics
	CheckpointParamsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_checkpoint_params_skipped_total",
			Help: "Checkpoint parameters skipped during lenient load",
		},
		[]string{"reason"}, // "shape_mismatch", "missing", "unexpected"
	)

	// Trending Metrics
	TrendingRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectrank_trending_run_duration_seconds",
			Help:    "Duration of trending aggregation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"window"},
	)

	TrendingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_trending_runs_total",
			Help: "Trending aggregation runs by window kind and status",
		},
		[]string{"window", "status"},
	)

	TrendingPublished = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "projectrank_trending_published_items",
			Help: "Number of projects published in the latest trending run",
		},
		[]string{"window"},
	)

	// Scheduler Metrics
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_job_runs_total",
			Help: "Scheduled job runs by job name and outcome",
		},
		[]string{"job", "outcome"}, // "success", "error", "locked"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectrank_job_duration_seconds",
			Help:    "Duration of scheduled job runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"job"},
	)

	// Score Store Metrics
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_store_writes_total",
			Help: "Score store key replacements by backend and result",
		},
		[]string{"backend", "result"}, // result: "ok", "fallback", "error"
	)

	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectrank_store_write_duration_seconds",
			Help:    "Duration of score store key replacements",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend"},
	)

	// Read API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_api_requests_total",
			Help: "Total number of read API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projectrank_api_request_duration_seconds",
			Help:    "Read API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APICacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectrank_api_cache_lookups_total",
			Help: "Read API score cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordInferenceRun records a finished inference run.
func RecordInferenceRun(duration time.Duration, err error) {
	InferenceRunDuration.Observe(duration.Seconds())
	if err == nil {
		InferenceLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordInferenceUser records the outcome for one user.
func RecordInferenceUser(outcome string) {
	InferenceUsers.WithLabelValues(outcome).Inc()
}

// RecordChunkSkipped records a similarity chunk that was skipped.
func RecordChunkSkipped() {
	InferenceChunksSkipped.Inc()
}

// RecordCheckpointSkip records a checkpoint parameter that was not loaded.
func RecordCheckpointSkip(reason string) {
	CheckpointParamsSkipped.WithLabelValues(reason).Inc()
}

// RecordTrendingRun records a trending aggregation run.
func RecordTrendingRun(window string, duration time.Duration, published int, err error) {
	TrendingRunDuration.WithLabelValues(window).Observe(duration.Seconds())
	if err != nil {
		TrendingRuns.WithLabelValues(window, "error").Inc()
		return
	}
	TrendingRuns.WithLabelValues(window, "success").Inc()
	TrendingPublished.WithLabelValues(window).Set(float64(published))
}

// RecordJobRun records one scheduled job run.
func RecordJobRun(job, outcome string, duration time.Duration) {
	JobRuns.WithLabelValues(job, outcome).Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// ErrStoreFallback marks a replacement that succeeded through the direct write path.
var ErrStoreFallback = errors.New("store fallback write")

// RecordStoreWrite records a score store replacement. Pass ErrStoreFallback
// when the direct-write fallback was used.
func RecordStoreWrite(backend string, duration time.Duration, err error) {
	StoreWriteDuration.WithLabelValues(backend).Observe(duration.Seconds())
	switch {
	case err == nil:
		StoreWrites.WithLabelValues(backend, "ok").Inc()
	case errors.Is(err, ErrStoreFallback):
		StoreWrites.WithLabelValues(backend, "fallback").Inc()
	default:
		StoreWrites.WithLabelValues(backend, "error").Inc()
	}
}

// RecordAPIRequest records a read API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordCacheLookup records a read API score cache lookup.
func RecordCacheLookup(hit bool) {
	if hit {
		APICacheLookups.WithLabelValues("hit").Inc()
		return
	}
	APICacheLookups.WithLabelValues("miss").Inc()
}

// Copyright (C) 2026 Pathway Property Analytics (dev@pathwayprop.com.au)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the orchestrator.
//
// # Description
//
// Metrics cover the full analysis lifecycle (starts, verdicts, durations),
// document ingestion, and retrieval queries. All metrics are exposed on the
// /metrics endpoint and are safe for concurrent use via Prometheus's
// internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "pathway"

// Subsystem for orchestrator metrics.
const orchestratorSubsystem = "orchestrator"

// Metrics holds all Prometheus metrics for the orchestrator service.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring analysis runs,
// document ingestion, and retrieval queries. Initialize once at startup via
// InitMetrics().
//
// # Fields
//
//   - AnalysesTotal: Counter of finished analyses by terminal status
//   - GatekeeperVerdictsTotal: Counter of gatekeeper verdicts
//   - AnalysisDurationSeconds: Histogram of end-to-end analysis duration
//   - ActiveAnalyses: Gauge of analyses currently in flight
//   - DocumentsIngestedTotal: Counter of ingested documents by kind
//   - ChunksIngestedTotal: Counter of chunks written to the store
//   - QueriesTotal: Counter of retrieval queries by scope and outcome
//   - QueryDurationSeconds: Histogram of retrieval query duration
type Metrics struct {
	// AnalysesTotal counts finished analyses.
	// Labels: status (complete, rejected, failed, canceled)
	AnalysesTotal *prometheus.CounterVec

	// GatekeeperVerdictsTotal counts gatekeeper verdicts.
	// Labels: verdict (PROCEED, REVIEW, REJECT)
	GatekeeperVerdictsTotal *prometheus.CounterVec

	// AnalysisDurationSeconds measures end-to-end analysis duration.
	// Labels: status (complete, rejected, failed, canceled)
	AnalysisDurationSeconds *prometheus.HistogramVec

	// ActiveAnalyses tracks analyses currently in flight.
	ActiveAnalyses prometheus.Gauge

	// DocumentsIngestedTotal counts ingested documents.
	// Labels: kind (contract, title, planning, strata_minutes, ...)
	DocumentsIngestedTotal *prometheus.CounterVec

	// ChunksIngestedTotal counts chunks written to the vector store.
	ChunksIngestedTotal prometheus.Counter

	// QueriesTotal counts retrieval queries.
	// Labels: scope (document, property), outcome (answered, not_found, error)
	QueriesTotal *prometheus.CounterVec

	// QueryDurationSeconds measures retrieval query duration.
	// Labels: scope (document, property)
	QueryDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance of Metrics.
// Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics against the default registry.
// Call once at application startup; subsequent calls return the existing
// instance rather than re-registering.
//
// # Outputs
//
//   - *Metrics: The initialized metrics instance.
func InitMetrics() *Metrics {
	if DefaultMetrics != nil {
		return DefaultMetrics
	}

	DefaultMetrics = &Metrics{
		AnalysesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "analyses_total",
				Help:      "Total number of finished analyses by terminal status",
			},
			[]string{"status"},
		),

		GatekeeperVerdictsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "gatekeeper_verdicts_total",
				Help:      "Total gatekeeper verdicts by outcome",
			},
			[]string{"verdict"},
		),

		AnalysisDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "analysis_duration_seconds",
				Help:      "End-to-end analysis duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),

		ActiveAnalyses: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "active_analyses",
				Help:      "Number of analyses currently in flight",
			},
		),

		DocumentsIngestedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "documents_ingested_total",
				Help:      "Total documents ingested by kind",
			},
			[]string{"kind"},
		),

		ChunksIngestedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "chunks_ingested_total",
				Help:      "Total chunks written to the vector store",
			},
		),

		QueriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "queries_total",
				Help:      "Total retrieval queries by scope and outcome",
			},
			[]string{"scope", "outcome"},
		),

		QueryDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "query_duration_seconds",
				Help:      "Retrieval query duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"scope"},
		),
	}

	return DefaultMetrics
}

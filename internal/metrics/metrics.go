// Package metrics exposes prometheus collectors for the tuning service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pidtune_sessions_active",
		Help: "Tuning sessions held in memory",
	})

	AdvisoryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pidtune_advisory_duration_seconds",
		Help:    "Advisory request latency by request variant",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"variant"})

	AdvisoryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pidtune_advisory_errors_total",
		Help: "Advisory failures by request variant and error kind",
	}, []string{"variant", "kind"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pidtune_stage_transitions_total",
		Help: "Session stage transitions",
	}, []string{"from", "to"})

	OperationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pidtune_operations_rejected_total",
		Help: "Session operations rejected by reason",
	}, []string{"operation", "reason"})

	TelemetryRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pidtune_telemetry_rows_total",
		Help: "Telemetry lines seen by outcome",
	}, []string{"outcome"})
)

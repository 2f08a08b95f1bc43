package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_ledger_executions_total",
			Help: "Executions that reached a terminal status.",
		},
		[]string{"mode", "status"},
	)
	executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompt_ledger_execution_duration_seconds",
			Help:    "Time from running to a terminal status, retries included.",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)
	truncationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_ledger_truncations_total",
			Help: "Stored texts cut to their size limit.",
		},
		[]string{"field"},
	)
)

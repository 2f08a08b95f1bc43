package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultProcessed = "processed"
	resultSkipped   = "skipped"
	resultMalformed = "malformed"
	resultError     = "error"
)

var (
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_ledger_worker_deliveries_total",
			Help: "Queue deliveries handled by workers, by result.",
		},
		[]string{"result"},
	)
	inFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prompt_ledger_worker_in_flight",
			Help: "Deliveries currently being processed.",
		},
	)
)

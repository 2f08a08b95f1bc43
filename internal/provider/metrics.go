package provider

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_ledger_provider_requests_total",
			Help: "Provider calls by outcome (success or error kind).",
		},
		[]string{"provider", "model", "outcome"},
	)
	providerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompt_ledger_provider_latency_seconds",
			Help:    "Latency of successful provider calls.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)
	providerTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_ledger_provider_tokens_total",
			Help: "Tokens reported or estimated per provider call.",
		},
		[]string{"provider", "model", "type"},
	)
)

// instrumented records metrics around another provider.
type instrumented struct {
	Provider
}

// Instrument wraps p with request, latency and token metrics.
func Instrument(p Provider) Provider {
	if _, ok := p.(instrumented); ok {
		return p
	}
	return instrumented{Provider: p}
}

func (i instrumented) Generate(ctx context.Context, req Request) (*Result, error) {
	res, err := i.Provider.Generate(ctx, req)
	name := i.Provider.Name()
	if err != nil {
		providerRequestsTotal.WithLabelValues(name, req.Model, string(Classify(err).Kind)).Inc()
		return nil, err
	}
	providerRequestsTotal.WithLabelValues(name, req.Model, "success").Inc()
	providerLatency.WithLabelValues(name, req.Model).Observe(float64(res.LatencyMs) / 1000)
	if res.PromptTokens != nil {
		providerTokensTotal.WithLabelValues(name, req.Model, "prompt").Add(float64(*res.PromptTokens))
	}
	if res.ResponseTokens != nil {
		providerTokensTotal.WithLabelValues(name, req.Model, "response").Add(float64(*res.ResponseTokens))
	}
	return res, nil
}

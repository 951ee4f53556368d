package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		promptsGeneratedTotal,
		promptTokensTotal,
		generateLatencyMs,
	)
}

var (
	promptsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompts_generated_total",
			Help: "Prompt artifacts generated, by quality tier.",
		},
		[]string{"tier"},
	)

	promptTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_tokens_total",
			Help: "Sum of artifact token counts, by quality tier.",
		},
		[]string{"tier"},
	)

	generateLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prompt_generate_latency_ms",
			Help:    "End-to-end generation latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"tier", "enhanced"},
	)
)

func ObserveGeneration(tier string, tokens, latencyMs int, enhanced bool) {
	promptsGeneratedTotal.WithLabelValues(norm(tier)).Inc()
	promptTokensTotal.WithLabelValues(norm(tier)).Add(float64(tokens))
	generateLatencyMs.WithLabelValues(norm(tier), strconv.FormatBool(enhanced)).
		Observe(float64(latencyMs))
}

package gateway

import "github.com/prometheus/client_golang/prometheus"

var (
	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hypnosd",
			Subsystem: "gateway",
			Name:      "generation_duration_seconds",
			Help:      "Time spent inside the engine per generation",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
	)

	gateWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hypnosd",
			Subsystem: "gateway",
			Name:      "gate_wait_seconds",
			Help:      "Time a request waited for exclusive engine access",
			Buckets:   prometheus.DefBuckets,
		},
	)

	gateWaiting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hypnosd",
			Subsystem: "gateway",
			Name:      "gate_waiting",
			Help:      "Requests blocked waiting for the engine",
		},
	)

	generationInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hypnosd",
			Subsystem: "gateway",
			Name:      "generation_inflight",
			Help:      "Generations currently running (0 or 1)",
		},
	)

	generationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hypnosd",
			Subsystem: "gateway",
			Name:      "generation_errors_total",
			Help:      "Generations that failed inside the engine",
		},
	)

	droppedTurns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hypnosd",
			Subsystem: "gateway",
			Name:      "dropped_turns_total",
			Help:      "History turns left out of prompts to fit the context window",
		},
	)

	promptTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hypnosd",
			Subsystem: "gateway",
			Name:      "prompt_estimated_tokens",
			Help:      "Estimated prompt tokens sent to the engine",
			Buckets:   prometheus.LinearBuckets(0, 256, 9),
		},
	)
)

func init() {
	prometheus.MustRegister(generationDuration, gateWaitDuration, gateWaiting, generationInflight, generationErrors, droppedTurns, promptTokens)
}

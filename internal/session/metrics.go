package session

import "github.com/prometheus/client_golang/prometheus"

var (
	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "session",
			Name:      "completions_total",
			Help:      "Completions by outcome (ok, error, busy)",
		},
		[]string{"outcome"},
	)

	fragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "session",
			Name:      "fragments_total",
			Help:      "Generated text fragments delivered to callers",
		},
	)

	generationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llamad",
			Subsystem: "session",
			Name:      "generation_seconds",
			Help:      "Duration of generation passes in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	busyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "session",
			Name:      "busy_total",
			Help:      "Calls rejected because the session was busy",
		},
		[]string{"reason"},
	)

	historyMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llamad",
			Subsystem: "session",
			Name:      "history_messages",
			Help:      "Messages in the conversation history",
		},
	)
)

func init() {
	prometheus.MustRegister(completionsTotal, fragmentsTotal, generationSeconds, busyTotal, historyMessages)
}

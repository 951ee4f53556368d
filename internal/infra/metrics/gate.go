package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		gateDecisionsTotal,
		creditResetsTotal,
	)
}

var (
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_gate_decisions_total",
			Help: "Usage gate outcomes (allowed/no_credits/not_active/error) by plan.",
		},
		[]string{"plan", "outcome"},
	)

	creditResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_resets_total",
			Help: "Lazy credit resets applied, by cadence (daily/monthly).",
		},
		[]string{"cadence"},
	)
)

func IncGateDecision(plan, outcome string) {
	gateDecisionsTotal.WithLabelValues(norm(plan), norm(outcome)).Inc()
}

func AddCreditResets(cadence string, n int) {
	if n > 0 {
		creditResetsTotal.WithLabelValues(norm(cadence)).Add(float64(n))
	}
}

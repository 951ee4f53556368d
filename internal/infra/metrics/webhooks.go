package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		txRetriesTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Normalized webhook events by provider, type and outcome (applied/duplicate/orphan/malformed/retry/error).",
		},
		[]string{"provider", "type", "outcome"},
	)

	txRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tx_retries_total",
			Help: "Serialization conflicts retried before giving up.",
		},
	)
)

func IncWebhookEvent(provider, eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(provider), norm(eventType), norm(outcome)).Inc()
}

func IncTxRetry() {
	txRetriesTotal.Inc()
}

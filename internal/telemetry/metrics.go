package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsEnqueued counts ledger units published to the broker.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_jobs_enqueued_total",
		Help: "Units of work published to the broker, by queue.",
	}, []string{"queue"})

	// JobsProcessed counts handler outcomes per job type.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_jobs_processed_total",
		Help: "Handler completions, by job type and outcome.",
	}, []string{"job_type", "outcome"})

	// ItemsProcessed counts per-item results inside batch workers.
	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_items_processed_total",
		Help: "Per-item batch results, by outcome.",
	}, []string{"outcome"})

	// WebhookCalls counts inbound completion-bridge calls.
	WebhookCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_webhook_calls_total",
		Help: "Inbound webhook calls, by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// ActiveConsumers tracks running consumer goroutines per queue.
	ActiveConsumers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_active_consumers",
		Help: "Consumer goroutines currently running, by queue.",
	}, []string{"queue"})
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

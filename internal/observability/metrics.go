package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveWorkflows   prometheus.Gauge
	WorkflowEvents    *prometheus.CounterVec
	WebhookUpdates    *prometheus.CounterVec
	ClientErrors      *prometheus.CounterVec
	AssetEvents       *prometheus.CounterVec
	GenerationLatency *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveWorkflows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workflows",
			Help:      "Number of sessions currently inside a workflow.",
		}),
		WorkflowEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_events_total",
			Help:      "Workflow events by workflow and outcome.",
		}, []string{"workflow", "event"}),
		WebhookUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_updates_total",
			Help:      "Inbound webhook updates by parse status.",
		}, []string{"status"}),
		ClientErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_errors_total",
			Help:      "Upstream client failures by client and failure kind.",
		}, []string{"client", "kind"}),
		AssetEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asset_events_total",
			Help:      "Temporary asset lifecycle events by kind and event.",
		}, []string{"kind", "event"}),
		GenerationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_seconds",
			Help:      "Latency of upstream generation calls by workflow.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"workflow"}),
	}
}

func (m *Metrics) ObserveGenerationLatency(workflow string, d time.Duration) {
	m.GenerationLatency.WithLabelValues(workflow).Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/repolens/repolens/pkg/ratelimit"
)

// Registry bundles the prometheus collectors of the scan pipeline
type Registry struct {
	registry *prometheus.Registry

	EntitiesProcessed *prometheus.CounterVec
	BatchesFinished   *prometheus.CounterVec
	CreditsUsed       prometheus.Counter
	LimiterAvailable  *prometheus.GaugeVec
}

func New() *Registry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Registry{
		registry: registry,
		EntitiesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repolens",
			Subsystem: "batch",
			Name:      "entities_processed_total",
			Help:      "Processed entities by outcome (success, failed, retried)",
		}, []string{"outcome"}),
		BatchesFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repolens",
			Subsystem: "batch",
			Name:      "finished_total",
			Help:      "Batches that reached a terminal state, by status",
		}, []string{"status"}),
		CreditsUsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "repolens",
			Subsystem: "batch",
			Name:      "credits_used_total",
			Help:      "Analysis credits consumed across all batches",
		}),
		LimiterAvailable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "repolens",
			Subsystem: "ratelimit",
			Name:      "tokens_available",
			Help:      "Tokens currently available per external service",
		}, []string{"service"}),
	}
}

// Handler serves the registry over HTTP
func (x *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(x.registry, promhttp.HandlerOpts{})
}

// ObserveLimiter records a rate limiter snapshot
func (x *Registry) ObserveLimiter(status ratelimit.Status) {
	x.LimiterAvailable.WithLabelValues(string(status.Service)).Set(float64(status.Available))
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics implements the core's metrics port with a dedicated
// Prometheus registry.
type PipelineMetrics struct {
	registry *prometheus.Registry

	queuePending     prometheus.Gauge
	queueInFlight    prometheus.Gauge
	itemsTotal       *prometheus.CounterVec
	processDuration  *prometheus.HistogramVec
	queueLag         prometheus.Histogram
	providerAttempts *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	queuePending := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "orderpipe",
		Subsystem:   "queue",
		Name:        "pending_items",
		Help:        "Items waiting for a dispatch slot.",
		ConstLabels: constLabels,
	})
	queueInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "orderpipe",
		Subsystem:   "queue",
		Name:        "in_flight_items",
		Help:        "Items currently being processed.",
		ConstLabels: constLabels,
	})
	itemsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "orderpipe",
		Subsystem:   "queue",
		Name:        "items_total",
		Help:        "Processed queue items by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	processDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   "orderpipe",
		Subsystem:   "queue",
		Name:        "process_duration_seconds",
		Help:        "Per-attempt processing duration by outcome.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"outcome"})
	queueLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   "orderpipe",
		Subsystem:   "queue",
		Name:        "lag_seconds",
		Help:        "Delay between enqueue and first dispatch.",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	providerAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "orderpipe",
		Subsystem:   "extract",
		Name:        "provider_attempts_total",
		Help:        "Extraction provider calls by provider and outcome.",
		ConstLabels: constLabels,
	}, []string{"provider", "outcome"})
	resolutionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "orderpipe",
		Subsystem:   "resolve",
		Name:        "resolutions_total",
		Help:        "Identifier resolutions by entity kind and match status.",
		ConstLabels: constLabels,
	}, []string{"kind", "status"})

	registry.MustRegister(queuePending, queueInFlight, itemsTotal, processDuration, queueLag, providerAttempts, resolutionsTotal)

	return &PipelineMetrics{
		registry:         registry,
		queuePending:     queuePending,
		queueInFlight:    queueInFlight,
		itemsTotal:       itemsTotal,
		processDuration:  processDuration,
		queueLag:         queueLag,
		providerAttempts: providerAttempts,
		resolutionsTotal: resolutionsTotal,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) QueueDepth(pending, inFlight int) {
	m.queuePending.Set(float64(pending))
	m.queueInFlight.Set(float64(inFlight))
}

func (m *PipelineMetrics) ItemStarted() {}

func (m *PipelineMetrics) ItemFinished(outcome string, seconds float64) {
	m.itemsTotal.WithLabelValues(outcome).Inc()
	m.processDuration.WithLabelValues(outcome).Observe(seconds)
}

func (m *PipelineMetrics) QueueLag(seconds float64) {
	if seconds < 0 {
		return
	}
	m.queueLag.Observe(seconds)
}

func (m *PipelineMetrics) ProviderAttempt(provider, outcome string) {
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *PipelineMetrics) Resolution(kind, status string) {
	m.resolutionsTotal.WithLabelValues(kind, status).Inc()
}

package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for item requests
const (
	OutcomeFetched = "fetched"
	OutcomeMissing = "missing"
	OutcomeSkipped = "skipped"
	OutcomeRetried = "retried"
)

// Metrics are the fetch-side Prometheus collectors
type Metrics struct {
	Items     *prometheus.CounterVec
	Latency   prometheus.Histogram
	Processed *prometheus.GaugeVec
}

// NewMetrics registers the fetch collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Items: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedmirror",
			Subsystem: "fetch",
			Name:      "items_total",
			Help:      "Item requests by outcome.",
		}, []string{"outcome"}),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "feedmirror",
			Subsystem: "fetch",
			Name:      "item_seconds",
			Help:      "Latency of single item requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		Processed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "feedmirror",
			Subsystem: "fetch",
			Name:      "worker_processed",
			Help:      "Ids processed by each worker in the current run.",
		}, []string{"worker"}),
	}
}

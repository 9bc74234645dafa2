package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the run level Prometheus collectors
type Metrics struct {
	Runs        *prometheus.CounterVec
	RunSeconds  prometheus.Histogram
	RangeLow    prometheus.Gauge
	RangeHigh   prometheus.Gauge
	Upserted    prometheus.Counter
	Tombstones  prometheus.Counter
	LastSuccess prometheus.Gauge
}

// NewMetrics registers the run collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedmirror",
			Name:      "runs_total",
			Help:      "Finished runs by status.",
		}, []string{"status"}),
		RunSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "feedmirror",
			Name:      "run_seconds",
			Help:      "Wall time of a run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		RangeLow: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedmirror",
			Name:      "range_low",
			Help:      "Low id of the last resolved range.",
		}),
		RangeHigh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedmirror",
			Name:      "range_high",
			Help:      "High id of the last resolved range.",
		}),
		Upserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feedmirror",
			Subsystem: "load",
			Name:      "upserted_total",
			Help:      "Rows inserted or replaced in the canonical table.",
		}),
		Tombstones: f.NewCounter(prometheus.CounterOpts{
			Namespace: "feedmirror",
			Subsystem: "load",
			Name:      "tombstones_total",
			Help:      "Canonical rows removed by tombstones.",
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedmirror",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}

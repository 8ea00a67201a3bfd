package livepublish

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	publishes      *prometheus.CounterVec
	publishedPaths prometheus.Gauge
	duration       prometheus.Histogram
}

// nil registerer => metrics are collected but not exported anywhere
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liveedit_publish_total",
			Help: "Diff uploads by function and outcome",
		}, []string{"function", "outcome"}),
		publishedPaths: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "liveedit_published_paths",
			Help: "Paths in the most recently published diff",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "liveedit_publish_duration_seconds",
			Help: "Time from change detection to every function's diff being uploaded",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.publishes, m.publishedPaths, m.duration)
	}

	return m
}

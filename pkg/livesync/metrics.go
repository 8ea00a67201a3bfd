package livesync

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeError = "error"
)

type Metrics struct {
	syncs     *prometheus.CounterVec
	duration  prometheus.Histogram
	restored  prometheus.Counter
	extracted prometheus.Counter
}

// nil registerer => metrics are collected but not exported anywhere
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "liveedit_sync_total",
			Help: "Synchronizations by outcome (applied, not-modified, not-found, error)",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "liveedit_sync_duration_seconds",
			Help:    "Time spent in a synchronization, including the remote fetch",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		restored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveedit_paths_restored_total",
			Help: "Overlay paths reverted back to baseline",
		}),
		extracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "liveedit_paths_extracted_total",
			Help: "Overlay paths written from diff archives",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.syncs, m.duration, m.restored, m.extracted)
	}

	return m
}

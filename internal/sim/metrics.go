package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/heraclitus0/epacog/internal/epistemic"
)

// #region metrics
// Metrics are the Prometheus series updated by Drift.
type Metrics struct {
	Steps      prometheus.Counter
	Ruptures   *prometheus.CounterVec // label: collapse_type
	Projection prometheus.Gauge
	Memory     prometheus.Gauge
	Threshold  prometheus.Gauge
	Distortion prometheus.Histogram
}

// NewMetrics registers the drift series on reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Steps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "epacog",
			Subsystem: "drift",
			Name:      "steps_total",
			Help:      "Signals received by the simulated engine",
		}),
		Ruptures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epacog",
			Subsystem: "drift",
			Name:      "ruptures_total",
			Help:      "Rupture events by collapse label",
		}, []string{"collapse_type"}),
		Projection: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "epacog",
			Subsystem: "drift",
			Name:      "projection",
			Help:      "Projection V after the last step",
		}),
		Memory: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "epacog",
			Subsystem: "drift",
			Name:      "memory",
			Help:      "Misalignment memory E after the last step",
		}),
		Threshold: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "epacog",
			Subsystem: "drift",
			Name:      "threshold",
			Help:      "Rupture threshold used at the last step",
		}),
		Distortion: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "epacog",
			Subsystem: "drift",
			Name:      "distortion",
			Help:      "Distribution of per-step distortion",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
		}),
	}
}

// Observe records one trace entry. A nil receiver is a no-op.
func (m *Metrics) Observe(snap epistemic.Snapshot) {
	if m == nil {
		return
	}
	m.Steps.Inc()
	m.Projection.Set(snap.Projection)
	m.Memory.Set(snap.Memory)
	m.Threshold.Set(snap.Threshold)
	m.Distortion.Observe(snap.Distortion)
	if snap.Ruptured {
		m.Ruptures.WithLabelValues(snap.CollapseType).Inc()
	}
}

// #endregion metrics

// Package metrics exports KPI evaluation telemetry to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "greenratchet"

// Recorder implements kpi.Recorder with Prometheus collectors.
type Recorder struct {
	evaluations *prometheus.CounterVec
	errors      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	cacheLookup *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with registerer.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewRecorder(registerer prometheus.Registerer) (*Recorder, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kpi_evaluations_total",
			Help:      "Completed KPI evaluations by kind and status.",
		}, []string{"kind", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kpi_evaluation_errors_total",
			Help:      "Failed KPI evaluations by kind and error reason.",
		}, []string{"kind", "reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kpi_evaluation_duration_seconds",
			Help:      "KPI evaluation latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"kind"}),
		cacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kpi_cache_lookups_total",
			Help:      "Evaluation cache lookups by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{r.evaluations, r.errors, r.duration, r.cacheLookup} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveEvaluation counts a completed evaluation and records its latency.
func (r *Recorder) ObserveEvaluation(kind, status string, d time.Duration) {
	r.evaluations.WithLabelValues(kind, status).Inc()
	r.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveError counts a failed evaluation.
func (r *Recorder) ObserveError(kind, reason string) {
	r.errors.WithLabelValues(kind, reason).Inc()
}

// ObserveCacheLookup counts a cache hit or miss.
func (r *Recorder) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookup.WithLabelValues(result).Inc()
}

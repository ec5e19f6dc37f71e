// Package metrics exposes sampling counters in the Prometheus format.
//
// All methods are safe on a nil *Metrics, so callers can observe
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viant/scatter/progress"
)

const namespace = "scatter"

// Trial outcomes
const (
	OutcomeDispatched = "dispatched"
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeDuplicate  = "duplicate"
	OutcomeLost       = "lost"
)

// Metrics holds collectors registered on a private registry
type Metrics struct {
	registry    *prometheus.Registry
	trials      *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	fitness     prometheus.Gauge
	sampling    *prometheus.HistogramVec
	worker      *prometheus.CounterVec
}

// ObserveSample records the final counters of one evaluation
func (m *Metrics) ObserveSample(p progress.Progress, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.trials.WithLabelValues(p.Backend, OutcomeDispatched).Add(float64(p.Dispatched))
	m.trials.WithLabelValues(p.Backend, OutcomeCompleted).Add(float64(p.Completed))
	m.trials.WithLabelValues(p.Backend, OutcomeFailed).Add(float64(p.Failed))
	m.trials.WithLabelValues(p.Backend, OutcomeDuplicate).Add(float64(p.Duplicates))
	m.trials.WithLabelValues(p.Backend, OutcomeLost).Add(float64(p.Lost()))
	m.sampling.WithLabelValues(p.Backend).Observe(elapsed.Seconds())
}

// ObserveEvaluation records an evaluation result; the fitness gauge only
// moves on success
func (m *Metrics) ObserveEvaluation(backend string, fitness float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.evaluations.WithLabelValues(backend, "error").Inc()
		return
	}
	m.evaluations.WithLabelValues(backend, "ok").Inc()
	m.fitness.Set(fitness)
}

// ObserveWorkerTrial records one trial handled by a worker
func (m *Metrics) ObserveWorkerTrial(outcome string) {
	if m == nil {
		return
	}
	m.worker.WithLabelValues(outcome).Inc()
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// New creates and registers the collectors
func New() *Metrics {
	ret := &Metrics{
		registry: prometheus.NewRegistry(),
		trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Trials by backend and outcome",
		}, []string{"backend", "outcome"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluations by backend and result",
		}, []string{"backend", "result"}),
		fitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_fitness",
			Help:      "Fitness of the last successful evaluation, lower is better",
		}),
		sampling: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sampling_duration_seconds",
			Help:      "Wall time of one sampling pass",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"backend"}),
		worker: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "trials_total",
			Help:      "Trials handled by this worker by outcome",
		}, []string{"outcome"}),
	}
	ret.registry.MustRegister(ret.trials, ret.evaluations, ret.fitness, ret.sampling, ret.worker)
	return ret
}

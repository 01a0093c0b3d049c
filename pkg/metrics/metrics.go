// Package metrics exports metrics of the planner loops in the prometheus format.
//
// All methods of *Metrics are safe for nil receivers, which do nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	evaluated   prometheus.Counter
	transitions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	cycles      *prometheus.HistogramVec
	orders      *prometheus.CounterVec
}

// New creates metrics with their own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prodplan_jobsteps_evaluated_total",
			Help: "Total number of job step evaluations",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodplan_jobstep_transitions_total",
			Help: "Total number of job step state transitions",
		}, []string{"from", "to"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodplan_loop_errors_total",
			Help: "Total number of errors in loops",
		}, []string{"loop"}),
		cycles: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prodplan_loop_cycle_duration_seconds",
			Help:    "Duration of a loop cycle in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"loop"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prodplan_orders_planned_total",
			Help: "Total number of orders processed by the planning loop, by their result",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.evaluated, m.transitions, m.errors, m.cycles, m.orders)
	return m
}

// Registry to gather metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves metrics. Mount it on "/metrics".
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Evaluated counts an evaluation of a job step, with its state before and after.
//
// Transitions are counted only when the state is changed.
func (m *Metrics) Evaluated(from, to string) {
	if m == nil {
		return
	}
	m.evaluated.Inc()
	if from != to {
		m.transitions.WithLabelValues(from, to).Inc()
	}
}

// Failed counts an error in the loop.
func (m *Metrics) Failed(loop string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(loop).Inc()
}

// Cycle observes a duration of a cycle of the loop.
func (m *Metrics) Cycle(loop string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(loop).Observe(d.Seconds())
}

// Planned counts an order processed by the planning loop.
// result is the state the order gets, or "postponed".
func (m *Metrics) Planned(result string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(result).Inc()
}

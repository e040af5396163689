// Package metrics exposes run counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/benefit-engine/vr"
)

const namespace = "vr"

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	employees   *prometheus.GaugeVec
	exclusions  *prometheus.CounterVec
	totalValue  prometheus.Gauge
	runDuration prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of runs by status.",
		}, []string{"status"}),
		employees: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_employees",
			Help:      "Employees in the last successful run by eligibility.",
		}, []string{"eligibility"}),
		exclusions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exclusions_total",
			Help:      "Total number of exclusions applied by rule phase.",
		}, []string{"phase"}),
		totalValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_total_value",
			Help:      "Total VR value of the last successful run.",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRun records a successful run.
func (m *Metrics) ObserveRun(res *vr.Result, elapsed time.Duration) {
	m.runs.WithLabelValues(StatusSucceeded).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.employees.WithLabelValues("eligible").Set(float64(res.Stats.Eligible))
	m.employees.WithLabelValues("ineligible").Set(float64(res.Stats.Ineligible))
	m.totalValue.Set(res.Stats.TotalValue.InexactFloat64())

	res.Table.Each(func(rec *vr.Record) {
		for _, e := range rec.Exclusions {
			m.exclusions.WithLabelValues(string(e.Phase)).Inc()
		}
	})
}

// ObserveFailure records a run that aborted.
func (m *Metrics) ObserveFailure(elapsed time.Duration) {
	m.runs.WithLabelValues(StatusFailed).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Package metrics exposes sync and TLE counters for Prometheus. Each
// Metrics value owns its registry so tests and multiple daemons in one
// process don't collide.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/large-farva/groundstation/internal/trsp"
)

// Metrics holds the station collectors.
type Metrics struct {
	reg *prometheus.Registry

	syncRuns    *prometheus.CounterVec // result: ok, error, busy
	syncItems   *prometheus.CounterVec // outcome: written, skipped, malformed, failed
	lastSuccess prometheus.Gauge
	duration    prometheus.Histogram
	satellites  prometheus.Gauge
	tleRefresh  *prometheus.CounterVec // result: ok, error
	tleElements prometheus.Gauge
}

// New registers every collector on a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		syncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trsp_sync_runs_total",
			Help: "Transponder sync runs by result.",
		}, []string{"result"}),
		syncItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trsp_sync_items_total",
			Help: "Feed items processed by outcome.",
		}, []string{"outcome"}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "trsp_sync_last_success_timestamp_seconds",
			Help: "Unix time the last successful sync finished.",
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "trsp_sync_duration_seconds",
			Help:    "Wall time of sync runs.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		satellites: f.NewGauge(prometheus.GaugeOpts{
			Name: "trsp_satellites",
			Help: "Satellites written by the last completed sync.",
		}),
		tleRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tle_refresh_total",
			Help: "TLE refresh attempts by result.",
		}, []string{"result"}),
		tleElements: f.NewGauge(prometheus.GaugeOpts{
			Name: "tle_elements",
			Help: "Element sets in the last TLE file written.",
		}),
	}
}

// ObserveSync records one finished or rejected run.
func (m *Metrics) ObserveSync(sum trsp.Summary, err error) {
	switch {
	case errors.Is(err, trsp.ErrBusy):
		m.syncRuns.WithLabelValues("busy").Inc()
		return
	case err != nil:
		m.syncRuns.WithLabelValues("error").Inc()
	default:
		m.syncRuns.WithLabelValues("ok").Inc()
		m.satellites.Set(float64(sum.Satellites))
		m.lastSuccess.Set(float64(sum.StartedAt.Unix()) + float64(sum.DurationMS)/1000)
	}

	m.syncItems.WithLabelValues("written").Add(float64(sum.Written))
	m.syncItems.WithLabelValues("skipped").Add(float64(sum.Skipped))
	m.syncItems.WithLabelValues("malformed").Add(float64(sum.Malformed))
	m.syncItems.WithLabelValues("failed").Add(float64(sum.Failed))
	m.duration.Observe(float64(sum.DurationMS) / 1000)
}

// ObserveTLE records one TLE refresh attempt.
func (m *Metrics) ObserveTLE(elements int, err error) {
	if err != nil {
		m.tleRefresh.WithLabelValues("error").Inc()
		return
	}
	m.tleRefresh.WithLabelValues("ok").Inc()
	m.tleElements.Set(float64(elements))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

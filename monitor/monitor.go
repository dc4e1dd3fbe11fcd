// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveWatchers prometheus.Gauge
	RoundsRecorded prometheus.Counter
	Recalculations prometheus.Counter
	RecalcDuration prometheus.Histogram
	RoundsRejected prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_watchers",
			Help:      "Number of connected live-standings watchers",
		}),
		RoundsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_recorded_total",
			Help:      "Total number of rounds appended to a ledger",
		}),
		Recalculations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recalculations_total",
			Help:      "Total number of ledger replays after an edit or delete",
		}),
		RecalcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recalc_duration_seconds",
			Help:      "Ledger replay latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		RoundsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_rejected_total",
			Help:      "Total number of round submissions rejected by validation",
		}),
	}

	reg.MustRegister(
		m.ActiveWatchers,
		m.RoundsRecorded,
		m.Recalculations,
		m.RecalcDuration,
		m.RoundsRejected,
	)

	return m
}

// Monitor 指标采集。每个实例用自己的 registry，避免测试里重复注册。
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	registry := prometheus.NewRegistry()
	return &Monitor{
		metrics:   NewMetrics(namespace, registry),
		registry:  registry,
		startTime: time.Now(),
	}
}

// Handler serves the /metrics endpoint.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Monitor) IncWatchers() {
	m.metrics.ActiveWatchers.Inc()
}

func (m *Monitor) DecWatchers() {
	m.metrics.ActiveWatchers.Dec()
}

func (m *Monitor) IncRoundsRecorded() {
	m.metrics.RoundsRecorded.Inc()
}

func (m *Monitor) IncRoundsRejected() {
	m.metrics.RoundsRejected.Inc()
}

func (m *Monitor) ObserveRecalc(duration time.Duration) {
	m.metrics.Recalculations.Inc()
	m.metrics.RecalcDuration.Observe(duration.Seconds())
}

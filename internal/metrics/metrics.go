// Package metrics provides Prometheus metrics for the scan and delivery pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedbot"

// Label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Metrics holds the collectors of one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	ScanCycles    *prometheus.CounterVec
	ScanSkipped   prometheus.Counter
	ScanDuration  prometheus.Histogram
	FetchErrors   *prometheus.CounterVec
	LinksEvicted  prometheus.Counter
	Notifications *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		ScanCycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_cycles_total",
				Help:      "Total number of finished scan cycles",
			},
			[]string{"result"},
		),
		ScanSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scan_skipped_total",
				Help:      "Scan ticks skipped because the previous cycle was still running",
			},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scan_duration_seconds",
				Help:      "Duration of scan cycles in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_errors_total",
				Help:      "Total number of failed feed fetches and searches",
			},
			[]string{"feed_type"},
		),
		LinksEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_evicted_total",
				Help:      "Total number of delivery records removed by retention",
			},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of notifications by delivery status",
			},
			[]string{"status"},
		),
	}
}

// NewWithRuntime is New plus the Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registered metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordCycle records a finished scan cycle.
func (m *Metrics) RecordCycle(result string, seconds float64) {
	if m == nil {
		return
	}
	m.ScanCycles.WithLabelValues(result).Inc()
	m.ScanDuration.Observe(seconds)
}

// RecordSkipped records a tick that found a cycle in flight.
func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.ScanSkipped.Inc()
}

// RecordFetchError records a failed fetch or search.
func (m *Metrics) RecordFetchError(feedType string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(feedType).Inc()
}

// RecordEvicted records evicted delivery records.
func (m *Metrics) RecordEvicted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksEvicted.Add(float64(n))
}

// RecordNotification records one notification outcome.
func (m *Metrics) RecordNotification(status string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(status).Inc()
}

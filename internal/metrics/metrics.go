// Package metrics holds the Prometheus collectors of the service, registered
// on a private registry that /metrics exposes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookkeeping"

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLocked  = "locked"
)

type Metrics struct {
	registry *prometheus.Registry

	ForecastRuns            *prometheus.CounterVec
	ForecastDuration        prometheus.Histogram
	ForecastPersistFailures prometheus.Counter
	ForecastCriticalAlerts  prometheus.Counter

	SyncRuns        *prometheus.CounterVec
	SyncRecords     *prometheus.CounterVec
	LedgerRequests  *prometheus.CounterVec
	LedgerDuration  prometheus.Histogram
	ReportCacheHits *prometheus.CounterVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers every collector on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ForecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "runs_total",
			Help:      "Forecast generations by outcome",
		}, []string{"outcome"}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "duration_seconds",
			Help:      "Forecast generation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ForecastPersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "persist_failures_total",
			Help:      "Forecasts computed but not persisted",
		}),
		ForecastCriticalAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "critical_alerts_total",
			Help:      "Critical alerts raised by forecast runs",
		}),

		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Ledger synchronisations by outcome",
		}, []string{"outcome"}),
		SyncRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records upserted by ledger synchronisation",
		}, []string{"kind"}),
		LedgerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "requests_total",
			Help:      "Ledger API requests by endpoint and status code",
		}, []string{"endpoint", "code"}),
		LedgerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "request_duration_seconds",
			Help:      "Ledger API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		ReportCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "cache_lookups_total",
			Help:      "Report cache lookups by result",
		}, []string{"result"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ForecastRuns,
		m.ForecastDuration,
		m.ForecastPersistFailures,
		m.ForecastCriticalAlerts,
		m.SyncRuns,
		m.SyncRecords,
		m.LedgerRequests,
		m.LedgerDuration,
		m.ReportCacheHits,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordForecast(outcome string, duration time.Duration, criticalAlerts int) {
	m.ForecastRuns.WithLabelValues(outcome).Inc()
	m.ForecastDuration.Observe(duration.Seconds())
	m.ForecastCriticalAlerts.Add(float64(criticalAlerts))
}

func (m *Metrics) RecordSync(outcome string, counts map[string]int) {
	m.SyncRuns.WithLabelValues(outcome).Inc()
	for kind, n := range counts {
		m.SyncRecords.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) RecordLedgerRequest(endpoint string, statusCode int, duration time.Duration) {
	m.LedgerRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	m.LedgerDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordReportCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ReportCacheHits.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

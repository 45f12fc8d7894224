// Package metrics holds the Prometheus instrumentation for the charging
// server. The registry is private and exposed on the management server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the charging server.
type Metrics struct {
	registry *prometheus.Registry

	// Credit-control traffic.
	CcrTotal *prometheus.CounterVec
	CcaTotal *prometheus.CounterVec

	// Sessions.
	ActiveSessions  prometheus.Gauge
	SessionTimeouts prometheus.Counter
	DroppedRequests prometheus.Counter

	// Ledger and rating round trips.
	LedgerDuration prometheus.Histogram
	RaterFallbacks prometheus.Counter

	// Settlement.
	CdrWritesTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		CcrTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocs_ccr_total",
			Help: "Total number of credit-control requests received.",
		}, []string{"request_type"}),

		CcaTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocs_cca_total",
			Help: "Total number of credit-control answers sent.",
		}, []string{"request_type", "result_code"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ocs_active_sessions",
			Help: "Number of currently live credit-control sessions.",
		}),

		SessionTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocs_session_timeouts_total",
			Help: "Total number of sessions force-closed by the validity timer.",
		}),

		DroppedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocs_dropped_requests_total",
			Help: "Total number of requests dropped without an answer.",
		}),

		LedgerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ocs_ledger_duration_seconds",
			Help:    "Ledger round-trip duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),

		RaterFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ocs_rater_fallbacks_total",
			Help: "Total number of rating calls that fell back to the default rate.",
		}),

		CdrWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ocs_cdr_writes_total",
			Help: "Total number of settlement records written.",
		}, []string{"status"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ocs_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.CcrTotal,
		m.CcaTotal,
		m.ActiveSessions,
		m.SessionTimeouts,
		m.DroppedRequests,
		m.LedgerDuration,
		m.RaterFallbacks,
		m.CdrWritesTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

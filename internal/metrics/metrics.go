// Package metrics instruments session coordination with Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace        = "searchmcp"
	subsystemSession = "session"
	subsystemHTTP    = "http"
)

// Metrics is the instrumentation surface consumed by the coordinator and the
// HTTP adapter.
type Metrics interface {
	GetRegistry() *prometheus.Registry

	ObserveSessionCreated()
	ObserveSessionRehydrated()
	ObserveSessionRotated()
	ObserveSessionTerminated()
	ObserveHijackRejected()
	ObserveRateLimitRejected()
	SetActiveSessions(count int)

	IncrementHTTPRequests()
	IncrementHTTPErrors()
}

type metrics struct {
	registry *prometheus.Registry

	sessionsCreated     prometheus.Counter
	sessionsRehydrated  prometheus.Counter
	sessionsRotated     prometheus.Counter
	sessionsTerminated  prometheus.Counter
	hijacksRejected     prometheus.Counter
	rateLimitRejections prometheus.Counter
	activeSessions      prometheus.Gauge

	httpRequestsTotal prometheus.Counter
	httpErrorsTotal   prometheus.Counter
}

// NewMetrics creates the Prometheus-backed metrics collector.
func NewMetrics() Metrics {
	m := &metrics{registry: prometheus.NewRegistry()}

	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: namespace,
	}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "created_total",
		Help:      "The total number of sessions created.",
	})
	m.sessionsRehydrated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "rehydrated_total",
		Help:      "The total number of sessions rebuilt from the distributed store.",
	})
	m.sessionsRotated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "rotated_total",
		Help:      "The total number of sessions rebuilt after credential rotation.",
	})
	m.sessionsTerminated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "terminated_total",
		Help:      "The total number of explicitly terminated sessions.",
	})
	m.hijacksRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "hijack_rejections_total",
		Help:      "The total number of requests rejected by session binding checks.",
	})
	m.rateLimitRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "rate_limit_rejections_total",
		Help:      "The total number of session creations blocked by the rate limit.",
	})
	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemSession,
		Name:      "active_local",
		Help:      "The number of live sessions cached in this process.",
	})
	m.registry.MustRegister(m.sessionsCreated, m.sessionsRehydrated, m.sessionsRotated,
		m.sessionsTerminated, m.hijacksRejected, m.rateLimitRejections, m.activeSessions)

	m.httpRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemHTTP,
		Name:      "requests_total",
		Help:      "The total number of HTTP requests received.",
	})
	m.httpErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystemHTTP,
		Name:      "errors_total",
		Help:      "The total number of HTTP requests answered with a protocol error.",
	})
	m.registry.MustRegister(m.httpRequestsTotal, m.httpErrorsTotal)

	return m
}

func (m *metrics) GetRegistry() *prometheus.Registry { return m.registry }

func (m *metrics) ObserveSessionCreated()      { m.sessionsCreated.Inc() }
func (m *metrics) ObserveSessionRehydrated()   { m.sessionsRehydrated.Inc() }
func (m *metrics) ObserveSessionRotated()      { m.sessionsRotated.Inc() }
func (m *metrics) ObserveSessionTerminated()   { m.sessionsTerminated.Inc() }
func (m *metrics) ObserveHijackRejected()      { m.hijacksRejected.Inc() }
func (m *metrics) ObserveRateLimitRejected()   { m.rateLimitRejections.Inc() }
func (m *metrics) SetActiveSessions(count int) { m.activeSessions.Set(float64(count)) }
func (m *metrics) IncrementHTTPRequests()      { m.httpRequestsTotal.Inc() }
func (m *metrics) IncrementHTTPErrors()        { m.httpErrorsTotal.Inc() }

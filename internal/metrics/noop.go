package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewNoop returns a metrics implementation that records nothing. Used in
// tests and as the coordinator default.
func NewNoop() Metrics {
	return &noopMetrics{registry: prometheus.NewRegistry()}
}

type noopMetrics struct {
	registry *prometheus.Registry
}

func (m *noopMetrics) GetRegistry() *prometheus.Registry { return m.registry }

func (m *noopMetrics) ObserveSessionCreated()    {}
func (m *noopMetrics) ObserveSessionRehydrated() {}
func (m *noopMetrics) ObserveSessionRotated()    {}
func (m *noopMetrics) ObserveSessionTerminated() {}
func (m *noopMetrics) ObserveHijackRejected()    {}
func (m *noopMetrics) ObserveRateLimitRejected() {}
func (m *noopMetrics) SetActiveSessions(int)     {}
func (m *noopMetrics) IncrementHTTPRequests()    {}
func (m *noopMetrics) IncrementHTTPErrors()      {}


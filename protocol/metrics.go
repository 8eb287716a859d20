package protocol

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "mcp"

// metrics holds the Prometheus collectors of one Protocol. The collectors
// are shared by every Protocol registered with the same registry and are
// split by a peer label. A nil *metrics records nothing.
type metrics struct {
	peer string

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	handledTotal     *prometheus.CounterVec
	handleDuration   *prometheus.HistogramVec
	notificationsOut *prometheus.CounterVec
	debouncedTotal   *prometheus.CounterVec
	inFlight         *prometheus.GaugeVec
	protocolErrors   *prometheus.CounterVec
}

// newMetrics registers the collectors with reg, or reuses the ones a previous
// Protocol registered there.
func newMetrics(reg prometheus.Registerer, peer string) *metrics {
	if reg == nil {
		return nil
	}
	return &metrics{
		peer: peer,

		requestsTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "requests_total",
			Help:      "Outbound requests by method and outcome",
		}, []string{"peer", "method", "outcome"})),

		requestDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "request_duration_seconds",
			Help:      "Time from sending an outbound request to its settlement",
			Buckets:   prometheus.DefBuckets,
		}, []string{"peer", "method"})),

		handledTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "handled_requests_total",
			Help:      "Inbound requests by method and outcome",
		}, []string{"peer", "method", "outcome"})),

		handleDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "handle_duration_seconds",
			Help:      "Inbound request handler duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"peer", "method"})),

		notificationsOut: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "notifications_sent_total",
			Help:      "Notifications written to the transport",
		}, []string{"peer", "method"})),

		debouncedTotal: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "notifications_debounced_total",
			Help:      "Notification sends absorbed by debouncing",
		}, []string{"peer", "method"})),

		inFlight: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "pending_requests",
			Help:      "Outbound requests awaiting a response",
		}, []string{"peer"})),

		protocolErrors: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "protocol",
			Name:      "errors_total",
			Help:      "Errors reported to the error sink",
		}, []string{"peer"})),
	}
}

// register adds c to reg. When an identical collector is already registered
// that one is returned instead. Any other registration error panics, as
// promauto does.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) requestStarted() {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(m.peer).Inc()
}

func (m *metrics) requestDone(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(m.peer).Dec()
	m.requestsTotal.WithLabelValues(m.peer, method, outcome).Inc()
	m.requestDuration.WithLabelValues(m.peer, method).Observe(d.Seconds())
}

func (m *metrics) handled(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.handledTotal.WithLabelValues(m.peer, method, outcome).Inc()
	m.handleDuration.WithLabelValues(m.peer, method).Observe(d.Seconds())
}

func (m *metrics) notificationSent(method string) {
	if m == nil {
		return
	}
	m.notificationsOut.WithLabelValues(m.peer, method).Inc()
}

func (m *metrics) debounced(method string) {
	if m == nil {
		return
	}
	m.debouncedTotal.WithLabelValues(m.peer, method).Inc()
}

func (m *metrics) errorReported() {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(m.peer).Inc()
}

// Package metrics exposes Prometheus instrumentation for the portal broker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/target/hotelease-portal/internal/domain/event"
	obserrors "github.com/target/hotelease-portal/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsPublished *prometheus.CounterVec
	handlerPanics   *prometheus.CounterVec
	subscribers     *prometheus.GaugeVec
	transitions     *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	logins          *prometheus.CounterVec
	startup         *prometheus.HistogramVec
	portalsActive   prometheus.Gauge
	portalsEvicted  prometheus.Counter
	relayMessages   *prometheus.CounterVec
}

// New registers collectors on reg. Pass prometheus.DefaultRegisterer in production
// and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelease_eventbus_published_total",
			Help: "Events published by bus and event type",
		}, []string{"bus", "event_type"}),
		handlerPanics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelease_eventbus_handler_panics_total",
			Help: "Recovered subscriber panics by bus and event type",
		}, []string{"bus", "event_type"}),
		subscribers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hotelease_eventbus_subscribers",
			Help: "Registered subscribers on the most recently changed bus of each kind",
		}, []string{"bus"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelease_arbitration_transitions_total",
			Help: "View transitions applied by the arbitrator",
		}, []string{"view", "reason"}),
		resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelease_role_resolutions_total",
			Help: "Role resolution outcomes",
		}, []string{"outcome", "error_class"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelease_login_attempts_total",
			Help: "Explicit login attempts by method and result",
		}, []string{"method", "result"}),
		startup: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hotelease_arbitration_startup_seconds",
			Help:    "Time from portal start to the first resolved view",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"source"}),
		portalsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "hotelease_portals_active",
			Help: "Portals currently held by the registry",
		}),
		portalsEvicted: f.NewCounter(prometheus.CounterOpts{
			Name: "hotelease_portals_evicted_total",
			Help: "Portals evicted after idling",
		}),
		relayMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hotelease_event_relay_messages_total",
			Help: "Domain events relayed across instances",
		}, []string{"direction", "result"}),
	}
}

// EventPublished implements eventbus.Observer.
func (m *Metrics) EventPublished(bus string, t event.Type) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(bus, string(t)).Inc()
}

// HandlerPanicked implements eventbus.Observer.
func (m *Metrics) HandlerPanicked(bus string, t event.Type) {
	if m == nil {
		return
	}
	m.handlerPanics.WithLabelValues(bus, string(t)).Inc()
}

// SubscribersChanged implements eventbus.Observer.
func (m *Metrics) SubscribersChanged(bus string, count int) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(bus).Set(float64(count))
}

// Transition records an applied view change.
func (m *Metrics) Transition(view, reason string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(view, reason).Inc()
}

// RoleResolution records a resolver outcome; err adds an error_class label.
func (m *Metrics) RoleResolution(outcome string, err error) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(outcome, obserrors.Classify(err)).Inc()
}

// LoginAttempt records an explicit login.
func (m *Metrics) LoginAttempt(method, result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, result).Inc()
}

// ObserveStartup records how long initial arbitration took and which source decided it.
func (m *Metrics) ObserveStartup(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.startup.WithLabelValues(source).Observe(d.Seconds())
}

// PortalsActive sets the live portal gauge.
func (m *Metrics) PortalsActive(n int) {
	if m == nil {
		return
	}
	m.portalsActive.Set(float64(n))
}

// PortalsEvicted adds n evictions.
func (m *Metrics) PortalsEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.portalsEvicted.Add(float64(n))
}

// RelayMessage records a relay send or receive.
func (m *Metrics) RelayMessage(direction, result string) {
	if m == nil {
		return
	}
	m.relayMessages.WithLabelValues(direction, result).Inc()
}

// Package metrics exposes server counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vovakirdan/elimination/internal/multiplayer"
	"github.com/vovakirdan/elimination/internal/protocol"
)

const namespace = "elimination"

// Metrics holds every collector the server updates. Each instance owns its
// registry, so tests can create as many as they like. The recording methods
// are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	connections    prometheus.Gauge
	accepted       prometheus.Counter
	logins         *prometheus.CounterVec
	commands       *prometheus.CounterVec
	protocolErrors prometheus.Counter
	roomsActive    *prometheus.GaugeVec
	roomsClosed    *prometheus.CounterVec
}

var _ multiplayer.Observer = (*Metrics)(nil)

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Client connections accepted since start.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by response code.",
		}, []string{"code"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_received_total",
			Help:      "Commands received from clients by type.",
		}, []string{"type"}),
		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections closed for malformed packets.",
		}),
		roomsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms currently in progress.",
		}, []string{"opponent"}),
		roomsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_closed_total",
			Help:      "Rooms closed by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.connections,
		m.accepted,
		m.logins,
		m.commands,
		m.protocolErrors,
		m.roomsActive,
		m.roomsClosed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.connections.Inc()
}

// ConnClosed records a disposed connection.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Login records a login outcome.
func (m *Metrics) Login(code int) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Command records a decoded client command.
func (m *Metrics) Command(t protocol.CommandType) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(t.String()).Inc()
}

// ProtocolError records a connection dropped for bad framing or payload.
func (m *Metrics) ProtocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

// RoomOpened implements multiplayer.Observer.
func (m *Metrics) RoomOpened(vsAI bool) {
	if m == nil {
		return
	}
	m.roomsActive.WithLabelValues(opponent(vsAI)).Inc()
}

// RoomClosed implements multiplayer.Observer.
func (m *Metrics) RoomClosed(vsAI bool, reason string) {
	if m == nil {
		return
	}
	m.roomsActive.WithLabelValues(opponent(vsAI)).Dec()
	m.roomsClosed.WithLabelValues(reason).Inc()
}

func opponent(vsAI bool) string {
	if vsAI {
		return "ai"
	}
	return "human"
}

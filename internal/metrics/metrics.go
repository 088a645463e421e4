// Package metrics exposes Prometheus instrumentation for the transport and
// the collaboration coordinator.
//
// A nil *Metrics is valid and records nothing, so components only need a
// metrics option when the caller wants them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "boardsync"

// Metrics holds Prometheus collectors for one Hub.
//
// Metrics:
//   - boardsync_transport_messages_sent_total{type}
//   - boardsync_transport_messages_received_total{type}
//   - boardsync_transport_send_failures_total{reason}
//   - boardsync_transport_reconnect_attempts_total
//   - boardsync_transport_connected
//   - boardsync_collab_edits_total{direction}
//   - boardsync_collab_conflicts_detected_total{type}
//   - boardsync_collab_conflicts_resolved_total{resolution}
//   - boardsync_collab_active_users
//   - boardsync_collab_locks_held
type Metrics struct {
	MessagesSent      *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	SendFailures      *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	Connected         prometheus.Gauge

	Edits             *prometheus.CounterVec
	ConflictsDetected *prometheus.CounterVec
	ConflictsResolved *prometheus.CounterVec
	ActiveUsers       prometheus.Gauge
	LocksHeld         prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "messages_sent_total",
			Help:      "Total number of envelopes written to the socket",
		}, []string{"type"}),

		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "messages_received_total",
			Help:      "Total number of envelopes dispatched from other users",
		}, []string{"type"}),

		SendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "send_failures_total",
			Help:      "Total number of sends that returned false",
		}, []string{"reason"}), // "not_connected", "marshal", "write"

		ReconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of scheduled reconnect attempts",
		}),

		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "connected",
			Help:      "1 while the socket is open, 0 otherwise",
		}),

		Edits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "collab",
			Name:      "edits_total",
			Help:      "Total number of element edits",
		}, []string{"direction"}), // "sent", "applied"

		ConflictsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "collab",
			Name:      "conflicts_detected_total",
			Help:      "Total number of queued conflicts",
		}, []string{"type"}),

		ConflictsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "collab",
			Name:      "conflicts_resolved_total",
			Help:      "Total number of resolved conflicts",
		}, []string{"resolution"}),

		ActiveUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "collab",
			Name:      "active_users",
			Help:      "Number of other users present in the project",
		}),

		LocksHeld: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "collab",
			Name:      "locks_held",
			Help:      "Number of live element locks",
		}),
	}
}

// MessageSent counts one outbound envelope.
func (m *Metrics) MessageSent(msgType string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(msgType).Inc()
}

// MessageReceived counts one dispatched inbound envelope.
func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(msgType).Inc()
}

// SendFailed counts one failed send.
func (m *Metrics) SendFailed(reason string) {
	if m == nil {
		return
	}
	m.SendFailures.WithLabelValues(reason).Inc()
}

// ReconnectScheduled counts one reconnect attempt.
func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.ReconnectAttempts.Inc()
}

// SetConnected records the socket state.
func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.Connected.Set(1)
		return
	}
	m.Connected.Set(0)
}

// Edit counts one edit in the given direction ("sent" or "applied").
func (m *Metrics) Edit(direction string) {
	if m == nil {
		return
	}
	m.Edits.WithLabelValues(direction).Inc()
}

// ConflictDetected counts one queued conflict.
func (m *Metrics) ConflictDetected(conflictType string) {
	if m == nil {
		return
	}
	m.ConflictsDetected.WithLabelValues(conflictType).Inc()
}

// ConflictResolved counts one resolved conflict.
func (m *Metrics) ConflictResolved(resolution string) {
	if m == nil {
		return
	}
	m.ConflictsResolved.WithLabelValues(resolution).Inc()
}

// SetActiveUsers records the presence map size.
func (m *Metrics) SetActiveUsers(n int) {
	if m == nil {
		return
	}
	m.ActiveUsers.Set(float64(n))
}

// SetLocksHeld records the lock table size.
func (m *Metrics) SetLocksHeld(n int) {
	if m == nil {
		return
	}
	m.LocksHeld.Set(float64(n))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessageSent("ping")
	m.SetConnected(true)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["boardsync_transport_messages_sent_total"])
	assert.True(t, names["boardsync_transport_connected"])
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.MessageSent("collaborative_edit")
	m.MessageSent("collaborative_edit")
	m.MessageReceived("user_joined")
	m.SendFailed("not_connected")
	m.ReconnectScheduled()
	m.Edit("sent")
	m.ConflictDetected("locked_element")
	m.ConflictResolved("accept_changes")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesSent.WithLabelValues("collaborative_edit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesReceived.WithLabelValues("user_joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SendFailures.WithLabelValues("not_connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconnectAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Edits.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictsDetected.WithLabelValues("locked_element")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictsResolved.WithLabelValues("accept_changes")))
}

func TestGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetConnected(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connected))
	m.SetConnected(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Connected))

	m.SetActiveUsers(3)
	m.SetLocksHeld(2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveUsers))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LocksHeld))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.MessageSent("x")
		m.MessageReceived("x")
		m.SendFailed("x")
		m.ReconnectScheduled()
		m.SetConnected(true)
		m.Edit("sent")
		m.ConflictDetected("x")
		m.ConflictResolved("x")
		m.SetActiveUsers(1)
		m.SetLocksHeld(1)
	})
}

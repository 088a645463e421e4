package sched

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var start = time.UnixMilli(1_700_000_000_000)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	clock := NewFake(start)

	var order []string
	clock.AfterFunc(300*time.Millisecond, func() { order = append(order, "b") })
	clock.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	clock.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	clock.AfterFunc(time.Second, func() { order = append(order, "late") })

	clock.Advance(500 * time.Millisecond)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, start.Add(500*time.Millisecond), clock.Now())
	assert.Equal(t, 1, clock.Pending())
}

func TestFake_CallbackSeesDueTime(t *testing.T) {
	clock := NewFake(start)

	var seen time.Time
	clock.AfterFunc(250*time.Millisecond, func() { seen = clock.Now() })
	clock.Advance(time.Second)

	assert.Equal(t, start.Add(250*time.Millisecond), seen)
}

func TestFake_Stop(t *testing.T) {
	clock := NewFake(start)

	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	clock.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestFake_NextDue(t *testing.T) {
	clock := NewFake(start)

	_, ok := clock.NextDue()
	assert.False(t, ok)

	clock.AfterFunc(4*time.Second, func() {})
	clock.AfterFunc(time.Second, func() {})

	d, ok := clock.NextDue()
	require.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestScheduler_After(t *testing.T) {
	clock := NewFake(start)
	s := New(clock)

	calls := 0
	h := s.After(time.Second, func() { calls++ })

	assert.True(t, h.Active())
	assert.Equal(t, 1, s.Pending())

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, calls)

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.False(t, h.Active())
	assert.Equal(t, 0, s.Pending())
	assert.False(t, h.Cancel(), "cancel after fire")
}

func TestScheduler_Every(t *testing.T) {
	clock := NewFake(start)
	s := New(clock)

	calls := 0
	h := s.Every(30*time.Second, func() { calls++ })

	clock.Advance(95 * time.Second)
	assert.Equal(t, 3, calls)

	require.True(t, h.Cancel())
	clock.Advance(time.Minute)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, s.Pending())
	assert.Equal(t, 0, clock.Pending())
}

func TestScheduler_EveryCancelledFromCallback(t *testing.T) {
	clock := NewFake(start)
	s := New(clock)

	calls := 0
	var h *Handle
	h = s.Every(time.Second, func() {
		calls++
		h.Cancel()
	})

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, clock.Pending())
}

func TestScheduler_CancelAll(t *testing.T) {
	clock := NewFake(start)
	s := New(clock)

	fired := 0
	s.After(time.Second, func() { fired++ })
	s.After(2*time.Second, func() { fired++ })
	s.Every(time.Second, func() { fired++ })

	assert.Equal(t, 3, s.CancelAll())
	assert.Equal(t, 0, s.Pending())

	clock.Advance(time.Minute)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, s.CancelAll())
}

func TestHandle_NilCancel(t *testing.T) {
	var h *Handle
	assert.False(t, h.Cancel())
	assert.False(t, h.Active())
}

func TestScheduler_SystemClock(t *testing.T) {
	s := New(nil)

	var fired atomic.Bool
	done := make(chan struct{})
	s.After(5*time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.True(t, fired.Load())
}

func TestKeyed_SetReplaces(t *testing.T) {
	clock := NewFake(start)
	k := NewKeyed[string](New(clock))

	var got []string
	k.Set("card-1", 300*time.Millisecond, func() { got = append(got, "first") })
	clock.Advance(200 * time.Millisecond)
	k.Set("card-1", 300*time.Millisecond, func() { got = append(got, "second") })

	clock.Advance(200 * time.Millisecond)
	assert.Empty(t, got, "first callback was replaced")
	assert.True(t, k.Has("card-1"))

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"second"}, got)
	assert.False(t, k.Has("card-1"))
	assert.Equal(t, 0, k.Len())
}

func TestKeyed_IndependentKeys(t *testing.T) {
	clock := NewFake(start)
	k := NewKeyed[string](New(clock))

	var got []string
	k.Set("a", time.Second, func() { got = append(got, "a") })
	k.Set("b", 2*time.Second, func() { got = append(got, "b") })
	assert.Equal(t, 2, k.Len())

	clock.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestKeyed_Cancel(t *testing.T) {
	clock := NewFake(start)
	k := NewKeyed[string](New(clock))

	fired := false
	k.Set("x", time.Second, func() { fired = true })

	assert.True(t, k.Cancel("x"))
	assert.False(t, k.Cancel("x"))
	assert.False(t, k.Cancel("missing"))

	clock.Advance(time.Minute)
	assert.False(t, fired)
}

func TestKeyed_CancelAll(t *testing.T) {
	clock := NewFake(start)
	s := New(clock)
	k := NewKeyed[int](s)

	fired := 0
	for i := range 5 {
		k.Set(i, time.Second, func() { fired++ })
	}
	k.CancelAll()

	clock.Advance(time.Minute)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, k.Len())
	assert.Equal(t, 0, s.Pending())
}

func TestKeyed_SetFromCallback(t *testing.T) {
	clock := NewFake(start)
	k := NewKeyed[string](New(clock))

	calls := 0
	var rearm func()
	rearm = func() {
		calls++
		if calls < 3 {
			k.Set("loop", time.Second, rearm)
		}
	}
	k.Set("loop", time.Second, rearm)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 3, calls)
	assert.False(t, k.Has("loop"))
}

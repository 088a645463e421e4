package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/boardwave/boardsync/internal/event"
)

// Recorder captures every event published on a bus.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
	signal chan struct{}
}

// NewRecorder subscribes a Recorder to every event on bus.
func NewRecorder(bus *event.Bus) *Recorder {
	r := &Recorder{signal: make(chan struct{})}
	bus.SubscribeAll(r.record)
	return r
}

func (r *Recorder) record(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	close(r.signal)
	r.signal = make(chan struct{})
	r.mu.Unlock()
}

// Events returns the captured events in publish order.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// Names returns the names of the captured events in publish order.
func (r *Recorder) Names() []event.Name {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]event.Name, len(r.events))
	for i, e := range r.events {
		names[i] = e.EventType()
	}
	return names
}

// Count returns how many events named name were captured.
func (r *Recorder) Count(name event.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.EventType() == name {
			n++
		}
	}
	return n
}

// Last returns the most recent event named name.
func (r *Recorder) Last(name event.Name) (event.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType() == name {
			return r.events[i], true
		}
	}
	return nil, false
}

// WaitFor blocks until at least n events named name were captured and
// returns the nth one. It fails the test after timeout.
func (r *Recorder) WaitFor(t *testing.T, name event.Name, n int, timeout time.Duration) event.Event {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		r.mu.Lock()
		seen := 0
		for _, e := range r.events {
			if e.EventType() == name {
				seen++
				if seen == n {
					r.mu.Unlock()
					return e
				}
			}
		}
		signal := r.signal
		r.mu.Unlock()

		select {
		case <-signal:
		case <-deadline.C:
			t.Fatalf("timed out waiting for %d %s event(s), saw %d", n, name, seen)
			return nil
		}
	}
}

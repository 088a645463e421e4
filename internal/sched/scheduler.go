package sched

import (
	"sync"
	"time"
)

// Scheduler tracks every timer it creates so that they can be cancelled
// together when a session ends.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	nextID  uint64
	handles map[uint64]*Handle
}

// New creates a Scheduler on clock. A nil clock means the system clock.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = System()
	}
	return &Scheduler{
		clock:   clock,
		handles: make(map[uint64]*Handle),
	}
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Clock returns the underlying clock.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// After runs fn once after d.
func (s *Scheduler) After(d time.Duration, fn func()) *Handle {
	return s.schedule(d, fn, false)
}

// Every runs fn every d until the handle is cancelled.
func (s *Scheduler) Every(d time.Duration, fn func()) *Handle {
	return s.schedule(d, fn, true)
}

func (s *Scheduler) schedule(d time.Duration, fn func(), repeat bool) *Handle {
	s.mu.Lock()
	s.nextID++
	h := &Handle{
		sched:  s,
		id:     s.nextID,
		period: d,
		fn:     fn,
		repeat: repeat,
	}
	s.handles[h.id] = h
	s.mu.Unlock()

	h.mu.Lock()
	h.timer = s.clock.AfterFunc(d, h.fire)
	h.mu.Unlock()
	return h
}

// CancelAll cancels every pending handle and returns how many were active.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	n := 0
	for _, h := range handles {
		if h.Cancel() {
			n++
		}
	}
	return n
}

// Pending returns the number of handles that may still fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Scheduler) forget(id uint64) {
	s.mu.Lock()
	delete(s.handles, id)
	s.mu.Unlock()
}

// Handle is a cancellable scheduled callback.
type Handle struct {
	sched  *Scheduler
	id     uint64
	period time.Duration
	fn     func()
	repeat bool

	mu    sync.Mutex
	timer Timer
	done  bool
}

// Cancel stops the callback. It returns false if the handle already fired
// (one-shot) or was cancelled before. A nil handle is a no-op.
func (h *Handle) Cancel() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return false
	}
	h.done = true
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()

	h.sched.forget(h.id)
	return true
}

// Active reports whether the callback may still run.
func (h *Handle) Active() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.done
}

func (h *Handle) fire() {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	if !h.repeat {
		h.done = true
	}
	h.mu.Unlock()

	if !h.repeat {
		h.sched.forget(h.id)
	}

	h.fn()

	if h.repeat {
		h.mu.Lock()
		if !h.done {
			h.timer = h.sched.clock.AfterFunc(h.period, h.fire)
		}
		h.mu.Unlock()
	}
}

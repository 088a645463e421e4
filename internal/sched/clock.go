package sched

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback that can be stopped.
// *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Clock is the time source used by every component that schedules work.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

// System returns a Clock backed by the time package.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually advanced Clock for tests. Callbacks run synchronously
// on the goroutine that calls Advance, in due-time order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *Fake
	due   time.Time
	seq   uint64
	fn    func()
}

// NewFake creates a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers f to run once the clock has been advanced by d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTimer{clock: f, due: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer that becomes due.
// Timers registered by callbacks during Advance fire too if they fall inside
// the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		next := f.popDue(target)
		if next == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		f.now = next.due
		f.mu.Unlock()

		next.fn()
	}
}

// popDue removes and returns the earliest timer due at or before target.
// Caller must hold f.mu.
func (f *Fake) popDue(target time.Time) *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].due.Equal(f.timers[j].due) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].due.Before(f.timers[j].due)
	})
	first := f.timers[0]
	if first.due.After(target) {
		return nil
	}
	f.timers = f.timers[1:]
	return first
}

// Pending returns the number of timers that have not fired or been stopped.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// NextDue returns the time remaining until the earliest pending timer.
// The second result is false when nothing is pending.
func (f *Fake) NextDue() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.timers) == 0 {
		return 0, false
	}
	earliest := f.timers[0].due
	for _, t := range f.timers[1:] {
		if t.due.Before(earliest) {
			earliest = t.due
		}
	}
	return earliest.Sub(f.now), true
}

// Stop removes the timer. It returns false if the timer already fired or
// was stopped.
func (t *fakeTimer) Stop() bool {
	f := t.clock
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, other := range f.timers {
		if other == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return true
		}
	}
	return false
}

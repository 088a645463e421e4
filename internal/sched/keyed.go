package sched

import (
	"sync"
	"time"
)

// Keyed holds at most one pending callback per key. Setting a key again
// replaces the earlier callback, which is how debounce and lock expiry work.
type Keyed[K comparable] struct {
	sched *Scheduler

	mu      sync.Mutex
	handles map[K]*Handle
}

// NewKeyed creates a Keyed timer set on s.
func NewKeyed[K comparable](s *Scheduler) *Keyed[K] {
	return &Keyed[K]{
		sched:   s,
		handles: make(map[K]*Handle),
	}
}

// Set schedules fn for key after d, cancelling any callback already pending
// for key.
func (k *Keyed[K]) Set(key K, d time.Duration, fn func()) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if prev, ok := k.handles[key]; ok {
		prev.Cancel()
	}

	var h *Handle
	h = k.sched.After(d, func() {
		k.mu.Lock()
		if k.handles[key] == h {
			delete(k.handles, key)
		}
		k.mu.Unlock()
		fn()
	})
	k.handles[key] = h
}

// Cancel drops the pending callback for key. It returns false if none was
// pending.
func (k *Keyed[K]) Cancel(key K) bool {
	k.mu.Lock()
	h, ok := k.handles[key]
	delete(k.handles, key)
	k.mu.Unlock()

	if !ok {
		return false
	}
	return h.Cancel()
}

// Has reports whether a callback is pending for key.
func (k *Keyed[K]) Has(key K) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.handles[key]
	return ok
}

// Len returns the number of pending keys.
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.handles)
}

// CancelAll drops every pending callback.
func (k *Keyed[K]) CancelAll() {
	k.mu.Lock()
	handles := k.handles
	k.handles = make(map[K]*Handle)
	k.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

package lock

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/boardwave/boardsync/internal/errors"
	"github.com/boardwave/boardsync/internal/sched"
)

// Table manages advisory element locks for one project session.
// At most one lock exists per element. Locks are released by their holder,
// by TTL expiry, or when the holder leaves.
type Table struct {
	mu       sync.RWMutex
	locks    map[string]Lock // elementID -> lock
	sched    *sched.Scheduler
	expiry   *sched.Keyed[string]
	ttl      time.Duration
	kind     Kind
	handlers []func(Lock, Reason)
}

// NewTable creates a Table whose expiry timers run on s.
func NewTable(s *sched.Scheduler, opts ...Option) *Table {
	t := &Table{
		locks:  make(map[string]Lock),
		sched:  s,
		expiry: sched.NewKeyed[string](s),
		ttl:    DefaultTTL,
		kind:   KindEdit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Acquire takes the lock on elementID for userID.
// If userID already holds it this is a no-op and the TTL is not renewed;
// created is false in that case. Returns ErrLockHeld if another user
// holds the lock.
func (t *Table) Acquire(elementID, userID string) (created bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.locks[elementID]; ok {
		if existing.UserID == userID {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s holds %s", errors.ErrLockHeld, existing.UserID, elementID)
	}

	now := t.sched.Now()
	l := Lock{
		ElementID:  elementID,
		UserID:     userID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(t.ttl),
		Kind:       t.kind,
	}
	t.locks[elementID] = l
	t.expiry.Set(elementID, t.ttl, func() { t.expire(l) })
	return true, nil
}

// Release drops the lock on elementID if userID holds it.
// Returns ErrNotLocked if there is no lock, or ErrNotLockHolder if another
// user holds it.
func (t *Table) Release(elementID, userID string) error {
	t.mu.Lock()
	existing, ok := t.locks[elementID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", errors.ErrNotLocked, elementID)
	}
	if existing.UserID != userID {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s holds %s", errors.ErrNotLockHolder, existing.UserID, elementID)
	}
	delete(t.locks, elementID)
	t.expiry.Cancel(elementID)
	t.mu.Unlock()

	t.notify(existing, ReasonReleased)
	return nil
}

// ReleaseAll drops every lock held by userID and returns them sorted by
// element id.
func (t *Table) ReleaseAll(userID string, reason Reason) []Lock {
	t.mu.Lock()
	var released []Lock
	for id, l := range t.locks {
		if l.UserID == userID {
			released = append(released, l)
			delete(t.locks, id)
			t.expiry.Cancel(id)
		}
	}
	t.mu.Unlock()

	sortLocks(released)
	for _, l := range released {
		t.notify(l, reason)
	}
	return released
}

// Clear drops every lock and cancels every expiry timer without notifying
// handlers.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.locks = make(map[string]Lock)
	t.expiry.CancelAll()
}

// expire removes l if it is still the live lock for its element.
func (t *Table) expire(l Lock) {
	t.mu.Lock()
	current, ok := t.locks[l.ElementID]
	if !ok || current.UserID != l.UserID || !current.AcquiredAt.Equal(l.AcquiredAt) {
		t.mu.Unlock()
		return
	}
	delete(t.locks, l.ElementID)
	t.mu.Unlock()

	t.notify(current, ReasonExpired)
}

// Holder returns the user holding elementID and true, or ("", false) if
// the element is unlocked.
func (t *Table) Holder(elementID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	l, ok := t.locks[elementID]
	if !ok {
		return "", false
	}
	return l.UserID, true
}

// Get returns the lock on elementID.
func (t *Table) Get(elementID string) (Lock, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	l, ok := t.locks[elementID]
	return l, ok
}

// All returns every live lock sorted by element id.
func (t *Table) All() []Lock {
	t.mu.RLock()
	locks := make([]Lock, 0, len(t.locks))
	for _, l := range t.locks {
		locks = append(locks, l)
	}
	t.mu.RUnlock()

	sortLocks(locks)
	return locks
}

// Len returns the number of live locks.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.locks)
}

// TTL returns the lock lifetime.
func (t *Table) TTL() time.Duration {
	return t.ttl
}

// OnRelease registers a handler called whenever a lock goes away through
// Release, ReleaseAll or expiry. Handlers run outside the table's lock and
// may call back into it.
func (t *Table) OnRelease(handler func(Lock, Reason)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers = append(t.handlers, handler)
}

func (t *Table) notify(l Lock, reason Reason) {
	t.mu.RLock()
	handlers := make([]func(Lock, Reason), len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.RUnlock()

	for _, h := range handlers {
		h(l, reason)
	}
}

func sortLocks(locks []Lock) {
	sort.Slice(locks, func(i, j int) bool {
		return locks[i].ElementID < locks[j].ElementID
	})
}

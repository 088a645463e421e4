package lock

import "time"

// DefaultTTL is how long a lock lives when nobody releases it.
const DefaultTTL = 30 * time.Second

// Kind describes what the lock protects.
type Kind string

const (
	// KindEdit guards an element while a user edits it.
	KindEdit Kind = "edit"

	// KindMove guards an element while it is dragged between columns.
	KindMove Kind = "move"
)

// Reason explains why a lock went away.
type Reason string

const (
	// ReasonReleased means the holder released it.
	ReasonReleased Reason = "released"

	// ReasonExpired means the TTL elapsed.
	ReasonExpired Reason = "expired"

	// ReasonHolderLeft means the holder left the project.
	ReasonHolderLeft Reason = "holder_left"

	// ReasonCleared means the session was torn down.
	ReasonCleared Reason = "cleared"
)

// Lock is an advisory exclusivity marker on one element.
type Lock struct {
	ElementID  string    // Locked element
	UserID     string    // Holder
	AcquiredAt time.Time // When the lock was taken
	ExpiresAt  time.Time // When the TTL releases it
	Kind       Kind
}

// Option configures a Table.
type Option func(*Table)

// WithTTL sets how long locks live. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(t *Table) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithKind sets the kind recorded on new locks.
func WithKind(kind Kind) Option {
	return func(t *Table) {
		t.kind = kind
	}
}

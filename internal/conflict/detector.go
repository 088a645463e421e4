package conflict

import (
	"time"

	"github.com/boardwave/boardsync/internal/history"
)

// DefaultWindow is how far back a different user's edit still counts as
// concurrent.
const DefaultWindow = 5 * time.Second

// LockLookup reports the holder of an element lock.
type LockLookup interface {
	Holder(elementID string) (string, bool)
}

// HistoryLookup returns the recorded edits for an element, oldest first.
type HistoryLookup interface {
	ForElement(elementID string) []history.Record
}

// Detector decides whether an incoming edit conflicts with local state.
type Detector struct {
	locks   LockLookup
	history HistoryLookup
	window  time.Duration
}

// NewDetector creates a Detector. A non-positive window means DefaultWindow.
func NewDetector(locks LockLookup, hist HistoryLookup, window time.Duration) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Detector{locks: locks, history: hist, window: window}
}

// Window returns the concurrent-edit window.
func (d *Detector) Window() time.Duration {
	return d.window
}

// Check returns the conflict type and the other user involved, or ok=false
// when the edit can be applied.
//
// A lock held by anyone other than the author wins over the history scan.
// Otherwise an edit on the same element by a different user whose timestamp
// is at most window before e (and not after it) is a concurrent edit.
func (d *Detector) Check(e Edit) (t Type, with string, ok bool) {
	if holder, locked := d.locks.Holder(e.ElementID); locked && holder != e.UserID {
		return TypeLockedElement, holder, true
	}

	records := d.history.ForElement(e.ElementID)
	// Newest first so the reported user is the most recent one.
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if r.UserID == e.UserID {
			continue
		}
		delta := e.Timestamp.Sub(r.Timestamp)
		if delta >= 0 && delta < d.window {
			return TypeConcurrentEdit, r.UserID, true
		}
	}
	return "", "", false
}

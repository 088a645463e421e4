// Package history keeps a bounded, oldest-first log of element edits.
//
// The log is diagnostic: the coordinator consults it for concurrent-edit
// detection and exposes read-only copies to callers. When the limit is
// reached the oldest record is dropped silently.
package history

import (
	"maps"
	"sync"
	"time"
)

// DefaultLimit is the number of records kept when no limit is given.
const DefaultLimit = 100

// Record is one edit seen by the coordinator, local or remote.
type Record struct {
	EditType  string
	ElementID string
	Changes   map[string]any
	UserID    string
	Timestamp time.Time
	Applied   bool // false for local edits that were only broadcast
}

// Log is a bounded FIFO of records. It is safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	limit   int
	records []Record
}

// New creates a Log holding at most limit records.
// A non-positive limit means DefaultLimit.
func New(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{
		limit:   limit,
		records: make([]Record, 0, limit),
	}
}

// Append adds r, dropping the oldest records beyond the limit.
func (l *Log) Append(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, r)
	if over := len(l.records) - l.limit; over > 0 {
		// Shift into a fresh slice so the backing array does not grow forever
		kept := make([]Record, l.limit)
		copy(kept, l.records[over:])
		l.records = kept
	}
}

// All returns a copy of every record, oldest first.
func (l *Log) All() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneRecords(l.records, func(Record) bool { return true })
}

// ForElement returns a copy of the records for elementID, oldest first.
func (l *Log) ForElement(elementID string) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneRecords(l.records, func(r Record) bool { return r.ElementID == elementID })
}

// Len returns the number of records held.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Limit returns the maximum number of records held.
func (l *Log) Limit() int {
	return l.limit
}

// Clear drops every record.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make([]Record, 0, l.limit)
}

func cloneRecords(src []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(src))
	for _, r := range src {
		if !keep(r) {
			continue
		}
		r.Changes = maps.Clone(r.Changes)
		out = append(out, r)
	}
	return out
}

package conflict

import (
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Queue holds unresolved conflicts in arrival order.
type Queue struct {
	mu    sync.RWMutex
	items []Conflict
	newID func() string
}

// NewQueue creates an empty Queue that assigns random UUIDs.
func NewQueue() *Queue {
	return &Queue{newID: uuid.NewString}
}

// Push appends c, assigning an ID if it has none, and returns the stored copy.
func (q *Queue) Push(c Conflict) Conflict {
	q.mu.Lock()
	defer q.mu.Unlock()

	if c.ID == "" {
		c.ID = q.newID()
	}
	c.Changes = maps.Clone(c.Changes)
	q.items = append(q.items, c)
	return c
}

// Remove deletes the conflict with id and returns it.
func (q *Queue) Remove(id string) (Conflict, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, c := range q.items {
		if c.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return c, true
		}
	}
	return Conflict{}, false
}

// Get returns the conflict with id.
func (q *Queue) Get(id string) (Conflict, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, c := range q.items {
		if c.ID == id {
			c.Changes = maps.Clone(c.Changes)
			return c, true
		}
	}
	return Conflict{}, false
}

// All returns a copy of every queued conflict, oldest first.
func (q *Queue) All() []Conflict {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Conflict, len(q.items))
	for i, c := range q.items {
		c.Changes = maps.Clone(c.Changes)
		out[i] = c
	}
	return out
}

// Len returns the number of queued conflicts.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Clear drops every queued conflict.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

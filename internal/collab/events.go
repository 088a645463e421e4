package collab

import (
	"time"

	"github.com/boardwave/boardsync/internal/conflict"
	"github.com/boardwave/boardsync/internal/event"
	"github.com/boardwave/boardsync/internal/lock"
	"github.com/boardwave/boardsync/internal/transport"
)

// UserJoinedEvent is published when a remote user announces presence.
type UserJoinedEvent struct {
	event.Base
	User PresenceEntry
}

// UserLeftEvent is published when a remote user leaves the project.
type UserLeftEvent struct {
	event.Base
	UserID        string
	ReleasedLocks []lock.Lock // locks dropped because the user left
}

// EditEvent is published for a remote edit applied without conflict.
type EditEvent struct {
	event.Base
	EditType  string
	ElementID string
	Changes   map[string]any
	UserID    string
	SentAt    time.Time
}

// ConflictDetectedEvent is published when a conflict enters the queue.
type ConflictDetectedEvent struct {
	event.Base
	Conflict conflict.Conflict
}

// ConflictResolvedEvent is published for every ResolveConflict call on a
// queued conflict, whatever the resolution.
type ConflictResolvedEvent struct {
	event.Base
	Conflict conflict.Conflict // Resolution is set
	Applied  bool              // changes were applied
}

// ApplyChangesEvent asks the UI to apply changes that came out of a
// conflict resolution.
type ApplyChangesEvent struct {
	event.Base
	ConflictID string
	EditType   string
	ElementID  string
	Changes    map[string]any
	UserID     string
}

// UpdateEvent relays a project, task or workflow update from a peer.
// The event name tells which one.
type UpdateEvent struct {
	event.Base
	Update transport.UpdatePayload
	UserID string
}

// LockEvent is published when a lock is acquired or released.
type LockEvent struct {
	event.Base
	Lock   lock.Lock
	Reason lock.Reason // empty for acquisitions
}

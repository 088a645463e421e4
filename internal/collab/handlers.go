package collab

import (
	"cmp"
	"time"

	"github.com/boardwave/boardsync/internal/conflict"
	"github.com/boardwave/boardsync/internal/event"
	"github.com/boardwave/boardsync/internal/history"
	"github.com/boardwave/boardsync/internal/lock"
	"github.com/boardwave/boardsync/internal/transport"
)

// Handlers run on the transport read loop, one message at a time.

func (c *Coordinator) handleConnected(event.ConnectedEvent) {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	projectID, userID, info := c.projectID, c.userID, c.userInfo
	c.mu.Unlock()

	c.logger.Debug("rejoining project", "project_id", projectID)
	c.join(projectID, userID, info)
}

func (c *Coordinator) handleUserJoined(e event.MessageEvent) {
	var p transport.UserJoinedPayload
	if err := e.Decode(&p); err != nil {
		c.logger.Warn("dropping malformed user_joined", "error", err.Error())
		return
	}
	userID := cmp.Or(p.UserID, e.UserID)
	if userID == "" || userID == c.localUser() {
		return
	}

	now := c.sched.Now()
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	entry, known := c.presence[userID]
	if !known {
		entry = PresenceEntry{UserID: userID, JoinedAt: now}
	}
	entry.UserInfo = p.UserInfo
	entry.LastActivity = now
	c.presence[userID] = entry
	active := len(c.presence)
	c.mu.Unlock()

	c.metrics.SetActiveUsers(active)
	c.logger.Info("user joined", "user_id", userID, "name", p.UserInfo.Name)
	c.bus.Publish(UserJoinedEvent{Base: event.NewBase(event.NameCollabUserJoined, now), User: entry})
}

func (c *Coordinator) handleUserLeft(e event.MessageEvent) {
	var p transport.UserLeftPayload
	if err := e.Decode(&p); err != nil {
		c.logger.Warn("dropping malformed user_left", "error", err.Error())
		return
	}
	userID := cmp.Or(p.UserID, e.UserID)
	if userID == "" {
		return
	}

	c.mu.Lock()
	delete(c.presence, userID)
	active := len(c.presence)
	c.mu.Unlock()

	released := c.locks.ReleaseAll(userID, lock.ReasonHolderLeft)

	c.metrics.SetActiveUsers(active)
	c.logger.Info("user left", "user_id", userID, "released_locks", len(released))
	c.bus.Publish(UserLeftEvent{
		Base:          event.NewBase(event.NameCollabUserLeft, c.sched.Now()),
		UserID:        userID,
		ReleasedLocks: released,
	})
}

// handleEdit runs conflict detection on a remote edit and either applies
// or queues it.
func (c *Coordinator) handleEdit(e event.MessageEvent) {
	var p transport.EditPayload
	if err := e.Decode(&p); err != nil || p.ElementID == "" {
		c.logger.Warn("dropping malformed collaborative_edit", "user_id", e.UserID)
		return
	}
	c.touch(e.UserID)

	edit := conflict.Edit{
		EditType:  p.EditType,
		ElementID: p.ElementID,
		Changes:   p.Changes,
		UserID:    e.UserID,
		Timestamp: c.sentAt(e),
	}

	if kind, with, found := c.detector.Check(edit); found {
		c.raise(conflict.FromEdit(edit, kind, with), true)
		return
	}

	c.history.Append(history.Record{
		EditType:  edit.EditType,
		ElementID: edit.ElementID,
		Changes:   edit.Changes,
		UserID:    edit.UserID,
		Timestamp: edit.Timestamp,
		Applied:   true,
	})
	c.metrics.Edit("remote")
	c.bus.Publish(EditEvent{
		Base:      event.NewBase(event.NameCollabEdit, c.sched.Now()),
		EditType:  edit.EditType,
		ElementID: edit.ElementID,
		Changes:   edit.Changes,
		UserID:    edit.UserID,
		SentAt:    edit.Timestamp,
	})
}

// handleConflictReport queues a conflict a peer detected. It is not
// broadcast again.
func (c *Coordinator) handleConflictReport(e event.MessageEvent) {
	var p transport.ConflictPayload
	if err := e.Decode(&p); err != nil || p.ElementID == "" {
		c.logger.Warn("dropping malformed conflict_detected", "user_id", e.UserID)
		return
	}
	c.touch(e.UserID)

	c.raise(conflict.Conflict{
		ElementID: p.ElementID,
		EditType:  p.EditType,
		Changes:   p.Changes,
		UserID:    e.UserID,
		Timestamp: c.sentAt(e),
		Type:      conflict.TypeRemoteReported,
		With:      p.With,
	}, false)
}

// raise queues cf, optionally tells peers about it and publishes it.
func (c *Coordinator) raise(cf conflict.Conflict, broadcast bool) {
	cf = c.conflicts.Push(cf)

	c.metrics.ConflictDetected(string(cf.Type))
	c.logger.Info("conflict detected",
		"conflict_id", cf.ID,
		"element_id", cf.ElementID,
		"type", string(cf.Type),
		"user_id", cf.UserID,
		"with", cf.With,
	)
	if broadcast {
		c.msgr.Send(transport.TypeConflictDetected, transport.ConflictPayload{
			ConflictID:   cf.ID,
			ElementID:    cf.ElementID,
			EditType:     cf.EditType,
			Changes:      cf.Changes,
			ConflictType: string(cf.Type),
			With:         cf.With,
		})
	}
	c.bus.Publish(ConflictDetectedEvent{Base: event.NewBase(event.NameCollabConflictDetected, c.sched.Now()), Conflict: cf})
}

func (c *Coordinator) handleUpdate(name event.Name) func(event.MessageEvent) {
	return func(e event.MessageEvent) {
		var p transport.UpdatePayload
		if err := e.Decode(&p); err != nil {
			c.logger.Warn("dropping malformed update", "type", e.Type, "error", err.Error())
			return
		}
		c.touch(e.UserID)
		c.bus.Publish(UpdateEvent{Base: event.NewBase(name, c.sched.Now()), Update: p, UserID: e.UserID})
	}
}

// touch refreshes LastActivity for a known user.
func (c *Coordinator) touch(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.presence[userID]; ok {
		entry.LastActivity = c.sched.Now()
		c.presence[userID] = entry
	}
}

// sentAt is the sender's timestamp, or now when the frame carried none.
func (c *Coordinator) sentAt(e event.MessageEvent) time.Time {
	if e.SentAt.IsZero() || e.SentAt.UnixMilli() == 0 {
		return c.sched.Now()
	}
	return e.SentAt
}

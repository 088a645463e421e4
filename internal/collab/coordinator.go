package collab

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/boardwave/boardsync/internal/conflict"
	"github.com/boardwave/boardsync/internal/errors"
	"github.com/boardwave/boardsync/internal/event"
	"github.com/boardwave/boardsync/internal/history"
	"github.com/boardwave/boardsync/internal/lock"
	"github.com/boardwave/boardsync/internal/logging"
	"github.com/boardwave/boardsync/internal/metrics"
	"github.com/boardwave/boardsync/internal/sched"
	"github.com/boardwave/boardsync/internal/transport"
)

// pendingEdit is the latest SendEdit call for an element waiting on its
// debounce timer.
type pendingEdit struct {
	editType string
	changes  map[string]any
}

// Coordinator manages presence, edits, locks and conflicts for one project
// session. Create one per session with New and call Cleanup when done.
type Coordinator struct {
	msgr    Messenger
	bus     *event.Bus
	sched   *sched.Scheduler
	logger  *logging.Logger
	metrics *metrics.Metrics

	debounceDelay time.Duration
	lockTTL       time.Duration
	window        time.Duration
	historyLimit  int
	merge         conflict.MergeStrategy

	locks     *lock.Table
	history   *history.Log
	conflicts *conflict.Queue
	detector  *conflict.Detector
	debounce  *sched.Keyed[string]

	mu          sync.Mutex
	initialized bool
	projectID   string
	userID      string
	userInfo    UserInfo
	presence    map[string]PresenceEntry
	pending     map[string]pendingEdit
	subs        []string
}

// New creates a Coordinator that talks through msgr.
func New(msgr Messenger, opts ...Option) *Coordinator {
	c := &Coordinator{
		msgr:          msgr,
		debounceDelay: DefaultDebounce,
		lockTTL:       DefaultLockTTL,
		window:        DefaultConflictWindow,
		historyLimit:  DefaultHistoryLimit,
		merge:         conflict.LastWriterWins{},
		presence:      make(map[string]PresenceEntry),
		pending:       make(map[string]pendingEdit),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	c.logger = c.logger.WithComponent("collab")
	if c.sched == nil {
		c.sched = sched.New(nil)
	}
	if c.bus == nil {
		c.bus = event.NewBus(event.WithLogger(c.logger))
	}

	c.locks = lock.NewTable(c.sched, lock.WithTTL(c.lockTTL))
	c.locks.OnRelease(c.onLockReleased)
	c.history = history.New(c.historyLimit)
	c.conflicts = conflict.NewQueue()
	c.detector = conflict.NewDetector(c.locks, c.history, c.window)
	c.debounce = sched.NewKeyed[string](c.sched)
	return c
}

// Events returns the bus coordinator events are published on.
func (c *Coordinator) Events() *event.Bus {
	return c.bus
}

// ProjectID returns the current project, or "" before InitializeProject.
func (c *Coordinator) ProjectID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectID
}

// InitializeProject joins projectID, subscribes to the transport's project
// traffic and announces the local user. An empty userID means the
// transport's user. Calling it again switches projects.
func (c *Coordinator) InitializeProject(projectID, userID string, info UserInfo) error {
	if projectID == "" {
		return errors.NewCollabError("initialize project", errors.ErrNoProject)
	}
	if userID == "" {
		userID = c.msgr.UserID()
	}

	c.mu.Lock()
	switching := c.initialized
	c.mu.Unlock()
	if switching {
		c.Cleanup()
	}

	bus := c.msgr.Events()
	subs := []string{
		event.On(bus, event.NameUserJoined, c.handleUserJoined),
		event.On(bus, event.NameUserLeft, c.handleUserLeft),
		event.On(bus, event.NameCollaborativeEdit, c.handleEdit),
		event.On(bus, event.NameConflictDetected, c.handleConflictReport),
		event.On(bus, event.NameProjectUpdated, c.handleUpdate(event.NameCollabProjectUpdated)),
		event.On(bus, event.NameTaskUpdated, c.handleUpdate(event.NameCollabTaskUpdated)),
		event.On(bus, event.NameWorkflowUpdated, c.handleUpdate(event.NameCollabWorkflowUpdated)),
		event.On(bus, event.NameConnected, c.handleConnected),
	}

	c.mu.Lock()
	c.initialized = true
	c.projectID = projectID
	c.userID = userID
	c.userInfo = info
	c.subs = subs
	c.mu.Unlock()

	c.logger.Info("project initialized", "project_id", projectID, "user_id", userID)
	c.join(projectID, userID, info)
	return nil
}

// join asks the server for the project channel and announces presence.
// Both are best effort: when offline the connected handler repeats them.
func (c *Coordinator) join(projectID, userID string, info UserInfo) {
	if !c.msgr.JoinProject(projectID) {
		c.logger.Debug("join deferred until connected", "project_id", projectID)
		return
	}
	c.msgr.Send(transport.TypeUserJoined, transport.UserJoinedPayload{UserID: userID, UserInfo: info})
}

// Cleanup leaves the project, drops every subscription and clears presence,
// history, conflicts, locks and pending edits. It is safe to call at any
// time, including before InitializeProject.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	wasInitialized := c.initialized
	projectID := c.projectID
	subs := c.subs
	c.initialized = false
	c.projectID = ""
	c.subs = nil
	c.presence = make(map[string]PresenceEntry)
	c.pending = make(map[string]pendingEdit)
	c.mu.Unlock()

	bus := c.msgr.Events()
	for _, id := range subs {
		bus.Unsubscribe(id)
	}
	if wasInitialized {
		c.msgr.LeaveProject(projectID)
	}

	c.debounce.CancelAll()
	c.locks.Clear()
	c.history.Clear()
	c.conflicts.Clear()

	c.metrics.SetActiveUsers(0)
	c.metrics.SetLocksHeld(0)
	if wasInitialized {
		c.logger.Info("project cleaned up", "project_id", projectID)
	}
}

// SendEdit schedules a collaborative_edit for elementID. Calls for the same
// element inside the debounce delay collapse into one message carrying the
// latest changes.
func (c *Coordinator) SendEdit(editType, elementID string, changes map[string]any) {
	c.mu.Lock()
	c.pending[elementID] = pendingEdit{editType: editType, changes: maps.Clone(changes)}
	c.mu.Unlock()

	c.debounce.Set(elementID, c.debounceDelay, func() { c.flushEdit(elementID) })
}

// flushEdit sends the pending edit for elementID and records it as not yet
// applied.
func (c *Coordinator) flushEdit(elementID string) {
	c.mu.Lock()
	p, ok := c.pending[elementID]
	delete(c.pending, elementID)
	userID := c.userID
	c.mu.Unlock()
	if !ok {
		return
	}
	if userID == "" {
		userID = c.msgr.UserID()
	}

	sent := c.msgr.Send(transport.TypeCollaborativeEdit, transport.EditPayload{
		EditType:  p.editType,
		ElementID: elementID,
		Changes:   p.changes,
	})
	if !sent {
		c.logger.Warn("edit not sent", "element_id", elementID, "edit_type", p.editType)
	}

	c.history.Append(history.Record{
		EditType:  p.editType,
		ElementID: elementID,
		Changes:   p.changes,
		UserID:    userID,
		Timestamp: c.sched.Now(),
	})
	c.metrics.Edit("local")
}

// PendingEdits returns the number of edits waiting on their debounce timer.
func (c *Coordinator) PendingEdits() int {
	return c.debounce.Len()
}

// AcquireLock takes the advisory lock on elementID. It returns true when the
// lock is held by userID afterwards. An empty userID means the local user.
// Re-acquiring an owned lock does not extend its TTL.
func (c *Coordinator) AcquireLock(elementID, userID string) bool {
	userID = c.resolveUser(userID)

	created, err := c.locks.Acquire(elementID, userID)
	if err != nil {
		c.logger.Debug("lock denied", "user_id", userID, "error", c.lockError("acquire lock", elementID, err).Error())
		return false
	}
	if created {
		l, _ := c.locks.Get(elementID)
		c.metrics.SetLocksHeld(c.locks.Len())
		c.logger.Debug("lock acquired", "element_id", elementID, "user_id", userID)
		c.bus.Publish(LockEvent{Base: event.NewBase(event.NameLockAcquired, c.sched.Now()), Lock: l})
	}
	return true
}

// ReleaseLock drops the lock on elementID when userID holds it. An empty
// userID means the local user.
func (c *Coordinator) ReleaseLock(elementID, userID string) bool {
	userID = c.resolveUser(userID)

	if err := c.locks.Release(elementID, userID); err != nil {
		c.logger.Debug("lock release refused", "user_id", userID, "error", c.lockError("release lock", elementID, err).Error())
		return false
	}
	return true
}

// lockError attaches the project and element to a lock table error.
func (c *Coordinator) lockError(op, elementID string, err error) *errors.CollabError {
	return errors.NewCollabError(op, err).WithProject(c.ProjectID()).WithElement(elementID)
}

// Locks returns the live locks sorted by element id.
func (c *Coordinator) Locks() []lock.Lock {
	return c.locks.All()
}

func (c *Coordinator) onLockReleased(l lock.Lock, reason lock.Reason) {
	c.metrics.SetLocksHeld(c.locks.Len())
	c.logger.Debug("lock released", "element_id", l.ElementID, "user_id", l.UserID, "reason", string(reason))
	c.bus.Publish(LockEvent{Base: event.NewBase(event.NameLockReleased, c.sched.Now()), Lock: l, Reason: reason})
}

// ResolveConflict removes conflictID from the queue and handles it per
// res.Type: accept applies the queued changes, reject discards them, merge
// combines them with the latest local record through the merge strategy.
// An unknown resolution type or strategy applies nothing. The conflict is
// removed and conflict_resolved is published in every case.
func (c *Coordinator) ResolveConflict(conflictID string, res conflict.Resolution) error {
	cf, ok := c.conflicts.Remove(conflictID)
	if !ok {
		return errors.NewNotFoundError("conflict", conflictID).WithCause(errors.ErrConflictNotFound)
	}

	applied := false
	switch res.Type {
	case conflict.ResolutionAccept:
		c.apply(cf, cf.Changes)
		applied = true
	case conflict.ResolutionReject:
		c.logger.Debug("conflict rejected", "conflict_id", cf.ID)
	case conflict.ResolutionMerge:
		strategy, found := c.strategy(res.Strategy)
		if !found {
			c.logger.Warn("unknown merge strategy", "conflict_id", cf.ID, "strategy", res.Strategy)
			break
		}
		merged := strategy.Merge(c.localSide(cf), conflict.Side{
			UserID:    cf.UserID,
			Changes:   cf.Changes,
			Timestamp: cf.Timestamp,
		})
		c.apply(cf, merged)
		applied = true
	default:
		c.logger.Warn("unknown resolution type", "conflict_id", cf.ID, "type", string(res.Type))
	}

	cf.Resolution = &res
	c.metrics.ConflictResolved(string(res.Type))
	c.bus.Publish(ConflictResolvedEvent{
		Base:     event.NewBase(event.NameConflictResolved, c.sched.Now()),
		Conflict: cf,
		Applied:  applied,
	})
	return nil
}

func (c *Coordinator) strategy(name string) (conflict.MergeStrategy, bool) {
	if name == "" || name == c.merge.Name() {
		return c.merge, true
	}
	return conflict.StrategyByName(name)
}

// localSide is the newest record on the conflicting element by someone
// other than the conflict's author.
func (c *Coordinator) localSide(cf conflict.Conflict) conflict.Side {
	records := c.history.ForElement(cf.ElementID)
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].UserID != cf.UserID {
			return conflict.Side{
				UserID:    records[i].UserID,
				Changes:   records[i].Changes,
				Timestamp: records[i].Timestamp,
			}
		}
	}
	return conflict.Side{}
}

// apply records changes from cf as applied and publishes apply_changes.
func (c *Coordinator) apply(cf conflict.Conflict, changes map[string]any) {
	c.history.Append(history.Record{
		EditType:  cf.EditType,
		ElementID: cf.ElementID,
		Changes:   changes,
		UserID:    cf.UserID,
		Timestamp: cf.Timestamp,
		Applied:   true,
	})
	c.bus.Publish(ApplyChangesEvent{
		Base:       event.NewBase(event.NameApplyChanges, c.sched.Now()),
		ConflictID: cf.ID,
		EditType:   cf.EditType,
		ElementID:  cf.ElementID,
		Changes:    maps.Clone(changes),
		UserID:     cf.UserID,
	})
}

// ActiveUsers returns the remote users present in the project, ordered by
// join time.
func (c *Coordinator) ActiveUsers() []PresenceEntry {
	c.mu.Lock()
	users := slices.Collect(maps.Values(c.presence))
	c.mu.Unlock()

	slices.SortFunc(users, func(a, b PresenceEntry) int {
		if n := a.JoinedAt.Compare(b.JoinedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return users
}

// ChangeHistory returns the recorded edits for elementID, oldest first.
// An empty elementID returns the whole history.
func (c *Coordinator) ChangeHistory(elementID string) []history.Record {
	if elementID == "" {
		return c.history.All()
	}
	return c.history.ForElement(elementID)
}

// PendingConflicts returns the queued conflicts in arrival order.
func (c *Coordinator) PendingConflicts() []conflict.Conflict {
	return c.conflicts.All()
}

func (c *Coordinator) resolveUser(userID string) string {
	if userID != "" {
		return userID
	}
	c.mu.Lock()
	userID = c.userID
	c.mu.Unlock()
	if userID == "" {
		userID = c.msgr.UserID()
	}
	return userID
}

func (c *Coordinator) localUser() string {
	return c.resolveUser("")
}

package coordination

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boardwave/boardsync/internal/collab"
	"github.com/boardwave/boardsync/internal/conflict"
	"github.com/boardwave/boardsync/internal/errors"
	"github.com/boardwave/boardsync/internal/event"
	"github.com/boardwave/boardsync/internal/history"
	"github.com/boardwave/boardsync/internal/lock"
	"github.com/boardwave/boardsync/internal/logging"
	"github.com/boardwave/boardsync/internal/sched"
	"github.com/boardwave/boardsync/internal/transport"
)

// Config holds the settings for a Hub.
type Config struct {
	Transport transport.Config

	Debounce       time.Duration // per-element edit debounce
	LockTTL        time.Duration // advisory lock lifetime
	ConflictWindow time.Duration // concurrent edit window
	HistoryLimit   int           // change history bound
	MergeStrategy  string        // built-in strategy name, "" for last_writer_wins
}

// DefaultConfig returns the default settings for a server at url.
func DefaultConfig(url string) Config {
	return Config{
		Transport:      transport.DefaultConfig(url),
		Debounce:       collab.DefaultDebounce,
		LockTTL:        collab.DefaultLockTTL,
		ConflictWindow: collab.DefaultConflictWindow,
		HistoryLimit:   collab.DefaultHistoryLimit,
		MergeStrategy:  conflict.StrategyLastWriterWins,
	}
}

// Status combines the connection snapshot with coordinator counters.
type Status struct {
	transport.Status
	Running          bool
	ActiveUsers      int
	Locks            int
	PendingConflicts int
	PendingEdits     int
}

// Hub wires a Transport and a Coordinator together for a single session.
// It owns the lifecycle of the connection and the project session.
type Hub struct {
	mu      sync.RWMutex
	started bool

	logger    *logging.Logger
	scheduler *sched.Scheduler

	// Components
	transport *transport.Transport
	coord     *collab.Coordinator
}

// NewHub creates a Hub. Nothing connects until Start.
func NewHub(cfg Config, opts ...Option) (*Hub, error) {
	if strings.TrimSpace(cfg.Transport.URL) == "" {
		return nil, errors.NewValidationError("coordination: server URL is required").WithField("server.url")
	}

	hc := &hubConfig{}
	for _, opt := range opts {
		opt(hc)
	}

	merge := hc.merge
	if merge == nil {
		name := cfg.MergeStrategy
		if name == "" {
			name = conflict.StrategyLastWriterWins
		}
		s, ok := conflict.StrategyByName(name)
		if !ok {
			return nil, errors.NewValidationError(fmt.Sprintf("coordination: unknown merge strategy %q (valid: %s)",
				name, strings.Join(conflict.StrategyNames(), ", "))).
				WithField("collab.merge_strategy").
				WithValue(name)
		}
		merge = s
	}

	logger := hc.logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	scheduler := hc.scheduler
	if scheduler == nil {
		scheduler = sched.New(nil)
	}

	transportOpts := []transport.Option{
		transport.WithScheduler(scheduler),
		transport.WithLogger(logger),
		transport.WithMetrics(hc.metrics),
	}
	if hc.dialer != nil {
		transportOpts = append(transportOpts, transport.WithDialer(hc.dialer))
	}
	tr := transport.New(cfg.Transport, transportOpts...)

	coord := collab.New(tr,
		collab.WithScheduler(scheduler),
		collab.WithLogger(logger),
		collab.WithMetrics(hc.metrics),
		collab.WithDebounce(cfg.Debounce),
		collab.WithLockTTL(cfg.LockTTL),
		collab.WithConflictWindow(cfg.ConflictWindow),
		collab.WithHistoryLimit(cfg.HistoryLimit),
		collab.WithMergeStrategy(merge),
	)

	return &Hub{
		logger:    logger.WithComponent("hub"),
		scheduler: scheduler,
		transport: tr,
		coord:     coord,
	}, nil
}

// Transport returns the underlying transport.
func (h *Hub) Transport() *transport.Transport { return h.transport }

// Coordinator returns the collaboration coordinator.
func (h *Hub) Coordinator() *collab.Coordinator { return h.coord }

// Events returns the coordinator bus carrying collab.* events.
func (h *Hub) Events() *event.Bus { return h.coord.Events() }

// TransportEvents returns the transport bus carrying transport.* and
// message.* events.
func (h *Hub) TransportEvents() *event.Bus { return h.transport.Events() }

// Start initializes the project session for creds.ProjectID, if any, and
// connects. The project is joined as soon as the socket opens and again
// after every reconnect. Returns an error if the hub is already started,
// creds are incomplete, or the server URL is invalid.
func (h *Hub) Start(ctx context.Context, creds transport.Credentials, info collab.UserInfo) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return errors.New("coordination: hub already started")
	}
	if creds.Token == "" || creds.UserID == "" {
		return errors.ErrMissingCredentials
	}

	if creds.ProjectID != "" {
		if err := h.coord.InitializeProject(creds.ProjectID, creds.UserID, info); err != nil {
			return err
		}
	}
	if err := h.transport.Connect(ctx, creds); err != nil {
		h.coord.Cleanup()
		return err
	}

	h.started = true
	h.logger.Info("hub started", "user_id", creds.UserID, "project_id", creds.ProjectID)
	return nil
}

// Stop leaves the project, closes the connection and cancels every timer.
// It is idempotent. Do not call it from an event handler.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}

	// Reverse of start order: leave while the socket is still open.
	h.coord.Cleanup()
	h.transport.Disconnect()
	h.transport.Wait()
	if n := h.scheduler.CancelAll(); n > 0 {
		h.logger.Debug("cancelled leftover timers", "count", n)
	}

	h.started = false
	h.logger.Info("hub stopped")
	return nil
}

// Running returns whether the hub is currently started.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// Reconnect connects again after the reconnect cap was reached.
func (h *Hub) Reconnect(ctx context.Context) error {
	return h.transport.Reconnect(ctx)
}

// SwitchProject leaves the current project and joins projectID.
func (h *Hub) SwitchProject(projectID string, info collab.UserInfo) error {
	return h.coord.InitializeProject(projectID, "", info)
}

// Status returns a snapshot of the connection and the session.
func (h *Hub) Status() Status {
	return Status{
		Status:           h.transport.Status(),
		Running:          h.Running(),
		ActiveUsers:      len(h.coord.ActiveUsers()),
		Locks:            len(h.coord.Locks()),
		PendingConflicts: len(h.coord.PendingConflicts()),
		PendingEdits:     h.coord.PendingEdits(),
	}
}

// SendEdit queues a debounced collaborative edit.
func (h *Hub) SendEdit(editType, elementID string, changes map[string]any) {
	h.coord.SendEdit(editType, elementID, changes)
}

// AcquireLock locks elementID for the local user.
func (h *Hub) AcquireLock(elementID string) bool {
	return h.coord.AcquireLock(elementID, "")
}

// ReleaseLock releases the local user's lock on elementID.
func (h *Hub) ReleaseLock(elementID string) bool {
	return h.coord.ReleaseLock(elementID, "")
}

// ResolveConflict resolves a queued conflict.
func (h *Hub) ResolveConflict(conflictID string, res conflict.Resolution) error {
	return h.coord.ResolveConflict(conflictID, res)
}

// ActiveUsers returns the remote users in the project.
func (h *Hub) ActiveUsers() []collab.PresenceEntry { return h.coord.ActiveUsers() }

// ChangeHistory returns recorded edits for elementID, or all when empty.
func (h *Hub) ChangeHistory(elementID string) []history.Record {
	return h.coord.ChangeHistory(elementID)
}

// PendingConflicts returns the queued conflicts.
func (h *Hub) PendingConflicts() []conflict.Conflict { return h.coord.PendingConflicts() }

// Locks returns the live advisory locks.
func (h *Hub) Locks() []lock.Lock { return h.coord.Locks() }

// NotifyProjectUpdate broadcasts a project change.
func (h *Hub) NotifyProjectUpdate(projectID, updateType string, data any) bool {
	return h.transport.NotifyProjectUpdate(projectID, updateType, data)
}

// NotifyTaskUpdate broadcasts a task change.
func (h *Hub) NotifyTaskUpdate(taskID, updateType string, data any) bool {
	return h.transport.NotifyTaskUpdate(taskID, updateType, data)
}

// NotifyWorkflowUpdate broadcasts a workflow change.
func (h *Hub) NotifyWorkflowUpdate(workflowID, updateType string, data any) bool {
	return h.transport.NotifyWorkflowUpdate(workflowID, updateType, data)
}

package collab

import (
	"time"

	"github.com/boardwave/boardsync/internal/conflict"
	"github.com/boardwave/boardsync/internal/event"
	"github.com/boardwave/boardsync/internal/history"
	"github.com/boardwave/boardsync/internal/lock"
	"github.com/boardwave/boardsync/internal/logging"
	"github.com/boardwave/boardsync/internal/metrics"
	"github.com/boardwave/boardsync/internal/sched"
	"github.com/boardwave/boardsync/internal/transport"
)

// Default tuning values.
const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultLockTTL        = lock.DefaultTTL
	DefaultConflictWindow = conflict.DefaultWindow
	DefaultHistoryLimit   = history.DefaultLimit
)

// UserInfo is the display information announced with presence.
type UserInfo = transport.UserInfo

// PresenceEntry is one remote user known to be in the project.
type PresenceEntry struct {
	UserID       string
	UserInfo     UserInfo
	JoinedAt     time.Time
	LastActivity time.Time
}

// Messenger is the part of the transport the coordinator needs.
// *transport.Transport implements it.
type Messenger interface {
	Send(msgType transport.MessageType, payload any) bool
	Events() *event.Bus
	UserID() string
	JoinProject(projectID string) bool
	LeaveProject(projectID string) bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScheduler sets the scheduler for debounce and lock expiry timers.
func WithScheduler(s *sched.Scheduler) Option {
	return func(c *Coordinator) { c.sched = s }
}

// WithDebounce sets the per-element edit debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounceDelay = d
		}
	}
}

// WithLockTTL sets how long an unreleased lock lives.
func WithLockTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.lockTTL = d
		}
	}
}

// WithConflictWindow sets how close two edits by different users must be to
// count as concurrent.
func WithConflictWindow(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithHistoryLimit bounds the change history.
func WithHistoryLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithMergeStrategy sets the strategy used for merge_changes resolutions.
func WithMergeStrategy(s conflict.MergeStrategy) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.merge = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithBus publishes coordinator events on b instead of a private bus.
func WithBus(b *event.Bus) Option {
	return func(c *Coordinator) { c.bus = b }
}

package coordination

import (
	"github.com/boardwave/boardsync/internal/conflict"
	"github.com/boardwave/boardsync/internal/logging"
	"github.com/boardwave/boardsync/internal/metrics"
	"github.com/boardwave/boardsync/internal/sched"
	"github.com/boardwave/boardsync/internal/transport"
)

// hubConfig holds optional configuration for a Hub.
type hubConfig struct {
	logger    *logging.Logger
	metrics   *metrics.Metrics
	scheduler *sched.Scheduler
	dialer    transport.Dialer
	merge     conflict.MergeStrategy
}

// Option configures a Hub.
type Option func(*hubConfig)

// WithLogger sets the logger handed to every component.
func WithLogger(l *logging.Logger) Option {
	return func(c *hubConfig) { c.logger = l }
}

// WithMetrics enables Prometheus instrumentation for every component.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *hubConfig) { c.metrics = m }
}

// WithScheduler sets the scheduler shared by heartbeat, reconnect, debounce
// and lock expiry timers. Tests pass one backed by sched.Fake.
func WithScheduler(s *sched.Scheduler) Option {
	return func(c *hubConfig) { c.scheduler = s }
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d transport.Dialer) Option {
	return func(c *hubConfig) { c.dialer = d }
}

// WithMergeStrategy sets a custom merge strategy. It takes precedence over
// Config.MergeStrategy.
func WithMergeStrategy(s conflict.MergeStrategy) Option {
	return func(c *hubConfig) { c.merge = s }
}

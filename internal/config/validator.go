package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/boardwave/boardsync/internal/conflict"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "collab.lock_ttl_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Bounds for timing values, in milliseconds.
const (
	minHeartbeatMs      = 1000
	maxReconnectDelayMs = 60_000
	maxReconnects       = 100
	maxDebounceMs       = 10_000
	minLockTTLMs        = 1000
	maxHistoryLimit     = 100_000
	maxHandshakeMs      = 120_000
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found.
// An empty server URL is allowed here; commands that connect check it themselves.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateTransport()...)
	errors = append(errors, c.validateCollab()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.URL != "" {
		u, err := url.Parse(c.Server.URL)
		switch {
		case err != nil:
			errors = append(errors, ValidationError{
				Field:   "server.url",
				Value:   c.Server.URL,
				Message: "must be a valid URL",
			})
		case u.Scheme != "ws" && u.Scheme != "wss":
			errors = append(errors, ValidationError{
				Field:   "server.url",
				Value:   c.Server.URL,
				Message: "scheme must be ws or wss",
			})
		case u.Host == "":
			errors = append(errors, ValidationError{
				Field:   "server.url",
				Value:   c.Server.URL,
				Message: "must include a host",
			})
		}
	}

	if c.Server.HandshakeTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.handshake_timeout_ms",
			Value:   c.Server.HandshakeTimeoutMs,
			Message: "must be positive",
		})
	} else if c.Server.HandshakeTimeoutMs > maxHandshakeMs {
		errors = append(errors, ValidationError{
			Field:   "server.handshake_timeout_ms",
			Value:   c.Server.HandshakeTimeoutMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxHandshakeMs),
		})
	}

	return errors
}

// validateTransport validates the TransportConfig
func (c *Config) validateTransport() []ValidationError {
	var errors []ValidationError

	// 0 disables the heartbeat
	if c.Transport.HeartbeatIntervalMs < 0 || (c.Transport.HeartbeatIntervalMs > 0 && c.Transport.HeartbeatIntervalMs < minHeartbeatMs) {
		errors = append(errors, ValidationError{
			Field:   "transport.heartbeat_interval_ms",
			Value:   c.Transport.HeartbeatIntervalMs,
			Message: fmt.Sprintf("must be 0 (disabled) or at least %dms", minHeartbeatMs),
		})
	}

	if c.Transport.ReconnectBaseDelayMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "transport.reconnect_base_delay_ms",
			Value:   c.Transport.ReconnectBaseDelayMs,
			Message: "must be positive",
		})
	} else if c.Transport.ReconnectBaseDelayMs > maxReconnectDelayMs {
		errors = append(errors, ValidationError{
			Field:   "transport.reconnect_base_delay_ms",
			Value:   c.Transport.ReconnectBaseDelayMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxReconnectDelayMs),
		})
	}

	if c.Transport.MaxReconnectAttempts < 0 || c.Transport.MaxReconnectAttempts > maxReconnects {
		errors = append(errors, ValidationError{
			Field:   "transport.max_reconnect_attempts",
			Value:   c.Transport.MaxReconnectAttempts,
			Message: fmt.Sprintf("must be between 0 and %d", maxReconnects),
		})
	}

	if c.Transport.WriteTimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "transport.write_timeout_ms",
			Value:   c.Transport.WriteTimeoutMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateCollab validates the CollabConfig
func (c *Config) validateCollab() []ValidationError {
	var errors []ValidationError

	if c.Collab.DebounceMs <= 0 || c.Collab.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "collab.debounce_ms",
			Value:   c.Collab.DebounceMs,
			Message: fmt.Sprintf("must be between 1 and %d", maxDebounceMs),
		})
	}

	if c.Collab.LockTTLMs < minLockTTLMs {
		errors = append(errors, ValidationError{
			Field:   "collab.lock_ttl_ms",
			Value:   c.Collab.LockTTLMs,
			Message: fmt.Sprintf("must be at least %dms", minLockTTLMs),
		})
	}

	if c.Collab.ConflictWindowMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "collab.conflict_window_ms",
			Value:   c.Collab.ConflictWindowMs,
			Message: "must be positive",
		})
	}

	if c.Collab.HistoryLimit <= 0 || c.Collab.HistoryLimit > maxHistoryLimit {
		errors = append(errors, ValidationError{
			Field:   "collab.history_limit",
			Value:   c.Collab.HistoryLimit,
			Message: fmt.Sprintf("must be between 1 and %d", maxHistoryLimit),
		})
	}

	if c.Collab.MergeStrategy != "" {
		if _, ok := conflict.StrategyByName(c.Collab.MergeStrategy); !ok {
			errors = append(errors, ValidationError{
				Field:   "collab.merge_strategy",
				Value:   c.Collab.MergeStrategy,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(conflict.StrategyNames(), ", ")),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	// The address only matters when the endpoint is served
	if !c.Metrics.Enabled {
		return errors
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be host:port",
		})
	}

	return errors
}

// Package errors provides centralized error definitions and error handling utilities
// for boardsync. It defines sentinel errors, domain error types with context
// wrapping, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent errors from specific layers:
//   - ConnectionError: socket construction, handshake and transmission failures
//   - CollabError: lock, conflict and project-session failures in the coordinator
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewConnectionError("dial failed", cause).WithURL(u).WithRetryable(true)
//
//	if errors.Is(err, errors.ErrNotConnected) { ... }
//
//	var connErr *errors.ConnectionError
//	if errors.As(err, &connErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// Nothing in the collaboration core is fatal. Errors either surface as events,
// boolean results, or are returned from the few calls that can fail up front.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Connection-related sentinel errors
var (
	// ErrMissingCredentials indicates that a token or user id was not supplied.
	ErrMissingCredentials = New("missing token or user id")
	// ErrNotConnected indicates that no healthy connection exists.
	ErrNotConnected = New("not connected")
	// ErrInvalidURL indicates that the server URL could not be parsed.
	ErrInvalidURL = New("invalid server url")
	// ErrHandshake indicates that the WebSocket handshake failed.
	ErrHandshake = New("handshake failed")
	// ErrInvalidTransition indicates a connection state change that the state machine forbids.
	ErrInvalidTransition = New("invalid connection state transition")
)

// Collaboration-related sentinel errors
var (
	// ErrLockHeld indicates that an element is locked by a different user.
	ErrLockHeld = New("element locked by another user")
	// ErrNotLockHolder indicates a release attempt by a user that does not hold the lock.
	ErrNotLockHolder = New("not the lock holder")
	// ErrNotLocked indicates that the element has no lock.
	ErrNotLocked = New("element not locked")
	// ErrConflictNotFound indicates that a conflict id is not queued.
	ErrConflictNotFound = New("conflict not found")
	// ErrNoProject indicates that no project session has been initialized.
	ErrNoProject = New("no active project")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// BoardsyncError is the base interface for all boardsync errors.
type BoardsyncError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConnectionError represents transport failures.
//
// Example:
//
//	err := errors.NewConnectionError("dial failed", errors.ErrHandshake).WithURL("wss://x/ws")
//	fmt.Println(err) // "connection error [url=wss://x/ws]: dial failed: handshake failed"
type ConnectionError struct {
	baseError
	URL     string
	Attempt int
}

// NewConnectionError creates a new ConnectionError.
// Connection errors are retryable by default because the reconnect policy applies to them.
func NewConnectionError(message string, cause error) *ConnectionError {
	return &ConnectionError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
	}
}

// WithURL adds the server URL to the error context.
func (e *ConnectionError) WithURL(u string) *ConnectionError {
	e.URL = u
	return e
}

// WithAttempt adds the reconnect attempt number to the error context.
func (e *ConnectionError) WithAttempt(n int) *ConnectionError {
	e.Attempt = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ConnectionError) WithRetryable(r bool) *ConnectionError {
	e.retryable = r
	return e
}

// WithSeverity sets the error severity.
func (e *ConnectionError) WithSeverity(s Severity) *ConnectionError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ConnectionError) Error() string {
	var parts []string
	if e.URL != "" {
		parts = append(parts, fmt.Sprintf("url=%s", e.URL))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	return e.format("connection error", parts)
}

// CollabError represents coordinator failures tied to an element or project.
type CollabError struct {
	baseError
	ProjectID string
	ElementID string
}

// NewCollabError creates a new CollabError.
func NewCollabError(message string, cause error) *CollabError {
	return &CollabError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityWarning,
		},
	}
}

// WithProject adds a project id to the error context.
func (e *CollabError) WithProject(id string) *CollabError {
	e.ProjectID = id
	return e
}

// WithElement adds an element id to the error context.
func (e *CollabError) WithElement(id string) *CollabError {
	e.ElementID = id
	return e
}

// Error returns the formatted error message.
func (e *CollabError) Error() string {
	var parts []string
	if e.ProjectID != "" {
		parts = append(parts, fmt.Sprintf("project=%s", e.ProjectID))
	}
	if e.ElementID != "" {
		parts = append(parts, fmt.Sprintf("element=%s", e.ElementID))
	}
	return e.format("collab error", parts)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError indicates that a resource could not be found.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
	cause        error
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// WithCause adds an underlying cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
}

// Unwrap returns the underlying error.
func (e *NotFoundError) Unwrap() error { return e.cause }

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// WithField adds the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	if e.Value != nil {
		return fmt.Sprintf("validation error: %s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var bsErr BoardsyncError
	if As(err, &bsErr) {
		return bsErr.IsRetryable()
	}

	return Is(err, ErrNotConnected) || Is(err, ErrHandshake)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BoardsyncError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var bsErr BoardsyncError
	if As(err, &bsErr) {
		return bsErr.Severity()
	}

	return SeverityError
}

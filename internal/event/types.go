package event

import (
	"encoding/json"
	"time"
)

// Name identifies an event. Names follow the "category.action" convention.
// The set is closed: publishers and subscribers only use the constants below.
type Name string

// Transport lifecycle events.
const (
	NameConnected       Name = "transport.connected"
	NameDisconnected    Name = "transport.disconnected"
	NameError           Name = "transport.error"
	NameReconnecting    Name = "transport.reconnecting"
	NameReconnectFailed Name = "transport.reconnect_failed"
)

// Inbound message events, one per recognized wire type.
const (
	NameProjectUpdated      Name = "message.project_updated"
	NameTaskUpdated         Name = "message.task_updated"
	NameWorkflowUpdated     Name = "message.workflow_updated"
	NameUserJoined          Name = "message.user_joined"
	NameUserLeft            Name = "message.user_left"
	NameCollaborativeEdit   Name = "message.collaborative_edit"
	NameConflictDetected    Name = "message.conflict_detected"
	NameNotification        Name = "message.notification"
	NameNotificationRead    Name = "message.notification_read"
	NameNotificationDeleted Name = "message.notification_deleted"
	NameUnreadCountUpdated  Name = "message.unread_count_updated"
	NameUserStatusChanged   Name = "message.user_status_changed"
	NameTypingIndicator     Name = "message.typing_indicator"
)

// Coordinator events.
const (
	NameCollabUserJoined       Name = "collab.user_joined"
	NameCollabUserLeft         Name = "collab.user_left"
	NameCollabEdit             Name = "collab.collaborative_edit"
	NameCollabConflictDetected Name = "collab.conflict_detected"
	NameConflictResolved       Name = "collab.conflict_resolved"
	NameApplyChanges           Name = "collab.apply_changes"
	NameCollabProjectUpdated   Name = "collab.project_updated"
	NameCollabTaskUpdated      Name = "collab.task_updated"
	NameCollabWorkflowUpdated  Name = "collab.workflow_updated"
	NameLockAcquired           Name = "collab.lock_acquired"
	NameLockReleased           Name = "collab.lock_released"
)

// nameAll is the wildcard subscription key used by SubscribeAll.
const nameAll Name = "*"

var knownNames = map[Name]struct{}{
	NameConnected: {}, NameDisconnected: {}, NameError: {}, NameReconnecting: {}, NameReconnectFailed: {},
	NameProjectUpdated: {}, NameTaskUpdated: {}, NameWorkflowUpdated: {}, NameUserJoined: {},
	NameUserLeft: {}, NameCollaborativeEdit: {}, NameConflictDetected: {}, NameNotification: {},
	NameNotificationRead: {}, NameNotificationDeleted: {}, NameUnreadCountUpdated: {},
	NameUserStatusChanged: {}, NameTypingIndicator: {},
	NameCollabUserJoined: {}, NameCollabUserLeft: {}, NameCollabEdit: {}, NameCollabConflictDetected: {},
	NameConflictResolved: {}, NameApplyChanges: {}, NameCollabProjectUpdated: {},
	NameCollabTaskUpdated: {}, NameCollabWorkflowUpdated: {}, NameLockAcquired: {}, NameLockReleased: {},
}

// IsValid reports whether n is one of the declared event names.
func (n Name) IsValid() bool {
	_, ok := knownNames[n]
	return ok
}

// Category returns the part of the name before the dot.
func (n Name) Category() string {
	for i := 0; i < len(n); i++ {
		if n[i] == '.' {
			return string(n[:i])
		}
	}
	return string(n)
}

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns the name this event is published under.
	EventType() Name

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Base provides common fields for all events.
// Embed it in concrete event types to satisfy the Event interface.
type Base struct {
	name Name
	at   time.Time
}

// NewBase creates a Base stamped with the given time.
// Components pass their clock's Now so that tests stay deterministic.
func NewBase(name Name, at time.Time) Base {
	return Base{name: name, at: at}
}

func (b Base) EventType() Name      { return b.name }
func (b Base) Timestamp() time.Time { return b.at }

// -----------------------------------------------------------------------------
// Transport Events
// -----------------------------------------------------------------------------

// ConnectedEvent is emitted when the socket opens.
type ConnectedEvent struct {
	Base
	URL       string // Server URL without the query string
	UserID    string
	ProjectID string
}

// NewConnectedEvent creates a ConnectedEvent.
func NewConnectedEvent(at time.Time, url, userID, projectID string) ConnectedEvent {
	return ConnectedEvent{
		Base:      NewBase(NameConnected, at),
		URL:       url,
		UserID:    userID,
		ProjectID: projectID,
	}
}

// DisconnectedEvent is emitted when the socket closes, cleanly or not.
type DisconnectedEvent struct {
	Base
	Code          int    // WebSocket close code, 1006 when none was received
	Reason        string // Close reason text, if any
	Clean         bool   // Caller-initiated or normal closure
	WillReconnect bool   // A reconnect attempt has been scheduled
}

// NewDisconnectedEvent creates a DisconnectedEvent.
func NewDisconnectedEvent(at time.Time, code int, reason string, clean, willReconnect bool) DisconnectedEvent {
	return DisconnectedEvent{
		Base:          NewBase(NameDisconnected, at),
		Code:          code,
		Reason:        reason,
		Clean:         clean,
		WillReconnect: willReconnect,
	}
}

// ErrorEvent is emitted for connection-level failures.
type ErrorEvent struct {
	Base
	Err error
}

// NewErrorEvent creates an ErrorEvent.
func NewErrorEvent(at time.Time, err error) ErrorEvent {
	return ErrorEvent{Base: NewBase(NameError, at), Err: err}
}

// ReconnectingEvent is emitted when a reconnect attempt is scheduled.
type ReconnectingEvent struct {
	Base
	Attempt int           // 1-indexed attempt number
	Delay   time.Duration // Wait before the attempt starts
}

// NewReconnectingEvent creates a ReconnectingEvent.
func NewReconnectingEvent(at time.Time, attempt int, delay time.Duration) ReconnectingEvent {
	return ReconnectingEvent{
		Base:    NewBase(NameReconnecting, at),
		Attempt: attempt,
		Delay:   delay,
	}
}

// ReconnectFailedEvent is emitted when the reconnect cap is reached.
// The transport stays disconnected until a manual reconnect.
type ReconnectFailedEvent struct {
	Base
	Attempts int
}

// NewReconnectFailedEvent creates a ReconnectFailedEvent.
func NewReconnectFailedEvent(at time.Time, attempts int) ReconnectFailedEvent {
	return ReconnectFailedEvent{Base: NewBase(NameReconnectFailed, at), Attempts: attempts}
}

// -----------------------------------------------------------------------------
// Message Events
// -----------------------------------------------------------------------------

// MessageEvent carries a decoded inbound frame from another user.
type MessageEvent struct {
	Base
	Type      string          // Wire type, e.g. "collaborative_edit"
	Payload   json.RawMessage // Undecoded payload object
	UserID    string          // Sender
	ProjectID string          // Empty when the frame carried null
	SentAt    time.Time       // Sender's timestamp
}

// NewMessageEvent creates a MessageEvent published under name.
func NewMessageEvent(name Name, at time.Time, msgType string, payload json.RawMessage, userID, projectID string, sentAt time.Time) MessageEvent {
	return MessageEvent{
		Base:      NewBase(name, at),
		Type:      msgType,
		Payload:   payload,
		UserID:    userID,
		ProjectID: projectID,
		SentAt:    sentAt,
	}
}

// Decode unmarshals the payload into v.
func (e MessageEvent) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

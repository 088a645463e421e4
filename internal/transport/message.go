package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/boardwave/boardsync/internal/event"
)

// MessageType is the "type" field of a wire envelope.
type MessageType string

// Types sent and received.
const (
	TypeProjectUpdated    MessageType = "project_updated"
	TypeTaskUpdated       MessageType = "task_updated"
	TypeWorkflowUpdated   MessageType = "workflow_updated"
	TypeUserJoined        MessageType = "user_joined"
	TypeCollaborativeEdit MessageType = "collaborative_edit"
	TypeConflictDetected  MessageType = "conflict_detected"
	TypeTypingIndicator   MessageType = "typing_indicator"
)

// Types only received.
const (
	TypeUserLeft            MessageType = "user_left"
	TypeNotification        MessageType = "notification"
	TypeNotificationRead    MessageType = "notification_read"
	TypeNotificationDeleted MessageType = "notification_deleted"
	TypeUnreadCountUpdated  MessageType = "unread_count_updated"
	TypeUserStatusChanged   MessageType = "user_status_changed"
	TypePong                MessageType = "pong"
)

// Types only sent.
const (
	TypeJoinProject          MessageType = "join_project"
	TypeLeaveProject         MessageType = "leave_project"
	TypePing                 MessageType = "ping"
	TypeJoinNotifications    MessageType = "join_notifications"
	TypeLeaveNotifications   MessageType = "leave_notifications"
	TypeSendNotification     MessageType = "send_notification"
	TypeMarkNotificationRead MessageType = "mark_notification_read"
	TypeDeleteNotification   MessageType = "delete_notification"
	TypeGetUnreadCount       MessageType = "get_unread_count"
	TypeUserStatusUpdate     MessageType = "user_status_update"
)

// inboundEvents maps every recognized inbound type to the event it is
// published under. TypePong is handled separately.
var inboundEvents = map[MessageType]event.Name{
	TypeProjectUpdated:      event.NameProjectUpdated,
	TypeTaskUpdated:         event.NameTaskUpdated,
	TypeWorkflowUpdated:     event.NameWorkflowUpdated,
	TypeUserJoined:          event.NameUserJoined,
	TypeUserLeft:            event.NameUserLeft,
	TypeCollaborativeEdit:   event.NameCollaborativeEdit,
	TypeConflictDetected:    event.NameConflictDetected,
	TypeNotification:        event.NameNotification,
	TypeNotificationRead:    event.NameNotificationRead,
	TypeNotificationDeleted: event.NameNotificationDeleted,
	TypeUnreadCountUpdated:  event.NameUnreadCountUpdated,
	TypeUserStatusChanged:   event.NameUserStatusChanged,
	TypeTypingIndicator:     event.NameTypingIndicator,
}

// EventName returns the event an inbound type is published under.
func (t MessageType) EventName() (event.Name, bool) {
	name, ok := inboundEvents[t]
	return name, ok
}

// String returns the wire representation.
func (t MessageType) String() string {
	return string(t)
}

// Envelope is the uniform wire frame.
//
//	{"type":"...","payload":{...},"userId":"...","projectId":"..."|null,"timestamp":1700000000000}
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	UserID    string          `json:"userId"`
	ProjectID *string         `json:"projectId"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
}

var emptyObject = json.RawMessage(`{}`)

// NewEnvelope builds an envelope around payload. A nil payload is sent as {}.
// An empty projectID is sent as null.
func NewEnvelope(t MessageType, payload any, userID, projectID string, at time.Time) (Envelope, error) {
	raw := emptyObject
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		raw = b
	}

	env := Envelope{
		Type:      t,
		Payload:   raw,
		UserID:    userID,
		Timestamp: at.UnixMilli(),
	}
	if projectID != "" {
		env.ProjectID = &projectID
	}
	return env, nil
}

// DecodeEnvelope parses a text frame.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// Encode renders the envelope as JSON.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Time returns the sender timestamp.
func (e Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Project returns the project id, or "" when it was null.
func (e Envelope) Project() string {
	if e.ProjectID == nil {
		return ""
	}
	return *e.ProjectID
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

package transport

// UserInfo is the display information a user announces on join.
type UserInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   string `json:"role,omitempty"`
}

// ProjectPayload is sent with join_project and leave_project.
type ProjectPayload struct {
	ProjectID string `json:"projectId"`
}

// UserJoinedPayload announces presence.
type UserJoinedPayload struct {
	UserID   string   `json:"userId"`
	UserInfo UserInfo `json:"userInfo"`
}

// UserLeftPayload is received when a peer leaves.
type UserLeftPayload struct {
	UserID string `json:"userId"`
}

// UpdatePayload is sent with project_updated, task_updated and
// workflow_updated. Exactly one of the id fields is set.
type UpdatePayload struct {
	ProjectID  string `json:"projectId,omitempty"`
	TaskID     string `json:"taskId,omitempty"`
	WorkflowID string `json:"workflowId,omitempty"`
	UpdateType string `json:"updateType"`
	Data       any    `json:"data,omitempty"`
}

// EditPayload is sent and received with collaborative_edit.
type EditPayload struct {
	EditType  string         `json:"editType"`
	ElementID string         `json:"elementId"`
	Changes   map[string]any `json:"changes"`
}

// ConflictPayload is sent and received with conflict_detected.
type ConflictPayload struct {
	ConflictID   string         `json:"conflictId,omitempty"`
	ElementID    string         `json:"elementId"`
	EditType     string         `json:"editType,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	ConflictType string         `json:"conflictType"`
	With         string         `json:"with,omitempty"`
}

// NotificationPayload is sent with send_notification.
type NotificationPayload struct {
	RecipientID string         `json:"recipientId"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Kind        string         `json:"type,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// NotificationIDPayload is sent with mark_notification_read and
// delete_notification.
type NotificationIDPayload struct {
	NotificationID string `json:"notificationId"`
}

// UserStatusPayload is sent with user_status_update.
type UserStatusPayload struct {
	Status string `json:"status"`
}

// TypingPayload is sent with typing_indicator.
type TypingPayload struct {
	ElementID string `json:"elementId"`
	IsTyping  bool   `json:"isTyping"`
}

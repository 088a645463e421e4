package transport

// JoinProject switches the connection to projectID and asks the server to
// join its channel. Reconnects reuse the new project id.
func (t *Transport) JoinProject(projectID string) bool {
	t.mu.Lock()
	t.creds.ProjectID = projectID
	t.mu.Unlock()

	return t.Send(TypeJoinProject, ProjectPayload{ProjectID: projectID})
}

// LeaveProject leaves projectID's channel and clears the current project if
// it matches.
func (t *Transport) LeaveProject(projectID string) bool {
	ok := t.Send(TypeLeaveProject, ProjectPayload{ProjectID: projectID})

	t.mu.Lock()
	if t.creds.ProjectID == projectID {
		t.creds.ProjectID = ""
	}
	t.mu.Unlock()
	return ok
}

// NotifyProjectUpdate broadcasts a change to a project.
func (t *Transport) NotifyProjectUpdate(projectID, updateType string, data any) bool {
	return t.Send(TypeProjectUpdated, UpdatePayload{ProjectID: projectID, UpdateType: updateType, Data: data})
}

// NotifyTaskUpdate broadcasts a change to a task.
func (t *Transport) NotifyTaskUpdate(taskID, updateType string, data any) bool {
	return t.Send(TypeTaskUpdated, UpdatePayload{TaskID: taskID, UpdateType: updateType, Data: data})
}

// NotifyWorkflowUpdate broadcasts a change to a workflow.
func (t *Transport) NotifyWorkflowUpdate(workflowID, updateType string, data any) bool {
	return t.Send(TypeWorkflowUpdated, UpdatePayload{WorkflowID: workflowID, UpdateType: updateType, Data: data})
}

// SendCollaborativeEdit broadcasts an element edit.
func (t *Transport) SendCollaborativeEdit(edit EditPayload) bool {
	return t.Send(TypeCollaborativeEdit, edit)
}

// NotifyConflict tells peers about a detected conflict.
func (t *Transport) NotifyConflict(c ConflictPayload) bool {
	return t.Send(TypeConflictDetected, c)
}

// JoinNotifications subscribes to the user's notification room.
func (t *Transport) JoinNotifications() bool {
	return t.Send(TypeJoinNotifications, nil)
}

// LeaveNotifications unsubscribes from the notification room.
func (t *Transport) LeaveNotifications() bool {
	return t.Send(TypeLeaveNotifications, nil)
}

// SendNotification relays a notification to another user.
func (t *Transport) SendNotification(n NotificationPayload) bool {
	return t.Send(TypeSendNotification, n)
}

// MarkNotificationRead marks a notification read.
func (t *Transport) MarkNotificationRead(notificationID string) bool {
	return t.Send(TypeMarkNotificationRead, NotificationIDPayload{NotificationID: notificationID})
}

// DeleteNotification deletes a notification.
func (t *Transport) DeleteNotification(notificationID string) bool {
	return t.Send(TypeDeleteNotification, NotificationIDPayload{NotificationID: notificationID})
}

// RequestUnreadCount asks the server for an unread_count_updated message.
func (t *Transport) RequestUnreadCount() bool {
	return t.Send(TypeGetUnreadCount, nil)
}

// AnnouncePresence broadcasts user_joined for the local user.
func (t *Transport) AnnouncePresence(info UserInfo) bool {
	return t.Send(TypeUserJoined, UserJoinedPayload{UserID: t.UserID(), UserInfo: info})
}

// UpdateUserStatus broadcasts the local user's status, e.g. "away".
func (t *Transport) UpdateUserStatus(status string) bool {
	return t.Send(TypeUserStatusUpdate, UserStatusPayload{Status: status})
}

// SendTypingIndicator tells peers the local user is typing in an element.
func (t *Transport) SendTypingIndicator(elementID string, isTyping bool) bool {
	return t.Send(TypeTypingIndicator, TypingPayload{ElementID: elementID, IsTyping: isTyping})
}

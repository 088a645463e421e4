// Package collab tracks the shared state of one project session on top of a
// transport connection.
//
// The [Coordinator] keeps the presence map, debounces outgoing element edits,
// owns the advisory lock table, records a bounded change history and queues
// conflicting remote edits until the caller resolves them. It never mutates
// application data itself: applied changes are announced as events and the
// UI decides what to do with them.
//
// # Events
//
// Every event is published on the coordinator's own bus under the collab.*
// names from package event:
//
//   - collab.user_joined, collab.user_left: presence changes
//   - collab.collaborative_edit: a remote edit applied without conflict
//   - collab.conflict_detected, collab.conflict_resolved
//   - collab.apply_changes: changes accepted or merged through ResolveConflict
//   - collab.project_updated, collab.task_updated, collab.workflow_updated
//   - collab.lock_acquired, collab.lock_released
//
// # Conflict Detection
//
// A remote edit on element E by user U conflicts when E is locked by someone
// other than U, or when the history holds an edit on E by a different user
// less than the conflict window before it. Conflicts are queued, published
// and broadcast to peers; no automatic resolution is attempted.
//
// # Timers
//
// Debounce and lock expiry timers run on the [sched.Scheduler] passed with
// [WithScheduler]. [Coordinator.Cleanup] cancels all of them.
package collab

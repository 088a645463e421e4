// Package sched provides cancellable timers for the collaboration core.
//
// Every delayed action (heartbeat, reconnect backoff, edit debounce, lock
// expiry) is created through a [Scheduler], which returns a [Handle] and keeps
// track of it until it fires or is cancelled. Ending a session calls
// [Scheduler.CancelAll] so no callback can run against torn-down state.
//
// [Keyed] layers "one pending callback per key" on top of a Scheduler.
//
// Tests drive time with [Fake], whose Advance method runs due callbacks
// synchronously and in order.
package sched

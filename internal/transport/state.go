package transport

import (
	"fmt"

	"github.com/boardwave/boardsync/internal/errors"
)

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateReconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Trigger is an input to the state machine.
type Trigger int

const (
	TriggerConnect     Trigger = iota // caller or retry starts a dial
	TriggerOpen                       // handshake succeeded
	TriggerDrop                       // unclean close or handshake failure
	TriggerServerClose                // server closed with normal closure
	TriggerDisconnect                 // caller-initiated close
	TriggerClosed                     // close frame sent and socket released
	TriggerRetry                      // backoff delay expired
	TriggerGiveUp                     // reconnect cap reached
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerConnect:
		return "connect"
	case TriggerOpen:
		return "open"
	case TriggerDrop:
		return "drop"
	case TriggerServerClose:
		return "server_close"
	case TriggerDisconnect:
		return "disconnect"
	case TriggerClosed:
		return "closed"
	case TriggerRetry:
		return "retry"
	case TriggerGiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	from    State
	trigger Trigger
}

// transitions is the complete reconnect state machine. Pairs not listed
// are invalid.
var transitions = map[transitionKey]State{
	{StateDisconnected, TriggerConnect}: StateConnecting,

	{StateConnecting, TriggerOpen}:       StateConnected,
	{StateConnecting, TriggerDrop}:       StateReconnecting,
	{StateConnecting, TriggerDisconnect}: StateDisconnected,

	{StateConnected, TriggerDrop}:        StateReconnecting,
	{StateConnected, TriggerServerClose}: StateDisconnected,
	{StateConnected, TriggerDisconnect}:  StateClosing,

	{StateClosing, TriggerClosed}: StateDisconnected,

	{StateReconnecting, TriggerRetry}:      StateConnecting,
	{StateReconnecting, TriggerConnect}:    StateConnecting,
	{StateReconnecting, TriggerGiveUp}:     StateDisconnected,
	{StateReconnecting, TriggerDisconnect}: StateDisconnected,
}

// nextState returns the state reached from from on trigger.
func nextState(from State, trigger Trigger) (State, error) {
	to, ok := transitions[transitionKey{from, trigger}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", errors.ErrInvalidTransition, trigger, from)
	}
	return to, nil
}

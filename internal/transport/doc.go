// Package transport maintains the persistent WebSocket connection to the
// collaboration server.
//
// A [Transport] dials with gorilla/websocket, wraps every outbound payload in
// an [Envelope], sends a ping on a fixed heartbeat, and decodes inbound frames
// into [event.MessageEvent] values on its bus. Frames sent by the local user
// are dropped so that echoes never reach subscribers.
//
// # Connection States
//
// The reconnect behavior is a table-driven state machine:
//
//	disconnected --connect--> connecting --open--> connected
//	connected --server close 1000--> disconnected
//	connected --drop--> reconnecting --retry--> connecting
//	reconnecting --give up--> disconnected (terminal until Reconnect)
//	connected --Disconnect--> closing --closed--> disconnected
//
// Retry delays come from cenkalti/backoff configured as base*2^(n-1) with no
// jitter, and stop after MaxReconnectAttempts. A caller-initiated
// [Transport.Disconnect] never schedules a retry.
//
// # Errors
//
// Connection failures are published as [event.ErrorEvent]. Send reports
// failure with a false return. Only a server URL that cannot be parsed makes
// Connect return an error.
package transport

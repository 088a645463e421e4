// Package event provides a pub-sub event bus for decoupled communication
// between the transport, the collaboration coordinator and UI adapters.
//
// Publishers emit events without knowing who receives them, and subscribers
// register for a [Name] without knowing who produces it.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//   - [Name]: Closed set of event names in "category.action" form
//
// # Event Categories
//
// Transport lifecycle ("transport.*"):
//   - [ConnectedEvent], [DisconnectedEvent], [ErrorEvent]
//   - [ReconnectingEvent], [ReconnectFailedEvent]
//
// Inbound messages ("message.*"): every recognized wire type is delivered as
// a [MessageEvent] whose raw payload can be decoded with [MessageEvent.Decode].
//
// Coordinator events ("collab.*") are declared here by name; their payload
// types live in the collab package.
//
// # Typed Subscriptions
//
// [On] wraps Subscribe with a type assertion so handlers receive the concrete
// event type:
//
//	event.On(bus, event.NameDisconnected, func(e event.DisconnectedEvent) {
//	    if !e.Clean { ... }
//	})
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called synchronously
// in registration order on the publisher's goroutine. A panicking handler is
// recovered and logged, and the remaining handlers still run.
package event

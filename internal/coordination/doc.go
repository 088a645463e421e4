// Package coordination provides a Hub that wires the transport and the
// collaboration coordinator together for a single login/project session.
//
// The Hub is the composition root of boardsync. It owns one scheduler, one
// [transport.Transport] and one [collab.Coordinator]:
//
//	UI -> Hub -> Coordinator (debounce, locks, conflicts) -> Transport -> wire
//	wire -> Transport read loop -> transport bus -> Coordinator -> collab bus -> UI
//
// There are no package-level instances. Create a Hub per session and stop it
// when the user logs out or leaves the project.
//
// Usage:
//
//	hub, err := coordination.NewHub(coordination.DefaultConfig("wss://collab.example.com/ws"),
//	    coordination.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := hub.Start(ctx, transport.Credentials{Token: tok, UserID: "u1", ProjectID: "p1"}, info); err != nil {
//	    return err
//	}
//	defer hub.Stop()
//
//	event.On(hub.Events(), event.NameCollabEdit, func(e collab.EditEvent) { ... })
//	if hub.AcquireLock("card-7") {
//	    hub.SendEdit("update", "card-7", map[string]any{"title": "New"})
//	}
package coordination

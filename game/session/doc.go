// Package session provides the connection registry for the relay.
//
// The session package implements:
//   - One Connection record per attached client, keyed by a generated ID
//   - Display names with a configurable default
//   - Explicit seat state: Unseated, WaitingForOpponent or Active
//   - Outbound delivery through the Sender attached at registration
//   - Detach hooks that unwind queue and room membership on close
//
// Core Types:
//
// Registry owns every Connection. Connection carries the per-client session
// attributes and its State. Sender is the transport handle the registry writes
// encoded envelopes to.
//
// Concurrency:
//
// The registry is not safe for concurrent use. It is owned by the relay's
// event loop, which handles one message or close event to completion before
// the next, so no locking is required.
//
// Usage:
//
//	registry := session.NewRegistry(logger)
//	registry.OnDetach(func(c *session.Connection) { queue.Remove(c.ID) })
//
//	id := registry.Register(sender)
//	registry.SetName(id, "Alice")
//	registry.Send(id, protocol.NewError("nope"))
//
//	registry.Detach(id) // runs hooks, then forgets the connection
package session

// Package service provides the message router of the stone-paper-scissors relay.
//
// The service package implements:
//   - Connection attach and detach against the session registry
//   - Decoding of client envelopes and dispatch by message type
//   - Per-connection preconditions derived from the connection's seat state
//   - Error envelopes for rejected joins and other seat conflicts
//   - A status snapshot of connections, rooms and the matchmaking queue
//
// Core Types:
//
// Relay wires an injected session.Registry, room.Store and lobby.Queue
// together. Closing a connection detaches it from the registry, which first
// removes it from the queue and then frees its seat.
//
// State machine:
//
// A connection is Unseated, WaitingForOpponent or Active. create, join and
// matchmake require Unseated; choice, chat and reset require a seat. Choice,
// chat and reset from an unseated connection are ignored. Malformed or
// unknown envelopes are dropped and the connection stays open.
//
// Concurrency:
//
// A Relay is driven by a single goroutine. Each call to Connect, Receive or
// Disconnect runs to completion, including every broadcast it triggers,
// before the next call.
//
// Usage:
//
//	relay := service.New(logger, service.Options{})
//	id := relay.Connect(sender)
//	relay.Receive(id, []byte(`{"type":"create"}`))
//	relay.Disconnect(id)
package service

// Package websocket provides the WebSocket transport for the stone-paper-scissors relay.
//
// The websocket package implements:
//   - Connection upgrade with an origin allow list
//   - Read and write pumps per connection with ping/pong keepalive
//   - One JSON envelope per text frame in both directions
//   - Serialization of every relay event onto the hub goroutine
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub owns all
// WebSocket connections. Each connection runs a read pump and a write pump.
// The read pump forwards raw frames to the hub; the hub hands them to a
// Dispatcher one at a time, so relay state needs no locks.
//
// Outbound frames are queued on a bounded per-client channel. Client.Send
// never blocks: a client that stops draining its queue is closed.
//
// Usage:
//
//	relay := service.New(logger, service.Options{})
//	hub := websocket.NewHub(relay, websocket.DefaultOptions(), logger)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client upgrades and is registered with the relay as unseated
// 2. Client frames are dispatched in arrival order
// 3. Read error or close unregisters the client, which frees its seat
// 4. Cancelling the Run context closes every client
package websocket

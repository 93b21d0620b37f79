// Package api provides the HTTP surface of the stone-paper-scissors relay.
//
// The api package implements:
//   - Health and status endpoints
//   - The beats table as JSON
//   - WebSocket upgrade on /ws and on any path carrying an Upgrade header
//   - JSON 404 and 405 responses for everything else
//
// Endpoints:
//   - GET /health - {"status":"healthy"}
//   - GET /api/status - {connections, rooms, waiting}; ?rooms=true adds room_list
//   - GET /api/rooms - {count, rooms}
//   - GET /api/rules - {choices, rules}
//   - GET /ws - WebSocket upgrade
//
// Status is read from the relay event loop, so every endpoint that reports
// relay state waits for the hub goroutine, bounded by a short timeout.
//
// Usage:
//
//	server := api.NewServer(hub, logger)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{
//	  "error": "error message"
//	}
package api

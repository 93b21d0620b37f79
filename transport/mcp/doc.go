// Package mcp provides a Model Context Protocol server for the stone-paper-scissors relay.
//
// The mcp package implements:
//   - MCP tools that proxy relay status and rules from the REST API
//   - A local computer opponent with a running score
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//   - relay_status: connections, rooms and matchmaking queue length
//   - game_rules: the beats table
//   - play_computer: one round against a random computer choice
//   - computer_score: running score, with optional reset
//   - game_instructions: the websocket protocol for clients
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", mcp.WithLogger(logger))
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	mux.Handle("/mcp", client.HTTPHandler())
package mcp

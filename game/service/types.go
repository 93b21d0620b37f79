package service

import "github.com/wricardo/stone-paper-relay/game/room"

// Status is a point-in-time snapshot of the relay
type Status struct {
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
	Waiting     int            `json:"waiting"`
	RoomList    []room.Summary `json:"room_list,omitempty"`
}

// Options configures a relay built by New
type Options struct {
	// DefaultName is the display name before a client sends setName
	DefaultName string
	// RoomIDLength is the length of generated room IDs
	RoomIDLength int
}

// Error messages sent to clients in error envelopes
const (
	MsgRoomFullOrMissing = "Room is full or does not exist."
	MsgAlreadySeated     = "You are already in a room."
)

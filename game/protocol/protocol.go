// Package protocol defines the JSON envelopes exchanged between clients and
// the relay. Every message is a single JSON object whose "type" field selects
// its shape.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/stone-paper-relay/game/engine"
)

var (
	ErrMalformed   = errors.New("malformed envelope")
	ErrUnknownType = errors.New("unknown message type")
)

// Client to relay message types
const (
	TypeSetName   = "setName"
	TypeCreate    = "create"
	TypeJoin      = "join"
	TypeMatchmake = "matchmake"
	TypeChoice    = "choice"
	TypeChat      = "chat"
	TypeReset     = "reset"
)

// Relay to client message types. TypeChat and TypeReset are shared.
const (
	TypeRoomCreated  = "roomCreated"
	TypePlayerJoined = "playerJoined"
	TypeResult       = "result"
	TypePlayerLeft   = "playerLeft"
	TypeError        = "error"
)

var inboundTypes = map[string]bool{
	TypeSetName:   true,
	TypeCreate:    true,
	TypeJoin:      true,
	TypeMatchmake: true,
	TypeChoice:    true,
	TypeChat:      true,
	TypeReset:     true,
}

// Inbound is any client to relay envelope. Only the fields relevant to Type are set.
type Inbound struct {
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	RoomID string `json:"roomId,omitempty"`
	Choice string `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Decode parses a raw client message.
// It returns ErrMalformed for bodies that are not a JSON object and ErrUnknownType
// for objects whose type is not a client message type.
func Decode(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !inboundTypes[in.Type] {
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, in.Type)
	}
	return in, nil
}

// Encode serializes an outbound envelope
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

// RoomCreated tells a client it has been seated in a new room.
// Opponent is set only when the room was created by matchmaking.
type RoomCreated struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Opponent string `json:"opponent,omitempty"`
}

// PlayerJoined announces the seat count after a join
type PlayerJoined struct {
	Type        string `json:"type"`
	PlayerCount int    `json:"playerCount"`
}

// Result carries a resolved round. Choices are in seat order.
type Result struct {
	Type    string           `json:"type"`
	Winner  engine.Winner    `json:"winner"`
	Choices [2]engine.Choice `json:"choices"`
}

// Chat relays a chat line to every occupant of a room
type Chat struct {
	Type string `json:"type"`
	From string `json:"from"`
	Text string `json:"text"`
}

// PlayerLeft tells the remaining occupant the other seat is empty
type PlayerLeft struct {
	Type string `json:"type"`
}

// Reset tells occupants that pending choices were cleared
type Reset struct {
	Type string `json:"type"`
}

// Error reports a rejected request to the offending client only
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewRoomCreated(roomID, opponent string) RoomCreated {
	return RoomCreated{Type: TypeRoomCreated, RoomID: roomID, Opponent: opponent}
}

func NewPlayerJoined(count int) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, PlayerCount: count}
}

func NewResult(winner engine.Winner, seat0, seat1 engine.Choice) Result {
	return Result{Type: TypeResult, Winner: winner, Choices: [2]engine.Choice{seat0, seat1}}
}

func NewChat(from, text string) Chat {
	return Chat{Type: TypeChat, From: from, Text: text}
}

func NewPlayerLeft() PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft}
}

func NewReset() Reset {
	return Reset{Type: TypeReset}
}

func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

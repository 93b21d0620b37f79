package room

import (
	"time"

	"github.com/wricardo/stone-paper-relay/game/engine"
)

// Seats is the number of seats in every room
const Seats = 2

// Room is a two-seat match. An empty seat holds the empty string.
type Room struct {
	ID        string
	CreatedAt time.Time

	seats   [Seats]string
	choices [Seats]engine.Choice
	rounds  int
}

// Occupant returns the connection ID in a seat, or "" when the seat is empty
func (r *Room) Occupant(seat int) string {
	return r.seats[seat]
}

// Occupants returns the connection IDs of the filled seats in seat order
func (r *Room) Occupants() []string {
	ids := make([]string, 0, Seats)
	for _, id := range r.seats {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns the number of filled seats
func (r *Room) Count() int {
	return len(r.Occupants())
}

// Full reports whether both seats are filled
func (r *Room) Full() bool {
	return r.Count() == Seats
}

// Empty reports whether no seat is filled
func (r *Room) Empty() bool {
	return r.Count() == 0
}

// Choice returns the pending choice of a seat
func (r *Room) Choice(seat int) engine.Choice {
	return r.choices[seat]
}

// Rounds returns the number of rounds resolved in this room
func (r *Room) Rounds() int {
	return r.rounds
}

func (r *Room) freeSeat() int {
	for i, id := range r.seats {
		if id == "" {
			return i
		}
	}
	return -1
}

func (r *Room) clearChoices() {
	r.choices = [Seats]engine.Choice{}
}

func (r *Room) ready() bool {
	return r.choices[0] != engine.NoChoice && r.choices[1] != engine.NoChoice
}

// Summary is a read-only view of a room for status reporting
type Summary struct {
	ID        string    `json:"id"`
	Players   int       `json:"players"`
	Rounds    int       `json:"rounds"`
	CreatedAt time.Time `json:"created_at"`
}

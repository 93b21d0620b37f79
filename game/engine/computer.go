package engine

import "math/rand/v2"

// Source supplies random integers in [0, n)
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource draws from the process-wide random generator
var DefaultSource Source = globalSource{}

// RandomChoice picks a choice uniformly for the computer opponent
func RandomChoice(src Source) Choice {
	if src == nil {
		src = DefaultSource
	}
	return Choices[src.IntN(len(Choices))]
}

// ComputerRound is the outcome of a single round against the computer.
// The player sits in seat 0, so Player1 means the player won.
type ComputerRound struct {
	Player   Choice `json:"player"`
	Computer Choice `json:"computer"`
	Winner   Winner `json:"winner"`
}

// PlayComputer plays one round of player against a random computer choice
func PlayComputer(player Choice, src Source) (ComputerRound, error) {
	if !player.Valid() {
		return ComputerRound{}, ErrInvalidChoice
	}
	computer := RandomChoice(src)
	return ComputerRound{
		Player:   player,
		Computer: computer,
		Winner:   Resolve(player, computer),
	}, nil
}

// Score tracks the running tally of a local game
type Score struct {
	Player   int `json:"player"`
	Computer int `json:"computer"`
	Draws    int `json:"draws"`
}

// Record adds the outcome of a round to the tally
func (s *Score) Record(w Winner) {
	switch w {
	case Player1:
		s.Player++
	case Player2:
		s.Computer++
	default:
		s.Draws++
	}
}

// Rounds returns the number of rounds recorded
func (s Score) Rounds() int {
	return s.Player + s.Computer + s.Draws
}

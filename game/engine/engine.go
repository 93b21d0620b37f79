package engine

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidChoice = errors.New("invalid choice")

// ParseChoice converts client input into a Choice.
// Input is matched case-insensitively after trimming whitespace.
func ParseChoice(s string) (Choice, error) {
	c := Choice(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return NoChoice, fmt.Errorf("%w: %q", ErrInvalidChoice, s)
	}
	return c, nil
}

// Valid reports whether c is one of stone, paper or scissors
func (c Choice) Valid() bool {
	_, ok := beats[c]
	return ok
}

// Beats reports whether c defeats other
func (c Choice) Beats(other Choice) bool {
	defeated, ok := beats[c]
	return ok && defeated == other
}

// Resolve computes the winner of a round where seat 0 chose a and seat 1 chose b.
// Both choices must be valid.
func Resolve(a, b Choice) Winner {
	switch {
	case a == b:
		return Draw
	case a.Beats(b):
		return Player1
	default:
		return Player2
	}
}

// Rules returns the beats table in the order of Choices
func Rules() []Rule {
	rules := make([]Rule, 0, len(Choices))
	for _, c := range Choices {
		rules = append(rules, Rule{Choice: c, Beats: beats[c]})
	}
	return rules
}

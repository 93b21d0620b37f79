package main

import (
	"fmt"
	"strings"

	"github.com/wricardo/stone-paper-relay/game/engine"
)

// Strategy picks the next choice for a bot. last is the opponent's previous
// choice, or engine.NoChoice before the first result.
type Strategy interface {
	Next(last engine.Choice) engine.Choice
	Name() string
}

// FixedStrategy always plays the same choice
type FixedStrategy struct {
	Choice engine.Choice
}

func (s FixedStrategy) Next(engine.Choice) engine.Choice { return s.Choice }
func (s FixedStrategy) Name() string                    { return string(s.Choice) }

// CycleStrategy walks stone, paper, scissors in order
type CycleStrategy struct {
	round int
}

func (s *CycleStrategy) Next(engine.Choice) engine.Choice {
	c := engine.Choices[s.round%len(engine.Choices)]
	s.round++
	return c
}

func (s *CycleStrategy) Name() string { return "cycle" }

// CounterStrategy plays whatever beats the opponent's last choice
type CounterStrategy struct {
	opening engine.Choice
}

func (s CounterStrategy) Next(last engine.Choice) engine.Choice {
	if !last.Valid() {
		return s.opening
	}
	for _, c := range engine.Choices {
		if c.Beats(last) {
			return c
		}
	}
	return s.opening
}

func (s CounterStrategy) Name() string { return "counter" }

// RandomStrategy draws from a Source
type RandomStrategy struct {
	Source engine.Source
}

func (s RandomStrategy) Next(engine.Choice) engine.Choice { return engine.RandomChoice(s.Source) }
func (s RandomStrategy) Name() string                    { return "random" }

// ParseStrategy resolves a strategy name. A bare choice name yields a FixedStrategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cycle":
		return &CycleStrategy{}, nil
	case "counter":
		return CounterStrategy{opening: engine.Stone}, nil
	case "random":
		return RandomStrategy{Source: engine.DefaultSource}, nil
	}
	choice, err := engine.ParseChoice(name)
	if err != nil {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return FixedStrategy{Choice: choice}, nil
}

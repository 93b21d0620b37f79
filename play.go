package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/wricardo/stone-paper-relay/game/engine"
)

// ASCII art for the choices
var choiceArt = map[engine.Choice]string{
	engine.Stone: `
    _______
---'   ____)
      (_____)
      (_____)
      (____)
---.__(___)
`,
	engine.Paper: `
    _______
---'   ____)____
          ______)
          _______)
         _______)
---.__________)
`,
	engine.Scissors: `
    _______
---'   ____)____
          ______)
       __________)
      (____)
---.__(___)
`,
}

const rule = "-----------------------------------"

// playComputer runs the terminal game against the computer until the player
// declines another round or input ends. It returns the final score.
func playComputer(in io.Reader, out io.Writer, src engine.Source) engine.Score {
	scanner := bufio.NewScanner(in)
	var score engine.Score

	for {
		fmt.Fprintln(out, "===================================")
		fmt.Fprintln(out, "  Welcome to Stone, Paper, Scissors!")
		fmt.Fprintln(out, "===================================")
		fmt.Fprintf(out, "Score: You %d - %d Computer\n", score.Player, score.Computer)
		fmt.Fprintln(out, rule)

		choice, ok := promptChoice(scanner, out)
		if !ok {
			break
		}

		round := engine.ComputerRound{Player: choice, Computer: engine.RandomChoice(src)}
		round.Winner = engine.Resolve(round.Player, round.Computer)
		score.Record(round.Winner)

		fmt.Fprintln(out, "\nYour choice:")
		fmt.Fprint(out, choiceArt[round.Player])
		fmt.Fprintln(out, "Computer's choice:")
		fmt.Fprint(out, choiceArt[round.Computer])

		switch round.Winner {
		case engine.Player1:
			fmt.Fprintln(out, "\nYou win this round!")
		case engine.Player2:
			fmt.Fprintln(out, "\nComputer wins this round!")
		default:
			fmt.Fprintln(out, "\nIt's a draw!")
		}
		fmt.Fprintln(out, rule)

		if !promptYesNo(scanner, out, "Play another round? (yes/no): ") {
			break
		}
	}

	fmt.Fprintln(out, "===================================")
	fmt.Fprintln(out, "           Game Over!")
	fmt.Fprintln(out, "===================================")
	fmt.Fprintf(out, "Final Score: You %d - %d Computer\n", score.Player, score.Computer)
	switch {
	case score.Player > score.Computer:
		fmt.Fprintln(out, "Congratulations! You won the game!")
	case score.Computer > score.Player:
		fmt.Fprintln(out, "Better luck next time! The computer won.")
	default:
		fmt.Fprintln(out, "The game ended in a draw!")
	}
	fmt.Fprintln(out, "===================================")

	return score
}

// promptChoice asks until a valid choice is entered. It reports false when
// input ends.
func promptChoice(scanner *bufio.Scanner, out io.Writer) (engine.Choice, bool) {
	for {
		fmt.Fprint(out, "Enter your choice (stone/paper/scissors): ")
		if !scanner.Scan() {
			return engine.NoChoice, false
		}
		choice, err := engine.ParseChoice(scanner.Text())
		if err == nil {
			return choice, true
		}
		fmt.Fprintln(out, "Invalid choice! Please try again.")
	}
}

func promptYesNo(scanner *bufio.Scanner, out io.Writer, prompt string) bool {
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		}
		fmt.Fprintln(out, "Invalid input. Please enter 'yes' or 'no'.")
	}
}

// Package engine provides the core game rules for stone, paper, scissors.
//
// The engine package implements:
//   - The three choices and their parsing from client input
//   - The winner rule shared by the online relay and the computer opponent
//   - A computer opponent that draws uniformly from the three choices
//   - A running score for local games
//
// Core Types:
//
// Choice is one of "stone", "paper" or "scissors". Winner is the outcome of a
// round seen from seat order: "draw", "player1" (seat 0) or "player2" (seat 1).
//
// Usage:
//
//	a, err := engine.ParseChoice("stone")
//	if err != nil {
//		log.Fatal(err)
//	}
//	winner := engine.Resolve(a, engine.Scissors) // engine.Player1
//
//	round, _ := engine.PlayComputer(a, engine.DefaultSource)
//	fmt.Println(round.Computer, round.Winner)
//
// Game Rules:
//
// Stone beats scissors, paper beats stone and scissors beats paper. Equal
// choices are a draw. Resolve is the single source of truth for these rules:
// the relay and the computer opponent both derive their results from it.
package engine

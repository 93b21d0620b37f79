package engine

// Choice is a move a player can submit in a round
type Choice string

const (
	Stone    Choice = "stone"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"

	// NoChoice marks a seat that has not moved yet this round
	NoChoice Choice = ""
)

// Choices lists every valid choice in a stable order
var Choices = []Choice{Stone, Paper, Scissors}

// Winner is the outcome of a resolved round, in seat order
type Winner string

const (
	Draw    Winner = "draw"
	Player1 Winner = "player1"
	Player2 Winner = "player2"
)

// beats maps each choice to the choice it defeats
var beats = map[Choice]Choice{
	Stone:    Scissors,
	Paper:    Stone,
	Scissors: Paper,
}

// Rule describes one entry of the beats table
type Rule struct {
	Choice Choice `json:"choice"`
	Beats  Choice `json:"beats"`
}

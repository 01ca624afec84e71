// Package duel implements the rock/paper/scissors choice duel.
package duel

import "math/rand"

// Choice is one of the three duel moves.
type Choice int

const (
	Rock Choice = iota
	Paper
	Scissors
)

// Result is a duel outcome relative to the first choice.
type Result int

const (
	Win Result = iota
	Lose
	Tie
)

// ParseChoice maps an action string to a Choice. Unknown strings fall
// back to Scissors, matching the button custom IDs being the only
// producers.
func ParseChoice(s string) Choice {
	switch s {
	case "rock":
		return Rock
	case "paper":
		return Paper
	default:
		return Scissors
	}
}

// String returns the action name for a choice.
func (c Choice) String() string {
	switch c {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	default:
		return "scissors"
	}
}

// Emoji returns the emoji shorthand for a choice.
func (c Choice) Emoji() string {
	switch c {
	case Rock:
		return ":fist:"
	case Paper:
		return ":hand_splayed:"
	default:
		return ":v:"
	}
}

// RandomChoice returns a uniformly random choice, used for the
// bot-controlled opponent.
func RandomChoice() Choice {
	return Choice(rand.Intn(3))
}

// Resolve compares two choices and reports the result for a. Rock beats
// Scissors, Scissors beats Paper, Paper beats Rock; equal choices tie.
func Resolve(a, b Choice) Result {
	if a == b {
		return Tie
	}

	switch {
	case a == Rock && b == Scissors,
		a == Scissors && b == Paper,
		a == Paper && b == Rock:
		return Win
	default:
		return Lose
	}
}

// Package guesser provides the Guesser implementations driven by the turn
// engine: a model-backed ReAct guesser, an offline knowledge-base entropy
// guesser, and a scripted guesser for tests and demos. Every implementation
// returns raw text; validation happens in the engine.
package guesser

import (
	"github.com/andywolf/twentyq/internal/memory"
)

// Memory is the read-only view of the game memory a guesser may consult.
type Memory interface {
	BuildContext() string
	History() []memory.QAPair
	AttemptedGuesses() []string
	IsDuplicateQuestion(q string) bool
	IsDuplicateGuess(g string) bool
}

// View is everything a guesser sees when asked for output.
type View struct {
	Memory   Memory
	Turn     int
	MaxTurns int
	// ChangeDimension asks for a question on a different property than the
	// recent ones.
	ChangeDimension bool
	// Feedback is the rejection reason of the previous attempt this turn.
	Feedback string
}

// ChangeDimensionHint is appended to the ask prompt when the last answers
// carried no information.
const ChangeDimensionHint = "Your recent questions were not informative. Ask about a clearly different property (category, material, size, use, habitat)."

// Package action defines the structured messages exchanged between the
// guesser, the host and the engine, and the validate-repair-retry pipeline
// that turns raw model output into them.
package action

import (
	"encoding/json"
	"fmt"
)

// Kind tags an Action variant.
type Kind string

const (
	KindAsk   Kind = "ask"
	KindGuess Kind = "guess"
)

// Ask is a yes/no question put to the host.
type Ask struct {
	QuestionText string `json:"question_text"`
	Thought      string `json:"thought,omitempty"`
}

// Guess is an attempt to name the topic.
type Guess struct {
	GuessText  string  `json:"guess_text"`
	Confidence float64 `json:"confidence"`
	Thought    string  `json:"thought,omitempty"`
}

// Action is the tagged union produced by the guesser once per turn.
// Exactly one of Ask and Guess is set, matching Kind.
type Action struct {
	Kind  Kind
	Ask   *Ask
	Guess *Guess
}

// NewAsk builds an Ask action.
func NewAsk(question, thought string) Action {
	return Action{Kind: KindAsk, Ask: &Ask{QuestionText: question, Thought: thought}}
}

// NewGuess builds a Guess action.
func NewGuess(guess string, confidence float64, thought string) Action {
	return Action{Kind: KindGuess, Guess: &Guess{GuessText: guess, Confidence: confidence, Thought: thought}}
}

// Text returns the question or guess text.
func (a Action) Text() string {
	switch a.Kind {
	case KindAsk:
		if a.Ask != nil {
			return a.Ask.QuestionText
		}
	case KindGuess:
		if a.Guess != nil {
			return a.Guess.GuessText
		}
	}
	return ""
}

// Thought returns the advisory reasoning attached to the action, if any.
func (a Action) Thought() string {
	switch {
	case a.Ask != nil:
		return a.Ask.Thought
	case a.Guess != nil:
		return a.Guess.Thought
	}
	return ""
}

// MarshalJSON emits the canonical wire shape for the variant.
func (a Action) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case KindAsk:
		if a.Ask == nil {
			return nil, fmt.Errorf("ask action without payload")
		}
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Ask
		}{KindAsk, a.Ask})
	case KindGuess:
		if a.Guess == nil {
			return nil, fmt.Errorf("guess action without payload")
		}
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Guess
		}{KindGuess, a.Guess})
	default:
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// UnmarshalJSON reads a canonical wire shape back. It does not apply word
// limits or repairs; use Schema for untrusted model output.
func (a *Action) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Type {
	case KindAsk:
		var ask Ask
		if err := json.Unmarshal(data, &ask); err != nil {
			return err
		}
		*a = Action{Kind: KindAsk, Ask: &ask}
	case KindGuess:
		var g Guess
		if err := json.Unmarshal(data, &g); err != nil {
			return err
		}
		*a = Action{Kind: KindGuess, Guess: &g}
	default:
		return fmt.Errorf("unknown action type %q", probe.Type)
	}
	return nil
}

// Answer is the host's reply to an Ask.
type Answer string

const (
	AnswerYes     Answer = "yes"
	AnswerNo      Answer = "no"
	AnswerUnknown Answer = "unknown"
)

// Valid reports whether a is one of the three enumerated answers.
func (a Answer) Valid() bool {
	switch a {
	case AnswerYes, AnswerNo, AnswerUnknown:
		return true
	}
	return false
}

// Assessment is the guesser's answer to "should I guess now": its best
// candidate, how confident it is, and the consistency and commonness flags
// the decision gate relies on.
type Assessment struct {
	Candidate  string  `json:"candidate"`
	Confidence float64 `json:"confidence"`
	Consistent bool    `json:"consistent"`
	Common     bool    `json:"common"`
	Thought    string  `json:"thought,omitempty"`
}

// Package events turns finished games into a flat stream of GameEvents and
// persists them as one JSONL transcript file per game.
package events

import (
	"time"

	"github.com/andywolf/twentyq/internal/engine"
)

// EventType identifies the category of a game event.
type EventType string

const (
	// EventAsk is a question put by the guesser.
	EventAsk EventType = "ask"
	// EventAnswer is the host's reply to the preceding ask.
	EventAnswer EventType = "answer"
	// EventGuess is an attempt to name the topic.
	EventGuess EventType = "guess"
	// EventForfeit is a turn lost to unusable model output.
	EventForfeit EventType = "forfeit"
	// EventResult closes every transcript.
	EventResult EventType = "result"
)

// GameEvent is one transcript line.
type GameEvent struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	GameID string    `json:"game_id"`
	Turn   int       `json:"turn"`
	Type   EventType `json:"type"`

	// Role is "guesser" or "host"; empty on the result event.
	Role string `json:"role,omitempty"`

	// Summary is a short human-readable description (for log display).
	Summary string `json:"summary,omitempty"`

	Text       string  `json:"text,omitempty"`
	Thought    string  `json:"thought,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Answer     string  `json:"answer,omitempty"`
	Decision   string  `json:"decision,omitempty"`
	Correct    *bool   `json:"correct,omitempty"`
	Error      string  `json:"error,omitempty"`

	// Result is set only on the closing EventResult line. The transcript is
	// omitted from it since the preceding lines already carry it.
	Result *ResultLine `json:"result,omitempty"`
}

// ResultLine is the summary carried by the closing event.
type ResultLine struct {
	Topic        string        `json:"topic"`
	Success      bool          `json:"success"`
	TurnsUsed    int           `json:"turns_used"`
	MaxTurns     int           `json:"max_turns"`
	Reason       engine.Reason `json:"reason"`
	Incomplete   bool          `json:"incomplete,omitempty"`
	FinalGuess   string        `json:"final_guess,omitempty"`
	Stats        engine.Stats  `json:"stats"`
	DurationMs   int64         `json:"duration_ms"`
	GuesserModel string        `json:"guesser_model,omitempty"`
	HostModel    string        `json:"host_model,omitempty"`
}

// ValidEventTypes returns all valid event type values.
func ValidEventTypes() []EventType {
	return []EventType{
		EventAsk,
		EventAnswer,
		EventGuess,
		EventForfeit,
		EventResult,
	}
}

// IsValidEventType checks if the given string is a valid event type.
func IsValidEventType(s string) bool {
	for _, t := range ValidEventTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

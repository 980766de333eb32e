package engine

import (
	"time"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/decision"
	"github.com/andywolf/twentyq/internal/grader"
	"github.com/andywolf/twentyq/internal/memory"
	"github.com/andywolf/twentyq/internal/metrics"
)

// Reason explains how a game ended.
type Reason string

const (
	ReasonWin               Reason = "win"
	ReasonExhausted         Reason = "exhausted"
	ReasonSchemaExhausted   Reason = "schema_exhausted"
	ReasonModelError        Reason = "model_error"
	ReasonProtocolViolation Reason = "protocol_violation"
	ReasonCancelled         Reason = "cancelled"
)

// Roles and kinds used in ActionRecord.
const (
	RoleGuesser = "guesser"
	RoleHost    = "host"

	KindAsk     = "ask"
	KindGuess   = "guess"
	KindAnswer  = "answer"
	KindForfeit = "forfeit"
)

// ActionRecord is one transcript line.
type ActionRecord struct {
	Turn       int                 `json:"turn"`
	Role       string              `json:"role"`
	Kind       string              `json:"kind"`
	Text       string              `json:"text,omitempty"`
	Thought    string              `json:"thought,omitempty"`
	Confidence float64             `json:"confidence,omitempty"`
	Answer     action.Answer       `json:"answer,omitempty"`
	Decision   decision.Reason     `json:"decision,omitempty"`
	Grade      *grader.GradeDetail `json:"grade,omitempty"`
	Attempts   action.Attempts     `json:"attempts"`
	Error      string              `json:"error,omitempty"`
	At         time.Time           `json:"at"`
}

// Transcript is the full record of a game.
type Transcript struct {
	QA      []memory.QAPair `json:"qa"`
	Actions []ActionRecord  `json:"actions"`
}

// Stats counts model traffic on the guesser side.
type Stats struct {
	ModelCalls     int `json:"model_calls"`
	Repairs        int `json:"repairs"`
	SchemaFailures int `json:"schema_failures"`
	EmptyFailures  int `json:"empty_failures"`
}

func (s *Stats) add(a action.Attempts) {
	s.ModelCalls += a.Calls
	s.Repairs += a.Repairs
	s.SchemaFailures += a.SchemaFailures
	s.EmptyFailures += a.EmptyFailures
}

// GameResult is built exactly once per game and never modified afterwards.
type GameResult struct {
	GameID       string             `json:"game_id"`
	Topic        string             `json:"topic"`
	Success      bool               `json:"success"`
	TurnsUsed    int                `json:"turns_used"`
	MaxTurns     int                `json:"max_turns"`
	FinalAction  *action.Action     `json:"final_action,omitempty"`
	Reason       Reason             `json:"reason"`
	Violation    *ProtocolViolation `json:"violation,omitempty"`
	Error        string             `json:"error,omitempty"`
	Incomplete   bool               `json:"incomplete,omitempty"`
	Transcript   Transcript         `json:"transcript"`
	Stats        Stats              `json:"stats"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	GuesserModel string             `json:"guesser_model,omitempty"`
	HostModel    string             `json:"host_model,omitempty"`
}

// Duration returns the wall-clock length of the game.
func (r *GameResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// GuesserActions returns the guesser's transcript records in turn order.
func (r *GameResult) GuesserActions() []ActionRecord {
	var out []ActionRecord
	for _, a := range r.Transcript.Actions {
		if a.Role == RoleGuesser {
			out = append(out, a)
		}
	}
	return out
}

// Outcome returns the part of the result the metrics aggregator needs.
func (r *GameResult) Outcome() metrics.Outcome {
	return metrics.Outcome{
		Topic:      r.Topic,
		Success:    r.Success,
		TurnsUsed:  r.TurnsUsed,
		Incomplete: r.Incomplete,
	}
}

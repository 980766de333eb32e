package events

import (
	"strings"
	"testing"
	"time"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/decision"
	"github.com/andywolf/twentyq/internal/engine"
	"github.com/andywolf/twentyq/internal/grader"
)

func sampleResult() *engine.GameResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	final := action.NewGuess("koala", 0.9, "")
	return &engine.GameResult{
		GameID:      "game-1",
		Topic:       "koala",
		Success:     true,
		TurnsUsed:   2,
		MaxTurns:    20,
		Reason:      engine.ReasonWin,
		FinalAction: &final,
		Transcript: engine.Transcript{
			Actions: []engine.ActionRecord{
				{Turn: 0, Role: engine.RoleGuesser, Kind: engine.KindAsk, Text: "Is it an animal?", Decision: decision.ReasonLowConfidence, At: start},
				{Turn: 0, Role: engine.RoleHost, Kind: engine.KindAnswer, Answer: action.AnswerYes, At: start},
				{Turn: 1, Role: engine.RoleGuesser, Kind: engine.KindGuess, Text: "koala", Confidence: 0.9,
					Grade: &grader.GradeDetail{Correct: true, Rule: grader.RuleExact}, At: start},
			},
		},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
}

func TestFromResult(t *testing.T) {
	events := FromResult(sampleResult())
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	wantTypes := []EventType{EventAsk, EventAnswer, EventGuess, EventResult}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("events[%d].Type = %q, want %q", i, events[i].Type, want)
		}
		if events[i].GameID != "game-1" {
			t.Errorf("events[%d].GameID = %q", i, events[i].GameID)
		}
	}

	if events[0].Summary != "Q: Is it an animal?" {
		t.Errorf("ask summary = %q", events[0].Summary)
	}
	if events[0].Decision != "low_confidence" {
		t.Errorf("ask decision = %q", events[0].Decision)
	}
	if events[1].Answer != "yes" {
		t.Errorf("answer = %q, want yes", events[1].Answer)
	}
	if events[2].Correct == nil || !*events[2].Correct {
		t.Error("guess event should be marked correct")
	}

	res := events[3].Result
	if res == nil {
		t.Fatal("result event has no result line")
	}
	if !res.Success || res.TurnsUsed != 2 || res.FinalGuess != "koala" {
		t.Errorf("unexpected result line: %+v", res)
	}
	if res.DurationMs != 1500 {
		t.Errorf("DurationMs = %d, want 1500", res.DurationMs)
	}
}

func TestFromResult_Nil(t *testing.T) {
	if events := FromResult(nil); events != nil {
		t.Errorf("expected nil, got %v", events)
	}
}

func TestFromResult_Forfeit(t *testing.T) {
	res := &engine.GameResult{
		GameID: "g",
		Reason: engine.ReasonSchemaExhausted,
		Transcript: engine.Transcript{Actions: []engine.ActionRecord{
			{Turn: 0, Role: engine.RoleGuesser, Kind: engine.KindForfeit, Error: "ask schema: no JSON object"},
			{Turn: 0, Role: engine.RoleGuesser, Kind: "mystery"},
		}},
		Error: "retries exhausted",
	}
	events := FromResult(res)
	if len(events) != 2 {
		t.Fatalf("expected forfeit + result, got %d events", len(events))
	}
	if events[0].Type != EventForfeit || !strings.Contains(events[0].Summary, "no JSON object") {
		t.Errorf("unexpected forfeit event: %+v", events[0])
	}
	if events[1].Error != "retries exhausted" {
		t.Errorf("result error = %q", events[1].Error)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long string", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"café au lait", 6, "caf..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
		}
	}
}

package decision

import (
	"testing"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/memory"
)

type fakeState bool

func (f fakeState) LastActionWasGuess() bool { return bool(f) }

func TestDecide(t *testing.T) {
	g := NewGate(Config{})
	confident := Inputs{Candidate: "koala", Confidence: 0.9, CanonicalShortName: true, Consistent: true}

	tests := []struct {
		name       string
		cooldown   bool
		turn       int
		in         Inputs
		wantKind   action.Kind
		wantReason Reason
	}{
		{"final turn forces guess", false, 19, Inputs{}, action.KindGuess, ReasonFinalTurn},
		{"final turn overrides cooldown", true, 19, Inputs{}, action.KindGuess, ReasonFinalTurn},
		{"reserved turn asks", false, 18, confident, action.KindAsk, ReasonReserveFinal},
		{"cooldown asks", true, 5, confident, action.KindAsk, ReasonCooldown},
		{"inconsistent asks", false, 5, Inputs{Candidate: "koala", Confidence: 0.95, CanonicalShortName: true}, action.KindAsk, ReasonInconsistent},
		{"not canonical asks", false, 5, Inputs{Candidate: "animal", Confidence: 0.95, Consistent: true}, action.KindAsk, ReasonNotCanonical},
		{"confident canonical guesses", false, 2, confident, action.KindGuess, ReasonConfident},
		{"threshold is exclusive", false, 2, Inputs{Candidate: "koala", Confidence: 0.7, CanonicalShortName: true, Consistent: true}, action.KindAsk, ReasonLowConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Decide(fakeState(tt.cooldown), tt.turn, 20, tt.in)
			if d.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", d.Kind, tt.wantKind)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestDecide_ChangeDimension(t *testing.T) {
	g := NewGate(Config{})

	d := g.Decide(fakeState(false), 3, 20, Inputs{Consistent: true, LowInformation: true})
	if d.Kind != action.KindAsk || !d.ChangeDimension {
		t.Errorf("expected ask with change-dimension hint, got %+v", d)
	}

	d = g.Decide(fakeState(false), 19, 20, Inputs{LowInformation: true})
	if d.ChangeDimension {
		t.Error("change-dimension hint should only accompany an ask")
	}
}

func TestDecide_NeverGuessesTwiceInARow(t *testing.T) {
	g := NewGate(Config{})
	m := memory.New(memory.Config{})
	always := Inputs{Candidate: "koala", Confidence: 1, CanonicalShortName: true, Consistent: true}

	const maxTurns = 20
	prev := action.Kind("")
	for turn := 0; turn < maxTurns; turn++ {
		d := g.Decide(m, turn, maxTurns, always)
		if prev == action.KindGuess && d.Kind == action.KindGuess {
			t.Fatalf("consecutive guesses at turn %d", turn)
		}
		if turn == maxTurns-1 && d.Kind != action.KindGuess {
			t.Fatalf("last turn decided %q, want guess", d.Kind)
		}
		if d.Kind == action.KindGuess {
			m.RecordGuessAttempt("koala")
		} else {
			m.RecordAsk("q")
		}
		prev = d.Kind
	}
}

func TestPreempt(t *testing.T) {
	g := NewGate(Config{})

	if d, ok := g.Preempt(fakeState(false), 19, 20); !ok || d.Kind != action.KindGuess {
		t.Errorf("final turn: got %+v, %v", d, ok)
	}
	if d, ok := g.Preempt(fakeState(true), 4, 20); !ok || d.Reason != ReasonCooldown {
		t.Errorf("cooldown: got %+v, %v", d, ok)
	}
	if _, ok := g.Preempt(fakeState(false), 4, 20); ok {
		t.Error("ordinary turn should not be preempted")
	}
}

func TestIsCanonicalShortName(t *testing.T) {
	g := NewGate(Config{}, "vehicle", "gizmo")

	tests := []struct {
		candidate string
		common    bool
		want      bool
	}{
		{"koala", true, true},
		{"golden retriever", true, true},
		{"koala", false, false},
		{"large grey australian marsupial", true, false},
		{"animal", true, false},
		{"an Animal", true, false},
		{"gizmos", true, false},
		{"", true, false},
	}
	for _, tt := range tests {
		if got := g.IsCanonicalShortName(tt.candidate, tt.common); got != tt.want {
			t.Errorf("IsCanonicalShortName(%q, %v) = %v, want %v", tt.candidate, tt.common, got, tt.want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{ConfidenceThreshold: 0.7, LowInfoWindow: 3}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Config{ConfidenceThreshold: 1.2}).Validate(); err == nil {
		t.Error("expected error for threshold above 1")
	}
	if err := (Config{LowInfoWindow: -1}).Validate(); err == nil {
		t.Error("expected error for negative window")
	}
}

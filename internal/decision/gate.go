// Package decision implements the per-turn ask-or-guess gate.
package decision

import (
	"fmt"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/textnorm"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonFinalTurn     Reason = "final_turn"
	ReasonReserveFinal  Reason = "reserve_final"
	ReasonCooldown      Reason = "cooldown"
	ReasonInconsistent  Reason = "inconsistent"
	ReasonConfident     Reason = "confident"
	ReasonNotCanonical  Reason = "not_canonical"
	ReasonLowConfidence Reason = "low_confidence"
)

const (
	DefaultConfidenceThreshold = 0.7
	DefaultLowInfoWindow       = 3
)

// DefaultCategories are generic labels that never count as a specific answer.
var DefaultCategories = []string{
	"thing", "object", "item", "entity", "something", "stuff",
	"animal", "creature", "plant", "food", "fruit", "vegetable",
	"vehicle", "device", "machine", "tool", "building", "structure",
	"place", "person", "mammal", "bird", "fish", "insect",
}

// Config holds gate tuning.
type Config struct {
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold"`
	LowInfoWindow       int      `mapstructure:"low_info_window"`
	Categories          []string `mapstructure:"categories"`
}

// Validate checks the gate settings.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1), got %v", c.ConfidenceThreshold)
	}
	if c.LowInfoWindow < 0 {
		return fmt.Errorf("low_info_window must not be negative")
	}
	return nil
}

// Inputs are the per-turn signals the gate decides on.
type Inputs struct {
	Candidate          string
	Confidence         float64
	CanonicalShortName bool
	Consistent         bool
	LowInformation     bool
}

// Decision is the gate's verdict for one turn.
type Decision struct {
	Kind            action.Kind
	Reason          Reason
	ChangeDimension bool
}

// State is the slice of guesser memory the gate reads.
type State interface {
	LastActionWasGuess() bool
}

// Gate decides between asking and guessing. It holds no per-game state and
// is safe for concurrent use.
type Gate struct {
	threshold  float64
	window     int
	categories map[string]bool
}

// NewGate creates a Gate. extraCategories are added to the configured
// category labels, typically the macro-class names used by the grader.
func NewGate(cfg Config, extraCategories ...string) *Gate {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.LowInfoWindow <= 0 {
		cfg.LowInfoWindow = DefaultLowInfoWindow
	}
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	g := &Gate{
		threshold:  cfg.ConfidenceThreshold,
		window:     cfg.LowInfoWindow,
		categories: make(map[string]bool, len(cats)+len(extraCategories)),
	}
	for _, c := range append(append([]string(nil), cats...), extraCategories...) {
		g.categories[textnorm.NameKey(c)] = true
	}
	return g
}

// Threshold returns the confidence a candidate must exceed to be guessed.
func (g *Gate) Threshold() float64 { return g.threshold }

// Window returns the number of trailing answers inspected by LowInformation.
func (g *Gate) Window() int { return g.window }

// Decide applies the rules in priority order: the final turn forces a guess,
// the turn before it is reserved for a question, a guess is never followed
// by another guess, an inconsistent history blocks guessing, and otherwise
// only a confident canonical candidate is guessed. Anything else asks.
func (g *Gate) Decide(st State, turn, maxTurns int, in Inputs) Decision {
	d := g.decide(st, turn, maxTurns, in)
	if d.Kind == action.KindAsk && in.LowInformation {
		d.ChangeDimension = true
	}
	return d
}

func (g *Gate) decide(st State, turn, maxTurns int, in Inputs) Decision {
	switch {
	case turn >= maxTurns-1:
		return Decision{Kind: action.KindGuess, Reason: ReasonFinalTurn}
	case turn == maxTurns-2:
		return Decision{Kind: action.KindAsk, Reason: ReasonReserveFinal}
	case st.LastActionWasGuess():
		return Decision{Kind: action.KindAsk, Reason: ReasonCooldown}
	case !in.Consistent:
		return Decision{Kind: action.KindAsk, Reason: ReasonInconsistent}
	case !in.CanonicalShortName:
		return Decision{Kind: action.KindAsk, Reason: ReasonNotCanonical}
	case in.Confidence > g.threshold:
		return Decision{Kind: action.KindGuess, Reason: ReasonConfident}
	default:
		return Decision{Kind: action.KindAsk, Reason: ReasonLowConfidence}
	}
}

// Preempt returns the decision for turns that need no assessment from the
// guesser (the final turn, the reserved turn and cooldown). ok is false when
// the guesser must be consulted.
func (g *Gate) Preempt(st State, turn, maxTurns int) (Decision, bool) {
	d := g.decide(st, turn, maxTurns, Inputs{Consistent: true, CanonicalShortName: true, Confidence: 1})
	switch d.Reason {
	case ReasonFinalTurn, ReasonReserveFinal, ReasonCooldown:
		return d, true
	}
	return Decision{}, false
}

// IsCanonicalShortName reports whether candidate is a plausible specific
// answer: one or two words, not a category label, and judged common.
func (g *Gate) IsCanonicalShortName(candidate string, common bool) bool {
	if !common {
		return false
	}
	n := textnorm.WordCount(candidate)
	if n < 1 || n > 2 {
		return false
	}
	key := textnorm.NameKey(candidate)
	if key == "" {
		return false
	}
	return !g.categories[key]
}

// Package grader decides whether a terminal guess names the topic. Grading
// is a pure function of the two strings; it never consults the host.
package grader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andywolf/twentyq/internal/textnorm"
)

// Rule identifies which check accepted a guess.
type Rule string

const (
	RuleNone        Rule = ""
	RuleExact       Rule = "exact"
	RuleContainment Rule = "containment"
	RuleMacroClass  Rule = "macro_class"
)

// GradeDetail explains a grading decision.
type GradeDetail struct {
	Correct bool   `json:"correct"`
	Rule    Rule   `json:"rule,omitempty"`
	Class   string `json:"class,omitempty"`
}

// DefaultMacroClasses groups interchangeable everyday names. Species are
// deliberately absent so that "cat" never matches "dog".
func DefaultMacroClasses() map[string][]string {
	return map[string][]string{
		"vehicle":   {"car", "truck", "automobile", "van", "bus", "lorry", "pickup", "suv", "jeep", "sedan"},
		"structure": {"building", "house", "tower", "skyscraper", "castle", "bridge", "cabin"},
		"animal":    {"animal", "creature", "beast", "critter"},
		"device":    {"device", "gadget", "machine", "appliance"},
		"fruit":     {"fruit"},
	}
}

// MacroTable maps normalized member names to their class.
type MacroTable struct {
	classOf map[string]string
}

// NewMacroTable builds a table from class -> members. A member listed under
// two classes is an error.
func NewMacroTable(classes map[string][]string) (*MacroTable, error) {
	t := &MacroTable{classOf: make(map[string]string)}
	names := make([]string, 0, len(classes))
	for class := range classes {
		names = append(names, class)
	}
	sort.Strings(names)
	for _, class := range names {
		for _, member := range classes[class] {
			key := textnorm.NameKey(member)
			if key == "" {
				continue
			}
			if prev, ok := t.classOf[key]; ok && prev != class {
				return nil, fmt.Errorf("macro member %q is in both %q and %q", member, prev, class)
			}
			t.classOf[key] = class
		}
	}
	return t, nil
}

// ClassNames returns the class labels in sorted order.
func (t *MacroTable) ClassNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range t.classOf {
		if !seen[c] {
			seen[c] = true
			names = append(names, c)
		}
	}
	sort.Strings(names)
	return names
}

// Class returns the class of a name: full normalized phrase first, then its
// head (last) token.
func (t *MacroTable) Class(name string) (string, bool) {
	toks := textnorm.NameTokens(name)
	if len(toks) == 0 {
		return "", false
	}
	if c, ok := t.classOf[strings.Join(toks, " ")]; ok {
		return c, true
	}
	c, ok := t.classOf[toks[len(toks)-1]]
	return c, ok
}

// Grader is immutable and safe for concurrent use.
type Grader struct {
	macros *MacroTable
}

// New creates a Grader. A nil table uses DefaultMacroClasses.
func New(macros *MacroTable) *Grader {
	if macros == nil {
		macros, _ = NewMacroTable(DefaultMacroClasses())
	}
	return &Grader{macros: macros}
}

// Grade reports whether guess names topic.
func (g *Grader) Grade(guess, topic string) bool {
	return g.Detail(guess, topic).Correct
}

// Detail grades guess against topic and reports the rule that matched.
func (g *Grader) Detail(guess, topic string) GradeDetail {
	gt := textnorm.NameTokens(guess)
	tt := textnorm.NameTokens(topic)
	if len(gt) == 0 || len(tt) == 0 {
		return GradeDetail{}
	}

	if textnorm.Key(guess) == textnorm.Key(topic) || strings.Join(gt, " ") == strings.Join(tt, " ") {
		return GradeDetail{Correct: true, Rule: RuleExact}
	}

	// "domestic dog" names a dog; "retriever" names a golden retriever only
	// because it is the topic's head.
	if textnorm.ContainsTokens(gt, tt) {
		return GradeDetail{Correct: true, Rule: RuleContainment}
	}
	if len(gt) == 1 && len(tt) > 1 && gt[0] == tt[len(tt)-1] {
		return GradeDetail{Correct: true, Rule: RuleContainment}
	}

	gc, gok := g.macros.Class(guess)
	tc, tok := g.macros.Class(topic)
	if gok && tok && gc == tc {
		return GradeDetail{Correct: true, Rule: RuleMacroClass, Class: gc}
	}
	return GradeDetail{}
}

package guesser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/kb"
	"github.com/andywolf/twentyq/internal/textnorm"
)

// fillerQuestions are asked once every informative attribute is spent.
var fillerQuestions = []string{
	"Is it bigger than a breadbox?",
	"Can you hold it in one hand?",
	"Is it usually found indoors?",
	"Is it made by people?",
	"Is it older than a hundred years?",
}

// Entropy is an offline guesser over a closed-world knowledge base. It
// keeps no state of its own: the candidate set is recomputed from the game
// history on every call, so it can be shared across games.
type Entropy struct {
	kb *kb.KB
}

// NewEntropy creates an entropy guesser over k.
func NewEntropy(k *kb.KB) *Entropy {
	return &Entropy{kb: k}
}

// Candidates returns the objects consistent with every yes/no answer so far,
// minus the guesses already marked wrong. Unknown answers filter nothing.
func (g *Entropy) Candidates(m Memory) []string {
	cands := g.kb.ObjectIDs()
	for _, qa := range m.History() {
		attr, ok := g.kb.MatchAttribute(qa.Question)
		if !ok || attr.Kind != kb.KindBoolean {
			continue
		}
		switch qa.Answer {
		case action.AnswerYes:
			cands = g.kb.Filter(cands, attr.ID, true)
		case action.AnswerNo:
			cands = g.kb.Filter(cands, attr.ID, false)
		}
	}
	out := cands[:0]
	for _, id := range cands {
		o, _ := g.kb.Object(id)
		if !m.IsDuplicateGuess(o.Name) {
			out = append(out, id)
		}
	}
	return out
}

func (g *Entropy) askedAttributes(m Memory) map[string]bool {
	asked := make(map[string]bool)
	for _, qa := range m.History() {
		if attr, ok := g.kb.MatchAttribute(qa.Question); ok {
			asked[attr.ID] = true
		}
	}
	return asked
}

// Assess reports the first remaining candidate with confidence
// 1/|candidates|. An empty candidate set is reported as inconsistent.
func (g *Entropy) Assess(_ context.Context, v View) (string, error) {
	cands := g.Candidates(v.Memory)
	a := action.Assessment{Consistent: len(cands) > 0, Common: true}
	if len(cands) > 0 {
		o, _ := g.kb.Object(cands[0])
		a.Candidate = o.Name
		a.Confidence = 1 / float64(len(cands))
		a.Thought = fmt.Sprintf("%d candidates remain", len(cands))
	} else {
		a.Thought = "no known object fits the answers"
	}
	return marshal(a)
}

// Ask picks the unasked boolean attribute whose answer splits the remaining
// candidates most evenly.
func (g *Entropy) Ask(_ context.Context, v View) (string, error) {
	cands := g.Candidates(v.Memory)
	asked := g.askedAttributes(v.Memory)

	best, bestScore := "", -1.0
	for _, a := range g.kb.Attributes() {
		if a.Kind != kb.KindBoolean || asked[a.ID] {
			continue
		}
		if v.Memory.IsDuplicateQuestion(g.kb.QuestionFor(a.ID)) {
			continue
		}
		if score := g.kb.AnswerEntropy(cands, a.ID); score > bestScore {
			best, bestScore = a.ID, score
		}
	}
	if best != "" && bestScore > 0 {
		return marshal(action.NewAsk(g.kb.QuestionFor(best), fmt.Sprintf("splits %d candidates (%.2f bits)", len(cands), bestScore)))
	}

	for _, q := range fillerQuestions {
		if !v.Memory.IsDuplicateQuestion(q) {
			return marshal(action.NewAsk(q, "no informative attribute left"))
		}
	}
	return marshal(action.NewAsk(fmt.Sprintf("Is it something from list %d?", v.Turn+1), "out of questions"))
}

// Guess names the first remaining candidate, or any object not yet tried.
func (g *Entropy) Guess(_ context.Context, v View) (string, error) {
	cands := g.Candidates(v.Memory)
	if len(cands) == 0 {
		for _, o := range g.kb.Objects() {
			if !v.Memory.IsDuplicateGuess(o.Name) {
				cands = append(cands, o.ID)
			}
		}
	}
	if len(cands) == 0 {
		return marshal(action.NewGuess("something", 0, "every known object was tried"))
	}
	o, _ := g.kb.Object(cands[0])
	name := o.Name
	if textnorm.WordCount(name) > 2 {
		name = o.ID
	}
	return marshal(action.NewGuess(name, 1/float64(len(cands)), fmt.Sprintf("best of %d candidates", len(cands))))
}

func marshal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

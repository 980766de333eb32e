package host

import (
	"context"

	"github.com/andywolf/twentyq/internal/action"
	"github.com/andywolf/twentyq/internal/kb"
	"github.com/andywolf/twentyq/internal/textnorm"
)

var negations = map[string]bool{"not": true, "never": true, "neither": true, "nor": true}

// KBJudge answers from a knowledge base: the question is mapped onto a
// boolean attribute and the topic's value is read. Anything it cannot map
// is unknown.
type KBJudge struct {
	kb *kb.KB
}

// NewKBJudge creates a KBJudge over k.
func NewKBJudge(k *kb.KB) *KBJudge {
	return &KBJudge{kb: k}
}

// Judge implements Judge.
func (j *KBJudge) Judge(_ context.Context, topic, question string) (action.Answer, error) {
	obj, ok := j.kb.ObjectByName(topic)
	if !ok {
		return action.AnswerUnknown, nil
	}
	for _, t := range textnorm.Tokens(question) {
		if negations[t] {
			return action.AnswerUnknown, nil
		}
	}
	attr, ok := j.kb.MatchAttribute(question)
	if !ok || attr.Kind != kb.KindBoolean {
		return action.AnswerUnknown, nil
	}
	v, ok := j.kb.BoolValue(obj.ID, attr.ID)
	switch {
	case !ok:
		return action.AnswerUnknown, nil
	case v:
		return action.AnswerYes, nil
	default:
		return action.AnswerNo, nil
	}
}

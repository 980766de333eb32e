package host

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/andywolf/twentyq/internal/action"
)

// Oracle answers questions about one secret topic. It never mutates state
// and only ever returns the answer enum, so the topic cannot leak through
// a justification.
type Oracle struct {
	topic  string
	judge  Judge
	logger *zap.SugaredLogger
}

// NewOracle creates an Oracle for topic.
func NewOracle(topic string, judge Judge, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{topic: topic, judge: judge, logger: logger.Sugar()}
}

// Answer evaluates question against the topic. An unknown from the judge is
// upgraded to yes when the question names a modified form of the topic;
// yes and no are never changed.
func (o *Oracle) Answer(ctx context.Context, question string) (action.Answer, error) {
	a, err := o.judge.Judge(ctx, o.topic, question)
	if err != nil {
		return "", fmt.Errorf("host judge failed: %w", err)
	}
	if !a.Valid() {
		return "", action.Rejectf(action.ShapeAnswer, string(a), "answer %q is not one of yes, no, unknown", a)
	}
	if a == action.AnswerUnknown && modifierHead(o.topic, question) {
		o.logger.Debugf("Modifier+head shortcut applied to %q", question)
		return action.AnswerYes, nil
	}
	return a, nil
}

package action

import (
	"fmt"
	"math"
	"strings"

	"github.com/andywolf/twentyq/internal/textnorm"
)

const (
	DefaultQuestionWordLimit = 12
	DefaultGuessWordLimit    = 2
	DefaultMaxRepairPasses   = 4
)

// Config holds the limits applied during validation.
type Config struct {
	QuestionWordLimit int `mapstructure:"question_word_limit"`
	GuessWordLimit    int `mapstructure:"guess_word_limit"`
	MaxRepairPasses   int `mapstructure:"max_repair_passes"`
}

// Diagnostics records which repair passes were needed to accept an output.
type Diagnostics struct {
	Repairs []string
}

// Repaired reports whether any repair pass changed the input.
func (d Diagnostics) Repaired() bool { return len(d.Repairs) > 0 }

// Schema validates and repairs raw model output. It holds no mutable state
// and is safe for concurrent use.
type Schema struct {
	cfg Config
}

// NewSchema creates a Schema, filling unset limits with defaults.
func NewSchema(cfg Config) *Schema {
	if cfg.QuestionWordLimit <= 0 {
		cfg.QuestionWordLimit = DefaultQuestionWordLimit
	}
	if cfg.GuessWordLimit <= 0 {
		cfg.GuessWordLimit = DefaultGuessWordLimit
	}
	if cfg.MaxRepairPasses < 0 {
		cfg.MaxRepairPasses = 0
	} else if cfg.MaxRepairPasses == 0 {
		cfg.MaxRepairPasses = DefaultMaxRepairPasses
	}
	return &Schema{cfg: cfg}
}

// Config returns the effective limits.
func (s *Schema) Config() Config { return s.cfg }

// repairPass is one deterministic repair step. Text passes rewrite the raw
// string; object passes rewrite the decoded map.
type repairPass struct {
	name string
	text func(string) (string, bool)
	obj  func(map[string]interface{}, Shape) (map[string]interface{}, bool)
}

func passesFor(shape Shape) []repairPass {
	passes := []repairPass{
		{name: "fences", text: func(s string) (string, bool) {
			out := stripMarkdownFences(s)
			return out, out != s
		}},
		{name: "extract", text: func(s string) (string, bool) {
			out, err := extractJSONObject(s)
			if err != nil {
				if shape == ShapeAnswer {
					return bareAnswer(s)
				}
				return s, false
			}
			return out, out != s
		}},
		{name: "keys", obj: normalizeKeys},
		{name: "values", obj: coerceValues},
	}
	return passes
}

// run decodes raw into an object and validates it, applying repair passes
// cumulatively until validation succeeds or the passes run out.
func (s *Schema) run(raw string, shape Shape, validate func(map[string]interface{}) error) (Diagnostics, error) {
	var diag Diagnostics
	text := strings.TrimSpace(raw)
	if text == "" {
		return diag, &EmptyContent{Shape: shape}
	}

	obj, err := decodeObject(text)
	if err == nil {
		if err = validate(obj); err == nil {
			return diag, nil
		}
	}
	reason := err.Error()

	passes := passesFor(shape)
	if len(passes) > s.cfg.MaxRepairPasses {
		passes = passes[:s.cfg.MaxRepairPasses]
	}
	for _, p := range passes {
		changed := false
		if p.text != nil {
			var next string
			next, changed = p.text(text)
			if !changed {
				continue
			}
			text = next
			obj, err = decodeObject(text)
			if err != nil {
				diag.Repairs = append(diag.Repairs, p.name)
				reason = err.Error()
				continue
			}
		} else {
			if obj == nil {
				continue
			}
			obj, changed = p.obj(obj, shape)
			if !changed {
				continue
			}
		}
		diag.Repairs = append(diag.Repairs, p.name)
		if err = validate(obj); err == nil {
			return diag, nil
		}
		reason = err.Error()
	}

	if strings.TrimSpace(stripMarkdownFences(text)) == "" {
		return diag, &EmptyContent{Shape: shape}
	}
	return diag, &SchemaError{Shape: shape, Raw: raw, Reason: reason}
}

// ParseAction accepts either an Ask or a Guess.
func (s *Schema) ParseAction(raw string) (Action, Diagnostics, error) {
	var out Action
	diag, err := s.run(raw, ShapeAction, func(obj map[string]interface{}) error {
		a, err := s.actionFrom(obj)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, diag, err
}

// ParseAsk accepts only an Ask.
func (s *Schema) ParseAsk(raw string) (Action, Diagnostics, error) {
	return s.parseKind(raw, ShapeAsk, KindAsk)
}

// ParseGuess accepts only a Guess.
func (s *Schema) ParseGuess(raw string) (Action, Diagnostics, error) {
	return s.parseKind(raw, ShapeGuess, KindGuess)
}

func (s *Schema) parseKind(raw string, shape Shape, want Kind) (Action, Diagnostics, error) {
	var out Action
	diag, err := s.run(raw, shape, func(obj map[string]interface{}) error {
		a, err := s.actionFrom(obj)
		if err != nil {
			return err
		}
		if a.Kind != want {
			return fmt.Errorf("expected %s, got %s", want, a.Kind)
		}
		out = a
		return nil
	})
	return out, diag, err
}

// ParseAnswer accepts a host answer.
func (s *Schema) ParseAnswer(raw string) (Answer, Diagnostics, error) {
	var out Answer
	diag, err := s.run(raw, ShapeAnswer, func(obj map[string]interface{}) error {
		v, ok := obj["answer"]
		if !ok {
			return fmt.Errorf("missing field answer")
		}
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("answer must be a string")
		}
		ans := Answer(str)
		if !ans.Valid() {
			return fmt.Errorf("answer %q is not one of yes, no, unknown", str)
		}
		out = ans
		return nil
	})
	return out, diag, err
}

// ParseAssessment accepts the guesser's should-guess probe.
func (s *Schema) ParseAssessment(raw string) (Assessment, Diagnostics, error) {
	var out Assessment
	diag, err := s.run(raw, ShapeAssessment, func(obj map[string]interface{}) error {
		conf, err := confidenceField(obj)
		if err != nil {
			return err
		}
		candidate, err := optionalString(obj, "candidate")
		if err != nil {
			return err
		}
		if candidate == "" && conf > 0 {
			return fmt.Errorf("candidate is required when confidence is above zero")
		}
		consistent, err := boolField(obj, "consistent")
		if err != nil {
			return err
		}
		common, err := boolField(obj, "common")
		if err != nil {
			return err
		}
		thought, err := optionalString(obj, "thought")
		if err != nil {
			return err
		}
		out = Assessment{
			Candidate:  candidate,
			Confidence: conf,
			Consistent: consistent,
			Common:     common,
			Thought:    thought,
		}
		return nil
	})
	return out, diag, err
}

func (s *Schema) actionFrom(obj map[string]interface{}) (Action, error) {
	t, ok := obj["type"].(string)
	if !ok {
		return Action{}, fmt.Errorf("missing or non-string field type")
	}
	thought, err := optionalString(obj, "thought")
	if err != nil {
		return Action{}, err
	}
	q, hasQ := obj["question_text"]
	g, hasG := obj["guess_text"]
	if hasQ && hasG && q != nil && g != nil && q != "" && g != "" {
		return Action{}, fmt.Errorf("both question_text and guess_text are set")
	}

	switch Kind(t) {
	case KindAsk:
		question, err := requiredString(obj, "question_text")
		if err != nil {
			return Action{}, err
		}
		if n := textnorm.WordCount(question); n > s.cfg.QuestionWordLimit {
			return Action{}, fmt.Errorf("question_text has %d words, limit is %d", n, s.cfg.QuestionWordLimit)
		}
		return NewAsk(question, thought), nil
	case KindGuess:
		guess, err := requiredString(obj, "guess_text")
		if err != nil {
			return Action{}, err
		}
		if n := textnorm.WordCount(guess); n > s.cfg.GuessWordLimit {
			return Action{}, fmt.Errorf("guess_text has %d words, limit is %d", n, s.cfg.GuessWordLimit)
		}
		conf, err := confidenceField(obj)
		if err != nil {
			return Action{}, err
		}
		return NewGuess(guess, conf, thought), nil
	default:
		return Action{}, fmt.Errorf("unknown type %q", t)
	}
}

func requiredString(obj map[string]interface{}, field string) (string, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %s", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", field)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s must not be empty", field)
	}
	return s, nil
}

func optionalString(obj map[string]interface{}, field string) (string, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", field)
	}
	return s, nil
}

func boolField(obj map[string]interface{}, field string) (bool, error) {
	v, ok := obj[field]
	if !ok {
		return false, fmt.Errorf("missing field %s", field)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", field)
	}
	return b, nil
}

func confidenceField(obj map[string]interface{}) (float64, error) {
	v, ok := obj["confidence"]
	if !ok {
		return 0, fmt.Errorf("missing field confidence")
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("confidence must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > 1 {
		return 0, fmt.Errorf("confidence %v is outside [0,1]", f)
	}
	return f, nil
}

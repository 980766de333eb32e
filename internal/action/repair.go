package action

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// markdownFencePattern matches markdown code fences with an optional language tag.
var markdownFencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")

// stripMarkdownFences removes code fences that may wrap a JSON object,
// keeping their inner content.
func stripMarkdownFences(s string) string {
	return strings.TrimSpace(markdownFencePattern.ReplaceAllString(s, "$1"))
}

// extractJSONObject returns the first balanced JSON object in s, skipping
// any surrounding prose.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found")
	}
	return extractBalancedJSON(s[start:])
}

// extractBalancedJSON extracts a balanced JSON object from the start of a string.
func extractBalancedJSON(s string) (string, error) {
	if len(s) == 0 || s[0] != '{' {
		return "", fmt.Errorf("string does not start with '{'")
	}

	depth := 0
	inString := false
	escaped := false

	for i, c := range s {
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object")
}

// decodeObject parses s as a single JSON object.
func decodeObject(s string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("JSON value is not an object")
	}
	return obj, nil
}

// keyAliases maps normalized alternative field names onto canonical ones.
var keyAliases = map[Shape]map[string]string{
	ShapeAsk: {
		"question": "question_text",
		"q":        "question_text",
	},
	ShapeGuess: {
		"guess": "guess_text",
		"name":  "guess_text",
	},
	ShapeAnswer: {
		"reply":    "answer",
		"response": "answer",
	},
	ShapeAssessment: {
		"guess":          "candidate",
		"guess_text":     "candidate",
		"best_guess":     "candidate",
		"candidate_name": "candidate",
		"is_consistent":  "consistent",
		"is_common":      "common",
	},
}

var commonAliases = map[string]string{
	"action": "type",
	"kind":   "type",
}

func aliasesFor(shape Shape) map[string]string {
	out := make(map[string]string, len(commonAliases)+4)
	for k, v := range commonAliases {
		out[k] = v
	}
	shapes := []Shape{shape}
	if shape == ShapeAction {
		shapes = []Shape{ShapeAsk, ShapeGuess}
	}
	for _, sh := range shapes {
		for k, v := range keyAliases[sh] {
			out[k] = v
		}
	}
	return out
}

// snakeKey converts camelCase, kebab-case and spaced keys to snake_case.
func snakeKey(k string) string {
	var sb strings.Builder
	runes := []rune(strings.TrimSpace(k))
	for i, r := range runes {
		switch {
		case r == '-' || r == ' ' || r == '.':
			sb.WriteRune('_')
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				sb.WriteRune('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// normalizeKeys rewrites keys to snake_case and resolves aliases. Canonical
// keys win over aliases when both are present.
func normalizeKeys(obj map[string]interface{}, shape Shape) (map[string]interface{}, bool) {
	aliases := aliasesFor(shape)
	out := make(map[string]interface{}, len(obj))
	changed := false
	for k, v := range obj {
		nk := snakeKey(k)
		if nk != k {
			changed = true
		}
		if _, exists := out[nk]; exists && nk != k {
			continue
		}
		out[nk] = v
	}
	for alias, canonical := range aliases {
		v, ok := out[alias]
		if !ok {
			continue
		}
		if _, exists := out[canonical]; !exists {
			out[canonical] = v
		}
		delete(out, alias)
		changed = true
	}
	return out, changed
}

var typeAliases = map[string]Kind{
	"ask":          KindAsk,
	"ask_question": KindAsk,
	"question":     KindAsk,
	"guess":        KindGuess,
	"make_guess":   KindGuess,
}

var answerAliases = map[string]Answer{
	"yes":          AnswerYes,
	"y":            AnswerYes,
	"true":         AnswerYes,
	"no":           AnswerNo,
	"n":            AnswerNo,
	"false":        AnswerNo,
	"unknown":      AnswerUnknown,
	"unsure":       AnswerUnknown,
	"maybe":        AnswerUnknown,
	"not sure":     AnswerUnknown,
	"i don't know": AnswerUnknown,
	"dont know":    AnswerUnknown,
	"don't know":   AnswerUnknown,
}

// coerceValues fixes tag aliases, infers a missing tag, trims strings and
// converts numeric strings and percentages into numbers.
func coerceValues(obj map[string]interface{}, shape Shape) (map[string]interface{}, bool) {
	out := make(map[string]interface{}, len(obj))
	changed := false
	for k, v := range obj {
		if s, ok := v.(string); ok {
			trimmed := strings.TrimSpace(s)
			if trimmed != s {
				changed = true
			}
			v = trimmed
		}
		out[k] = v
	}

	if shape == ShapeAction || shape == ShapeAsk || shape == ShapeGuess {
		if t, ok := out["type"].(string); ok {
			if kind, known := typeAliases[strings.ToLower(t)]; known && string(kind) != t {
				out["type"] = string(kind)
				changed = true
			}
		} else {
			_, hasQ := out["question_text"]
			_, hasG := out["guess_text"]
			switch {
			case hasQ && !hasG:
				out["type"] = string(KindAsk)
				changed = true
			case hasG && !hasQ:
				out["type"] = string(KindGuess)
				changed = true
			}
		}
	}

	if shape == ShapeAnswer {
		if s, ok := out["answer"].(string); ok {
			key := strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
				return unicode.IsPunct(r) || unicode.IsSpace(r)
			}))
			if ans, known := answerAliases[key]; known && string(ans) != s {
				out["answer"] = string(ans)
				changed = true
			}
		}
	}

	if shape == ShapeAssessment {
		for _, field := range []string{"consistent", "common"} {
			if s, ok := out[field].(string); ok {
				if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
					out[field] = b
					changed = true
				}
			}
		}
	}

	if raw, ok := out["confidence"]; ok {
		if f, converted := coerceConfidence(raw); converted {
			out["confidence"] = f
			changed = true
		}
	}

	return out, changed
}

// coerceConfidence converts numeric strings to numbers and percentages to a
// fraction. A percentage is either written with "%" or a whole number in
// [2,100]; any other value outside [0,1] is left for validation to reject.
func coerceConfidence(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		pct := strings.HasSuffix(s, "%")
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, "%")), 64)
		if err != nil {
			return 0, false
		}
		if pct || wholePercent(f) {
			f /= 100
		}
		return f, true
	case float64:
		if wholePercent(t) {
			return t / 100, true
		}
	}
	return 0, false
}

func wholePercent(f float64) bool {
	return f >= 2 && f <= 100 && f == math.Trunc(f)
}

// bareAnswer accepts a plain-word reply ("Yes.") in place of a JSON answer.
func bareAnswer(s string) (string, bool) {
	key := strings.ToLower(strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	}))
	ans, ok := answerAliases[key]
	if !ok {
		return "", false
	}
	return fmt.Sprintf(`{"answer":%q}`, ans), true
}

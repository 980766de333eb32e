package prompt

import (
	"regexp"
)

// variablePattern matches {{variable}} placeholders.
var variablePattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// RenderPrompt substitutes {{variable}} placeholders with values from vars.
// Unknown variables are left as-is.
func RenderPrompt(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}

// Unresolved returns the placeholder names still present in text, in order
// of first appearance.
func Unresolved(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range variablePattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// MergeVariables merges base with overrides; overrides win on collision.
func MergeVariables(base, overrides map[string]string) map[string]string {
	if len(base) == 0 && len(overrides) == 0 {
		return nil
	}
	result := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range overrides {
		result[k] = v
	}
	return result
}

// FeedbackLine renders a repair nudge for a re-prompt. An empty reason
// renders as nothing.
func FeedbackLine(reason string) string {
	if reason == "" {
		return ""
	}
	return "Your previous reply was rejected (" + reason + "). Fix it and reply again."
}

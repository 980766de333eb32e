package observability

import (
	"regexp"
	"strings"
)

// sensitivePatterns match credentials that may appear in prompts, model
// output or provider error bodies.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?token|access[_-]?token|auth[_-]?token|secret[_-]?key)[\s]*[:=][\s]*["']?([a-zA-Z0-9_\-./+=]{20,})["']?`),

	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9_\-./+=]{20,})`),

	// OpenAI-style and Google API keys
	regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`),
	regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),

	// Langfuse keys
	regexp.MustCompile(`(pk|sk)-lf-[a-zA-Z0-9\-]{8,}`),

	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
}

// Scrubber removes credentials from text before it leaves the process.
type Scrubber struct {
	patterns []*regexp.Regexp
}

// NewScrubber creates a Scrubber with the default patterns.
func NewScrubber() *Scrubber {
	return &Scrubber{patterns: sensitivePatterns}
}

// AddPattern adds a custom pattern to the scrubber.
func (s *Scrubber) AddPattern(pattern *regexp.Regexp) {
	s.patterns = append(s.patterns, pattern)
}

// AddLiteral redacts an exact secret value, such as a key loaded at startup.
func (s *Scrubber) AddLiteral(secret string) {
	if len(secret) < 8 {
		return
	}
	s.AddPattern(regexp.MustCompile(regexp.QuoteMeta(secret)))
}

// Scrub removes sensitive information from the input string.
func (s *Scrubber) Scrub(input string) string {
	scrubbed := input
	for _, pattern := range s.patterns {
		scrubbed = pattern.ReplaceAllStringFunc(scrubbed, func(match string) string {
			if strings.Contains(match, "=") {
				parts := strings.SplitN(match, "=", 2)
				return parts[0] + "=***REDACTED***"
			}
			if strings.Contains(match, ":") {
				parts := strings.SplitN(match, ":", 2)
				return parts[0] + ":***REDACTED***"
			}
			if strings.HasPrefix(strings.ToLower(match), "bearer ") {
				return match[:7] + "***REDACTED***"
			}
			if len(match) > 10 {
				return match[:4] + "***REDACTED***"
			}
			return "***REDACTED***"
		})
	}
	return scrubbed
}

// ContainsSensitive checks if the input contains any sensitive patterns.
func (s *Scrubber) ContainsSensitive(input string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

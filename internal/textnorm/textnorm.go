// Package textnorm provides the normalization used for de-duplication keys,
// name comparison and word limits. Normalized forms are only ever used as
// keys; callers keep the original text for storage and display.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

var articles = map[string]bool{"a": true, "an": true, "the": true}

var folder = cases.Fold()

// Fold lowercases s with Unicode case folding and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return folder.String(out)
}

// Tokens returns the folded alphanumeric tokens of s in order.
func Tokens(s string) []string {
	return tokenPattern.FindAllString(Fold(s), -1)
}

// Key returns the de-duplication key for a question: folded, trimmed and
// punctuation-stripped, with words joined by single spaces.
func Key(s string) string {
	return strings.Join(Tokens(s), " ")
}

// NameTokens returns the tokens of a name (guess or topic) with leading
// articles removed and every token singularized.
func NameTokens(s string) []string {
	toks := Tokens(s)
	for len(toks) > 1 && articles[toks[0]] {
		toks = toks[1:]
	}
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = Singular(t)
	}
	return out
}

// NameKey returns the comparison key for a guess or topic name.
func NameKey(s string) string {
	return strings.Join(NameTokens(s), " ")
}

// Singular strips a simple English plural suffix from a single token.
func Singular(tok string) string {
	n := len(tok)
	switch {
	case n <= 3:
		return tok
	case strings.HasSuffix(tok, "ies") && n > 4:
		return tok[:n-3] + "y"
	case strings.HasSuffix(tok, "sses"):
		return tok[:n-2]
	case strings.HasSuffix(tok, "ches"), strings.HasSuffix(tok, "shes"),
		strings.HasSuffix(tok, "xes"), strings.HasSuffix(tok, "zes"):
		return tok[:n-2]
	case strings.HasSuffix(tok, "ss"), strings.HasSuffix(tok, "us"), strings.HasSuffix(tok, "is"):
		return tok
	case strings.HasSuffix(tok, "s"):
		return tok[:n-1]
	}
	return tok
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// HasSuffixTokens reports whether toks ends with suffix, comparing
// singularized tokens.
func HasSuffixTokens(toks, suffix []string) bool {
	if len(suffix) == 0 || len(suffix) > len(toks) {
		return false
	}
	off := len(toks) - len(suffix)
	for i, s := range suffix {
		if Singular(toks[off+i]) != Singular(s) {
			return false
		}
	}
	return true
}

// ContainsTokens reports whether needle appears as a contiguous run inside
// haystack, comparing singularized tokens.
func ContainsTokens(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, n := range needle {
			if Singular(haystack[i+j]) != Singular(n) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

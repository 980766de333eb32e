package host

import (
	"strings"

	"github.com/andywolf/twentyq/internal/textnorm"
)

var (
	copulas      = map[string]bool{"is": true, "are": true}
	subjects     = map[string]bool{"it": true, "this": true, "that": true, "they": true, "these": true, "those": true}
	determiners  = map[string]bool{"a": true, "an": true, "the": true, "some": true}
	classifiers  = map[string]bool{"kind": true, "type": true, "sort": true, "form": true, "breed": true, "species": true, "variety": true}
	nonModifiers = map[string]bool{
		// relations and connectives
		"of": true, "than": true, "like": true, "as": true, "in": true, "on": true, "at": true,
		"with": true, "without": true, "for": true, "from": true, "to": true, "near": true,
		"by": true, "about": true, "under": true, "over": true, "inside": true, "outside": true,
		"into": true, "and": true, "or": true, "not": true, "no": true, "part": true,
		// verbs and predicative adjectives that take an object
		"be": true, "been": true, "being": true, "do": true, "does": true, "did": true,
		"can": true, "could": true, "will": true, "would": true, "should": true, "may": true, "might": true,
		"have": true, "has": true, "had": true, "eat": true, "eats": true, "chase": true, "chases": true,
		"hunt": true, "hunts": true, "kill": true, "kills": true, "fear": true, "fears": true,
		"afraid": true, "scared": true, "bigger": true, "smaller": true, "related": true,
		"similar": true, "used": true, "made": true, "owned": true, "kept": true,
	}
)

// modifierHead reports whether question asks whether the topic is a
// modified form of itself, e.g. topic "dog" and question "is it a small dog".
// The question must be a copula frame ("is it", "are they", optionally
// followed by an article and "kind of") whose remaining words are
// modifiers ending in the topic's name.
func modifierHead(topic, question string) bool {
	toks := textnorm.Tokens(question)
	if len(toks) < 2 || !copulas[toks[0]] || !subjects[toks[1]] {
		return false
	}
	i := 2
	hasDeterminer := false
	if i < len(toks) && determiners[toks[i]] {
		i++
		hasDeterminer = true
	}
	if i+1 < len(toks) && classifiers[toks[i]] && toks[i+1] == "of" {
		i += 2
		if i < len(toks) && determiners[toks[i]] {
			i++
		}
	}

	core := toks[i:]
	head := textnorm.NameTokens(topic)
	if len(head) == 0 || len(core) <= len(head) || !textnorm.HasSuffixTokens(core, head) {
		return false
	}
	for _, m := range core[:len(core)-len(head)] {
		if nonModifiers[m] || determiners[m] || subjects[m] {
			return false
		}
		// Without an article, "is it eating dogs" reads as a verb phrase.
		if !hasDeterminer && len(m) > 4 && (strings.HasSuffix(m, "ing") || strings.HasSuffix(m, "ed")) {
			return false
		}
	}
	return true
}

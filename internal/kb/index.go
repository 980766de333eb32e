package kb

import "math"

// PartitionCounts counts how the candidates split over the values of attrID.
func (k *KB) PartitionCounts(candidates []string, attrID string) map[string]int {
	in := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		in[id] = true
	}
	counts := make(map[string]int)
	for value, ids := range k.index[attrID] {
		for _, id := range ids {
			if in[id] {
				counts[value]++
			}
		}
	}
	return counts
}

// YesNoCounts splits candidates on a boolean attribute. Candidates without a
// value count as unknown.
func (k *KB) YesNoCounts(candidates []string, attrID string) (yes, no, unknown int) {
	counts := k.PartitionCounts(candidates, attrID)
	yes, no = counts["true"], counts["false"]
	unknown = len(candidates) - yes - no
	if unknown < 0 {
		unknown = 0
	}
	return yes, no, unknown
}

// Entropy returns the Shannon entropy in bits of a count distribution.
func Entropy(counts ...int) float64 {
	total := 0
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// AnswerEntropy is the entropy of the yes/no/unknown split of candidates on
// attrID: the information a question about it is expected to yield.
func (k *KB) AnswerEntropy(candidates []string, attrID string) float64 {
	yes, no, unknown := k.YesNoCounts(candidates, attrID)
	return Entropy(yes, no, unknown)
}

// Filter keeps the candidates whose boolean value for attrID equals want.
// Candidates without a value are dropped.
func (k *KB) Filter(candidates []string, attrID string, want bool) []string {
	out := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if v, ok := k.BoolValue(id, attrID); ok && v == want {
			out = append(out, id)
		}
	}
	return out
}

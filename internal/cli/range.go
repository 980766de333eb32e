package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andywolf/twentyq/internal/config"
)

// ExpandRanges takes selectors that may be single 1-based indices ("3") or
// inclusive ranges ("1-5"), possibly comma-separated, and returns the
// indices in the order given.
//
// Examples:
//   - ["1-3"] → [1, 2, 3]
//   - ["1,4-5", "8"] → [1, 4, 5, 8]
func ExpandRanges(input []string) ([]int, error) {
	var result []int
	for _, item := range input {
		for _, segment := range strings.Split(item, ",") {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				continue
			}
			expanded, err := expandSegment(segment)
			if err != nil {
				return nil, err
			}
			result = append(result, expanded...)
		}
	}
	return result, nil
}

// expandSegment handles a single segment which may be a number ("5") or a range ("1-5")
func expandSegment(segment string) ([]int, error) {
	if idx := strings.Index(segment, "-"); idx > 0 && idx < len(segment)-1 {
		startStr := strings.TrimSpace(segment[:idx])
		endStr := strings.TrimSpace(segment[idx+1:])

		start, err := strconv.Atoi(startStr)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: start value %q is not a valid number", segment, startStr)
		}
		end, err := strconv.Atoi(endStr)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: end value %q is not a valid number", segment, endStr)
		}
		if start > end {
			return nil, fmt.Errorf("invalid range %q: start (%d) is greater than end (%d)", segment, start, end)
		}

		result := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			result = append(result, i)
		}
		return result, nil
	}

	n, err := strconv.Atoi(segment)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: not a valid number", segment)
	}
	return []int{n}, nil
}

// SelectTopics keeps the topics at the given 1-based selectors, in file
// order, each at most once. No selectors keeps every topic.
func SelectTopics(topics []config.Topic, selectors []string) ([]config.Topic, error) {
	if len(selectors) == 0 {
		return topics, nil
	}
	indices, err := ExpandRanges(selectors)
	if err != nil {
		return nil, err
	}

	keep := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i < 1 || i > len(topics) {
			return nil, fmt.Errorf("topic index %d out of range (1-%d)", i, len(topics))
		}
		keep[i-1] = true
	}

	selected := make([]config.Topic, 0, len(keep))
	for i, t := range topics {
		if keep[i] {
			selected = append(selected, t)
		}
	}
	return selected, nil
}

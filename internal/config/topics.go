package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andywolf/twentyq/internal/textnorm"
)

// Topic is one entry of a topics file. Category, when set, is offered to the
// decision gate as an extra broad category.
type Topic struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category,omitempty"`
}

// UnmarshalYAML accepts either a bare string or a {name, category} mapping.
func (t *Topic) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Name = node.Value
		return nil
	case yaml.MappingNode:
		type plain Topic
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*t = Topic(p)
		return nil
	default:
		return fmt.Errorf("line %d: topic must be a string or a mapping", node.Line)
	}
}

type topicsFile struct {
	Topics []Topic `yaml:"topics"`
}

// LoadTopics reads a topics file.
func LoadTopics(path string) ([]Topic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topics file: %w", err)
	}
	topics, err := ParseTopics(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return topics, nil
}

// ParseTopics parses either `topics: [...]` or a top-level list. Names are
// trimmed; duplicates (after normalization) and empty names are errors.
func ParseTopics(data []byte) ([]Topic, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("topics file is empty")
	}

	var topics []Topic
	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&topics); err != nil {
			return nil, fmt.Errorf("failed to parse topics: %w", err)
		}
	case yaml.MappingNode:
		var f topicsFile
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse topics: %w", err)
		}
		topics = f.Topics
	default:
		return nil, fmt.Errorf("topics file must be a list or have a topics key")
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics defined")
	}

	seen := make(map[string]int, len(topics))
	for i := range topics {
		topics[i].Name = strings.TrimSpace(topics[i].Name)
		topics[i].Category = strings.TrimSpace(topics[i].Category)
		key := textnorm.Key(topics[i].Name)
		if key == "" {
			return nil, fmt.Errorf("topic %d has an empty name", i+1)
		}
		if prev, ok := seen[key]; ok {
			return nil, fmt.Errorf("topic %q duplicates entry %d", topics[i].Name, prev+1)
		}
		seen[key] = i
	}
	return topics, nil
}

// TopicNames returns the names in file order.
func TopicNames(topics []Topic) []string {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}
	return names
}

// TopicCategories returns the distinct non-empty categories in file order.
func TopicCategories(topics []Topic) []string {
	var cats []string
	seen := make(map[string]bool)
	for _, t := range topics {
		if t.Category == "" || seen[t.Category] {
			continue
		}
		seen[t.Category] = true
		cats = append(cats, t.Category)
	}
	return cats
}

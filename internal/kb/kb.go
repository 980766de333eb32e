// Package kb is a small closed-world knowledge base of objects and their
// attributes. It backs the offline entropy guesser and the KB host judge.
package kb

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andywolf/twentyq/internal/textnorm"
)

// AttributeKind is the value domain of an attribute.
type AttributeKind string

const (
	KindBoolean AttributeKind = "boolean"
	KindEnum    AttributeKind = "enum"
)

// Attribute describes one property objects may have.
type Attribute struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Kind        AttributeKind `yaml:"kind"`
	Options     []string      `yaml:"options,omitempty"`
	// Question is the canonical yes/no phrasing asked by the entropy guesser.
	Question string `yaml:"question,omitempty"`
	// Phrasings identify the attribute inside free-form questions.
	Phrasings []string `yaml:"phrasings,omitempty"`
}

// Object is one entity and its attribute values. Boolean values are
// normalized to "true" or "false" on load.
type Object struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Attributes map[string]string `yaml:"attributes"`
}

type file struct {
	Attributes []Attribute `yaml:"attributes"`
	Objects    []Object    `yaml:"objects"`
}

//go:embed seed.yaml
var seedYAML []byte

// KB is immutable after construction and safe for concurrent use.
type KB struct {
	attributes []Attribute
	objects    []Object
	attrByID   map[string]int
	objByID    map[string]int
	objByName  map[string]int
	// index[attrID][value] lists object IDs in declaration order.
	index    map[string]map[string][]string
	phrasing []phrase
}

type phrase struct {
	attrID string
	tokens []string
}

// Seed returns the embedded seed knowledge base.
func Seed() *KB {
	k, err := Parse(seedYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded seed KB is invalid: %v", err))
	}
	return k
}

// Load reads a knowledge base from a YAML file.
func Load(path string) (*KB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read KB file %s: %w", path, err)
	}
	k, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid KB file %s: %w", path, err)
	}
	return k, nil
}

// Parse builds a knowledge base from YAML.
func Parse(data []byte) (*KB, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse KB: %w", err)
	}
	return New(f.Attributes, f.Objects)
}

// New validates attributes and objects and builds the lookup indexes.
func New(attributes []Attribute, objects []Object) (*KB, error) {
	k := &KB{
		attrByID:  make(map[string]int, len(attributes)),
		objByID:   make(map[string]int, len(objects)),
		objByName: make(map[string]int, len(objects)),
		index:     make(map[string]map[string][]string, len(attributes)),
	}

	for _, a := range attributes {
		if a.ID == "" {
			return nil, fmt.Errorf("attribute with empty id")
		}
		if _, dup := k.attrByID[a.ID]; dup {
			return nil, fmt.Errorf("duplicate attribute %q", a.ID)
		}
		switch a.Kind {
		case KindBoolean:
		case KindEnum:
			if len(a.Options) == 0 {
				return nil, fmt.Errorf("enum attribute %q has no options", a.ID)
			}
		default:
			return nil, fmt.Errorf("attribute %q has invalid kind %q (must be %s or %s)", a.ID, a.Kind, KindBoolean, KindEnum)
		}
		k.attrByID[a.ID] = len(k.attributes)
		k.attributes = append(k.attributes, a)
		k.index[a.ID] = make(map[string][]string)
		for _, p := range a.Phrasings {
			if toks := textnorm.Tokens(p); len(toks) > 0 {
				k.phrasing = append(k.phrasing, phrase{attrID: a.ID, tokens: toks})
			}
		}
	}

	for _, o := range objects {
		if o.ID == "" {
			return nil, fmt.Errorf("object with empty id")
		}
		if _, dup := k.objByID[o.ID]; dup {
			return nil, fmt.Errorf("duplicate object %q", o.ID)
		}
		if o.Name == "" {
			o.Name = o.ID
		}
		values := make(map[string]string, len(o.Attributes))
		for attrID, raw := range o.Attributes {
			i, ok := k.attrByID[attrID]
			if !ok {
				return nil, fmt.Errorf("object %q references unknown attribute %q", o.ID, attrID)
			}
			v, err := normalizeValue(k.attributes[i], raw)
			if err != nil {
				return nil, fmt.Errorf("object %q: %w", o.ID, err)
			}
			values[attrID] = v
			k.index[attrID][v] = append(k.index[attrID][v], o.ID)
		}
		o.Attributes = values
		k.objByID[o.ID] = len(k.objects)
		k.objByName[textnorm.NameKey(o.Name)] = len(k.objects)
		k.objects = append(k.objects, o)
	}
	return k, nil
}

func normalizeValue(a Attribute, raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if a.Kind == KindBoolean {
		switch v {
		case "true", "yes":
			return "true", nil
		case "false", "no":
			return "false", nil
		}
		return "", fmt.Errorf("attribute %q expects a boolean, got %q", a.ID, raw)
	}
	for _, opt := range a.Options {
		if strings.EqualFold(opt, v) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("attribute %q value %q is not one of %v", a.ID, raw, a.Options)
}

// Attributes returns the attributes in declaration order.
func (k *KB) Attributes() []Attribute {
	return append([]Attribute(nil), k.attributes...)
}

// Objects returns the objects in declaration order.
func (k *KB) Objects() []Object {
	return append([]Object(nil), k.objects...)
}

// ObjectIDs returns every object ID in declaration order.
func (k *KB) ObjectIDs() []string {
	ids := make([]string, len(k.objects))
	for i, o := range k.objects {
		ids[i] = o.ID
	}
	return ids
}

// Attribute looks up an attribute by ID.
func (k *KB) Attribute(id string) (Attribute, bool) {
	i, ok := k.attrByID[id]
	if !ok {
		return Attribute{}, false
	}
	return k.attributes[i], true
}

// Object looks up an object by ID.
func (k *KB) Object(id string) (Object, bool) {
	i, ok := k.objByID[id]
	if !ok {
		return Object{}, false
	}
	return k.objects[i], true
}

// ObjectByName finds an object by name or ID, comparing normalized names.
func (k *KB) ObjectByName(name string) (Object, bool) {
	if i, ok := k.objByName[textnorm.NameKey(name)]; ok {
		return k.objects[i], true
	}
	return k.Object(strings.ToLower(strings.TrimSpace(name)))
}

// BoolValue returns the boolean value of attrID for objID. ok is false when
// the attribute is not boolean or the object has no value for it.
func (k *KB) BoolValue(objID, attrID string) (value, ok bool) {
	a, found := k.Attribute(attrID)
	if !found || a.Kind != KindBoolean {
		return false, false
	}
	o, found := k.Object(objID)
	if !found {
		return false, false
	}
	v, set := o.Attributes[attrID]
	if !set {
		return false, false
	}
	return v == "true", true
}

// MatchAttribute maps a free-form question onto an attribute by phrase
// matching. The longest matching phrasing wins; ties go to the attribute
// declared first.
func (k *KB) MatchAttribute(question string) (Attribute, bool) {
	toks := textnorm.Tokens(question)
	best := -1
	bestLen := 0
	for i, p := range k.phrasing {
		if len(p.tokens) > bestLen && textnorm.ContainsTokens(toks, p.tokens) {
			best, bestLen = i, len(p.tokens)
		}
	}
	if best < 0 {
		return Attribute{}, false
	}
	return k.Attribute(k.phrasing[best].attrID)
}

// QuestionFor returns the canonical question for an attribute.
func (k *KB) QuestionFor(attrID string) string {
	a, ok := k.Attribute(attrID)
	if !ok {
		return ""
	}
	if a.Question != "" {
		return a.Question
	}
	return "Is it " + strings.ToLower(a.Name) + "?"
}

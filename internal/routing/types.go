// Package routing resolves which provider and model serve each agent role.
package routing

import (
	"sort"
	"strings"
)

// Role names an agent in the game.
const (
	RoleGuesser = "GUESSER"
	RoleHost    = "HOST"
)

// ModelConfig specifies a provider and model for a role.
type ModelConfig struct {
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string `json:"model" yaml:"model" mapstructure:"model"`
}

// String renders the config in "provider:model" form.
func (m ModelConfig) String() string {
	if m.Provider == "" {
		return m.Model
	}
	return m.Provider + ":" + m.Model
}

// IsZero reports whether neither field is set.
func (m ModelConfig) IsZero() bool {
	return m.Provider == "" && m.Model == ""
}

// RoleRouting maps roles to provider+model configurations.
type RoleRouting struct {
	Default   ModelConfig            `json:"default" yaml:"default" mapstructure:"default"`
	Overrides map[string]ModelConfig `json:"overrides,omitempty" yaml:"overrides,omitempty" mapstructure:"overrides"`
}

// ValidRoles is the set of recognized role names.
var ValidRoles = map[string]bool{
	RoleGuesser: true,
	RoleHost:    true,
}

// ValidRoleNames returns the sorted list of recognized role names.
func ValidRoleNames() []string {
	names := make([]string, 0, len(ValidRoles))
	for role := range ValidRoles {
		names = append(names, role)
	}
	sort.Strings(names)
	return names
}

// ParseModelSpec parses a "provider:model" colon-separated string into
// ModelConfig. The first colon is the delimiter. Without a colon the whole
// string is the model and the provider is left to the default.
func ParseModelSpec(spec string) ModelConfig {
	spec = strings.TrimSpace(spec)
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) == 2 {
		return ModelConfig{Provider: parts[0], Model: parts[1]}
	}
	return ModelConfig{Model: spec}
}

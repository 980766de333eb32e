package routing

import (
	"sort"
	"strings"
)

// Router resolves the provider and model to use for a given role.
type Router struct {
	routing *RoleRouting
}

// NewRouter creates a router. Nil-safe: nil routing returns a no-op router.
func NewRouter(routing *RoleRouting) *Router {
	return &Router{routing: routing}
}

// ModelForRole returns the ModelConfig for the given role. An override
// replaces only the fields it sets; the rest come from Default.
func (r *Router) ModelForRole(role string) ModelConfig {
	if r.routing == nil {
		return ModelConfig{}
	}
	cfg := r.routing.Default
	if r.routing.Overrides != nil {
		if o, ok := r.routing.Overrides[strings.ToUpper(role)]; ok {
			if o.Provider != "" {
				cfg.Provider = o.Provider
			}
			if o.Model != "" {
				cfg.Model = o.Model
			}
		}
	}
	return cfg
}

// IsConfigured returns true if the router has usable routing config.
func (r *Router) IsConfigured() bool {
	if r.routing == nil {
		return false
	}
	return !r.routing.Default.IsZero() || len(r.routing.Overrides) > 0
}

// Providers returns the set of unique provider names referenced in the
// config, sorted for deterministic ordering.
func (r *Router) Providers() []string {
	if r.routing == nil {
		return nil
	}

	seen := make(map[string]bool)
	if r.routing.Default.Provider != "" {
		seen[r.routing.Default.Provider] = true
	}
	for _, cfg := range r.routing.Overrides {
		if cfg.Provider != "" {
			seen[cfg.Provider] = true
		}
	}

	providers := make([]string, 0, len(seen))
	for name := range seen {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// UnknownRoles returns role names used in Overrides that are not in
// ValidRoles. Returns nil if all roles are recognized or if routing is nil.
func (r *Router) UnknownRoles() []string {
	if r.routing == nil {
		return nil
	}
	var unknown []string
	for role := range r.routing.Overrides {
		if !ValidRoles[strings.ToUpper(role)] {
			unknown = append(unknown, role)
		}
	}
	sort.Strings(unknown)
	return unknown
}

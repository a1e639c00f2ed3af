package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/diligence/core"
)

// Type describes a kind of Worker Agent: the capabilities it is equipped
// with and the instruction it runs under. Lower Priority wins ties.
type Type struct {
	Name         string
	Capabilities core.CapabilitySet
	Priority     int
	Instruction  Instruction
}

// Match is the outcome of a Registry selection.
type Match struct {
	Type Type
	// Ambiguous is set when several equally small supersets matched.
	Ambiguous bool
	// Tied lists the names of all equally good candidates, in priority order.
	Tied []string
}

// Registry indexes worker types by the capability tags they declare.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry builds a registry from types. Duplicate names are rejected.
func NewRegistry(types ...Type) (*Registry, error) {
	r := &Registry{types: make(map[string]Type, len(types))}
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a worker type.
func (r *Registry) Register(t Type) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("agent: worker type name is required")
	}
	if len(t.Capabilities) == 0 {
		return fmt.Errorf("agent: worker type %q declares no capabilities", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.types[t.Name]; dup {
		return fmt.Errorf("agent: worker type %q already registered", t.Name)
	}
	r.types[t.Name] = t
	return nil
}

// Lookup returns the worker type with the given name.
func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Types returns all worker types ordered by priority then name.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	out := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Capabilities returns the union of all declared capabilities.
func (r *Registry) Capabilities() core.CapabilitySet {
	union := core.NewCapabilitySet()
	for _, t := range r.Types() {
		for k := range t.Capabilities {
			union[k] = struct{}{}
		}
	}
	return union
}

// Select picks the worker type for a task requiring the given capabilities.
// Candidates must declare a superset; the smallest superset wins and equal
// sizes are resolved by priority, flagged as Ambiguous. When no type covers
// required, the error is a *core.CapabilityError of kind CapabilityGap.
func (r *Registry) Select(required core.CapabilitySet) (Match, error) {
	var candidates []Type
	for _, t := range r.Types() {
		if t.Capabilities.Covers(required) {
			candidates = append(candidates, t)
		}
	}

	if len(candidates) == 0 {
		missing := r.Capabilities().Missing(required)
		return Match{}, core.NewCapabilityError(core.ErrorKindCapabilityGap, firstOr(missing, core.CapabilityExtensionReserved), "",
			fmt.Errorf("no worker type declares %s", required))
	}

	best := len(candidates[0].Capabilities)
	for _, c := range candidates[1:] {
		if n := len(c.Capabilities); n < best {
			best = n
		}
	}

	var tied []string
	var chosen *Type
	for i := range candidates {
		if len(candidates[i].Capabilities) != best {
			continue
		}
		if chosen == nil {
			chosen = &candidates[i]
		}
		tied = append(tied, candidates[i].Name)
	}

	m := Match{Type: *chosen}
	if len(tied) > 1 {
		m.Ambiguous = true
		m.Tied = tied
	}
	return m, nil
}

func firstOr(kinds []core.CapabilityKind, def core.CapabilityKind) core.CapabilityKind {
	if len(kinds) > 0 {
		return kinds[0]
	}
	return def
}

package coordinator

import (
	"strings"
	"sync"

	"github.com/hupe1980/diligence/core"
)

// Rule maps focus-area aliases to the capabilities they require.
type Rule struct {
	Aliases      []string
	Capabilities core.CapabilitySet
}

// Policy resolves focus areas to required capabilities. Lookups are
// case-insensitive; unknown focus areas resolve to the fallback set.
type Policy struct {
	mu       sync.RWMutex
	rules    map[string]core.CapabilitySet
	fallback core.CapabilitySet
}

// NewPolicy creates a policy from rules.
func NewPolicy(fallback core.CapabilitySet, rules ...Rule) *Policy {
	p := &Policy{rules: make(map[string]core.CapabilitySet), fallback: fallback}
	for _, r := range rules {
		for _, alias := range r.Aliases {
			p.rules[normalize(alias)] = r.Capabilities
		}
	}
	return p
}

// DefaultPolicy returns the built-in focus-area table.
func DefaultPolicy() *Policy {
	registry := core.NewCapabilitySet(core.CapabilityRegistryLookup)
	web := core.NewCapabilitySet(core.CapabilityWebSearch)

	return NewPolicy(web,
		Rule{Aliases: []string{"profile", "overview", "general", "company profile"},
			Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityRegistryLookup)},
		Rule{Aliases: []string{"leadership", "officers", "directors", "management"}, Capabilities: registry},
		Rule{Aliases: []string{"financials", "financial standing", "finance", "filings"}, Capabilities: registry},
		Rule{Aliases: []string{"ownership", "control", "shareholders"}, Capabilities: registry},
		Rule{Aliases: []string{"legal", "compliance", "charges", "insolvency"}, Capabilities: registry},
		Rule{Aliases: []string{"people", "team", "employees", "staff"},
			Capabilities: core.NewCapabilitySet(core.CapabilityProfessionalNetwork)},
		Rule{Aliases: []string{"market", "reputation", "news", "competitors", "products"}, Capabilities: web},
		Rule{Aliases: []string{"social media", "news sentiment", "sentiment"},
			Capabilities: core.NewCapabilitySet(core.CapabilityExtensionReserved)},
	)
}

// Set overrides the capabilities of one focus area.
func (p *Policy) Set(focusArea string, caps core.CapabilitySet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules[normalize(focusArea)] = caps
}

// Resolve returns the capabilities required by focusArea.
func (p *Policy) Resolve(focusArea string) core.CapabilitySet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if caps, ok := p.rules[normalize(focusArea)]; ok {
		return caps.Clone()
	}
	return p.fallback.Clone()
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CapabilityKind tags the capability port a task needs. Worker types declare
// the kinds they are equipped with; the coordinator routes by these tags.
type CapabilityKind string

const (
	// CapabilityRegistryLookup is an official company registry lookup.
	CapabilityRegistryLookup CapabilityKind = "registry-lookup"
	// CapabilityWebSearch is a general web search.
	CapabilityWebSearch CapabilityKind = "web-search"
	// CapabilityProfessionalNetwork is a professional-network profile lookup.
	CapabilityProfessionalNetwork CapabilityKind = "professional-network-lookup"
	// CapabilityExtensionReserved is reserved for capabilities not yet provided
	// by any worker type (social media analysis, news sentiment, ...).
	CapabilityExtensionReserved CapabilityKind = "extension-reserved"
	// CapabilityReasoner labels failures of the reasoning engine. It is never
	// routed to a worker.
	CapabilityReasoner CapabilityKind = "reasoner"
)

// ParseCapabilityKind resolves a tag such as "web-search". Underscores are
// accepted in place of dashes.
func ParseCapabilityKind(s string) (CapabilityKind, error) {
	k := CapabilityKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	switch k {
	case CapabilityRegistryLookup, CapabilityWebSearch, CapabilityProfessionalNetwork, CapabilityExtensionReserved:
		return k, nil
	}
	return "", fmt.Errorf("unknown capability kind %q", s)
}

// String returns the tag value.
func (k CapabilityKind) String() string { return string(k) }

// CapabilitySet is an unordered set of capability kinds.
type CapabilitySet map[CapabilityKind]struct{}

// NewCapabilitySet builds a set from the given kinds.
func NewCapabilitySet(kinds ...CapabilityKind) CapabilitySet {
	s := make(CapabilitySet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether k is a member of the set.
func (s CapabilitySet) Has(k CapabilityKind) bool {
	_, ok := s[k]
	return ok
}

// Covers reports whether s is a superset of other.
func (s CapabilitySet) Covers(other CapabilitySet) bool {
	for k := range other {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// Missing returns the members of required that s lacks, sorted.
func (s CapabilitySet) Missing(required CapabilitySet) []CapabilityKind {
	var out []CapabilityKind
	for k := range required {
		if !s.Has(k) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sorted returns the members in lexical order.
func (s CapabilitySet) Sorted() []CapabilityKind {
	out := make([]CapabilityKind, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy.
func (s CapabilitySet) Clone() CapabilitySet {
	c := make(CapabilitySet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}
	return c
}

func (s CapabilitySet) String() string {
	kinds := s.Sorted()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// MarshalJSON encodes the set as a sorted array of tags.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

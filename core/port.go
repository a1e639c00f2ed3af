package core

import "context"

// ActionSpec declares one typed action a reasoner may select. Parameters is a
// minimal JSON Schema object.
type ActionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ActionCall is a reasoner's request to run a declared action.
type ActionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Port is the uniform interface an external collaborator exposes to the
// orchestration layer. Every failure returned by Invoke must be a
// *CapabilityError (see KindOf for the fallback of unclassified errors).
//
// Implementations must:
//   - Respect ctx cancellation
//   - Be safe for concurrent use; one Port instance is shared by all workers
//   - Perform read-only lookups only
type Port interface {
	Kind() CapabilityKind
	Actions() []ActionSpec
	Invoke(ctx context.Context, call ActionCall) (any, error)
}

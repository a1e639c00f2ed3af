package core

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ResearchRequest asks for a report on a single subject company. Immutable
// once created; use NewResearchRequest to obtain a normalized copy.
type ResearchRequest struct {
	SubjectName  string   `json:"subject_name" validate:"required,max=200"`
	Jurisdiction string   `json:"jurisdiction,omitempty" validate:"omitempty,max=64"`
	FocusAreas   []string `json:"focus_areas,omitempty" validate:"dive,required,max=64"`
	SessionID    string   `json:"session_id" validate:"required"`
}

var requestValidator = validator.New()

// NewResearchRequest trims inputs, removes duplicate focus areas (first
// spelling wins, comparison is case-insensitive), assigns a session id when
// empty and validates the result.
func NewResearchRequest(subject, jurisdiction string, focusAreas []string, sessionID string) (ResearchRequest, error) {
	req := ResearchRequest{
		SubjectName:  strings.TrimSpace(subject),
		Jurisdiction: strings.TrimSpace(jurisdiction),
		FocusAreas:   dedupeFocusAreas(focusAreas),
		SessionID:    strings.TrimSpace(sessionID),
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		return ResearchRequest{}, err
	}
	return req, nil
}

// Validate checks field constraints.
func (r ResearchRequest) Validate() error {
	if err := requestValidator.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// HasFocusAreas reports whether the caller requested explicit focus areas.
func (r ResearchRequest) HasFocusAreas() bool { return len(r.FocusAreas) > 0 }

func dedupeFocusAreas(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, fa := range in {
		fa = strings.TrimSpace(fa)
		if fa == "" {
			continue
		}
		key := strings.ToLower(fa)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, fa)
	}
	return out
}

// AgentTask is one unit of delegated work created by the coordinator for a
// single focus area.
type AgentTask struct {
	ID                   string        `json:"task_id"`
	FocusArea            string        `json:"focus_area"`
	RequiredCapabilities CapabilitySet `json:"required_capabilities"`
	Instructions         string        `json:"instructions"`
	// WorkerType is the name of the worker type selected for this task.
	WorkerType string `json:"worker_type,omitempty"`
}

package coordinator

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hupe1980/diligence/agent"
	"github.com/hupe1980/diligence/core"
)

// Plan is the decomposition of one research request.
type Plan struct {
	RunID   string
	Request core.ResearchRequest
	// FocusAreas are the requested areas, or the defaults when none were requested.
	FocusAreas []string
	Defaulted  bool
	// Tasks are dispatched to workers, in focus-area order.
	Tasks []core.AgentTask
	// Rejected holds failed results for focus areas no worker can serve.
	Rejected  []core.AgentResult
	Anomalies []core.Anomaly
}

// Decompose turns req into a plan. Focus areas no worker type can serve are
// rejected with a CapabilityGap result instead of failing the plan.
func (c *Coordinator) Decompose(req core.ResearchRequest) (Plan, error) {
	if err := req.Validate(); err != nil {
		return Plan{}, err
	}

	p := Plan{RunID: uuid.NewString(), Request: req, FocusAreas: req.FocusAreas}
	if !req.HasFocusAreas() {
		p.FocusAreas = append([]string(nil), c.opts.DefaultFocusAreas...)
		p.Defaulted = true
	}

	for _, fa := range p.FocusAreas {
		task := core.AgentTask{
			ID:                   uuid.NewString(),
			FocusArea:            fa,
			RequiredCapabilities: c.opts.Policy.Resolve(fa),
		}

		match, err := c.registry.Select(task.RequiredCapabilities)
		if err != nil {
			c.logger.Warn("coordinator.anomaly.capability_gap", "run_id", p.RunID, "focus_area", fa,
				"required", task.RequiredCapabilities.String(), "error", err.Error())
			p.Rejected = append(p.Rejected, core.FailedResult(task, err))
			continue
		}
		task.WorkerType = match.Type.Name

		if match.Ambiguous {
			msg := fmt.Sprintf("worker types %v match %s equally, chose %s", match.Tied, task.RequiredCapabilities, match.Type.Name)
			c.logger.Warn("coordinator.anomaly.decomposition_ambiguity", "run_id", p.RunID, "focus_area", fa, "tied", match.Tied, "chosen", match.Type.Name)
			p.Anomalies = append(p.Anomalies, core.Anomaly{Kind: core.ErrorKindDecompositionAmbiguity, FocusArea: fa, Message: msg})
		}

		caps := make([]string, 0, len(match.Type.Capabilities))
		for _, k := range match.Type.Capabilities.Sorted() {
			caps = append(caps, k.String())
		}
		instructions, err := match.Type.Instruction.Resolve(agent.InstructionData{
			Subject:      req.SubjectName,
			Jurisdiction: req.Jurisdiction,
			FocusArea:    fa,
			WorkerType:   match.Type.Name,
			Capabilities: caps,
			MaxSteps:     c.opts.MaxSteps,
		})
		if err != nil {
			p.Rejected = append(p.Rejected, core.FailedResult(task, fmt.Errorf("render instructions: %w", err)))
			continue
		}
		task.Instructions = instructions

		p.Tasks = append(p.Tasks, task)
	}

	c.logger.Debug("coordinator.plan.created", "run_id", p.RunID, "subject", req.SubjectName,
		"focus_areas", p.FocusAreas, "defaulted", p.Defaulted, "tasks", len(p.Tasks), "rejected", len(p.Rejected))
	return p, nil
}

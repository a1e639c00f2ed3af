package core

import "time"

// Status is the terminal state of a single agent task.
type Status string

const (
	// StatusOK means the worker produced a final payload.
	StatusOK Status = "ok"
	// StatusPartial means the worker ran out of steps and returned fragments.
	StatusPartial Status = "partial"
	// StatusFailed means the worker could not produce a payload.
	StatusFailed Status = "failed"
)

// Succeeded reports whether the status carries usable data (ok or partial).
func (s Status) Succeeded() bool { return s == StatusOK || s == StatusPartial }

// Payload is free-form structured data produced by a worker. Its shape varies
// by data source and is never strictly validated.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// AgentResult is produced exactly once per AgentTask.
type AgentResult struct {
	TaskID    string        `json:"task_id"`
	FocusArea string        `json:"focus_area"`
	Status    Status        `json:"status"`
	Payload   Payload       `json:"payload,omitempty"`
	Error     *SectionError `json:"error,omitempty"`

	// Diagnostics; not part of the synthesized sections.
	WorkerType string        `json:"worker_type,omitempty"`
	Steps      int           `json:"steps,omitempty"`
	Calls      int           `json:"calls,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// FailedResult builds a failed result for task with the given error.
func FailedResult(task AgentTask, err error) AgentResult {
	return AgentResult{
		TaskID:     task.ID,
		FocusArea:  task.FocusArea,
		Status:     StatusFailed,
		Error:      NewSectionError(err),
		WorkerType: task.WorkerType,
	}
}

package testutil

import (
	"github.com/hupe1980/diligence/core"
)

// ResultBuilder provides a fluent helper for constructing agent results.
// Example:
//
//	res := NewResultBuilder("Leadership").OK(core.Payload{"officers": 2}).Build()
type ResultBuilder struct {
	res core.AgentResult
}

// NewResultBuilder creates a builder for focus area fa with status ok.
func NewResultBuilder(fa string) *ResultBuilder {
	return &ResultBuilder{res: core.AgentResult{TaskID: "task-" + fa, FocusArea: fa, Status: core.StatusOK}}
}

// TaskID overrides the derived task id (chainable).
func (b *ResultBuilder) TaskID(id string) *ResultBuilder { b.res.TaskID = id; return b }

// Worker sets the worker type name (chainable).
func (b *ResultBuilder) Worker(name string) *ResultBuilder { b.res.WorkerType = name; return b }

// OK marks the result ok with payload (chainable).
func (b *ResultBuilder) OK(p core.Payload) *ResultBuilder {
	b.res.Status = core.StatusOK
	b.res.Payload = p
	b.res.Error = nil
	return b
}

// Partial marks the result partial with payload (chainable).
func (b *ResultBuilder) Partial(p core.Payload) *ResultBuilder {
	b.res.Status = core.StatusPartial
	b.res.Payload = p
	return b
}

// Failed marks the result failed with the given classification (chainable).
func (b *ResultBuilder) Failed(kind core.ErrorKind, msg string) *ResultBuilder {
	b.res.Status = core.StatusFailed
	b.res.Payload = nil
	b.res.Error = &core.SectionError{Kind: kind, Message: msg}
	return b
}

// Build returns the constructed result.
func (b *ResultBuilder) Build() core.AgentResult { return b.res }

package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/diligence/core"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool carries the observation produced by an action call.
	RoleTool Role = "tool"
)

// Message is one entry of the reasoner conversation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text,omitempty"`
	// Calls are the action calls chosen by the reasoner (assistant only).
	Calls []core.ActionCall `json:"calls,omitempty"`
	// CallID and Name link a tool observation to its call.
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// UserMessage builds a user turn.
func UserMessage(text string) Message { return Message{Role: RoleUser, Text: text} }

// AssistantMessage builds an assistant turn echoing prior calls.
func AssistantMessage(text string, calls ...core.ActionCall) Message {
	return Message{Role: RoleAssistant, Text: text, Calls: calls}
}

// ToolMessage builds an observation for the call with the given id.
func ToolMessage(call core.ActionCall, text string, isError bool) Message {
	return Message{Role: RoleTool, Text: text, CallID: call.ID, Name: call.Name, IsError: isError}
}

// Request captures the normalized reasoner input.
type Request struct {
	Instructions string            `json:"instructions"`
	Messages     []Message         `json:"messages"`
	Actions      []core.ActionSpec `json:"actions,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a complete reasoner reply: text, action calls or both.
type Response struct {
	ID           string            `json:"id,omitempty"`
	Text         string            `json:"text,omitempty"`
	Calls        []core.ActionCall `json:"calls,omitempty"`
	FinishReason string            `json:"finish_reason"`
	Usage        *TokenUsage       `json:"usage,omitempty"`
}

// HasCalls reports whether the reasoner chose at least one action.
func (r Response) HasCalls() bool { return len(r.Calls) > 0 }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the reasoning engine contract. Implementations must be safe for
// concurrent use and honour ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrScriptExhausted is returned by MockModel when no scripted reply is left.
var ErrScriptExhausted = errors.New("mock model: no scripted response left")

// HandlerFunc computes a reply from the request. Used by MockModel for
// request-dependent behaviour.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

type scripted struct {
	resp Response
	err  error
}

// MockModel is an in-memory Model for tests and examples. Replies come from a
// FIFO script first, then from the handler. All requests are recorded.
type MockModel struct {
	info    Info
	mu      sync.Mutex
	script  []scripted
	handler HandlerFunc
	calls   []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: provider, SupportsTools: true}}
}

// NewFuncModel constructs a MockModel that always delegates to fn.
func NewFuncModel(fn HandlerFunc) *MockModel {
	m := NewMockModel("mock", "mock")
	m.handler = fn
	return m
}

// Enqueue appends scripted replies.
func (m *MockModel) Enqueue(resps ...Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range resps {
		m.script = append(m.script, scripted{resp: r})
	}
	return m
}

// EnqueueError appends a scripted failure.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// Requests returns a copy of all received requests.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		m.mu.Unlock()
		if next.err != nil {
			return Response{}, next.err
		}
		if next.resp.FinishReason == "" {
			next.resp.FinishReason = finishReason(next.resp)
		}
		return next.resp, nil
	}
	handler := m.handler
	m.mu.Unlock()

	if handler == nil {
		return Response{}, fmt.Errorf("%w (request %d)", ErrScriptExhausted, len(m.Requests()))
	}
	return handler(ctx, req)
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func finishReason(r Response) string {
	if r.HasCalls() {
		return "tool_calls"
	}
	return "stop"
}

// TextResponse is a convenience for a plain final answer.
func TextResponse(text string) Response { return Response{Text: text, FinishReason: "stop"} }

// CallResponse is a convenience for a single action call.
func CallResponse(id, name string, args map[string]any) Response {
	return Response{Calls: []core.ActionCall{{ID: id, Name: name, Args: args}}, FinishReason: "tool_calls"}
}

// WrapProviderError classifies a vendor SDK failure by its HTTP status.
// Network failures without a status are Transient.
func WrapProviderError(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if core.KindOf(err) == core.ErrorKindCancelled {
		return err
	}
	kind := core.KindForHTTPStatus(status)
	if kind == "" {
		kind = core.ErrorKindTransient
	}
	return core.NewCapabilityError(kind, core.CapabilityReasoner, "generate", fmt.Errorf("%s api error: %w", provider, err))
}

package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/hupe1980/diligence/core"
	"github.com/stretchr/testify/mock"
)

func specs(names []string) []core.ActionSpec {
	out := make([]core.ActionSpec, 0, len(names))
	for _, n := range names {
		out = append(out, core.ActionSpec{Name: n, Description: n, Parameters: map[string]any{"type": "object"}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MockPort is a testify mock implementing core.Port. Program it with
//
//	p.On("Invoke", mock.Anything, mock.MatchedBy(testutil.CallNamed("get_company_officers"))).
//	  Return(map[string]any{"items": []any{}}, nil)
type MockPort struct {
	mock.Mock
	kind    core.CapabilityKind
	actions []core.ActionSpec
}

// NewMockPort creates a MockPort declaring the named actions.
func NewMockPort(kind core.CapabilityKind, actions ...string) *MockPort {
	return &MockPort{kind: kind, actions: specs(actions)}
}

// Kind implements core.Port.
func (p *MockPort) Kind() core.CapabilityKind { return p.kind }

// Actions implements core.Port.
func (p *MockPort) Actions() []core.ActionSpec { return p.actions }

// Invoke implements core.Port.
func (p *MockPort) Invoke(ctx context.Context, call core.ActionCall) (any, error) {
	args := p.Called(ctx, call)
	return args.Get(0), args.Error(1)
}

// CallNamed matches an ActionCall by action name.
func CallNamed(name string) func(core.ActionCall) bool {
	return func(c core.ActionCall) bool { return c.Name == name }
}

// FuncPort is a core.Port answering every call with fn. It counts calls per
// action and is safe for concurrent use.
type FuncPort struct {
	kind    core.CapabilityKind
	actions []core.ActionSpec
	fn      func(ctx context.Context, call core.ActionCall) (any, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewFuncPort creates a FuncPort declaring the named actions.
func NewFuncPort(kind core.CapabilityKind, fn func(ctx context.Context, call core.ActionCall) (any, error), actions ...string) *FuncPort {
	return &FuncPort{kind: kind, actions: specs(actions), fn: fn, calls: make(map[string]int)}
}

// Kind implements core.Port.
func (p *FuncPort) Kind() core.CapabilityKind { return p.kind }

// Actions implements core.Port.
func (p *FuncPort) Actions() []core.ActionSpec { return p.actions }

// Invoke implements core.Port.
func (p *FuncPort) Invoke(ctx context.Context, call core.ActionCall) (any, error) {
	p.mu.Lock()
	p.calls[call.Name]++
	p.mu.Unlock()
	return p.fn(ctx, call)
}

// Calls returns how often action was invoked.
func (p *FuncPort) Calls(action string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[action]
}

// Classified returns a *core.CapabilityError of the given kind.
func Classified(kind core.ErrorKind, capability core.CapabilityKind, msg string) error {
	return core.NewCapabilityError(kind, capability, "", errors.New(msg))
}

package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/logging"
)

// Set groups the actions of one capability and exposes them as a core.Port.
// It is the classification boundary: every failure leaving Invoke is a
// *core.CapabilityError.
type Set struct {
	kind    core.CapabilityKind
	actions map[string]*Action
	order   []string
	logger  logging.Logger
}

// SetOptions configures a Set.
type SetOptions struct {
	Logger logging.Logger
}

// NewSet builds a port of the given kind. Duplicate action names panic since
// they are a programming error.
func NewSet(kind core.CapabilityKind, actions []*Action, optFns ...func(o *SetOptions)) *Set {
	opts := SetOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Set{kind: kind, actions: make(map[string]*Action, len(actions)), logger: logging.OrNoOp(opts.Logger)}
	for _, a := range actions {
		if _, dup := s.actions[a.Name()]; dup {
			panic(fmt.Sprintf("tool: duplicate action %q for capability %s", a.Name(), kind))
		}
		s.actions[a.Name()] = a
		s.order = append(s.order, a.Name())
	}
	sort.Strings(s.order)
	return s
}

// Kind implements core.Port.
func (s *Set) Kind() core.CapabilityKind { return s.kind }

// Actions implements core.Port. Specs are returned in name order.
func (s *Set) Actions() []core.ActionSpec {
	specs := make([]core.ActionSpec, 0, len(s.order))
	for _, name := range s.order {
		specs = append(specs, s.actions[name].Spec())
	}
	return specs
}

// Invoke implements core.Port.
func (s *Set) Invoke(ctx context.Context, call core.ActionCall) (result any, err error) {
	action, ok := s.actions[call.Name]
	if !ok {
		return nil, s.classify(call.Name, NewError(call.Name, "action is not declared by this capability", CodeUnknownAction))
	}

	start := time.Now()
	s.logger.Debug("tool.call.start", "capability", s.kind, "action", call.Name, "call_id", call.ID)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tool.call.panic", "capability", s.kind, "action", call.Name, "recover", r, "stack", string(debug.Stack()))
			result, err = nil, s.classify(call.Name, NewError(call.Name, fmt.Sprintf("panic: %v", r), CodePanic))
		}
	}()

	result, err = action.Call(ctx, call.Args)
	if err != nil {
		err = s.classify(call.Name, err)
		s.logger.Debug("tool.call.error", "capability", s.kind, "action", call.Name, "kind", core.KindOf(err), "error", err.Error())
		return nil, err
	}

	s.logger.Debug("tool.call.success", "capability", s.kind, "action", call.Name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (s *Set) classify(action string, err error) error {
	var ce *core.CapabilityError
	if errors.As(err, &ce) {
		if ce.Capability == "" {
			ce.Capability = s.kind
		}
		if ce.Action == "" {
			ce.Action = action
		}
		return ce
	}

	var te *Error
	if errors.As(err, &te) {
		return core.NewCapabilityError(KindForCode(te.Code), s.kind, action, err)
	}

	return core.NewCapabilityError(core.KindOf(err), s.kind, action, err)
}

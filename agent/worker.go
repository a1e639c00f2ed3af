package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/model"
	"github.com/hupe1980/diligence/tracing"
)

// SubmitFindings is the reserved action a reasoner calls to finish a task.
const SubmitFindings = "submit_findings"

// DefaultMaxSteps is the default reasoning step cap per task.
const DefaultMaxSteps = 12

const defaultMaxObservationBytes = 12000

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	// MaxSteps caps reasoning steps per task. Non-positive values use DefaultMaxSteps.
	MaxSteps int
	Retry    RetryPolicy
	Logger   logging.Logger
	// TracerProvider receives task and capability call spans. Nil uses the global provider.
	TracerProvider trace.TracerProvider
	// MaxObservationBytes truncates serialized action results shown to the reasoner.
	MaxObservationBytes int
}

// Worker runs the bounded reasoning loop for one worker type. A Worker holds
// no per-task state and may run several tasks concurrently.
type Worker struct {
	typ      Type
	reasoner model.Model
	route    map[string]core.Port
	actions  []core.ActionSpec
	opts     WorkerOptions
	logger   logging.Logger
	tracer   trace.Tracer
}

// NewWorker equips a worker of type typ with ports. Every capability the type
// declares must be served by exactly one port; extra ports are ignored.
func NewWorker(typ Type, reasoner model.Model, ports []core.Port, optFns ...func(o *WorkerOptions)) (*Worker, error) {
	opts := WorkerOptions{
		MaxSteps:            DefaultMaxSteps,
		Retry:               DefaultRetryPolicy(),
		Logger:              logging.NoOpLogger{},
		MaxObservationBytes: defaultMaxObservationBytes,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if reasoner == nil {
		return nil, fmt.Errorf("agent: worker %q requires a reasoner", typ.Name)
	}

	byKind := make(map[core.CapabilityKind]core.Port, len(ports))
	for _, p := range ports {
		if p != nil {
			byKind[p.Kind()] = p
		}
	}

	w := &Worker{
		typ:      typ,
		reasoner: reasoner,
		route:    make(map[string]core.Port),
		opts:     opts,
		logger:   logging.ForComponent(opts.Logger, "worker"),
		tracer:   tracing.Tracer(opts.TracerProvider),
	}
	for _, kind := range typ.Capabilities.Sorted() {
		port, ok := byKind[kind]
		if !ok {
			return nil, fmt.Errorf("agent: worker type %q requires a %s port", typ.Name, kind)
		}
		for _, spec := range port.Actions() {
			if spec.Name == SubmitFindings {
				return nil, fmt.Errorf("agent: action name %q is reserved", SubmitFindings)
			}
			if _, dup := w.route[spec.Name]; dup {
				return nil, fmt.Errorf("agent: action %q declared by more than one port", spec.Name)
			}
			w.route[spec.Name] = port
			w.actions = append(w.actions, spec)
		}
	}
	w.actions = append(w.actions, submitFindingsSpec())
	return w, nil
}

// Type returns the worker type.
func (w *Worker) Type() Type { return w.typ }

// Actions returns the closed action schema offered to the reasoner.
func (w *Worker) Actions() []core.ActionSpec { return w.actions }

func submitFindingsSpec() core.ActionSpec {
	return core.ActionSpec{
		Name:        SubmitFindings,
		Description: "Finish the task and submit the structured findings for this section",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"findings": map[string]any{
					"type":        "object",
					"description": "Structured findings for the section",
				},
			},
			"required": []string{"findings"},
		},
	}
}

type runState struct {
	task      core.AgentTask
	start     time.Time
	steps     int
	calls     int
	fragments []any
	lastText  string
}

// Run executes task and always returns exactly one result. The task's
// Instructions are used as the reasoner's system instructions.
func (w *Worker) Run(ctx context.Context, task core.AgentTask) (res core.AgentResult) {
	st := &runState{task: task, start: time.Now()}

	ctx, span := w.tracer.Start(ctx, tracing.SpanResearchTask, trace.WithAttributes(
		tracing.FocusArea.String(task.FocusArea),
		tracing.WorkerType.String(w.typ.Name),
	))
	defer func() {
		span.SetAttributes(tracing.Status.String(string(res.Status)))
		if res.Error != nil {
			span.SetAttributes(tracing.ErrorKind.String(string(res.Error.Kind)))
			tracing.Fail(span, res.Error)
		}
		span.End()
	}()

	w.logger.Debug("worker.run.start", "worker", w.typ.Name, "task_id", task.ID, "focus_area", task.FocusArea)

	msgs := []model.Message{model.UserMessage(fmt.Sprintf(
		"Focus area: %s\nGather the evidence for this section using the declared actions, then call %s.",
		task.FocusArea, SubmitFindings,
	))}

	for {
		if err := ctx.Err(); err != nil {
			return w.finish(st, core.StatusFailed, nil, cancelled(err))
		}
		if st.steps >= w.opts.MaxSteps {
			w.logger.Warn("worker.step_cap.reached", "worker", w.typ.Name, "task_id", task.ID, "max_steps", w.opts.MaxSteps)
			return w.finish(st, core.StatusPartial, partialPayload(st), nil)
		}
		st.steps++
		w.logger.Debug("worker.step.start", "worker", w.typ.Name, "task_id", task.ID, "step", st.steps)

		resp, err := w.generate(ctx, task, msgs)
		if err != nil {
			return w.finish(st, core.StatusFailed, nil, w.sectionError(ctx, err))
		}
		if text := strings.TrimSpace(resp.Text); text != "" {
			st.lastText = text
		}

		if !resp.HasCalls() {
			if strings.TrimSpace(resp.Text) == "" {
				msgs = append(msgs, model.UserMessage("Your reply was empty. Call one of the declared actions or "+SubmitFindings+"."))
				continue
			}
			return w.finish(st, core.StatusOK, payloadFromText(resp.Text), nil)
		}

		calls := make([]core.ActionCall, len(resp.Calls))
		for i, c := range resp.Calls {
			if c.ID == "" {
				c.ID = fmt.Sprintf("%s-%d-%d", task.ID, st.steps, i)
			}
			calls[i] = c
		}
		msgs = append(msgs, model.AssistantMessage(resp.Text, calls...))

		for _, call := range calls {
			if call.Name == SubmitFindings {
				if payload, ok := findingsFrom(call.Args); ok {
					return w.finish(st, core.StatusOK, payload, nil)
				}
				msgs = append(msgs, model.ToolMessage(call, `{"error":"findings must be a JSON object"}`, true))
				continue
			}

			st.calls++
			out, err := w.invoke(ctx, call)
			if err == nil {
				st.fragments = append(st.fragments, map[string]any{"action": call.Name, "args": call.Args, "result": out})
				msgs = append(msgs, model.ToolMessage(call, w.observation(out), false))
				continue
			}

			switch core.KindOf(err) {
			case core.ErrorKindNotFound:
				st.fragments = append(st.fragments, map[string]any{"action": call.Name, "args": call.Args, "not_found": true})
				msgs = append(msgs, model.ToolMessage(call, w.observation(map[string]any{"not_found": true, "message": err.Error()}), false))
			case core.ErrorKindInvalidInput:
				msgs = append(msgs, model.ToolMessage(call, w.observation(map[string]any{"error": err.Error()}), true))
			default:
				return w.finish(st, core.StatusFailed, nil, w.sectionError(ctx, err))
			}
		}
	}
}

// generate asks the reasoner for the next action, retrying Transient failures.
func (w *Worker) generate(ctx context.Context, task core.AgentTask, msgs []model.Message) (model.Response, error) {
	req := model.Request{Instructions: task.Instructions, Messages: msgs, Actions: w.actions}
	name := w.reasoner.Info().Name
	attempt := 0

	op := func() (model.Response, error) {
		attempt++
		start := time.Now()
		resp, err := w.reasoner.Generate(ctx, req)
		tokens := 0
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}
		logging.LogReasonerCall(w.logger, name, tokens, time.Since(start), err)
		if err != nil && !core.KindOf(err).Retryable() {
			return model.Response{}, backoff.Permanent(err)
		}
		return resp, err
	}
	notify := func(_ error, delay time.Duration) {
		w.logger.Info("reasoner.call.retry", "worker", w.typ.Name, "attempt", attempt, "backoff_ms", delay.Milliseconds())
	}
	return backoff.RetryNotifyWithData(op, w.opts.Retry.NewBackOff(ctx), notify)
}

// invoke runs one action call, retrying only Transient failures.
func (w *Worker) invoke(ctx context.Context, call core.ActionCall) (any, error) {
	port, ok := w.route[call.Name]
	if !ok {
		return nil, core.NewCapabilityError(core.ErrorKindInvalidInput, "", call.Name,
			fmt.Errorf("action %q is not declared for worker %s", call.Name, w.typ.Name))
	}
	if raw, bad := model.MalformedArgs(call.Args); bad {
		return nil, core.NewCapabilityError(core.ErrorKindInvalidInput, port.Kind(), call.Name,
			fmt.Errorf("arguments are not a JSON object: %q", raw))
	}

	ctx, span := w.tracer.Start(ctx, tracing.SpanCapabilityCall, trace.WithAttributes(
		tracing.Capability.String(string(port.Kind())),
		tracing.Action.String(call.Name),
	))
	defer span.End()

	attempt := 0
	op := func() (any, error) {
		attempt++
		start := time.Now()
		out, err := port.Invoke(ctx, call)
		logging.LogCapabilityCall(w.logger, string(port.Kind()), call.Name, attempt, time.Since(start), err)
		if err != nil && !core.KindOf(err).Retryable() {
			return nil, backoff.Permanent(err)
		}
		return out, err
	}
	notify := func(_ error, delay time.Duration) {
		w.logger.Info("capability.call.retry", "capability", port.Kind(), "action", call.Name, "attempt", attempt, "backoff_ms", delay.Milliseconds())
	}
	out, err := backoff.RetryNotifyWithData(op, w.opts.Retry.NewBackOff(ctx), notify)

	span.SetAttributes(tracing.Attempts.Int(attempt))
	if err != nil {
		span.SetAttributes(tracing.ErrorKind.String(string(core.KindOf(err))))
		tracing.Fail(span, err)
	}
	return out, err
}

func (w *Worker) finish(st *runState, status core.Status, payload core.Payload, serr *core.SectionError) core.AgentResult {
	res := core.AgentResult{
		TaskID:     st.task.ID,
		FocusArea:  st.task.FocusArea,
		Status:     status,
		Payload:    payload,
		Error:      serr,
		WorkerType: w.typ.Name,
		Steps:      st.steps,
		Calls:      st.calls,
		Duration:   time.Since(st.start),
	}
	args := []any{"worker", w.typ.Name, "task_id", st.task.ID, "focus_area", st.task.FocusArea, "status", status,
		"steps", st.steps, "calls", st.calls, "duration_ms", res.Duration.Milliseconds()}
	if serr != nil {
		w.logger.Warn("worker.run.failed", append(args, "kind", serr.Kind, "error", serr.Message)...)
	} else {
		w.logger.Info("worker.run.completed", args...)
	}
	return res
}

func (w *Worker) sectionError(ctx context.Context, err error) *core.SectionError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelled(ctxErr)
	}
	return core.NewSectionError(err)
}

func (w *Worker) observation(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if limit := w.opts.MaxObservationBytes; limit > 0 && len(b) > limit {
		for limit > 0 && !utf8.RuneStart(b[limit]) {
			limit--
		}
		return string(b[:limit]) + "...(truncated)"
	}
	return string(b)
}

func cancelled(err error) *core.SectionError {
	return &core.SectionError{Kind: core.ErrorKindCancelled, Message: "research run cancelled: " + err.Error()}
}

func partialPayload(st *runState) core.Payload {
	p := core.Payload{"observations": st.fragments}
	if st.fragments == nil {
		p["observations"] = []any{}
	}
	if st.lastText != "" {
		p["notes"] = st.lastText
	}
	return p
}

func findingsFrom(args map[string]any) (core.Payload, bool) {
	switch f := args["findings"].(type) {
	case map[string]any:
		return core.Payload(f), true
	case string:
		if m, err := util.ExtractJSONObject(f); err == nil {
			return core.Payload(m), true
		}
	}
	return nil, false
}

// payloadFromText accepts a JSON object (code fences tolerated) or wraps
// free text as a summary.
func payloadFromText(text string) core.Payload {
	if m, err := util.ExtractJSONObject(text); err == nil && len(m) > 0 {
		return core.Payload(m)
	}
	return core.Payload{"summary": strings.TrimSpace(text)}
}

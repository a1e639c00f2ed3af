package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/diligence/agent"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/testutil"
	"github.com/hupe1980/diligence/model"
	"github.com/hupe1980/diligence/report"
	"github.com/hupe1980/diligence/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var _ Runner = (*agent.Worker)(nil)

var fastRetry = agent.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2}

const acmeSummary = `{"summary": "Acme Ltd is an active company led by Jane Doe. Financial data was unavailable.", "recommendation": "neutral"}`

// scriptedReasoner drives every worker through one action call followed by
// submit_findings and answers the narrative call with summary.
func scriptedReasoner(summary string, summaryErr error) *model.MockModel {
	actionFor := map[string]string{
		"Leadership": "get_company_officers",
		"Financials": "get_filing_history",
	}
	return model.NewFuncModel(func(_ context.Context, req model.Request) (model.Response, error) {
		if len(req.Actions) == 0 {
			if summaryErr != nil {
				return model.Response{}, summaryErr
			}
			return model.TextResponse(summary), nil
		}

		focus := focusOf(req)
		if last := req.Messages[len(req.Messages)-1]; last.Role == model.RoleTool {
			return model.CallResponse("done-"+focus, agent.SubmitFindings, map[string]any{
				"findings": map[string]any{"focus": focus, "observation": last.Text},
			}), nil
		}

		action, ok := actionFor[focus]
		if !ok {
			action = "get_company_profile"
		}
		return model.CallResponse("call-"+focus, action, map[string]any{"company_number": "01234567"}), nil
	})
}

func focusOf(req model.Request) string {
	line := strings.SplitN(req.Messages[0].Text, "\n", 2)[0]
	return strings.TrimPrefix(line, "Focus area: ")
}

func summaryCalls(m *model.MockModel) int {
	n := 0
	for _, r := range m.Requests() {
		if len(r.Actions) == 0 {
			n++
		}
	}
	return n
}

func registryPort(fn func(call core.ActionCall) (any, error)) *testutil.FuncPort {
	return testutil.NewFuncPort(core.CapabilityRegistryLookup, func(_ context.Context, call core.ActionCall) (any, error) {
		return fn(call)
	}, "get_company_officers", "get_filing_history", "get_company_profile")
}

func newCoordinator(t *testing.T, reasoner model.Model, ports ...core.Port) *Coordinator {
	t.Helper()
	c, err := New(reasoner, ports, func(o *Options) { o.Retry = fastRetry })
	require.NoError(t, err)
	return c
}

func acmeRequest(t *testing.T, areas ...string) core.ResearchRequest {
	t.Helper()
	req, err := core.NewResearchRequest("Acme Ltd", "GB", areas, "session-1")
	require.NoError(t, err)
	return req
}

func TestRun_AcmeScenario(t *testing.T) {
	port := registryPort(func(call core.ActionCall) (any, error) {
		if call.Name == "get_filing_history" {
			return nil, testutil.Classified(core.ErrorKindTransient, core.CapabilityRegistryLookup, "registry unreachable")
		}
		return map[string]any{"items": []any{map[string]any{"name": "DOE, Jane", "officer_role": "director"}}}, nil
	})
	reasoner := scriptedReasoner(acmeSummary, nil)

	r, err := newCoordinator(t, reasoner, port).Run(context.Background(), acmeRequest(t, "Leadership", "Financials"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Financials", "Leadership"}, report.FocusAreas(r))
	assert.Equal(t, core.OverallPartial, r.OverallStatus)

	leadership := r.Sections["Leadership"]
	assert.Equal(t, core.StatusOK, leadership.Status)
	assert.Contains(t, leadership.Payload["observation"], "DOE, Jane")

	financials := r.Sections["Financials"]
	assert.Equal(t, core.StatusFailed, financials.Status)
	require.NotNil(t, financials.Error)
	assert.Equal(t, core.ErrorKindTransient, financials.Error.Kind)
	assert.Equal(t, 3, port.Calls("get_filing_history"))

	assert.Equal(t, "Acme Ltd is an active company led by Jane Doe. Financial data was unavailable.", r.NarrativeSummary)
	assert.Equal(t, core.RecommendationNeutral, r.Recommendation)
	assert.InDelta(t, 0.5, r.Scores.Coverage, 1e-9)

	assert.Equal(t, "session-1", r.Provenance.SessionID)
	assert.False(t, r.Provenance.DefaultedAreas)
	require.Len(t, r.Provenance.Tasks, 2)
	assert.Equal(t, agent.RegistryAgent, r.Provenance.Tasks[0].WorkerType)
}

func TestRun_DefaultFocusAreasWithCapabilityGap(t *testing.T) {
	port := registryPort(func(core.ActionCall) (any, error) {
		return map[string]any{"company_number": "01234567"}, nil
	})

	c := newCoordinator(t, scriptedReasoner(acmeSummary, nil), port)
	assert.Equal(t, []string{agent.RegistryAgent}, c.WorkerTypes())

	r, err := c.Run(context.Background(), acmeRequest(t))
	require.NoError(t, err)

	assert.True(t, r.Provenance.DefaultedAreas)
	assert.ElementsMatch(t, DefaultFocusAreas, report.FocusAreas(r))

	profile := r.Sections["Profile"]
	assert.Equal(t, core.StatusFailed, profile.Status)
	assert.Equal(t, core.ErrorKindCapabilityGap, profile.Error.Kind)
	assert.Equal(t, core.StatusOK, r.Sections["Leadership"].Status)
	assert.Equal(t, core.OverallPartial, r.OverallStatus)
}

func TestRun_ExtensionReservedFocusArea(t *testing.T) {
	port := registryPort(func(core.ActionCall) (any, error) { return map[string]any{}, nil })

	r, err := newCoordinator(t, scriptedReasoner(acmeSummary, nil), port).
		Run(context.Background(), acmeRequest(t, "Leadership", "Social Media"))
	require.NoError(t, err)

	social := r.Sections["Social Media"]
	assert.Equal(t, core.StatusFailed, social.Status)
	assert.Equal(t, core.ErrorKindCapabilityGap, social.Error.Kind)
}

func TestRun_AllFailed(t *testing.T) {
	port := registryPort(func(core.ActionCall) (any, error) {
		return nil, testutil.Classified(core.ErrorKindFatal, core.CapabilityRegistryLookup, "authentication failed")
	})
	reasoner := scriptedReasoner(acmeSummary, nil)

	r, err := newCoordinator(t, reasoner, port).Run(context.Background(), acmeRequest(t, "Leadership", "Financials"))
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Equal(t, core.OverallFailed, r.OverallStatus)
	assert.Equal(t, NoDataSummary, r.NarrativeSummary)
	assert.Len(t, r.Sections, 2)
	for _, s := range r.Sections {
		assert.Equal(t, core.ErrorKindFatal, s.Error.Kind)
	}
	assert.Zero(t, summaryCalls(reasoner))
}

func TestRun_AllOK(t *testing.T) {
	port := registryPort(func(core.ActionCall) (any, error) { return map[string]any{"items": []any{}}, nil })
	reasoner := scriptedReasoner(acmeSummary, nil)

	r, err := newCoordinator(t, reasoner, port).Run(context.Background(), acmeRequest(t, "Leadership", "Financials"))
	require.NoError(t, err)

	assert.Equal(t, core.OverallComplete, r.OverallStatus)
	assert.Equal(t, 1, summaryCalls(reasoner))
	assert.Empty(t, r.Anomalies)
}

func TestRun_SummaryFailureDegrades(t *testing.T) {
	port := registryPort(func(core.ActionCall) (any, error) { return map[string]any{"items": []any{}}, nil })
	reasoner := scriptedReasoner("", errors.New("model overloaded"))

	r, err := newCoordinator(t, reasoner, port).Run(context.Background(), acmeRequest(t, "Leadership", "Financials"))
	require.NoError(t, err)

	assert.Equal(t, core.OverallPartial, r.OverallStatus)
	assert.Equal(t, report.PlaceholderSummary, r.NarrativeSummary)
	require.Len(t, r.Anomalies, 1)
	assert.Equal(t, core.ErrorKindSynthesisDegraded, r.Anomalies[0].Kind)
}

func TestRun_Cancelled(t *testing.T) {
	port := registryPort(func(core.ActionCall) (any, error) { return map[string]any{}, nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := newCoordinator(t, scriptedReasoner(acmeSummary, nil), port).Run(ctx, acmeRequest(t, "Leadership", "Financials"))
	require.NoError(t, err)

	assert.Equal(t, core.OverallFailed, r.OverallStatus)
	for _, s := range r.Sections {
		assert.Equal(t, core.ErrorKindCancelled, s.Error.Kind)
	}
	assert.Zero(t, port.Calls("get_company_officers"))
}

func TestRun_CancelledMidRunKeepsCompletedSections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocked := make(chan struct{})
	port := testutil.NewFuncPort(core.CapabilityRegistryLookup, func(ctx context.Context, call core.ActionCall) (any, error) {
		if call.Name == "get_filing_history" {
			close(blocked)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return map[string]any{"items": []any{map[string]any{"name": "DOE, Jane"}}}, nil
	}, "get_company_officers", "get_filing_history", "get_company_profile")

	scripted := scriptedReasoner(acmeSummary, nil)
	leadershipDone := make(chan struct{})
	reasoner := model.NewFuncModel(func(ctx context.Context, req model.Request) (model.Response, error) {
		resp, err := scripted.Generate(ctx, req)
		if len(resp.Calls) > 0 && resp.Calls[0].Name == agent.SubmitFindings && focusOf(req) == "Leadership" {
			close(leadershipDone)
		}
		return resp, err
	})

	go func() {
		<-blocked
		<-leadershipDone
		cancel()
	}()

	r, err := newCoordinator(t, reasoner, port).Run(ctx, acmeRequest(t, "Leadership", "Financials"))
	require.NoError(t, err)

	assert.Equal(t, core.OverallPartial, r.OverallStatus)
	assert.Equal(t, core.StatusOK, r.Sections["Leadership"].Status)
	require.NotNil(t, r.Sections["Financials"].Error)
	assert.Equal(t, core.ErrorKindCancelled, r.Sections["Financials"].Error.Kind)

	assert.Equal(t, "Acme Ltd is an active company led by Jane Doe. Financial data was unavailable.", r.NarrativeSummary)
	for _, a := range r.Anomalies {
		assert.NotEqual(t, core.ErrorKindSynthesisDegraded, a.Kind)
	}
}

func TestNew_NonPositiveLimitsUseDefaults(t *testing.T) {
	c, err := New(scriptedReasoner(acmeSummary, nil), nil, func(o *Options) {
		o.MaxSteps = 0
		o.SummaryTimeout = -time.Second
		o.MaxParallel = 0
	})
	require.NoError(t, err)

	assert.Equal(t, agent.DefaultMaxSteps, c.opts.MaxSteps)
	assert.Equal(t, 60*time.Second, c.opts.SummaryTimeout)
	assert.Equal(t, 1, c.opts.MaxParallel)
}

func TestRun_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	port := registryPort(func(core.ActionCall) (any, error) { return map[string]any{"items": []any{}}, nil })
	c, err := New(scriptedReasoner(acmeSummary, nil), []core.Port{port}, func(o *Options) {
		o.Retry = fastRetry
		o.TracerProvider = tp
	})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), acmeRequest(t, "Leadership", "Financials"))
	require.NoError(t, err)

	byName := make(map[string][]sdktrace.ReadOnlySpan)
	for _, s := range sr.Ended() {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	require.Len(t, byName[tracing.SpanResearchRun], 1)
	assert.Len(t, byName[tracing.SpanResearchTask], 2)
	assert.Len(t, byName[tracing.SpanCapabilityCall], 2)
	assert.Len(t, byName[tracing.SpanNarrative], 1)

	run := byName[tracing.SpanResearchRun][0]
	for _, task := range byName[tracing.SpanResearchTask] {
		assert.Equal(t, run.SpanContext().SpanID(), task.Parent().SpanID())
	}

	attrs := make(map[attribute.Key]string)
	for _, kv := range run.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "Acme Ltd", attrs[tracing.Subject])
	assert.Equal(t, "session-1", attrs[tracing.SessionID])
	assert.Equal(t, r.Provenance.RunID, attrs[tracing.RunID])
	assert.Equal(t, string(core.OverallComplete), attrs[tracing.Status])
}

func TestRun_InvalidRequest(t *testing.T) {
	c := newCoordinator(t, scriptedReasoner(acmeSummary, nil))

	_, err := c.Run(context.Background(), core.ResearchRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
}

func TestDecompose_Ambiguity(t *testing.T) {
	registry, err := agent.NewRegistry(
		agent.Type{Name: "b_web", Priority: 2, Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityRegistryLookup),
			Instruction: agent.NewInstructionFromText("b")},
		agent.Type{Name: "a_web", Priority: 1, Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityProfessionalNetwork),
			Instruction: agent.NewInstructionFromTemplate("research {{.FocusArea}} of {{.Subject}}")},
	)
	require.NoError(t, err)

	ports := []core.Port{
		testutil.NewMockPort(core.CapabilityWebSearch, "web_search"),
		testutil.NewMockPort(core.CapabilityRegistryLookup, "search_companies"),
		testutil.NewMockPort(core.CapabilityProfessionalNetwork, "lookup_profile"),
	}
	c, err := New(model.NewMockModel("m", "p"), ports, func(o *Options) { o.Registry = registry })
	require.NoError(t, err)

	plan, err := c.Decompose(acmeRequest(t, "Market"))
	require.NoError(t, err)

	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "a_web", plan.Tasks[0].WorkerType)
	assert.Equal(t, "research Market of Acme Ltd", plan.Tasks[0].Instructions)
	require.Len(t, plan.Anomalies, 1)
	assert.Equal(t, core.ErrorKindDecompositionAmbiguity, plan.Anomalies[0].Kind)
}

type runnerFunc func(ctx context.Context, task core.AgentTask) core.AgentResult

func (f runnerFunc) Run(ctx context.Context, task core.AgentTask) core.AgentResult { return f(ctx, task) }

func TestDispatch_BoundedAndComplete(t *testing.T) {
	c, err := New(model.NewMockModel("m", "p"), nil, func(o *Options) { o.MaxParallel = 2 })
	require.NoError(t, err)

	var inFlight, peak atomic.Int32
	var mu sync.Mutex
	seen := map[string]bool{}
	c.workers = map[string]Runner{"w": runnerFunc(func(_ context.Context, task core.AgentTask) core.AgentResult {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)

		mu.Lock()
		seen[task.ID] = true
		mu.Unlock()
		return core.AgentResult{Status: core.StatusOK, Payload: core.Payload{"id": task.ID}}
	})}

	tasks := make([]core.AgentTask, 6)
	for i := range tasks {
		tasks[i] = core.AgentTask{ID: string(rune('a' + i)), FocusArea: string(rune('A' + i)), WorkerType: "w"}
	}

	results := c.Dispatch(context.Background(), tasks)

	require.Len(t, results, 6)
	for i, res := range results {
		assert.Equal(t, tasks[i].ID, res.TaskID)
		assert.Equal(t, tasks[i].FocusArea, res.FocusArea)
		assert.Equal(t, core.StatusOK, res.Status)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, seen, 6)
}

func TestDispatch_UnknownWorkerType(t *testing.T) {
	c, err := New(model.NewMockModel("m", "p"), nil)
	require.NoError(t, err)

	results := c.Dispatch(context.Background(), []core.AgentTask{{ID: "t1", FocusArea: "X", WorkerType: "ghost"}})
	require.Len(t, results, 1)
	assert.Equal(t, core.StatusFailed, results[0].Status)
	assert.Equal(t, core.ErrorKindCapabilityGap, results[0].Error.Kind)
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, core.NewCapabilitySet(core.CapabilityRegistryLookup), p.Resolve("  LEADERSHIP "))
	assert.Equal(t, core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityRegistryLookup), p.Resolve("General"))
	assert.Equal(t, core.NewCapabilitySet(core.CapabilityExtensionReserved), p.Resolve("social   media"))
	assert.Equal(t, core.NewCapabilitySet(core.CapabilityWebSearch), p.Resolve("ESG rating"))

	p.Set("ESG rating", core.NewCapabilitySet(core.CapabilityRegistryLookup))
	assert.Equal(t, core.NewCapabilitySet(core.CapabilityRegistryLookup), p.Resolve("esg rating"))

	caps := p.Resolve("leadership")
	caps[core.CapabilityWebSearch] = struct{}{}
	assert.False(t, p.Resolve("leadership").Has(core.CapabilityWebSearch))
}

func TestParseNarrative(t *testing.T) {
	summary, rec := parseNarrative("```json\n{\"summary\": \"Solid.\", \"recommendation\": \"favourable\"}\n```")
	assert.Equal(t, "Solid.", summary)
	assert.Equal(t, core.RecommendationFavourable, rec)

	summary, rec = parseNarrative("Plain prose summary.")
	assert.Equal(t, "Plain prose summary.", summary)
	assert.Equal(t, core.RecommendationNeutral, rec)
}

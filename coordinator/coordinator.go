package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/diligence/agent"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/model"
	"github.com/hupe1980/diligence/report"
	"github.com/hupe1980/diligence/tracing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultFocusAreas are used when a request names none.
var DefaultFocusAreas = []string{"Profile", "Leadership", "Financials"}

// Runner executes one task. *agent.Worker implements it.
type Runner interface {
	Run(ctx context.Context, task core.AgentTask) core.AgentResult
}

// Options configures a Coordinator.
type Options struct {
	// Registry holds the candidate worker types. Types whose capabilities are
	// not all served by the given ports are left out.
	Registry          *agent.Registry
	Policy            *Policy
	DefaultFocusAreas []string
	// MaxParallel bounds concurrently running workers.
	MaxParallel int
	// MaxSteps caps reasoning steps per task. Non-positive values use
	// agent.DefaultMaxSteps.
	MaxSteps int
	Retry    agent.RetryPolicy
	// SummaryTimeout bounds the narrative summary call. The call outlives a
	// cancelled run so that completed sections still get a summary.
	SummaryTimeout time.Duration
	Logger         logging.Logger
	// TracerProvider receives run, task and capability call spans. Nil uses
	// the global provider.
	TracerProvider trace.TracerProvider
}

// Coordinator plans, dispatches and synthesizes research runs. It is safe
// for concurrent use; runs share nothing but the capability ports.
type Coordinator struct {
	reasoner model.Model
	registry *agent.Registry
	workers  map[string]Runner
	opts     Options
	logger   logging.Logger
	tracer   trace.Tracer
}

// New creates a coordinator that equips one worker per usable worker type
// with ports.
func New(reasoner model.Model, ports []core.Port, optFns ...func(o *Options)) (*Coordinator, error) {
	opts := Options{
		Policy:            DefaultPolicy(),
		DefaultFocusAreas: DefaultFocusAreas,
		MaxParallel:       4,
		MaxSteps:          agent.DefaultMaxSteps,
		Retry:             agent.DefaultRetryPolicy(),
		SummaryTimeout:    60 * time.Second,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if reasoner == nil {
		return nil, fmt.Errorf("coordinator: reasoner is required")
	}
	if opts.Registry == nil {
		opts.Registry = agent.NewDefaultRegistry()
	}
	if opts.Policy == nil {
		opts.Policy = DefaultPolicy()
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = agent.DefaultMaxSteps
	}
	if opts.SummaryTimeout <= 0 {
		opts.SummaryTimeout = 60 * time.Second
	}

	logger := logging.ForComponent(opts.Logger, "coordinator")

	available := core.NewCapabilitySet()
	for _, p := range ports {
		if p != nil {
			available[p.Kind()] = struct{}{}
		}
	}

	registry, err := agent.NewRegistry()
	if err != nil {
		return nil, err
	}
	workers := make(map[string]Runner)
	for _, typ := range opts.Registry.Types() {
		if missing := available.Missing(typ.Capabilities); len(missing) > 0 {
			logger.Info("coordinator.worker_type.unavailable", "worker", typ.Name, "missing", missing)
			continue
		}
		w, err := agent.NewWorker(typ, reasoner, ports, func(o *agent.WorkerOptions) {
			o.MaxSteps = opts.MaxSteps
			o.Retry = opts.Retry
			o.Logger = opts.Logger
			o.TracerProvider = opts.TracerProvider
		})
		if err != nil {
			return nil, fmt.Errorf("coordinator: %w", err)
		}
		if err := registry.Register(typ); err != nil {
			return nil, fmt.Errorf("coordinator: %w", err)
		}
		workers[typ.Name] = w
	}

	return &Coordinator{
		reasoner: reasoner,
		registry: registry,
		workers:  workers,
		opts:     opts,
		logger:   logger,
		tracer:   tracing.Tracer(opts.TracerProvider),
	}, nil
}

// WorkerTypes returns the names of the worker types this coordinator can
// dispatch to.
func (c *Coordinator) WorkerTypes() []string {
	types := c.registry.Types()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Name
	}
	return out
}

// Run executes req end to end. A report is always returned for a valid
// request, even when every task failed or ctx was cancelled.
func (c *Coordinator) Run(ctx context.Context, req core.ResearchRequest) (*core.Report, error) {
	start := time.Now()

	plan, err := c.Decompose(req)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, tracing.SpanResearchRun, trace.WithAttributes(
		tracing.Subject.String(req.SubjectName),
		tracing.SessionID.String(req.SessionID),
		tracing.RunID.String(plan.RunID),
	))
	defer span.End()

	log := logging.ForRun(c.logger, req.SessionID, plan.RunID)
	log.Info("coordinator.run.start", "subject", req.SubjectName, "tasks", len(plan.Tasks))

	results := c.Dispatch(ctx, plan.Tasks)

	r := report.Synthesize(report.Input{
		SubjectName: req.SubjectName,
		FocusAreas:  plan.FocusAreas,
		Results:     append(append([]core.AgentResult(nil), plan.Rejected...), results...),
	})
	for _, a := range r.Anomalies {
		log.Warn("coordinator.anomaly."+string(a.Kind), "focus_area", a.FocusArea, "message", a.Message)
	}
	r.Anomalies = append(plan.Anomalies, r.Anomalies...)

	if err := c.narrate(ctx, log, r); err != nil {
		log.Warn("coordinator.anomaly.synthesis_degraded", "error", err.Error())
		report.Degrade(r, err)
		tracing.Fail(span, err)
	}

	r.Provenance = provenance(plan, results, c.reasoner.Info().Name, time.Since(start))

	span.SetAttributes(
		tracing.Status.String(string(r.OverallStatus)),
		tracing.SectionCount.Int(len(r.Sections)),
	)
	if r.OverallStatus == core.OverallFailed {
		span.SetStatus(codes.Error, string(core.OverallFailed))
	}

	logging.LogResearchRun(log, req.SubjectName, len(r.Sections), string(r.OverallStatus), time.Since(start))
	return r, nil
}

// Dispatch runs tasks on the worker pool and waits for every one to reach a
// terminal state. results[i] belongs to tasks[i].
func (c *Coordinator) Dispatch(ctx context.Context, tasks []core.AgentTask) []core.AgentResult {
	results := make([]core.AgentResult, len(tasks))

	var g errgroup.Group
	g.SetLimit(c.opts.MaxParallel)

	for i, task := range tasks {
		g.Go(func() error {
			results[i] = c.runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (c *Coordinator) runTask(ctx context.Context, task core.AgentTask) core.AgentResult {
	w, ok := c.workers[task.WorkerType]
	if !ok {
		return core.FailedResult(task, core.NewCapabilityError(core.ErrorKindCapabilityGap, "", "",
			fmt.Errorf("no worker equipped for type %q", task.WorkerType)))
	}
	res := w.Run(ctx, task)
	res.TaskID = task.ID
	res.FocusArea = task.FocusArea
	return res
}

func provenance(p Plan, results []core.AgentResult, summaryModel string, dur time.Duration) core.Provenance {
	prov := core.Provenance{
		RunID:           p.RunID,
		SessionID:       p.Request.SessionID,
		Jurisdiction:    p.Request.Jurisdiction,
		RequestedAreas:  append([]string(nil), p.FocusAreas...),
		DefaultedAreas:  p.Defaulted,
		SummaryModel:    summaryModel,
		DurationSeconds: dur.Seconds(),
	}
	for _, res := range append(append([]core.AgentResult(nil), p.Rejected...), results...) {
		prov.Tasks = append(prov.Tasks, core.TaskTrace{
			TaskID:     res.TaskID,
			FocusArea:  res.FocusArea,
			WorkerType: res.WorkerType,
			Status:     res.Status,
			Steps:      res.Steps,
			Calls:      res.Calls,
			Duration:   res.Duration,
		})
	}
	return prov
}

// Package diligence provides a high-level facade over the research
// orchestration layer. Most applications interact with this package by:
//  1. Creating a Diligence via New() (or NewFromConfig) with a reasoner and capability ports
//  2. Running research for a subject with RunResearch
//  3. Asking follow-up questions against the stored report with AskFollowup
//
// The facade delegates planning and dispatch to coordinator.Coordinator and
// follow-ups to chat.Responder. Defaults keep reports in memory for the
// lifetime of the process.
package diligence

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/diligence/chat"
	"github.com/hupe1980/diligence/coordinator"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/model"
	"github.com/hupe1980/diligence/session"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a Diligence instance.
type Options struct {
	// Store holds one conversation context per session (defaults to an
	// in-memory store).
	Store core.ContextStore
	// RunTimeout bounds a whole research run. Zero means no timeout.
	RunTimeout  time.Duration
	Coordinator []func(o *coordinator.Options)
	Chat        []func(o *chat.Options)
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
	// TracerProvider receives research spans. Nil uses the global provider.
	TracerProvider trace.TracerProvider
	// ShutdownTracing is called by Close to flush TracerProvider.
	ShutdownTracing func(ctx context.Context) error
}

// Diligence is the facade aggregating coordinator, context store and
// follow-up responder.
type Diligence struct {
	opts      Options
	coord     *coordinator.Coordinator
	responder *chat.Responder
	store     core.ContextStore
	logger    logging.Logger
}

// New creates a Diligence instance. ports are shared by all workers; wrap
// them with capability.Limit to enforce admission limits.
func New(reasoner model.Model, ports []core.Port, optFns ...func(o *Options)) (*Diligence, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.OrNoOp(opts.Logger)
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore(func(o *session.Options) { o.Logger = logger })
	}

	coordFns := append([]func(o *coordinator.Options){func(o *coordinator.Options) {
		o.Logger = logger
		o.TracerProvider = opts.TracerProvider
	}}, opts.Coordinator...)
	coord, err := coordinator.New(reasoner, ports, coordFns...)
	if err != nil {
		return nil, err
	}

	chatFns := append([]func(o *chat.Options){func(o *chat.Options) { o.Logger = logger }}, opts.Chat...)

	return &Diligence{
		opts:      opts,
		coord:     coord,
		responder: chat.NewResponder(opts.Store, reasoner, chatFns...),
		store:     opts.Store,
		logger:    logger,
	}, nil
}

// RunResearch produces a report for req. Unless every section failed, the
// report becomes the session's follow-up context, replacing any earlier one.
// An error is returned only for invalid requests.
func (d *Diligence) RunResearch(ctx context.Context, req core.ResearchRequest) (*core.Report, error) {
	if d.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.RunTimeout)
		defer cancel()
	}

	r, err := d.coord.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	if r.OverallStatus != core.OverallFailed {
		if err := d.store.Put(req.SessionID, r); err != nil {
			return r, fmt.Errorf("diligence: store report: %w", err)
		}
	} else {
		d.logger.Info("diligence.report.not_stored", "session_id", req.SessionID, "status", r.OverallStatus)
	}
	return r, nil
}

// AskFollowup answers question from the session's stored report. It returns
// core.ErrNoReport when no report is stored for sessionID.
func (d *Diligence) AskFollowup(ctx context.Context, sessionID, question string) (string, error) {
	return d.responder.Ask(ctx, sessionID, question)
}

// Report returns the session's stored report.
func (d *Diligence) Report(sessionID string) (*core.Report, bool) {
	conv, ok := d.store.Get(sessionID)
	if !ok || conv.Report == nil {
		return nil, false
	}
	return conv.Report, true
}

// Conversation returns a snapshot of the session's context.
func (d *Diligence) Conversation(sessionID string) (*core.ConversationContext, bool) {
	return d.store.Get(sessionID)
}

// EndSession destroys the session's conversation context.
func (d *Diligence) EndSession(sessionID string) error {
	return d.store.Delete(sessionID)
}

// Close flushes pending spans. The instance must not be used afterwards.
func (d *Diligence) Close(ctx context.Context) error {
	if d.opts.ShutdownTracing == nil {
		return nil
	}
	if err := d.opts.ShutdownTracing(ctx); err != nil {
		return fmt.Errorf("diligence: shutdown tracing: %w", err)
	}
	return nil
}

// Coordinator exposes the underlying coordinator.
func (d *Diligence) Coordinator() *coordinator.Coordinator { return d.coord }

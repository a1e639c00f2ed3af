package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/model"
	"github.com/hupe1980/diligence/report"
)

// RequestNewResearch is the only action offered during a follow-up turn.
const RequestNewResearch = "request_new_research"

// NewResearchAnswer is returned when the question needs data the report
// does not hold.
const NewResearchAnswer = "Answering this needs data that is not in the current report. A new research run is needed."

const defaultInstructions = `You answer follow-up questions about a due-diligence report on {{.Subject}}.
Answer strictly from the report and the previous answers. Do not speculate or invent facts.
If the question cannot be answered from the report, call request_new_research with a short reason.`

// Options configures a Responder.
type Options struct {
	// Instructions is a text/template rendered with {{.Subject}}.
	Instructions string
	// HistoryTurns limits how many prior turns are replayed. Zero replays all.
	HistoryTurns int
	Timeout      time.Duration
	Logger       logging.Logger
}

// Responder implements the follow-up answering protocol.
type Responder struct {
	store    core.ContextStore
	reasoner model.Model
	opts     Options
	logger   logging.Logger
}

// NewResponder creates a Responder over store.
func NewResponder(store core.ContextStore, reasoner model.Model, optFns ...func(o *Options)) *Responder {
	opts := Options{
		Instructions: defaultInstructions,
		HistoryTurns: 10,
		Timeout:      60 * time.Second,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Responder{store: store, reasoner: reasoner, opts: opts, logger: logging.ForComponent(opts.Logger, "chat")}
}

// Ask answers question for sessionID and records the turn. It returns
// core.ErrNoReport when the session holds no report.
func (r *Responder) Ask(ctx context.Context, sessionID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("chat: question is required")
	}

	conv, ok := r.store.Get(sessionID)
	if !ok || conv.Report == nil {
		r.logger.Info("chat.followup.no_report", "session_id", sessionID)
		return "", fmt.Errorf("%w: %s", core.ErrNoReport, sessionID)
	}

	req, err := r.buildRequest(conv, question)
	if err != nil {
		return "", err
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.reasoner.Generate(ctx, req)
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	logging.LogReasonerCall(r.logger, r.reasoner.Info().Name, tokens, time.Since(start), err)
	if err != nil {
		return "", fmt.Errorf("chat: answer follow-up: %w", err)
	}

	answer, fresh := answerFrom(resp)
	if answer == "" {
		return "", core.NewCapabilityError(core.ErrorKindReasoner, core.CapabilityReasoner, "generate",
			errors.New("empty follow-up answer"))
	}

	if err := r.store.AppendTurn(sessionID, question, answer); err != nil {
		return "", fmt.Errorf("chat: record turn: %w", err)
	}

	r.logger.Info("chat.followup.answered", "session_id", sessionID, "needs_new_research", fresh, "turns", len(conv.Turns)+1)
	return answer, nil
}

func (r *Responder) buildRequest(conv *core.ConversationContext, question string) (model.Request, error) {
	instructions, err := util.RenderTemplate(r.opts.Instructions, map[string]any{"Subject": conv.Report.SubjectName})
	if err != nil {
		return model.Request{}, fmt.Errorf("chat: render instructions: %w", err)
	}

	grounding, err := report.Grounding(conv.Report)
	if err != nil {
		return model.Request{}, err
	}

	msgs := []model.Message{
		model.UserMessage("Report:\n" + grounding),
		model.AssistantMessage("I have read the report and will answer from it."),
	}

	turns := conv.Turns
	if n := r.opts.HistoryTurns; n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	for _, t := range turns {
		msgs = append(msgs, model.UserMessage(t.Question), model.AssistantMessage(t.Answer))
	}
	msgs = append(msgs, model.UserMessage(question))

	return model.Request{Instructions: instructions, Messages: msgs, Actions: []core.ActionSpec{requestNewResearchSpec()}}, nil
}

func answerFrom(resp model.Response) (string, bool) {
	for _, c := range resp.Calls {
		if c.Name == RequestNewResearch {
			if reason := util.StringArg(c.Args, "reason"); reason != "" {
				return NewResearchAnswer + " (" + reason + ")", true
			}
			return NewResearchAnswer, true
		}
	}
	return strings.TrimSpace(resp.Text), false
}

func requestNewResearchSpec() core.ActionSpec {
	return core.ActionSpec{
		Name:        RequestNewResearch,
		Description: "Signal that the question needs fresh data and a new research run",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{"type": "string", "description": "What information is missing"},
			},
		},
	}
}

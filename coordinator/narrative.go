package coordinator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/util"
	"github.com/hupe1980/diligence/logging"
	"github.com/hupe1980/diligence/model"
	"github.com/hupe1980/diligence/report"
	"github.com/hupe1980/diligence/tracing"
)

// NoDataSummary is the narrative of a report in which every section failed.
const NoDataSummary = "No section could be researched. See the section errors for details."

const summaryInstructions = `You write the executive summary of a due-diligence report on {{.Subject}}.
Use only the sections provided. Mention failed sections as gaps in coverage.
Reply with a JSON object: {"summary": "<3 to 6 sentences>", "recommendation": "favourable" | "neutral" | "caution"}.`

// narrate fills the narrative summary with a single bounded reasoner call.
// A report without any successful section gets NoDataSummary and no call.
// The call is detached from the run's cancellation and bounded by
// SummaryTimeout alone.
func (c *Coordinator) narrate(ctx context.Context, log logging.Logger, r *core.Report) error {
	if r.OverallStatus == core.OverallFailed {
		r.NarrativeSummary = NoDataSummary
		r.Recommendation = core.RecommendationCaution
		return nil
	}

	instructions, err := util.RenderTemplate(summaryInstructions, map[string]any{"Subject": r.SubjectName})
	if err != nil {
		return err
	}
	grounding, err := report.Grounding(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.SummaryTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, tracing.SpanNarrative)
	defer span.End()

	start := time.Now()
	resp, err := c.reasoner.Generate(ctx, model.Request{
		Instructions: instructions,
		Messages:     []model.Message{model.UserMessage("Sections:\n" + grounding)},
	})
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	logging.LogReasonerCall(log, c.reasoner.Info().Name, tokens, time.Since(start), err)
	if err != nil {
		tracing.Fail(span, err)
		return err
	}

	summary, rec := parseNarrative(resp.Text)
	if summary == "" {
		return core.NewCapabilityError(core.ErrorKindReasoner, core.CapabilityReasoner, "generate",
			errors.New("empty narrative summary"))
	}
	r.NarrativeSummary = summary
	r.Recommendation = rec
	return nil
}

// parseNarrative accepts the JSON reply or plain prose, which is used
// verbatim with a neutral recommendation.
func parseNarrative(text string) (string, core.Recommendation) {
	if obj, err := util.ExtractJSONObject(text); err == nil {
		if summary := util.StringArg(obj, "summary"); summary != "" {
			return summary, report.ParseRecommendation(util.StringArg(obj, "recommendation"))
		}
	}
	return strings.TrimSpace(text), core.RecommendationNeutral
}

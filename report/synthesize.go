package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/diligence/core"
)

// PlaceholderSummary is the narrative used when the summary call fails.
const PlaceholderSummary = "Narrative summary unavailable. See the individual sections for the collected findings."

// Input is everything Synthesize needs.
type Input struct {
	SubjectName string
	// FocusAreas are the requested (or defaulted) focus areas. Every one of
	// them gets a section.
	FocusAreas  []string
	Results     []core.AgentResult
	GeneratedAt time.Time
}

// Synthesize merges results into a report. Payloads are deep-copied, never
// mutated. A later result for the same focus area overwrites the earlier one
// and is recorded as an anomaly; results for focus areas outside the plan are
// dropped. A planned focus area without a result becomes a failed section.
func Synthesize(in Input) *core.Report {
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	r := &core.Report{
		SubjectName: in.SubjectName,
		GeneratedAt: generated,
		Sections:    make(map[string]core.Section, len(in.FocusAreas)),
	}

	planned := make(map[string]bool, len(in.FocusAreas))
	for _, fa := range in.FocusAreas {
		planned[fa] = true
	}

	for _, res := range in.Results {
		if !planned[res.FocusArea] {
			r.Anomalies = append(r.Anomalies, core.Anomaly{
				Kind:      core.ErrorKindUnrequestedSection,
				FocusArea: res.FocusArea,
				Message:   fmt.Sprintf("result %s targets a focus area that was not planned", res.TaskID),
			})
			continue
		}
		if prev, dup := r.Sections[res.FocusArea]; dup {
			r.Anomalies = append(r.Anomalies, core.Anomaly{
				Kind:      core.ErrorKindDuplicateSection,
				FocusArea: res.FocusArea,
				Message:   fmt.Sprintf("result %s overwrote an earlier %s section", res.TaskID, prev.Status),
			})
		}
		r.Sections[res.FocusArea] = sectionFrom(res)
	}

	for _, fa := range in.FocusAreas {
		if _, ok := r.Sections[fa]; !ok {
			r.Sections[fa] = core.Section{
				FocusArea: fa,
				Status:    core.StatusFailed,
				Error:     &core.SectionError{Kind: core.ErrorKindFatal, Message: "no result was produced for this focus area"},
			}
		}
	}

	r.OverallStatus = Status(r.Sections)
	r.Scores = Score(r)
	return r
}

func sectionFrom(res core.AgentResult) core.Section {
	s := core.Section{
		FocusArea: res.FocusArea,
		Status:    res.Status,
		Payload:   clonePayload(res.Payload),
	}
	if res.Error != nil {
		e := *res.Error
		s.Error = &e
	}
	if s.Status == "" {
		s.Status = core.StatusFailed
	}
	return s
}

// Status computes the overall status: complete when every section is ok or
// partial, failed when every section failed (or there are none), partial
// otherwise.
func Status(sections map[string]core.Section) core.OverallStatus {
	succeeded := 0
	for _, s := range sections {
		if s.Status.Succeeded() {
			succeeded++
		}
	}
	switch {
	case len(sections) == 0 || succeeded == 0:
		return core.OverallFailed
	case succeeded == len(sections):
		return core.OverallComplete
	default:
		return core.OverallPartial
	}
}

// Score derives the deterministic coverage indicators of a report.
func Score(r *core.Report) core.Scores {
	sc := core.Scores{Confidence: make(map[string]float64, len(r.Sections))}
	if len(r.Sections) == 0 {
		return sc
	}
	covered := 0
	for fa, s := range r.Sections {
		switch s.Status {
		case core.StatusOK:
			sc.Confidence[fa] = 1
			covered++
		case core.StatusPartial:
			sc.Confidence[fa] = 0.5
			covered++
		default:
			sc.Confidence[fa] = 0
		}
	}
	sc.Coverage = float64(covered) / float64(len(r.Sections))
	return sc
}

// Degrade records a failed narrative call: the placeholder summary is used,
// the recommendation falls back to caution and the status drops one level.
func Degrade(r *core.Report, cause error) {
	msg := "narrative summary failed"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	r.NarrativeSummary = PlaceholderSummary
	r.Recommendation = core.RecommendationCaution
	r.OverallStatus = r.OverallStatus.Downgrade()
	r.Anomalies = append(r.Anomalies, core.Anomaly{Kind: core.ErrorKindSynthesisDegraded, Message: msg})
}

// ParseRecommendation maps free-form reasoner output to a Recommendation.
// Unknown values are neutral.
func ParseRecommendation(s string) core.Recommendation {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "favourable", "favorable", "positive", "good", "amazing":
		return core.RecommendationFavourable
	case "caution", "negative", "dubious", "risky":
		return core.RecommendationCaution
	default:
		return core.RecommendationNeutral
	}
}

func clonePayload(p core.Payload) core.Payload {
	if p == nil {
		return nil
	}
	return core.Payload(deepCopy(map[string]any(p)).(map[string]any))
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case core.Payload:
		return clonePayload(t)
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

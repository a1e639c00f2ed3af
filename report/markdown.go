package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/diligence/core"
)

// Grounding serializes the report's sections (and narrative, when present)
// as indented JSON for use as reasoner context. Map keys are sorted by the
// encoder, so the output is deterministic.
func Grounding(r *core.Report) (string, error) {
	doc := struct {
		Subject        string                  `json:"subject"`
		OverallStatus  core.OverallStatus      `json:"overall_status"`
		Summary        string                  `json:"narrative_summary,omitempty"`
		Recommendation core.Recommendation     `json:"recommendation,omitempty"`
		Sections       map[string]core.Section `json:"sections"`
	}{r.SubjectName, r.OverallStatus, r.NarrativeSummary, r.Recommendation, r.Sections}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: encode grounding: %w", err)
	}
	return string(b), nil
}

// FocusAreas returns the report's section keys in sorted order.
func FocusAreas(r *core.Report) []string {
	out := make([]string, 0, len(r.Sections))
	for fa := range r.Sections {
		out = append(out, fa)
	}
	sort.Strings(out)
	return out
}

// Markdown renders the report as a markdown document.
func Markdown(r *core.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Due diligence: %s\n\n", r.SubjectName)
	fmt.Fprintf(&b, "- **Status:** %s\n", r.OverallStatus)
	if r.Recommendation != "" {
		fmt.Fprintf(&b, "- **Recommendation:** %s\n", r.Recommendation)
	}
	fmt.Fprintf(&b, "- **Coverage:** %.0f%%\n", r.Scores.Coverage*100)
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- **Generated:** %s\n", r.GeneratedAt.Format("2006-01-02 15:04 MST"))
	}

	if r.NarrativeSummary != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", r.NarrativeSummary)
	}

	for _, fa := range FocusAreas(r) {
		s := r.Sections[fa]
		fmt.Fprintf(&b, "\n## %s\n\n_Status: %s_\n\n", fa, s.Status)
		if s.Error != nil {
			fmt.Fprintf(&b, "> %s: %s\n\n", s.Error.Kind, s.Error.Message)
		}
		writeValue(&b, map[string]any(s.Payload), 0)
	}

	if len(r.Anomalies) > 0 {
		b.WriteString("\n## Anomalies\n\n")
		for _, a := range r.Anomalies {
			if a.FocusArea != "" {
				fmt.Fprintf(&b, "- `%s` (%s): %s\n", a.Kind, a.FocusArea, a.Message)
			} else {
				fmt.Fprintf(&b, "- `%s`: %s\n", a.Kind, a.Message)
			}
		}
	}
	return b.String()
}

func writeValue(b *strings.Builder, v any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if isScalar(t[k]) {
				fmt.Fprintf(b, "%s- **%s:** %s\n", indent, label(k), scalar(t[k]))
				continue
			}
			fmt.Fprintf(b, "%s- **%s:**\n", indent, label(k))
			writeValue(b, t[k], depth+1)
		}
	case []any:
		if len(t) == 0 {
			fmt.Fprintf(b, "%s- _none_\n", indent)
		}
		for _, item := range t {
			if isScalar(item) {
				fmt.Fprintf(b, "%s- %s\n", indent, scalar(item))
				continue
			}
			fmt.Fprintf(b, "%s-\n", indent)
			writeValue(b, item, depth+1)
		}
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		writeValue(b, items, depth)
	default:
		fmt.Fprintf(b, "%s- %s\n", indent, scalar(t))
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any, []string:
		return false
	}
	return true
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "_n/a_"
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func label(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}

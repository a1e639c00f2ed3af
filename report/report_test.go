package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hupe1980/diligence/core"
	"github.com/hupe1980/diligence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var generated = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func acmeResults() []core.AgentResult {
	return []core.AgentResult{
		testutil.NewResultBuilder("Leadership").TaskID("t1").OK(core.Payload{
			"officers": []any{map[string]any{"name": "Jane Doe", "role": "director"}},
		}).Build(),
		testutil.NewResultBuilder("Financials").TaskID("t2").Failed(core.ErrorKindTransient, "registry unreachable").Build(),
	}
}

func TestSynthesize_AcmeScenario(t *testing.T) {
	r := Synthesize(Input{
		SubjectName: "Acme Ltd",
		FocusAreas:  []string{"Leadership", "Financials"},
		Results:     acmeResults(),
		GeneratedAt: generated,
	})

	assert.Equal(t, []string{"Financials", "Leadership"}, FocusAreas(r))
	assert.Equal(t, core.OverallPartial, r.OverallStatus)
	assert.Equal(t, core.StatusFailed, r.Sections["Financials"].Status)
	assert.Equal(t, core.ErrorKindTransient, r.Sections["Financials"].Error.Kind)
	assert.NotEmpty(t, r.Sections["Leadership"].Payload["officers"])
	assert.InDelta(t, 0.5, r.Scores.Coverage, 1e-9)
	assert.Equal(t, 1.0, r.Scores.Confidence["Leadership"])
	assert.Empty(t, r.Anomalies)
}

func TestSynthesize_Idempotent(t *testing.T) {
	in := Input{SubjectName: "Acme Ltd", FocusAreas: []string{"Leadership", "Financials"}, Results: acmeResults()}

	first := Synthesize(in)
	second := Synthesize(in)

	if diff := cmp.Diff(first.Sections, second.Sections); diff != "" {
		t.Fatalf("sections differ (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.OverallStatus, second.OverallStatus)

	g1, err := Grounding(first)
	require.NoError(t, err)
	g2, err := Grounding(second)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
}

func TestSynthesize_NeverMutatesPayloads(t *testing.T) {
	results := acmeResults()
	r := Synthesize(Input{SubjectName: "Acme Ltd", FocusAreas: []string{"Leadership", "Financials"}, Results: results})

	officers := r.Sections["Leadership"].Payload["officers"].([]any)
	officers[0].(map[string]any)["name"] = "changed"
	r.Sections["Leadership"].Payload["extra"] = true

	orig := results[0].Payload["officers"].([]any)[0].(map[string]any)
	assert.Equal(t, "Jane Doe", orig["name"])
	assert.NotContains(t, results[0].Payload, "extra")
}

func TestSynthesize_OverallStatus(t *testing.T) {
	ok := func(fa string) core.AgentResult { return testutil.NewResultBuilder(fa).OK(core.Payload{"x": 1}).Build() }
	partial := func(fa string) core.AgentResult {
		return testutil.NewResultBuilder(fa).Partial(core.Payload{"observations": []any{}}).Build()
	}
	failed := func(fa string) core.AgentResult {
		return testutil.NewResultBuilder(fa).Failed(core.ErrorKindFatal, "denied").Build()
	}

	tests := []struct {
		name    string
		results []core.AgentResult
		want    core.OverallStatus
	}{
		{"all ok", []core.AgentResult{ok("A"), ok("B")}, core.OverallComplete},
		{"ok and partial", []core.AgentResult{ok("A"), partial("B")}, core.OverallComplete},
		{"mixed", []core.AgentResult{ok("A"), failed("B")}, core.OverallPartial},
		{"all failed", []core.AgentResult{failed("A"), failed("B")}, core.OverallFailed},
		{"missing result", []core.AgentResult{ok("A")}, core.OverallPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Synthesize(Input{SubjectName: "Acme", FocusAreas: []string{"A", "B"}, Results: tt.results})
			assert.Equal(t, tt.want, r.OverallStatus)
			assert.Len(t, r.Sections, 2)
		})
	}
}

func TestSynthesize_DuplicateAndUnrequested(t *testing.T) {
	r := Synthesize(Input{
		SubjectName: "Acme Ltd",
		FocusAreas:  []string{"Leadership"},
		Results: []core.AgentResult{
			testutil.NewResultBuilder("Leadership").TaskID("t1").Failed(core.ErrorKindTransient, "timeout").Build(),
			testutil.NewResultBuilder("Leadership").TaskID("t2").OK(core.Payload{"officers": []any{}}).Build(),
			testutil.NewResultBuilder("Weather").TaskID("t3").OK(core.Payload{}).Build(),
		},
	})

	assert.Equal(t, core.StatusOK, r.Sections["Leadership"].Status)
	assert.NotContains(t, r.Sections, "Weather")
	require.Len(t, r.Anomalies, 2)
	assert.Equal(t, core.ErrorKindDuplicateSection, r.Anomalies[0].Kind)
	assert.Equal(t, core.ErrorKindUnrequestedSection, r.Anomalies[1].Kind)
	assert.Equal(t, core.OverallComplete, r.OverallStatus)
}

func TestDegrade(t *testing.T) {
	r := Synthesize(Input{SubjectName: "Acme Ltd", FocusAreas: []string{"Leadership", "Financials"}, Results: acmeResults()})
	Degrade(r, errors.New("reasoner timeout"))

	assert.Equal(t, PlaceholderSummary, r.NarrativeSummary)
	assert.Equal(t, core.OverallFailed, r.OverallStatus)
	assert.Equal(t, core.RecommendationCaution, r.Recommendation)
	require.Len(t, r.Anomalies, 1)
	assert.Equal(t, core.ErrorKindSynthesisDegraded, r.Anomalies[0].Kind)
	assert.Contains(t, r.Anomalies[0].Message, "reasoner timeout")
}

func TestParseRecommendation(t *testing.T) {
	assert.Equal(t, core.RecommendationFavourable, ParseRecommendation(" Favorable "))
	assert.Equal(t, core.RecommendationCaution, ParseRecommendation("dubious"))
	assert.Equal(t, core.RecommendationNeutral, ParseRecommendation("maybe"))
}

func TestMarkdown(t *testing.T) {
	r := Synthesize(Input{
		SubjectName: "Acme Ltd",
		FocusAreas:  []string{"Leadership", "Financials"},
		Results:     acmeResults(),
		GeneratedAt: generated,
	})
	r.NarrativeSummary = "Acme is an active private company."
	r.Recommendation = core.RecommendationNeutral

	md := Markdown(r)

	assert.Contains(t, md, "# Due diligence: Acme Ltd")
	assert.Contains(t, md, "- **Status:** partial")
	assert.Contains(t, md, "- **Coverage:** 50%")
	assert.Contains(t, md, "## Summary\n\nAcme is an active private company.")
	assert.Contains(t, md, "- **name:** Jane Doe")
	assert.Contains(t, md, "> transient: registry unreachable")
	assert.Less(t, strings.Index(md, "## Financials"), strings.Index(md, "## Leadership"))
}

package core

import "time"

// OverallStatus summarizes a report across all sections.
type OverallStatus string

const (
	// OverallComplete means every requested focus area has an ok or partial section.
	OverallComplete OverallStatus = "complete"
	// OverallPartial means some, but not all, sections succeeded.
	OverallPartial OverallStatus = "partial"
	// OverallFailed means every task failed.
	OverallFailed OverallStatus = "failed"
)

// Downgrade lowers the status one level. Failed stays failed.
func (s OverallStatus) Downgrade() OverallStatus {
	switch s {
	case OverallComplete:
		return OverallPartial
	default:
		return OverallFailed
	}
}

// Section is the report entry for one focus area.
type Section struct {
	FocusArea string        `json:"focus_area"`
	Status    Status        `json:"status"`
	Payload   Payload       `json:"payload,omitempty"`
	Error     *SectionError `json:"error,omitempty"`
}

// Anomaly records a non-fatal irregularity observed while producing a report.
type Anomaly struct {
	Kind      ErrorKind `json:"kind"`
	FocusArea string    `json:"focus_area,omitempty"`
	Message   string    `json:"message"`
}

// TaskTrace is the provenance of one dispatched task.
type TaskTrace struct {
	TaskID     string        `json:"task_id"`
	FocusArea  string        `json:"focus_area"`
	WorkerType string        `json:"worker_type,omitempty"`
	Status     Status        `json:"status"`
	Steps      int           `json:"steps"`
	Calls      int           `json:"calls"`
	Duration   time.Duration `json:"duration"`
}

// Provenance describes how a report was produced.
type Provenance struct {
	RunID           string      `json:"run_id"`
	SessionID       string      `json:"session_id"`
	Jurisdiction    string      `json:"jurisdiction,omitempty"`
	RequestedAreas  []string    `json:"requested_areas"`
	DefaultedAreas  bool        `json:"defaulted_areas"`
	Tasks           []TaskTrace `json:"tasks"`
	SummaryModel    string      `json:"summary_model,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
}

// Scores are deterministic data-coverage indicators derived from sections.
type Scores struct {
	// Coverage is the fraction of sections with status ok or partial.
	Coverage float64 `json:"coverage"`
	// Confidence per focus area: ok=1, partial=0.5, failed=0.
	Confidence map[string]float64 `json:"confidence"`
}

// Recommendation is the coarse verdict attached to the narrative.
type Recommendation string

const (
	RecommendationFavourable Recommendation = "favourable"
	RecommendationNeutral    Recommendation = "neutral"
	RecommendationCaution    Recommendation = "caution"
)

// Report is the synthesized research outcome. Owned by the coordinator until
// handed to the context store, after which it is immutable and shared by
// reference.
type Report struct {
	SubjectName      string             `json:"subject_name"`
	GeneratedAt      time.Time          `json:"generated_at"`
	Sections         map[string]Section `json:"sections"`
	OverallStatus    OverallStatus      `json:"overall_status"`
	NarrativeSummary string             `json:"narrative_summary"`
	Recommendation   Recommendation     `json:"recommendation,omitempty"`
	Scores           Scores             `json:"scores"`
	Anomalies        []Anomaly          `json:"anomalies,omitempty"`
	Provenance       Provenance         `json:"provenance"`
}

// Section returns the section for a focus area.
func (r *Report) Section(focusArea string) (Section, bool) {
	s, ok := r.Sections[focusArea]
	return s, ok
}

package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// RunStatus is the terminal (or in-flight) state of an analysis run.
type RunStatus string

const (
	RunStatusSubmitting          RunStatus = "submitting"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// Terminal reports whether the status is final. A run is immutable once it
// reaches a terminal status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusCompletedWithErrors, RunStatusFailed:
		return true
	}
	return false
}

// AnalysisMode selects the analysis stage: the cheap many-company screening
// pass or the expensive curated deep dive.
type AnalysisMode string

const (
	ModeScreening AnalysisMode = "screening"
	ModeDeep      AnalysisMode = "deep"
)

// RiskFlag is the screening-stage risk classification.
type RiskFlag string

const (
	RiskLow    RiskFlag = "Low"
	RiskMedium RiskFlag = "Medium"
	RiskHigh   RiskFlag = "High"
)

// ScreeningResult is the per-company output of a screening run. Held in
// session state only; persisted solely inside its run's payload.
type ScreeningResult struct {
	Orgnr          string   `json:"orgnr"`
	CompanyName    string   `json:"company_name"`
	ScreeningScore *float64 `json:"screening_score"` // 0-100, nil when the backend could not score
	RiskFlag       RiskFlag `json:"risk_flag,omitempty"`
	BriefSummary   string   `json:"brief_summary,omitempty"`
}

// Grade is a letter grade A-D.
type Grade string

// MetricResult is a single extracted metric in a deep-dive result.
type MetricResult struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Source     string  `json:"source,omitempty"`
	Year       int     `json:"year,omitempty"`
	Confidence float64 `json:"confidence"`
}

// SectionResult is one narrative section of a deep-dive result.
type SectionResult struct {
	SectionType string         `json:"section_type"`
	Content     string         `json:"content"` // markdown
	Metrics     []MetricResult `json:"metrics"`
	Confidence  float64        `json:"confidence"`
}

// CompanyResult is the structured deep-dive output for one company.
// Sections and Metrics may be empty but are never nil in a well-formed
// result; callers still treat absence defensively.
type CompanyResult struct {
	Orgnr            string          `json:"orgnr"`
	CompanyName      string          `json:"company_name"`
	Summary          string          `json:"summary"`
	Recommendation   string          `json:"recommendation"`
	Confidence       float64         `json:"confidence"` // 0-5
	RiskScore        float64         `json:"risk_score"` // 0-5
	FinancialGrade   Grade           `json:"financial_grade"`
	CommercialGrade  Grade           `json:"commercial_grade"`
	OperationalGrade Grade           `json:"operational_grade"`
	NextSteps        []string        `json:"next_steps"`
	Sections         []SectionResult `json:"sections"`
	Metrics          []MetricResult  `json:"metrics"`
	Error            string          `json:"error,omitempty"` // per-company server-side failure
}

// AnalysisPayload is the mode-tagged result payload of a run. Exactly one of
// Results (screening) or Companies (deep) is populated; the shape is fixed by
// Mode, never inferred from field presence.
type AnalysisPayload struct {
	Mode      AnalysisMode      `json:"mode"`
	Results   []ScreeningResult `json:"results,omitempty"`
	Companies []CompanyResult   `json:"companies,omitempty"`
}

// Validate enforces the payload union invariant.
func (p AnalysisPayload) Validate() error {
	switch p.Mode {
	case ModeScreening:
		if p.Companies != nil {
			return eris.New("payload: screening run carries deep-dive companies")
		}
	case ModeDeep:
		if p.Results != nil {
			return eris.New("payload: deep run carries screening results")
		}
	default:
		return eris.Errorf("payload: unknown analysis mode %q", p.Mode)
	}
	return nil
}

// AnalysisRun is one persisted invocation of the analysis backend. Immutable
// once Status is terminal; retrieving a past run replays the exact persisted
// payload bytes.
type AnalysisRun struct {
	ID           string          `json:"id"`
	Status       RunStatus       `json:"status"`
	ModelVersion string          `json:"model_version"`
	Mode         AnalysisMode    `json:"analysis_mode"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Payload      AnalysisPayload `json:"analysis"`

	// RawPayload holds the payload bytes exactly as persisted. Set by the
	// store on read; empty on runs that have not round-tripped yet.
	RawPayload json.RawMessage `json:"-"`
}

package analysis

import (
	"context"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// Backend is the external analysis service. Screening takes the full
// selected set; deep dive takes only the curated subset picked from
// screening results.
type Backend interface {
	Screen(ctx context.Context, req Request) ([]model.ScreeningResult, error)
	DeepDive(ctx context.Context, req Request) ([]model.CompanyResult, error)

	// GenerateReport produces a single-company report. A populated Report
	// means the backend computed (or returned its cached copy of) the full
	// body. Accepted without a Report is the legacy status-only
	// acknowledgement; the caller polls FetchReport until the body appears.
	GenerateReport(ctx context.Context, orgnr string, force bool) (*GenerateResult, error)
	FetchReport(ctx context.Context, orgnr string) (*model.AIReport, error)

	ModelVersion() string
}

// Request is one analysis submission.
type Request struct {
	Mode               model.AnalysisMode
	Companies          []model.Company
	Instructions       string
	TemplateID         string
	TemplateName       string
	CustomInstructions string
	InitiatedBy        string
	Filters            map[string]any
}

// GenerateResult is the outcome of a report generation call.
type GenerateResult struct {
	Report   *model.AIReport
	Accepted bool
}

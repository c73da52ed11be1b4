package model

// FitStatus is the enrichment verdict on whether a company fits the
// acquisition thesis.
type FitStatus string

const (
	FitYes   FitStatus = "YES"
	FitNo    FitStatus = "NO"
	FitMaybe FitStatus = "MAYBE"
)

// Company is a single company in the screening universe, identified by its
// organization number. The source-of-record fields are read-only to this
// system; only the enrichment fields are ever updated, and only by the
// enrichment collaborator.
//
// Margins and growth rates are fractions (0.2 = 20%). Values arriving as
// percentages must be converted with FromPercent at the boundary.
type Company struct {
	Orgnr         string  `json:"orgnr"`
	Name          string  `json:"name"`
	Revenue       float64 `json:"revenue"`
	EBITMargin    float64 `json:"ebit_margin"`
	RevenueGrowth float64 `json:"revenue_growth"`
	Leverage      float64 `json:"leverage,omitempty"` // net debt / EBITDA
	Employees     int     `json:"employees"`
	Segment       string  `json:"segment,omitempty"`
	Homepage      string  `json:"homepage,omitempty"`

	// Enrichment fields, updated externally.
	BusinessSummary string    `json:"business_summary,omitempty"`
	FitScore        *float64  `json:"fit_score,omitempty"` // 0-10
	FitStatus       FitStatus `json:"fit_status,omitempty"`
}

// FromPercent converts a percentage value to the canonical fraction
// representation (20 → 0.2).
func FromPercent(v float64) float64 {
	return v / 100
}

// ToPercent converts a canonical fraction to a percentage (0.2 → 20).
func ToPercent(v float64) float64 {
	return v * 100
}

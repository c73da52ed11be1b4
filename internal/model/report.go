package model

import "time"

// UpliftLever is one operational-improvement opportunity in an AI report.
type UpliftLever struct {
	Name     string `json:"name"`
	Impact   string `json:"impact"`
	Effort   string `json:"effort"`
	Category string `json:"category,omitempty"`
}

// ImpactRange is the estimated overall EBITDA uplift range.
type ImpactRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	Unit string  `json:"unit,omitempty"`
}

// AIReport is the single-company deep-dive cache entry, keyed by orgnr and
// independent of any AnalysisRun. Absence means "not yet generated", not an
// error. Overwritten in place on forced regeneration; last writer wins.
type AIReport struct {
	Orgnr         string        `json:"orgnr"`
	BusinessModel string        `json:"business_model"`
	Weaknesses    []string      `json:"weaknesses"`
	Levers        []UpliftLever `json:"levers"`
	ImpactRange   ImpactRange   `json:"impact_range"`
	OutreachAngle string        `json:"outreach_angle"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

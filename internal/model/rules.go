package model

import (
	"github.com/rotisserie/eris"
)

// Band maps a tier label to its inclusive lower bound. A value qualifies for
// the first band (evaluated highest tier first) whose Min it meets or
// exceeds; values below every band fall through to the category's floor tier.
type Band struct {
	Tier string  `json:"tier" yaml:"tier"`
	Min  float64 `json:"min" yaml:"min"`
}

// BusinessRules is a versioned rule configuration driving classification.
// Profitability and Growth bands are fractions; RevenueSize is in the
// reporting currency; EmployeeSize and the employee dimension of company
// size are headcounts.
//
// Bands within a category must be strictly descending by Min — a
// configuration violating that ordering is rejected by Validate and must
// never reach the classification engine.
type BusinessRules struct {
	Version       int    `json:"version" yaml:"version"`
	Profitability []Band `json:"profitability" yaml:"profitability"`
	Growth        []Band `json:"growth" yaml:"growth"`
	RevenueSize   []Band `json:"revenue_size" yaml:"revenue_size"`
	EmployeeSize  []Band `json:"employee_size" yaml:"employee_size"`
}

// DefaultBusinessRules returns the initial rule configuration.
func DefaultBusinessRules() BusinessRules {
	return BusinessRules{
		Version: 1,
		Profitability: []Band{
			{Tier: string(ProfitHigh), Min: 0.15},
			{Tier: string(ProfitGood), Min: 0.05},
			{Tier: string(ProfitLow), Min: 0.0},
		},
		Growth: []Band{
			{Tier: string(GrowthHigh), Min: 0.20},
			{Tier: string(GrowthGood), Min: 0.10},
			{Tier: string(GrowthLow), Min: 0.0},
		},
		RevenueSize: []Band{
			{Tier: string(SizeLarge), Min: 500_000_000},
			{Tier: string(SizeMedium), Min: 100_000_000},
			{Tier: string(SizeSmall), Min: 10_000_000},
		},
		EmployeeSize: []Band{
			{Tier: string(SizeLarge), Min: 250},
			{Tier: string(SizeMedium), Min: 50},
			{Tier: string(SizeSmall), Min: 10},
		},
	}
}

// Validate checks that every category has at least one band and that bands
// are strictly descending by Min.
func (r BusinessRules) Validate() error {
	categories := map[string][]Band{
		"profitability": r.Profitability,
		"growth":        r.Growth,
		"revenue_size":  r.RevenueSize,
		"employee_size": r.EmployeeSize,
	}
	for name, bands := range categories {
		if len(bands) == 0 {
			return eris.Errorf("rules: category %s has no bands", name)
		}
		for i := 1; i < len(bands); i++ {
			if bands[i].Min >= bands[i-1].Min {
				return eris.Errorf("rules: category %s: band %q (min %v) must be below %q (min %v)",
					name, bands[i].Tier, bands[i].Min, bands[i-1].Tier, bands[i-1].Min)
			}
		}
	}
	return nil
}

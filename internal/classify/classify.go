// Package classify maps a company's financial attributes to categorical
// tiers under a BusinessRules configuration. All functions are pure and
// total: no input, including negative, zero, NaN, or missing values, causes
// an error or panic.
package classify

import (
	"math"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// Classify evaluates every rule category for a company and returns exactly
// one tier per category. Bands are evaluated highest tier first; a company
// qualifies for the first band whose inclusive Min it meets or exceeds and
// falls through to the category floor otherwise.
//
// Company size is two-dimensional: the revenue and employee dimensions are
// classified independently and the larger (more conservative) of the two
// wins when they disagree.
func Classify(c model.Company, rules model.BusinessRules) model.ClassificationResult {
	revenueSize := sizeTier(classifyBand(c.Revenue, rules.RevenueSize))
	employeeSize := sizeTier(classifyBand(float64(c.Employees), rules.EmployeeSize))

	return model.ClassificationResult{
		Profitability: profitabilityTier(classifyBand(c.EBITMargin, rules.Profitability)),
		Growth:        growthTier(classifyBand(c.RevenueGrowth, rules.Growth)),
		CompanySize:   model.LargerSize(revenueSize, employeeSize),
		EmployeeSize:  employeeSize,
	}
}

// classifyBand returns the label of the first band the value qualifies for,
// or "" when the value falls below every band (or is not a number). Band
// mins are inclusive: value == Min qualifies.
func classifyBand(value float64, bands []model.Band) string {
	if math.IsNaN(value) {
		return ""
	}
	for _, b := range bands {
		if value >= b.Min {
			return b.Tier
		}
	}
	return ""
}

func profitabilityTier(label string) model.ProfitabilityTier {
	switch model.ProfitabilityTier(label) {
	case model.ProfitHigh, model.ProfitGood, model.ProfitLow:
		return model.ProfitabilityTier(label)
	}
	return model.ProfitLoss
}

func growthTier(label string) model.GrowthTier {
	switch model.GrowthTier(label) {
	case model.GrowthHigh, model.GrowthGood, model.GrowthLow:
		return model.GrowthTier(label)
	}
	return model.GrowthDecline
}

func sizeTier(label string) model.SizeTier {
	switch model.SizeTier(label) {
	case model.SizeLarge, model.SizeMedium, model.SizeSmall:
		return model.SizeTier(label)
	}
	return model.SizeMicro
}

package model

// ProfitabilityTier buckets a company by EBIT margin.
type ProfitabilityTier string

const (
	ProfitHigh ProfitabilityTier = "high"
	ProfitGood ProfitabilityTier = "good"
	ProfitLow  ProfitabilityTier = "low"
	ProfitLoss ProfitabilityTier = "loss"
)

// GrowthTier buckets a company by revenue growth.
type GrowthTier string

const (
	GrowthHigh    GrowthTier = "high"
	GrowthGood    GrowthTier = "good"
	GrowthLow     GrowthTier = "low"
	GrowthDecline GrowthTier = "decline"
)

// SizeTier buckets a company by revenue, employee count, or both.
// Ordered largest to smallest.
type SizeTier string

const (
	SizeLarge  SizeTier = "large"
	SizeMedium SizeTier = "medium"
	SizeSmall  SizeTier = "small"
	SizeMicro  SizeTier = "micro"
)

// sizeOrder maps size tiers to their rank, larger tiers first.
var sizeOrder = map[SizeTier]int{
	SizeLarge:  0,
	SizeMedium: 1,
	SizeSmall:  2,
	SizeMicro:  3,
}

// LargerSize returns the larger (more conservative) of two size tiers.
func LargerSize(a, b SizeTier) SizeTier {
	ra, ok := sizeOrder[a]
	if !ok {
		return b
	}
	rb, ok := sizeOrder[b]
	if !ok {
		return a
	}
	if ra <= rb {
		return a
	}
	return b
}

// ClassificationResult holds one tier per category for a Company under a
// given rule set. Derived, never stored.
type ClassificationResult struct {
	Profitability ProfitabilityTier `json:"profitability"`
	Growth        GrowthTier        `json:"growth"`
	CompanySize   SizeTier          `json:"company_size"`
	EmployeeSize  SizeTier          `json:"employee_size"`
}

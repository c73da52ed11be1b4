// Package tier ranks companies into fixed-size ordinal tiers by a weighted
// composite of normalized financial metrics.
package tier

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// weightSumTolerance absorbs float error when checking the 100% sum.
const weightSumTolerance = 1e-6

// Weights are the composite-score weights, expressed as percentages that
// must sum to exactly 100. The caller normalizes; RankTiers rejects any
// other sum to keep scoring reproducible.
type Weights struct {
	Revenue    float64 `json:"revenue" yaml:"revenue"`
	EBITMargin float64 `json:"ebit_margin" yaml:"ebit_margin"`
	Growth     float64 `json:"growth" yaml:"growth"`
	Leverage   float64 `json:"leverage" yaml:"leverage"`
	Headcount  float64 `json:"headcount" yaml:"headcount"`
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Revenue + w.EBITMargin + w.Growth + w.Leverage + w.Headcount
}

// Validate rejects weight vectors that do not sum to 100.
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-100) > weightSumTolerance {
		return eris.Errorf("tier: weights must sum to 100, got %v", w.Sum())
	}
	return nil
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{Revenue: 30, EBITMargin: 25, Growth: 25, Leverage: 10, Headcount: 10}
}

// Sizes bounds each tier. Zero or negative capacities yield empty tiers.
type Sizes struct {
	Tier1 int `json:"tier1" yaml:"tier1"`
	Tier2 int `json:"tier2" yaml:"tier2"`
	Tier3 int `json:"tier3" yaml:"tier3"`
}

// DefaultSizes returns the standard 100/100/100 tier capacities.
func DefaultSizes() Sizes {
	return Sizes{Tier1: 100, Tier2: 100, Tier3: 100}
}

// Ranking is the partitioned output of RankTiers. Tiers are non-overlapping
// and ordered by descending composite score; the tail beyond Tier3 lands in
// Unsegmented.
type Ranking struct {
	Tier1       []model.Company `json:"tier1"`
	Tier2       []model.Company `json:"tier2"`
	Tier3       []model.Company `json:"tier3"`
	Unsegmented []model.Company `json:"unsegmented,omitempty"`

	// Scores maps orgnr to the composite score used for ordering.
	Scores map[string]float64 `json:"scores"`
}

// RankTiers computes a weighted composite score per company over min-max
// normalized metrics, sorts descending, and partitions into fixed-size
// tiers. Ties are broken by orgnr ascending so identical inputs always
// produce identical membership and ordering. A tier with fewer candidates
// than capacity is simply smaller.
func RankTiers(companies []model.Company, weights Weights, sizes Sizes) (*Ranking, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	scores := compositeScores(companies, weights)

	ranked := make([]model.Company, len(companies))
	copy(ranked, companies)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].Orgnr], scores[ranked[j].Orgnr]
		if si != sj {
			return si > sj
		}
		return ranked[i].Orgnr < ranked[j].Orgnr
	})

	r := &Ranking{Scores: scores}
	r.Tier1, ranked = take(ranked, sizes.Tier1)
	r.Tier2, ranked = take(ranked, sizes.Tier2)
	r.Tier3, ranked = take(ranked, sizes.Tier3)
	r.Unsegmented = ranked
	return r, nil
}

// take splits off up to n leading companies.
func take(companies []model.Company, n int) ([]model.Company, []model.Company) {
	if n < 0 {
		n = 0
	}
	if n > len(companies) {
		n = len(companies)
	}
	return companies[:n], companies[n:]
}

// metric extracts one scoring dimension from a company. invert marks
// dimensions where lower raw values are better (leverage).
type metric struct {
	weight float64
	invert bool
	value  func(model.Company) float64
}

func compositeScores(companies []model.Company, w Weights) map[string]float64 {
	metrics := []metric{
		{weight: w.Revenue, value: func(c model.Company) float64 { return c.Revenue }},
		{weight: w.EBITMargin, value: func(c model.Company) float64 { return c.EBITMargin }},
		{weight: w.Growth, value: func(c model.Company) float64 { return c.RevenueGrowth }},
		{weight: w.Leverage, invert: true, value: func(c model.Company) float64 { return c.Leverage }},
		{weight: w.Headcount, value: func(c model.Company) float64 { return float64(c.Employees) }},
	}

	scores := make(map[string]float64, len(companies))
	if len(companies) == 0 {
		return scores
	}

	for _, m := range metrics {
		lo, hi := bounds(companies, m.value)
		span := hi - lo
		for _, c := range companies {
			var norm float64
			if span == 0 || math.IsNaN(span) || math.IsInf(span, 0) {
				// Degenerate range: every company gets the midpoint so the
				// dimension cannot reorder anything.
				norm = 0.5
			} else {
				v := m.value(c)
				if math.IsNaN(v) {
					v = lo
				}
				norm = (v - lo) / span
			}
			if m.invert {
				norm = 1 - norm
			}
			scores[c.Orgnr] += (m.weight / 100) * norm
		}
	}
	return scores
}

func bounds(companies []model.Company, value func(model.Company) float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range companies {
		v := value(c)
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if math.IsInf(lo, 1) {
		// No finite values at all.
		return 0, 0
	}
	return lo, hi
}

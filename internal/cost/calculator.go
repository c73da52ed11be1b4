package cost

// Rates holds per-operation and per-model pricing configuration.
type Rates struct {
	// Flat per-company unit rates for the two analysis stages (USD).
	ScreeningPerCompany float64 `yaml:"screening_per_company" mapstructure:"screening_per_company"`
	DeepPerCompany      float64 `yaml:"deep_per_company" mapstructure:"deep_per_company"`

	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes costs for analysis usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Screening returns the estimated cost of screening n companies.
func (c *Calculator) Screening(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.rates.ScreeningPerCompany
}

// Deep returns the estimated cost of deep-diving n companies.
func (c *Calculator) Deep(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.rates.DeepPerCompany
}

// Claude computes the cost for a Claude API call from token counts.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		ScreeningPerCompany: 0.05,
		DeepPerCompany:      1.50,
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
	}
}

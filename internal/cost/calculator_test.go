package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculator_UnitRates(t *testing.T) {
	calc := NewCalculator(Rates{ScreeningPerCompany: 0.05, DeepPerCompany: 1.50})

	assert.InDelta(t, 0.15, calc.Screening(3), 1e-9)
	assert.InDelta(t, 3.0, calc.Deep(2), 1e-9)
	assert.Equal(t, 0.0, calc.Screening(0))
	assert.Equal(t, 0.0, calc.Deep(-1))
}

func TestCalculator_Claude(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	// 1M input + 1M output on sonnet: 3.00 + 15.00.
	got := calc.Claude("claude-sonnet-4-5-20250929", 1_000_000, 1_000_000, 0, 0)
	assert.InDelta(t, 18.0, got, 1e-9)
}

func TestCalculator_Claude_CacheMultipliers(t *testing.T) {
	calc := NewCalculator(DefaultRates())

	// 1M cache write on haiku: 0.80 * 1.25 = 1.00.
	got := calc.Claude("claude-haiku-4-5-20251001", 0, 0, 1_000_000, 0)
	assert.InDelta(t, 1.0, got, 1e-9)

	// 1M cache read on haiku: 0.80 * 0.1 = 0.08.
	got = calc.Claude("claude-haiku-4-5-20251001", 0, 0, 0, 1_000_000)
	assert.InDelta(t, 0.08, got, 1e-9)
}

func TestCalculator_Claude_UnknownModel(t *testing.T) {
	calc := NewCalculator(DefaultRates())
	assert.Equal(t, 0.0, calc.Claude("gpt-nonsense", 1000, 1000, 0, 0))
}

package points

import (
	"math"

	"github.com/Cosmin-Turcin/progress-tracker-sub000/internal/domain/shared"
)

const (
	MinBase = 0
	MaxBase = 500

	// MaxMultiplier keeps base * multiplier * intensity well inside int range.
	MaxMultiplier = 10.0
)

// roundingEpsilon absorbs float error so that exact halves such as
// 10 * 1.5 * 1.5 = 22.5 round up even when the product lands at 22.499999.
const roundingEpsilon = 1e-9

// Calculate turns a category base, a user multiplier and an intensity into
// integer points: round-half-up(base * multiplier * intensity).
func Calculate(base int, multiplier float64, intensity Intensity) (int, error) {
	if base < MinBase {
		return 0, shared.NewDomainError("points", "Calculate", shared.ErrNegativeValue, "base cannot be negative")
	}
	if !validMultiplier(multiplier) {
		return 0, shared.NewDomainError("points", "Calculate", shared.ErrValueOutOfRange, multiplierRangeMessage)
	}
	factor, ok := intensity.Factor()
	if !ok {
		return 0, shared.NewDomainError("points", "Calculate", shared.ErrInvalidInput, "unknown intensity "+string(intensity))
	}
	if base == 0 {
		return 0, nil
	}

	raw := float64(base) * multiplier * factor
	result := int(math.Floor(raw + 0.5 + roundingEpsilon))
	if result < 0 {
		return 0, nil
	}
	return result, nil
}

const multiplierRangeMessage = "multiplier must be greater than zero and at most 10"

func validMultiplier(m float64) bool {
	return m > 0 && m <= MaxMultiplier && !math.IsNaN(m)
}

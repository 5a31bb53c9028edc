package gasprice

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/thep2p/go-web3-core/internal/web3err"
)

// MinSamples is the smallest sample count Percentile accepts.
const MinSamples = 7

// Percentile returns a simplified weighted percentile of values.
//
// The values are sorted and the rank len*percentile/100 is taken as a 1-based
// position; a fractional position interpolates linearly between its neighbours.
// Fewer than MinSamples values fail with an insufficient data error.
func Percentile(values []decimal.Decimal, percentile float64) (decimal.Decimal, error) {
	if len(values) < MinSamples {
		return decimal.Zero, web3err.InsufficientData("expected a sequence of at least %d values, got %d", MinSamples, len(values))
	}
	if percentile < 0 || percentile > 100 {
		return decimal.Zero, web3err.Value("percentile must be within [0, 100], got %v", percentile)
	}

	sorted := make([]decimal.Decimal, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	rank := decimal.NewFromInt(int64(len(sorted))).
		Mul(decimal.NewFromFloat(percentile)).
		Div(decimal.NewFromInt(100))
	index := rank
	if rank.IsPositive() {
		index = rank.Sub(decimal.NewFromInt(1))
	}
	// ranks below the first position resolve to the smallest value
	if index.IsNegative() {
		index = decimal.Zero
	}

	lowerIdx := index.Floor()
	fractional := index.Sub(lowerIdx)
	i := int(lowerIdx.IntPart())
	if fractional.IsZero() || i+1 >= len(sorted) {
		return sorted[i], nil
	}

	lower, higher := sorted[i], sorted[i+1]
	return lower.Add(fractional.Mul(higher.Sub(lower))), nil
}

// Package valuation turns a set of adjusted comparables into a value range
// with a confidence score: IQR outlier rejection over adjusted prices, then
// one of three aggregation strategies. The output is always a range, never a
// point estimate.
package valuation

import (
	"math"
	"sort"

	"github.com/nadlantech/appraisal-engine/internal/domain/adjustment"
)

// minItemsForOutlierRemoval is the smallest sample on which a Tukey fence is
// statistically meaningful. Below it, all items pass through unchanged.
const minItemsForOutlierRemoval = 4

// tukeyFenceFactor is the classic 1.5·IQR fence multiplier.
const tukeyFenceFactor = 1.5

// RemovePriceOutliers drops comparables whose adjusted price lies outside the
// Tukey fence [Q1 − 1.5·IQR, Q3 + 1.5·IQR] and returns the survivors together
// with the rejected comparable ids. Fewer than 4 items are returned unchanged.
func RemovePriceOutliers(items []adjustment.ComparableWithAdjustment) (kept []adjustment.ComparableWithAdjustment, rejectedIDs []string) {
	if len(items) < minItemsForOutlierRemoval {
		return items, nil
	}

	prices := make([]float64, len(items))
	for i, it := range items {
		prices[i] = it.Adjustments.AdjustedPrice
	}
	sort.Float64s(prices)

	q1 := percentile(prices, 0.25)
	q3 := percentile(prices, 0.75)
	iqr := q3 - q1
	lo := q1 - tukeyFenceFactor*iqr
	hi := q3 + tukeyFenceFactor*iqr

	kept = make([]adjustment.ComparableWithAdjustment, 0, len(items))
	for _, it := range items {
		p := it.Adjustments.AdjustedPrice
		if p < lo || p > hi {
			rejectedIDs = append(rejectedIDs, it.Comparable.ID)
			continue
		}
		kept = append(kept, it)
	}
	return kept, rejectedIDs
}

// percentile computes the p-th quantile of sorted values with linear
// interpolation between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

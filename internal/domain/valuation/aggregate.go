package valuation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nadlantech/appraisal-engine/internal/domain/adjustment"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
)

// Strategy selects how surviving adjusted prices collapse into a mid value.
type Strategy string

const (
	// StrategyMean is the arithmetic mean of adjusted prices.
	StrategyMean Strategy = "mean"

	// StrategyWeightedMean weights each price by the comparable's composite
	// weight, falling back to the plain mean when total weight is zero.
	StrategyWeightedMean Strategy = "weighted-mean"

	// StrategyHedonic blends the weighted mean with the median, damping the
	// influence of any single expensive comparable.
	StrategyHedonic Strategy = "hedonic"
)

// IsValid reports whether s is one of the three supported strategies.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyMean, StrategyWeightedMean, StrategyHedonic:
		return true
	}
	return false
}

// Hedonic blend shares and spread/confidence constants.
const (
	hedonicWeightedShare = 0.55
	hedonicMedianShare   = 0.45

	spreadBase = 0.04
	spreadMin  = 0.05
	spreadMax  = 0.18

	confidenceCountHorizon  = 12.0
	confidenceRecencyMonths = 36.0
	confidenceDispersionRef = 0.2

	confidenceCountShare      = 0.25
	confidenceSimilarityShare = 0.35
	confidenceRecencyShare    = 0.2
	confidenceDispersionShare = 0.2
)

// Range is the low/mid/high value band, invariant low ≤ mid ≤ high.
type Range struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// Output is the result of one aggregation run. Rationale is non-empty and
// exists for traceability, never for computation.
type Output struct {
	Strategy    Strategy `json:"strategy"`
	Range       Range    `json:"range"`
	Confidence  int      `json:"confidence"`
	UsedCount   int      `json:"usedCount"`
	RejectedIDs []string `json:"rejectedIds,omitempty"`
	Rationale   []string `json:"rationale"`
}

// ValuateFromComparables filters outliers, collapses the survivors into a mid
// value per strategy, widens it into a range by observed dispersion, and
// scores confidence from sample size, similarity, recency, and dispersion.
// Zero survivors yield a zero range with confidence 0 and an explanatory
// rationale — a valid terminal state, not an error. asOf anchors recency.
func ValuateFromComparables(items []adjustment.ComparableWithAdjustment, strategy Strategy, asOf time.Time) (Output, error) {
	if !strategy.IsValid() {
		return Output{}, errors.New(errors.ErrCodeValuationStrategyUnknown,
			fmt.Sprintf("unknown valuation strategy %q", strategy))
	}

	kept, rejected := RemovePriceOutliers(items)
	if len(kept) == 0 {
		return Output{
			Strategy:    strategy,
			Confidence:  0,
			RejectedIDs: rejected,
			Rationale:   []string{"no comparables survived outlier filtering; valuation is indeterminate"},
		}, nil
	}

	prices := make([]float64, len(kept))
	for i, it := range kept {
		prices[i] = it.Adjustments.AdjustedPrice
	}

	mid := midPerStrategy(kept, prices, strategy)
	dispersion := stddev(prices) / math.Max(1, mid)
	spread := clampRange(spreadBase+dispersion, spreadMin, spreadMax)

	out := Output{
		Strategy: strategy,
		Range: Range{
			Low:  math.Round(mid * (1 - spread)),
			Mid:  math.Round(mid),
			High: math.Round(mid * (1 + spread)),
		},
		Confidence:  confidence(kept, dispersion, asOf),
		UsedCount:   len(kept),
		RejectedIDs: rejected,
	}
	out.Rationale = []string{
		fmt.Sprintf("%d comparables used after outlier filtering (%d rejected)", len(kept), len(rejected)),
		fmt.Sprintf("price dispersion %.1f%% of mid value", dispersion*100),
		fmt.Sprintf("aggregation strategy: %s", strategy),
		"the result is a value range, not a point estimate",
	}
	return out, nil
}

func midPerStrategy(kept []adjustment.ComparableWithAdjustment, prices []float64, strategy Strategy) float64 {
	switch strategy {
	case StrategyWeightedMean:
		return weightedMean(kept, prices)
	case StrategyHedonic:
		sorted := append([]float64(nil), prices...)
		sort.Float64s(sorted)
		return hedonicWeightedShare*weightedMean(kept, prices) + hedonicMedianShare*percentile(sorted, 0.5)
	default:
		return mean(prices)
	}
}

func weightedMean(kept []adjustment.ComparableWithAdjustment, prices []float64) float64 {
	var sum, totalWeight float64
	for i, it := range kept {
		sum += prices[i] * it.Weight
		totalWeight += it.Weight
	}
	if totalWeight == 0 {
		return mean(prices)
	}
	return sum / totalWeight
}

// confidence scores 0-100 from four factors: sample size saturating at 12
// comparables, mean similarity, mean sale recency over a 36-month horizon,
// and price dispersion relative to a 20% reference.
func confidence(kept []adjustment.ComparableWithAdjustment, dispersion float64, asOf time.Time) int {
	var simSum, ageSum float64
	for _, it := range kept {
		simSum += it.Similarity
		months := adjustment.MonthsSince(time.Time(it.Comparable.SaleDate), asOf)
		ageSum += clamp01(months / confidenceRecencyMonths)
	}
	n := float64(len(kept))

	nFactor := clamp01(n / confidenceCountHorizon)
	simFactor := simSum / n
	recencyFactor := 1 - ageSum/n
	dispersionFactor := 1 - clamp01(dispersion/confidenceDispersionRef)

	score := nFactor*confidenceCountShare +
		simFactor*confidenceSimilarityShare +
		recencyFactor*confidenceRecencyShare +
		dispersionFactor*confidenceDispersionShare
	return int(math.Round(100 * score))
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func stddev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := mean(vs)
	var sq float64
	for _, v := range vs {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(vs)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadlantech/appraisal-engine/internal/domain/adjustment"
	"github.com/nadlantech/appraisal-engine/internal/domain/comparables"
	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

var asOf = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func adjusted(id string, price, similarity, weight float64, soldMonthsAgo int) adjustment.ComparableWithAdjustment {
	cwa := adjustment.ComparableWithAdjustment{
		Result: comparables.Result{
			Comparable: property.FeaturePayload{
				Attributes: property.Attributes{ID: id, Type: property.TypeApartment},
				SaleDate:   common.Timestamp(asOf.AddDate(0, -soldMonthsAgo, 0)),
				SalePrice:  price,
			},
			Similarity: similarity,
		},
		Weight: weight,
	}
	cwa.Adjustments.AdjustedPrice = price
	return cwa
}

func TestRemovePriceOutliers_BelowThresholdUnchanged(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 1000000, 0.9, 1, 3),
		adjusted("b", 9000000, 0.9, 1, 3),
	}
	kept, rejected := RemovePriceOutliers(items)
	assert.Equal(t, items, kept)
	assert.Empty(t, rejected)
}

func TestRemovePriceOutliers_TukeyFence(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2500000, 0.9, 1, 3),
		adjusted("b", 2520000, 0.9, 1, 3),
		adjusted("c", 2480000, 0.9, 1, 3),
		adjusted("hi", 9000000, 0.9, 1, 3),
		adjusted("lo", 200000, 0.9, 1, 3),
	}
	kept, rejected := RemovePriceOutliers(items)
	require.Len(t, kept, 3)
	assert.ElementsMatch(t, []string{"hi", "lo"}, rejected)
	for _, it := range kept {
		assert.NotContains(t, rejected, it.Comparable.ID)
	}
}

func TestRemovePriceOutliers_Idempotent(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2500000, 0.9, 1, 3),
		adjusted("b", 2600000, 0.9, 1, 3),
		adjusted("c", 2400000, 0.9, 1, 3),
		adjusted("d", 2550000, 0.9, 1, 3),
		adjusted("out", 8000000, 0.9, 1, 3),
	}
	kept, rejected := RemovePriceOutliers(items)
	require.NotEmpty(t, rejected)

	again, rejectedAgain := RemovePriceOutliers(kept)
	assert.Equal(t, kept, again)
	assert.Empty(t, rejectedAgain)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	assert.InDelta(t, 17.5, percentile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 25.0, percentile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 32.5, percentile(sorted, 0.75), 1e-9)
	assert.Equal(t, 10.0, percentile(sorted, 0))
	assert.Equal(t, 40.0, percentile(sorted, 1))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.5))
	assert.Equal(t, 0.0, percentile(nil, 0.5))
}

func TestValuateFromComparables_UnknownStrategy(t *testing.T) {
	_, err := ValuateFromComparables(nil, Strategy("bogus"), asOf)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValuationStrategyUnknown))
}

func TestValuateFromComparables_ZeroSurvivors(t *testing.T) {
	out, err := ValuateFromComparables(nil, StrategyMean, asOf)
	require.NoError(t, err)
	assert.Equal(t, Range{}, out.Range)
	assert.Equal(t, 0, out.Confidence)
	assert.Equal(t, 0, out.UsedCount)
	require.NotEmpty(t, out.Rationale)
	assert.Contains(t, out.Rationale[0], "no comparables")
}

func TestValuateFromComparables_MeanStrategy(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2400000, 0.9, 0.8, 3),
		adjusted("b", 2500000, 0.9, 0.8, 3),
		adjusted("c", 2600000, 0.9, 0.8, 3),
	}
	out, err := ValuateFromComparables(items, StrategyMean, asOf)
	require.NoError(t, err)

	assert.Equal(t, 2500000.0, out.Range.Mid)
	assert.LessOrEqual(t, out.Range.Low, out.Range.Mid)
	assert.LessOrEqual(t, out.Range.Mid, out.Range.High)
	assert.Equal(t, 3, out.UsedCount)
	assert.Empty(t, out.RejectedIDs)
}

func TestValuateFromComparables_WeightedMean(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2000000, 0.9, 1.0, 3),
		adjusted("b", 3000000, 0.9, 0.5, 3),
	}
	out, err := ValuateFromComparables(items, StrategyWeightedMean, asOf)
	require.NoError(t, err)

	want := (2000000*1.0 + 3000000*0.5) / 1.5
	assert.InDelta(t, want, out.Range.Mid, 1.0)
}

func TestValuateFromComparables_WeightedMeanZeroWeightFallsBack(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2000000, 0.9, 0, 3),
		adjusted("b", 3000000, 0.9, 0, 3),
	}
	out, err := ValuateFromComparables(items, StrategyWeightedMean, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2500000.0, out.Range.Mid)
}

func TestValuateFromComparables_HedonicBlend(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2000000, 0.9, 1, 3),
		adjusted("b", 2500000, 0.9, 1, 3),
		adjusted("c", 4000000, 0.9, 1, 3),
	}
	out, err := ValuateFromComparables(items, StrategyHedonic, asOf)
	require.NoError(t, err)

	weightedMean := (2000000.0 + 2500000.0 + 4000000.0) / 3
	want := 0.55*weightedMean + 0.45*2500000
	assert.InDelta(t, want, out.Range.Mid, 1.0)
}

func TestValuateFromComparables_FiveComparablesTwoOutliers(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2500000, 0.9, 1, 3),
		adjusted("b", 2510000, 0.9, 1, 3),
		adjusted("c", 2490000, 0.9, 1, 3),
		adjusted("hi", 9500000, 0.9, 1, 3),
		adjusted("lo", 150000, 0.9, 1, 3),
	}
	out, err := ValuateFromComparables(items, StrategyMean, asOf)
	require.NoError(t, err)

	assert.Equal(t, 3, out.UsedCount)
	assert.ElementsMatch(t, []string{"hi", "lo"}, out.RejectedIDs)
	assert.InDelta(t, 2500000, out.Range.Mid, 10000)
}

func TestValuateFromComparables_ConfidenceBounds(t *testing.T) {
	t.Run("strong sample scores high", func(t *testing.T) {
		var items []adjustment.ComparableWithAdjustment
		for i := 0; i < 12; i++ {
			items = append(items, adjusted(string(rune('a'+i)), 2500000, 1.0, 1, 0))
		}
		out, err := ValuateFromComparables(items, StrategyMean, asOf)
		require.NoError(t, err)
		assert.Equal(t, 100, out.Confidence)
	})

	t.Run("weak sample scores low but positive", func(t *testing.T) {
		items := []adjustment.ComparableWithAdjustment{
			adjusted("a", 2500000, 0.1, 0.2, 60),
		}
		out, err := ValuateFromComparables(items, StrategyMean, asOf)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.Confidence, 0)
		assert.LessOrEqual(t, out.Confidence, 100)
		assert.Less(t, out.Confidence, 55)
	})
}

func TestValuateFromComparables_Rationale(t *testing.T) {
	items := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2400000, 0.9, 1, 3),
		adjusted("b", 2600000, 0.9, 1, 3),
	}
	out, err := ValuateFromComparables(items, StrategyHedonic, asOf)
	require.NoError(t, err)

	require.Len(t, out.Rationale, 4)
	assert.Contains(t, out.Rationale[0], "2 comparables used")
	assert.Contains(t, out.Rationale[1], "dispersion")
	assert.Contains(t, out.Rationale[2], "hedonic")
	assert.Contains(t, out.Rationale[3], "range, not a point estimate")
}

func TestValuateFromComparables_SpreadBounds(t *testing.T) {
	// Identical prices: dispersion 0, spread floors at 5%.
	tight := []adjustment.ComparableWithAdjustment{
		adjusted("a", 2000000, 0.9, 1, 3),
		adjusted("b", 2000000, 0.9, 1, 3),
	}
	out, err := ValuateFromComparables(tight, StrategyMean, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1900000.0, out.Range.Low)
	assert.Equal(t, 2100000.0, out.Range.High)

	// Wildly dispersed prices: spread caps at 18%.
	wide := []adjustment.ComparableWithAdjustment{
		adjusted("a", 1000000, 0.9, 1, 3),
		adjusted("b", 4000000, 0.9, 1, 3),
	}
	out, err = ValuateFromComparables(wide, StrategyMean, asOf)
	require.NoError(t, err)
	assert.InDelta(t, out.Range.Mid*0.82, out.Range.Low, 1.0)
	assert.InDelta(t, out.Range.Mid*1.18, out.Range.High, 1.0)
}

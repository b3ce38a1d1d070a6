package comparables

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

func testSubject() property.Subject {
	return property.Subject{Attributes: property.Attributes{
		ID: "subj-1", Address: "הרצל 5", City: "Tel Aviv",
		Lat: 32.0853, Lng: 34.7818,
		Type: property.TypeApartment, SizeSqm: 90, Floor: 3,
		BuildingAge: 25, Condition: 7, HasElevator: true,
		NoiseLevel: 4, Renovation: property.Renovated, PlanningPotential: 3,
	}}
}

func candidateFrom(s property.Subject, id string, mutate func(*property.Attributes)) property.FeaturePayload {
	attrs := s.Attributes
	attrs.ID = id
	if mutate != nil {
		mutate(&attrs)
	}
	return property.FeaturePayload{
		Attributes: attrs,
		SaleDate:   common.Timestamp(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		SalePrice:  2500000,
	}
}

func TestSearchRequest_Validate(t *testing.T) {
	t.Run("negative topK", func(t *testing.T) {
		req := SearchRequest{Subject: testSubject(), TopK: -1}
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeSearchRequestInvalid))
	})

	t.Run("non-finite coordinates", func(t *testing.T) {
		s := testSubject()
		s.Lat = math.NaN()
		err := SearchRequest{Subject: s}.Validate()
		assert.True(t, errors.IsCode(err, errors.ErrCodeSubjectInvalid))
	})

	t.Run("non-positive size", func(t *testing.T) {
		s := testSubject()
		s.SizeSqm = 0
		err := SearchRequest{Subject: s}.Validate()
		assert.True(t, errors.IsCode(err, errors.ErrCodeSubjectInvalid))
	})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, SearchRequest{Subject: testSubject()}.Validate())
	})
}

func TestSearchTopComparables_RanksByDescendingSimilarity(t *testing.T) {
	s := testSubject()
	twin := candidateFrom(s, "twin", nil)
	worse := candidateFrom(s, "worse", func(a *property.Attributes) {
		a.SizeSqm = 220
		a.Condition = 2
		a.Renovation = property.RenovationNeeded
	})

	results, err := SearchTopComparables(SearchRequest{Subject: s, Pool: []property.FeaturePayload{worse, twin}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "twin", results[0].Comparable.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestSearchTopComparables_TypeMismatchPenalty(t *testing.T) {
	s := testSubject()
	sameType := candidateFrom(s, "same-type", nil)
	otherType := candidateFrom(s, "other-type", func(a *property.Attributes) {
		a.Type = property.TypeApartment // keep the vector identical...
	})
	otherType.Type = property.TypeApartment

	// An identical twin except for property type: the feature vectors
	// differ only in the embedding component, but the flat 0.12 penalty
	// must still dominate the ranking.
	penalized := candidateFrom(s, "penalized", func(a *property.Attributes) {
		a.Type = property.TypeDuplex
	})

	results, err := SearchTopComparables(SearchRequest{
		Subject: s,
		Pool:    []property.FeaturePayload{penalized, sameType, otherType},
	})
	require.NoError(t, err)
	assert.Equal(t, "same-type", results[0].Comparable.ID)

	var pen Result
	for _, r := range results {
		if r.Comparable.ID == "penalized" {
			pen = r
		}
	}
	assert.Less(t, pen.Similarity, results[0].Similarity-0.1)
}

func TestSearchTopComparables_SimilarityNeverNegative(t *testing.T) {
	s := testSubject()
	// A zero-norm candidate vector gives similarity 0; the type penalty
	// must not push it below zero.
	degenerate := candidateFrom(s, "degenerate", func(a *property.Attributes) {
		*a = property.Attributes{ID: "degenerate", Type: property.TypeCommercial,
			Condition: 1, NoiseLevel: 1}
	})

	results, err := SearchTopComparables(SearchRequest{Subject: s, Pool: []property.FeaturePayload{degenerate}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Similarity)
}

func TestSearchTopComparables_TopKTruncation(t *testing.T) {
	s := testSubject()
	pool := make([]property.FeaturePayload, 0, 30)
	for i := 0; i < 30; i++ {
		pool = append(pool, candidateFrom(s, fmt.Sprintf("c-%d", i), nil))
	}

	defaulted, err := SearchTopComparables(SearchRequest{Subject: s, Pool: pool})
	require.NoError(t, err)
	assert.Len(t, defaulted, DefaultTopK)

	limited, err := SearchTopComparables(SearchRequest{Subject: s, Pool: pool, TopK: 5})
	require.NoError(t, err)
	assert.Len(t, limited, 5)
}

func TestSearchTopComparables_EmptyPoolIsNotAnError(t *testing.T) {
	results, err := SearchTopComparables(SearchRequest{Subject: testSubject()})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestExplanations(t *testing.T) {
	s := testSubject()
	twin := candidateFrom(s, "twin", nil)

	results, err := SearchTopComparables(SearchRequest{Subject: s, Pool: []property.FeaturePayload{twin}})
	require.NoError(t, err)
	lines := results[0].Explanations

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "very close")
	assert.Contains(t, joined, "same property type")
	assert.Contains(t, joined, "similar built area")
	assert.Contains(t, joined, "similar floor level")
	assert.Contains(t, joined, "condition profile is close")
	// The similarity percentage is always the last line.
	assert.Equal(t, "similarity: 100.0%", lines[len(lines)-1])
}

func TestExplanations_FarAndDifferent(t *testing.T) {
	s := testSubject()
	far := candidateFrom(s, "far", func(a *property.Attributes) {
		a.Lat = 32.7940 // Haifa, well beyond the 700 m flag
		a.Lng = 34.9896
		a.Type = property.TypeHouse
		a.SizeSqm = 200
		a.Floor = 0
		a.Condition = 2
	})

	results, err := SearchTopComparables(SearchRequest{Subject: s, Pool: []property.FeaturePayload{far}})
	require.NoError(t, err)
	lines := results[0].Explanations

	joined := strings.Join(lines, "\n")
	assert.NotContains(t, joined, "very close")
	assert.NotContains(t, joined, "same property type")
	assert.NotContains(t, joined, "similar built area")
	assert.NotContains(t, joined, "similar floor level")
	assert.NotContains(t, joined, "condition profile is close")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "similarity: "))
}

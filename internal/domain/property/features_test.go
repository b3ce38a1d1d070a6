package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeEmbedding(t *testing.T) {
	tests := []struct {
		typ  Type
		want float64
	}{
		{TypeHouse, 1.0},
		{TypePenthouse, 0.9},
		{TypeGardenApartment, 0.75},
		{TypeDuplex, 0.65},
		{TypeApartment, 0.2},
		{TypeCommercial, 0.0},
		{Type("castle"), 0.2}, // unknown falls back to apartment
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.Embedding(), "type %s", tt.typ)
	}
	assert.True(t, TypeDuplex.IsValid())
	assert.False(t, Type("castle").IsValid())
}

func TestRenovationEmbedding(t *testing.T) {
	assert.Equal(t, 1.0, RenovationNew.Embedding())
	assert.Equal(t, 0.8, Renovated.Embedding())
	assert.Equal(t, 0.45, RenovationPartial.Embedding())
	assert.Equal(t, 0.1, RenovationNeeded.Embedding())
	assert.Equal(t, 0.45, RenovationState("gutted").Embedding())
}

func TestFeatureVector_OrderAndValues(t *testing.T) {
	tf := 8
	a := Attributes{
		Lat: 32.0853, Lng: 34.7818,
		Type:              TypePenthouse,
		SizeSqm:           160, // (160-20)/280 = 0.5
		Floor:             10,
		TotalFloors:       &tf,
		BuildingAge:       30, // 30/120 = 0.25
		Condition:         10, // → 1
		HasElevator:       true,
		HasParking:        false,
		HasBalcony:        true,
		HasView:           false,
		NoiseLevel:        1, // → 0
		Renovation:        Renovated,
		PlanningPotential: 5, // → 0.5
	}

	v := FeatureVector(a)
	require.Len(t, v, FeatureVectorLen)

	assert.Equal(t, 32.0853, v[0])
	assert.Equal(t, 34.7818, v[1])
	assert.Equal(t, 0.9, v[2])
	assert.InDelta(t, 0.5, v[3], 1e-9)
	assert.InDelta(t, 11.0/61.0, v[4], 1e-9)
	assert.InDelta(t, 0.25, v[5], 1e-9)
	assert.Equal(t, 1.0, v[6])
	assert.Equal(t, 1.0, v[7])
	assert.Equal(t, 0.0, v[8])
	assert.Equal(t, 1.0, v[9])
	assert.Equal(t, 0.0, v[10])
	assert.Equal(t, 0.0, v[11])
	assert.Equal(t, 0.8, v[12])
	assert.InDelta(t, 0.5, v[13], 1e-9)
}

func TestFeatureVector_ClampsOutOfRange(t *testing.T) {
	a := Attributes{
		SizeSqm:           1000, // above 300
		Floor:             -5,   // below -1
		BuildingAge:       500,  // above 120
		Condition:         0,    // below 1
		NoiseLevel:        40,   // above 10
		PlanningPotential: -2,   // below 0
	}
	v := FeatureVector(a)
	assert.Equal(t, 1.0, v[3])
	assert.Equal(t, 0.0, v[4])
	assert.Equal(t, 1.0, v[5])
	assert.Equal(t, 0.0, v[6])
	assert.Equal(t, 1.0, v[11])
	assert.Equal(t, 0.0, v[13])
}

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	v := []float64{1, 2, 3}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-12)
}

func TestCosineSimilarity_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0, 0}, []float64{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2, 3}, []float64{0, 0, 0}))
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
}

func TestCosineSimilarity_IdenticalProperties(t *testing.T) {
	a := Attributes{Lat: 32.1, Lng: 34.8, Type: TypeApartment, SizeSqm: 90,
		Floor: 3, BuildingAge: 20, Condition: 7, HasElevator: true,
		NoiseLevel: 4, Renovation: Renovated, PlanningPotential: 3}
	assert.InDelta(t, 1.0, CosineSimilarity(FeatureVector(a), FeatureVector(a)), 1e-12)
}

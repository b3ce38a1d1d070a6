package property

import "math"

// FeatureVectorLen is the fixed length of the numeric feature vector.
const FeatureVectorLen = 14

// normalize maps v from [min,max] to [0,1], clamping out-of-range inputs
// rather than failing: the transaction feeds occasionally carry a 70th floor
// or a 200-year building age and ranking must stay total.
func normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	n := (v - min) / (max - min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// FeatureVector converts a property's attributes into the fixed-order
// 14-component vector used by cosine-similarity ranking:
//
//	0  lat (raw)
//	1  lng (raw)
//	2  property-type embedding
//	3  size, [20,300] m² → [0,1]
//	4  floor, [-1,60] → [0,1]
//	5  building age, [0,120] years → [0,1]
//	6  condition, [1,10] → [0,1]
//	7  elevator (0/1)
//	8  parking (0/1)
//	9  balcony (0/1)
//	10 view (0/1)
//	11 noise, [1,10] → [0,1]
//	12 renovation-state embedding
//	13 planning potential, [0,10] → [0,1]
func FeatureVector(a Attributes) []float64 {
	return []float64{
		a.Lat,
		a.Lng,
		a.Type.Embedding(),
		normalize(a.SizeSqm, 20, 300),
		normalize(float64(a.Floor), -1, 60),
		normalize(float64(a.BuildingAge), 0, 120),
		normalize(a.Condition, 1, 10),
		boolFeature(a.HasElevator),
		boolFeature(a.HasParking),
		boolFeature(a.HasBalcony),
		boolFeature(a.HasView),
		normalize(a.NoiseLevel, 1, 10),
		a.Renovation.Embedding(),
		normalize(a.PlanningPotential, 0, 10),
	}
}

// CosineSimilarity returns the cosine of the angle between a and b. With
// the non-negative components produced by FeatureVector the result lies in
// [0,1]. A length mismatch or a zero-norm vector means "no meaningful
// signal" and returns 0 — it is not an error.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

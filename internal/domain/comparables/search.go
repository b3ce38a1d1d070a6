// Package comparables ranks a pool of observed sale transactions against a
// subject property. Ranking uses a symmetric feature-space similarity and is
// deliberately decoupled from the asymmetric, economically-interpretable
// adjustment model in internal/domain/adjustment: the two share data
// contracts, never constants, so the ranking heuristic can evolve without
// touching the legally-auditable adjustment formulas.
package comparables

import (
	"fmt"
	"math"
	"sort"

	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
)

const (
	// DefaultTopK is the number of comparables returned when the request
	// does not specify one.
	DefaultTopK = 25

	// typeMismatchPenalty is subtracted from the similarity score when the
	// candidate's property type differs from the subject's. Similarity is
	// floored at 0, never negative.
	typeMismatchPenalty = 0.12

	veryCloseMeters       = 700.0
	similarAreaSqm        = 15.0
	similarFloorLevels    = 2
	similarConditionDelta = 2.0
)

// SearchRequest is the boundary input for a comparable search. Pool entries
// are assumed to have passed the data-fetch collaborator's sanity filtering
// (positive price and area); the engine validates the subject and topK only.
type SearchRequest struct {
	Subject property.Subject         `json:"subject"`
	Pool    []property.FeaturePayload `json:"comparablesPool"`

	// TopK limits the result count. Zero means DefaultTopK; negative is a
	// schema violation.
	TopK int `json:"topK,omitempty"`
}

// Validate rejects malformed requests before any computation: a malformed
// request is a caller bug and aborts the whole operation.
func (r SearchRequest) Validate() error {
	if r.TopK < 0 {
		return errors.New(errors.ErrCodeSearchRequestInvalid,
			fmt.Sprintf("topK must be non-negative, got %d", r.TopK))
	}
	s := r.Subject
	if math.IsNaN(s.Lat) || math.IsInf(s.Lat, 0) || math.IsNaN(s.Lng) || math.IsInf(s.Lng, 0) {
		return errors.New(errors.ErrCodeSubjectInvalid, "subject coordinates must be finite")
	}
	if s.SizeSqm <= 0 {
		return errors.New(errors.ErrCodeSubjectInvalid,
			fmt.Sprintf("subject size must be positive, got %.1f m²", s.SizeSqm))
	}
	return nil
}

// Result pairs a candidate transaction with its similarity score, geodesic
// distance to the subject, and a human-readable explanation list.
type Result struct {
	Comparable     property.FeaturePayload `json:"comparable"`
	Similarity     float64                 `json:"similarity"`
	DistanceMeters float64                 `json:"distanceMeters"`
	Explanations   []string                `json:"explanations"`
}

// SearchTopComparables ranks every pool candidate against the subject by
// cosine similarity of their feature vectors, penalizing property-type
// mismatches, and returns the topK best matches in descending similarity
// order. An empty pool yields an empty result — degenerate data, not an
// error.
func SearchTopComparables(req SearchRequest) ([]Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	topK := req.TopK
	if topK == 0 {
		topK = DefaultTopK
	}

	subjectVec := property.FeatureVector(req.Subject.Attributes)

	results := make([]Result, 0, len(req.Pool))
	for _, cand := range req.Pool {
		dist := property.HaversineMeters(req.Subject.Lat, req.Subject.Lng, cand.Lat, cand.Lng)
		sim := property.CosineSimilarity(subjectVec, property.FeatureVector(cand.Attributes))
		if cand.Type != req.Subject.Type {
			sim -= typeMismatchPenalty
			if sim < 0 {
				sim = 0
			}
		}
		results = append(results, Result{
			Comparable:     cand,
			Similarity:     sim,
			DistanceMeters: dist,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}

	for i := range results {
		results[i].Explanations = explain(req.Subject, results[i])
	}
	return results, nil
}

// explain builds the per-result explanation list shown to the appraiser.
// The numeric similarity percentage is always the last line.
func explain(subject property.Subject, r Result) []string {
	var lines []string
	c := r.Comparable

	if r.DistanceMeters <= veryCloseMeters {
		lines = append(lines, fmt.Sprintf("very close (%.0f m)", r.DistanceMeters))
	}
	if c.Type == subject.Type {
		lines = append(lines, "same property type")
	}
	if math.Abs(c.SizeSqm-subject.SizeSqm) <= similarAreaSqm {
		lines = append(lines, fmt.Sprintf("similar built area (Δ%.0f m²)", math.Abs(c.SizeSqm-subject.SizeSqm)))
	}
	if abs(c.Floor-subject.Floor) <= similarFloorLevels {
		lines = append(lines, "similar floor level")
	}
	if math.Abs(c.Condition-subject.Condition) <= similarConditionDelta {
		lines = append(lines, "condition profile is close")
	}
	lines = append(lines, fmt.Sprintf("similarity: %.1f%%", r.Similarity*100))
	return lines
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

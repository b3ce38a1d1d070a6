// Package adjustment implements the per-comparable price adjustment model:
// ten named percentage corrections derived from subject-minus-comparable
// deltas, combined into a clamped total and an adjusted price, plus the
// composite recency/distance/similarity weight used by weighted aggregation.
//
// Every formula here is shown to appraisers and may be cited in legal
// proceedings. Constants are fixed per-factor rates and clamp bands; they are
// independent of the ranking heuristic in internal/domain/comparables.
package adjustment

import (
	"math"
	"time"

	"github.com/nadlantech/appraisal-engine/internal/domain/comparables"
	"github.com/nadlantech/appraisal-engine/internal/domain/property"
)

// Per-factor rates and clamp bands. Rates are percentage points of price per
// unit of delta; clamps bound each factor's contribution.
const (
	floorRate  = 0.004
	floorClamp = 0.08

	elevatorRate = 0.025

	renovationRate  = 0.07
	renovationClamp = 0.12

	balconyRate = 0.012
	parkingRate = 0.03
	viewRate    = 0.018

	noiseRate  = 0.01
	noiseClamp = 0.05

	sizeRate  = 0.02
	sizeClamp = 0.08

	planningRate  = 0.01
	planningClamp = 0.06

	// totalClamp bounds the sum of all ten factors. A comparable needing
	// more than a quarter of its price in corrections is not comparable.
	totalClamp = 0.25
)

// Composite weight blend and clamps.
const (
	weightSimilarityShare = 0.65
	weightDistanceShare   = 0.2
	weightRecencyShare    = 0.15

	weightDistanceHorizonMeters = 4000.0
	weightRecencyHorizonMonths  = 36.0

	weightFloor = 0.01
	weightCeil  = 1.0
)

// Breakdown holds the ten named percentage adjustments and the values derived
// from them. AdjustedPrice is always recomputed from TotalPercent, never
// stored independently of it.
type Breakdown struct {
	Floor             float64 `json:"floor"`
	Elevator          float64 `json:"elevator"`
	Renovation        float64 `json:"renovation"`
	Balcony           float64 `json:"balcony"`
	Parking           float64 `json:"parking"`
	View              float64 `json:"view"`
	Noise             float64 `json:"noise"`
	Size              float64 `json:"size"`
	PlanningPotential float64 `json:"planningPotential"`
	MLResidual        float64 `json:"mlResidual"`

	TotalPercent  float64 `json:"totalPercent"`
	AdjustedPrice float64 `json:"adjustedPrice"`
}

// MLWeights parameterizes the residual linear term: one coefficient per
// factor delta plus an intercept. The residual captures systematic pricing
// effects the hand-set rates miss; coefficients are refit offline against
// realized sale prices and loaded through configuration.
type MLWeights struct {
	Floor             float64 `json:"floor" mapstructure:"floor"`
	Elevator          float64 `json:"elevator" mapstructure:"elevator"`
	Renovation        float64 `json:"renovation" mapstructure:"renovation"`
	Balcony           float64 `json:"balcony" mapstructure:"balcony"`
	Parking           float64 `json:"parking" mapstructure:"parking"`
	View              float64 `json:"view" mapstructure:"view"`
	Noise             float64 `json:"noise" mapstructure:"noise"`
	Size              float64 `json:"size" mapstructure:"size"`
	PlanningPotential float64 `json:"planningPotential" mapstructure:"planningPotential"`
	Intercept         float64 `json:"intercept" mapstructure:"intercept"`
}

// DefaultMLWeights returns the shipped residual coefficients. The intercept
// is zero so that a comparable identical to the subject gets a zero residual.
func DefaultMLWeights() MLWeights {
	return MLWeights{
		Floor:             0.0006,
		Elevator:          0.002,
		Renovation:        0.008,
		Balcony:           0.001,
		Parking:           0.0025,
		View:              0.0015,
		Noise:             0.0008,
		Size:              0.0002,
		PlanningPotential: 0.0012,
		Intercept:         0,
	}
}

// ComparableWithAdjustment is a ranked comparable enriched with its
// adjustment breakdown and aggregation weight.
type ComparableWithAdjustment struct {
	comparables.Result

	Adjustments Breakdown `json:"adjustments"`

	// Weight ∈ [0.01, 1] is used only by weighted aggregation. The floor
	// keeps every comparable contributing at least marginally.
	Weight float64 `json:"weight"`
}

// ApplyAdjustments computes the full breakdown and composite weight for one
// ranked candidate. asOf anchors the sale-recency component; callers pass a
// single timestamp per valuation run so all comparables age consistently.
func ApplyAdjustments(subject property.Subject, candidate comparables.Result, asOf time.Time, w MLWeights) ComparableWithAdjustment {
	d := deltasOf(subject.Attributes, candidate.Comparable.Attributes)

	b := Breakdown{
		Floor:             clampBand(d.floor*floorRate, floorClamp),
		Elevator:          d.elevator * elevatorRate,
		Renovation:        clampBand(d.renovation*renovationRate, renovationClamp),
		Balcony:           d.balcony * balconyRate,
		Parking:           d.parking * parkingRate,
		View:              d.view * viewRate,
		Noise:             clampBand(-d.noise*noiseRate, noiseClamp),
		Size:              clampBand(d.size/100*sizeRate, sizeClamp),
		PlanningPotential: clampBand(d.planning*planningRate, planningClamp),
		MLResidual:        d.residual(w),
	}
	b.recompute(candidate.Comparable.SalePrice)

	months := MonthsSince(time.Time(candidate.Comparable.SaleDate), asOf)

	return ComparableWithAdjustment{
		Result:      candidate,
		Adjustments: b,
		Weight:      CompositeWeight(candidate.Similarity, candidate.DistanceMeters, months),
	}
}

// recompute derives TotalPercent and AdjustedPrice from the ten factor
// fields. Both ApplyAdjustments and the manual-override path go through this
// single point so the identity adjustedPrice == round(salePrice·(1+total))
// holds everywhere.
func (b *Breakdown) recompute(salePrice float64) {
	sum := b.Floor + b.Elevator + b.Renovation + b.Balcony + b.Parking +
		b.View + b.Noise + b.Size + b.PlanningPotential + b.MLResidual
	b.TotalPercent = clampBand(sum, totalClamp)
	b.AdjustedPrice = math.Round(salePrice * (1 + b.TotalPercent))
}

// CompositeWeight blends similarity, proximity, and sale recency into the
// aggregation weight: similar, nearby, recent sales count for more, but no
// comparable is ever zeroed out entirely.
func CompositeWeight(similarity, distanceMeters, monthsSinceSale float64) float64 {
	proximity := 1 - clamp01(distanceMeters/weightDistanceHorizonMeters)
	recency := 1 - clamp01(monthsSinceSale/weightRecencyHorizonMonths)

	w := similarity*weightSimilarityShare + proximity*weightDistanceShare + recency*weightRecencyShare
	if w < weightFloor {
		return weightFloor
	}
	if w > weightCeil {
		return weightCeil
	}
	return w
}

// MonthsSince returns the age of a sale in fractional months, floored at 0
// for sale dates in the future of asOf (feed clock skew).
func MonthsSince(saleDate, asOf time.Time) float64 {
	const hoursPerMonth = 24 * 30.4375
	m := asOf.Sub(saleDate).Hours() / hoursPerMonth
	if m < 0 {
		return 0
	}
	return m
}

// deltas carries the signed subject-minus-comparable differences shared by
// the named factors and the residual term. Booleans are encoded ±1 when the
// two sides differ, 0 when equal.
type deltas struct {
	floor      float64
	elevator   float64
	renovation float64
	balcony    float64
	parking    float64
	view       float64
	noise      float64
	size       float64
	planning   float64
}

func deltasOf(subject, comp property.Attributes) deltas {
	return deltas{
		floor:      float64(subject.Floor - comp.Floor),
		elevator:   boolDelta(subject.HasElevator, comp.HasElevator),
		renovation: subject.Renovation.Embedding() - comp.Renovation.Embedding(),
		balcony:    boolDelta(subject.HasBalcony, comp.HasBalcony),
		parking:    boolDelta(subject.HasParking, comp.HasParking),
		view:       boolDelta(subject.HasView, comp.HasView),
		noise:      subject.NoiseLevel - comp.NoiseLevel,
		size:       subject.SizeSqm - comp.SizeSqm,
		planning:   subject.PlanningPotential - comp.PlanningPotential,
	}
}

func (d deltas) residual(w MLWeights) float64 {
	return w.Floor*d.floor +
		w.Elevator*d.elevator +
		w.Renovation*d.renovation +
		w.Balcony*d.balcony +
		w.Parking*d.parking +
		w.View*d.view +
		w.Noise*d.noise +
		w.Size*d.size +
		w.PlanningPotential*d.planning +
		w.Intercept
}

func boolDelta(subject, comp bool) float64 {
	switch {
	case subject == comp:
		return 0
	case subject:
		return 1
	default:
		return -1
	}
}

func clampBand(v, band float64) float64 {
	if v > band {
		return band
	}
	if v < -band {
		return -band
	}
	return v
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

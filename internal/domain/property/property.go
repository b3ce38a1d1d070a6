// Package property defines the property observation types shared by the
// comparable search, adjustment, and valuation engines, together with the
// geometric and feature-space utilities that operate on them. Everything in
// this package is pure: no I/O, no clocks, no globals.
package property

import (
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// Type enumerates the supported property types.
type Type string

const (
	TypeApartment       Type = "apartment"
	TypePenthouse       Type = "penthouse"
	TypeGardenApartment Type = "garden-apartment"
	TypeDuplex          Type = "duplex"
	TypeHouse           Type = "house"
	TypeCommercial      Type = "commercial"
)

// typeEmbeddings is a fixed ordinal-similarity table, not a learned
// embedding: it encodes how interchangeable two property types are for
// ranking purposes. Unknown types fall back to the apartment value, the
// most common observation in the transaction feeds.
var typeEmbeddings = map[Type]float64{
	TypeHouse:           1.0,
	TypePenthouse:       0.9,
	TypeGardenApartment: 0.75,
	TypeDuplex:          0.65,
	TypeApartment:       0.2,
	TypeCommercial:      0.0,
}

// Embedding returns the ordinal-similarity value for the type.
func (t Type) Embedding() float64 {
	if v, ok := typeEmbeddings[t]; ok {
		return v
	}
	return typeEmbeddings[TypeApartment]
}

// IsValid reports whether t is a known property type.
func (t Type) IsValid() bool {
	_, ok := typeEmbeddings[t]
	return ok
}

// RenovationState enumerates renovation conditions.
type RenovationState string

const (
	RenovationNew     RenovationState = "new"
	Renovated         RenovationState = "renovated"
	RenovationPartial RenovationState = "partial"
	RenovationNeeded  RenovationState = "needs-renovation"
)

// renovationEmbeddings maps renovation states onto a single quality axis.
// Unknown states fall back to the partial value.
var renovationEmbeddings = map[RenovationState]float64{
	RenovationNew:     1.0,
	Renovated:         0.8,
	RenovationPartial: 0.45,
	RenovationNeeded:  0.1,
}

// Embedding returns the quality-axis value for the renovation state.
func (r RenovationState) Embedding() float64 {
	if v, ok := renovationEmbeddings[r]; ok {
		return v
	}
	return renovationEmbeddings[RenovationPartial]
}

// IsValid reports whether r is a known renovation state.
func (r RenovationState) IsValid() bool {
	_, ok := renovationEmbeddings[r]
	return ok
}

// Attributes carries the physical and locational characteristics shared by
// observed transactions and subject properties.
type Attributes struct {
	ID           string  `json:"id"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	Neighborhood string  `json:"neighborhood,omitempty"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Type         Type    `json:"propertyType"`

	SizeSqm     float64 `json:"sizeSqm"`
	Floor       int     `json:"floor"`
	TotalFloors *int    `json:"totalFloors,omitempty"`
	BuildingAge int     `json:"buildingAge"`

	// Condition is a 1–10 appraiser score (10 = excellent).
	Condition float64 `json:"condition"`

	HasElevator bool `json:"hasElevator"`
	HasParking  bool `json:"hasParking"`
	HasBalcony  bool `json:"hasBalcony"`
	HasView     bool `json:"hasView"`

	// NoiseLevel is a 1–10 score, higher = noisier.
	NoiseLevel float64 `json:"noiseLevel"`

	Renovation RenovationState `json:"renovationState"`

	// PlanningPotential is a 0–10 score for redevelopment upside
	// (building rights, urban renewal eligibility).
	PlanningPotential float64 `json:"planningPotential"`
}

// FeaturePayload is one concrete observed sale transaction. Immutable once
// observed; created by the data-fetch collaborators or by test generators.
type FeaturePayload struct {
	Attributes
	SaleDate  common.Timestamp `json:"saleDate"`
	SalePrice float64          `json:"salePrice"`
}

// Subject is the property being valued: the same shape as an observation,
// minus the sale — it has not sold yet.
type Subject struct {
	Attributes
}

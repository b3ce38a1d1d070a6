// Package reporting assembles appraisal reports from valuation results and
// externally-supplied document/image evidence: a deterministic four-section
// draft, an independent consistency validator, and the shared input schema
// both consume. Everything here is pure; persistence and LLM calls live in
// the surrounding layers.
package reporting

import (
	"fmt"
	"math"

	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/internal/domain/valuation"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
)

// Language selects report localization.
type Language string

const (
	LanguageHebrew  Language = "he"
	LanguageEnglish Language = "en"
)

// IsValid reports whether l is a supported report language.
func (l Language) IsValid() bool {
	return l == LanguageHebrew || l == LanguageEnglish
}

// StructuredProperty is the trimmed subject-property view embedded in report
// inputs; display fields only, no feature-vector machinery.
type StructuredProperty struct {
	ID           string                   `json:"id"`
	Address      string                   `json:"address"`
	City         string                   `json:"city"`
	Neighborhood string                   `json:"neighborhood,omitempty"`
	Type         property.Type            `json:"propertyType"`
	SizeSqm      float64                  `json:"sizeSqm"`
	Floor        int                      `json:"floor"`
	BuildingAge  int                      `json:"buildingAge"`
	Condition    float64                  `json:"condition"`
	Renovation   property.RenovationState `json:"renovationState"`
}

// ComparableReportItem is the trimmed per-comparable view used by report
// sections and consistency checks.
type ComparableReportItem struct {
	ID             string  `json:"id"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	Similarity     float64 `json:"similarity"`
	DistanceMeters float64 `json:"distanceMeters"`
	SalePrice      float64 `json:"salePrice"`
	AdjustedPrice  float64 `json:"adjustedPrice"`
	TotalPercent   float64 `json:"totalPercent"`
	Weight         float64 `json:"weight"`
}

// DocumentFact is one statement extracted by the external document-analysis
// collaborator. Confidence and ConflictWith are trusted as given.
type DocumentFact struct {
	ID               string   `json:"id"`
	SourceDocumentID string   `json:"sourceDocumentId"`
	SourceType       string   `json:"sourceType"`
	Statement        string   `json:"statement"`
	Confidence       float64  `json:"confidence"`
	ConflictWith     []string `json:"conflictWith,omitempty"`
}

// ImageEvidence is one photo-derived condition observation from the external
// vision collaborator.
type ImageEvidence struct {
	ID              string   `json:"id"`
	ImageID         string   `json:"imageId"`
	ConditionScore  float64  `json:"conditionScore"`
	RenovationLevel string   `json:"renovationLevel"`
	DetectedIssues  []string `json:"detectedIssues,omitempty"`
	Confidence      float64  `json:"confidence"`
}

// TemplateConfig names the report template, language, and section layout.
type TemplateConfig struct {
	TemplateID        string   `json:"templateId"`
	Language          Language `json:"language"`
	MandatorySections []string `json:"mandatorySections"`
	OptionalSections  []string `json:"optionalSections,omitempty"`
	Tone              string   `json:"tone,omitempty"`
}

// Input aggregates everything a report draft or prompt bundle is grounded
// on. All evidence is supplied by external collaborators; nothing here is
// fetched by the reporting layer itself.
type Input struct {
	Property      StructuredProperty     `json:"property"`
	Comparables   []ComparableReportItem `json:"comparables"`
	DocumentFacts []DocumentFact         `json:"documentFacts,omitempty"`
	ImageEvidence []ImageEvidence        `json:"imageEvidence,omitempty"`
	Range         valuation.Range        `json:"valuationRange"`
	Confidence    int                    `json:"confidence"`
	Template      TemplateConfig         `json:"template"`
}

// Validate fails fast on structurally unusable input. Consistency findings
// (range ordering, conflicts, weak confidence) are NOT validation errors;
// they flow through ValidateConsistency as data so a flagged report can still
// be produced.
func (in Input) Validate() error {
	if in.Property.ID == "" {
		return errors.New(errors.ErrCodeReportInputInvalid, "property id is required")
	}
	if in.Template.TemplateID == "" {
		return errors.New(errors.ErrCodeReportTemplateInvalid, "template id is required")
	}
	if !in.Template.Language.IsValid() {
		return errors.New(errors.ErrCodeReportLanguageInvalid,
			fmt.Sprintf("unsupported report language %q", in.Template.Language))
	}
	if len(in.Template.MandatorySections) == 0 {
		return errors.New(errors.ErrCodeReportSectionsMissing, "at least one mandatory section is required")
	}
	for _, v := range []float64{in.Range.Low, in.Range.Mid, in.Range.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New(errors.ErrCodeReportInputInvalid, "valuation range must be finite")
		}
	}
	if in.Confidence < 0 || in.Confidence > 100 {
		return errors.New(errors.ErrCodeReportInputInvalid,
			fmt.Sprintf("confidence must be in [0,100], got %d", in.Confidence))
	}
	return nil
}

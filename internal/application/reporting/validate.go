package reporting

import "fmt"

// Severity grades a consistency finding. Only error severity blocks final
// approval; warnings are advisory and never suppress report generation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Validation keys. Stable identifiers consumed by the UI; never localized.
const (
	CheckRangeOrder       = "valuation.range.order"
	CheckComparablesCount = "comparables.count"
	CheckDivergence       = "valuation.divergence"
	CheckDocumentConflict = "documents.conflict"
	CheckLowConfidence    = "valuation.confidence"
)

const (
	minComparablesForReport = 3
	divergenceThreshold     = 0.20
	lowConfidenceThreshold  = 55
)

// ValidationResult is one consistency finding with a stable key and a
// human-readable message.
type ValidationResult struct {
	Key      string   `json:"key"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ValidateConsistency runs all five consistency checks unconditionally and
// independently; multiple findings may fire at once. An empty result means
// the report is internally consistent.
func ValidateConsistency(in Input) []ValidationResult {
	var results []ValidationResult

	if !(in.Range.Low <= in.Range.Mid && in.Range.Mid <= in.Range.High) {
		results = append(results, ValidationResult{
			Key:      CheckRangeOrder,
			Severity: SeverityError,
			Message: fmt.Sprintf("valuation range is not ordered: low=%.0f mid=%.0f high=%.0f",
				in.Range.Low, in.Range.Mid, in.Range.High),
		})
	}

	if len(in.Comparables) < minComparablesForReport {
		results = append(results, ValidationResult{
			Key:      CheckComparablesCount,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("only %d comparables used; at least %d recommended", len(in.Comparables), minComparablesForReport),
		})
	}

	if mean := meanAdjustedPrice(in.Comparables); mean > 0 {
		divergence := abs(in.Range.Mid-mean) / mean
		if divergence > divergenceThreshold {
			results = append(results, ValidationResult{
				Key:      CheckDivergence,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("mid value diverges %.0f%% from the raw comparable average of %.0f",
					divergence*100, mean),
			})
		}
	}

	for _, fact := range in.DocumentFacts {
		if len(fact.ConflictWith) > 0 {
			results = append(results, ValidationResult{
				Key:      CheckDocumentConflict,
				Severity: SeverityError,
				Message: fmt.Sprintf("document fact %s (source %s) conflicts with %d other fact(s); human review required",
					fact.ID, fact.SourceDocumentID, len(fact.ConflictWith)),
			})
		}
	}

	if in.Confidence < lowConfidenceThreshold {
		results = append(results, ValidationResult{
			Key:      CheckLowConfidence,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("confidence %d is below the %d review threshold", in.Confidence, lowConfidenceThreshold),
		})
	}

	return results
}

// ReadyForFinalApproval is true iff no finding has error severity.
func ReadyForFinalApproval(results []ValidationResult) bool {
	for _, r := range results {
		if r.Severity == SeverityError {
			return false
		}
	}
	return true
}

func meanAdjustedPrice(items []ComparableReportItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.AdjustedPrice
	}
	return sum / float64(len(items))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

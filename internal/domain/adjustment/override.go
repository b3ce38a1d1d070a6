package adjustment

import (
	"encoding/json"
	"time"

	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// OverridePatch maps adjustment field names (the JSON names of Breakdown's
// ten factors) to replacement values. Values come straight from a decoded
// request body, so non-numeric entries are possible and are skipped rather
// than rejected.
type OverridePatch map[string]any

// ManualOverrideEvent is one append-only audit record for one overridden
// field. Events are never mutated or deleted; the caller persists them.
type ManualOverrideEvent struct {
	ComparableID string             `json:"comparableId"`
	Field        string             `json:"field"`
	OldValue     float64            `json:"oldValue"`
	NewValue     float64            `json:"newValue"`
	Reason       string             `json:"reason"`
	AppraiserID  common.AppraiserID `json:"appraiserId"`
	Timestamp    common.Timestamp   `json:"timestamp"`
}

// overrideFields fixes the order in which patch fields are applied and
// audited, so event lists are deterministic for identical patches.
var overrideFields = []struct {
	name string
	get  func(*Breakdown) *float64
}{
	{"floor", func(b *Breakdown) *float64 { return &b.Floor }},
	{"elevator", func(b *Breakdown) *float64 { return &b.Elevator }},
	{"renovation", func(b *Breakdown) *float64 { return &b.Renovation }},
	{"balcony", func(b *Breakdown) *float64 { return &b.Balcony }},
	{"parking", func(b *Breakdown) *float64 { return &b.Parking }},
	{"view", func(b *Breakdown) *float64 { return &b.View }},
	{"noise", func(b *Breakdown) *float64 { return &b.Noise }},
	{"size", func(b *Breakdown) *float64 { return &b.Size }},
	{"planningPotential", func(b *Breakdown) *float64 { return &b.PlanningPotential }},
	{"mlResidual", func(b *Breakdown) *float64 { return &b.MLResidual }},
}

// ApplyManualOverride patches any subset of the ten adjustment fields on one
// comparable, recomputes TotalPercent and AdjustedPrice under the same clamp
// as the automatic path, and returns the updated comparable together with one
// ManualOverrideEvent per numeric field actually present in the patch.
// Non-numeric and unknown patch entries are skipped silently. The function
// has no storage side effects; appending the events to the audit log is the
// caller's job.
func ApplyManualOverride(cwa ComparableWithAdjustment, patch OverridePatch, appraiserID common.AppraiserID, reason string, at time.Time) (ComparableWithAdjustment, []ManualOverrideEvent) {
	var events []ManualOverrideEvent

	for _, f := range overrideFields {
		raw, ok := patch[f.name]
		if !ok {
			continue
		}
		v, ok := numericValue(raw)
		if !ok {
			continue
		}
		slot := f.get(&cwa.Adjustments)
		events = append(events, ManualOverrideEvent{
			ComparableID: cwa.Comparable.ID,
			Field:        f.name,
			OldValue:     *slot,
			NewValue:     v,
			Reason:       reason,
			AppraiserID:  appraiserID,
			Timestamp:    common.Timestamp(at),
		})
		*slot = v
	}

	if len(events) > 0 {
		cwa.Adjustments.recompute(cwa.Comparable.SalePrice)
	}
	return cwa, events
}

// numericValue accepts the numeric shapes a decoded JSON body or an
// in-process caller can produce.
func numericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

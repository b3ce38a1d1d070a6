package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nadlantech/appraisal-engine/pkg/errors"
)

// Topics carried by the appraisal event stream.
const (
	TopicTransactionIngested = "appraisal.transaction.ingested"
	TopicValuationCompleted  = "appraisal.valuation.completed"
	TopicOverrideApplied     = "appraisal.override.applied"
	TopicReportGenerated     = "appraisal.report.generated"
)

// EventEnvelope standardizes event messages across topics.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ValuationCompletedPayload announces a finished valuation run.
type ValuationCompletedPayload struct {
	RequestID     string    `json:"request_id"`
	SubjectID     string    `json:"subject_id"`
	Strategy      string    `json:"strategy"`
	RangeLow      float64   `json:"range_low"`
	RangeMid      float64   `json:"range_mid"`
	RangeHigh     float64   `json:"range_high"`
	Confidence    int       `json:"confidence"`
	UsedCount     int       `json:"used_count"`
	RejectedCount int       `json:"rejected_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// OverrideAppliedPayload announces one audited manual adjustment override.
type OverrideAppliedPayload struct {
	ComparableID string    `json:"comparable_id"`
	Field        string    `json:"field"`
	OldValue     float64   `json:"old_value"`
	NewValue     float64   `json:"new_value"`
	Reason       string    `json:"reason"`
	AppraiserID  string    `json:"appraiser_id"`
	AppliedAt    time.Time `json:"applied_at"`
}

// ReportGeneratedPayload announces a drafted report and its approval gate.
type ReportGeneratedPayload struct {
	ReportID              string    `json:"report_id"`
	SubjectID             string    `json:"subject_id"`
	Language              string    `json:"language"`
	SectionCount          int       `json:"section_count"`
	ReadyForFinalApproval bool      `json:"ready_for_final_approval"`
	ArchiveKey            string    `json:"archive_key,omitempty"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// TransactionIngestedPayload announces a newly observed sale transaction.
type TransactionIngestedPayload struct {
	TransactionID string    `json:"transaction_id"`
	City          string    `json:"city"`
	PropertyType  string    `json:"property_type"`
	SalePrice     float64   `json:"sale_price"`
	SaleDate      time.Time `json:"sale_date"`
	IngestedAt    time.Time `json:"ingested_at"`
}

// NewEventEnvelope wraps payload in a v1 envelope with a fresh event ID.
func NewEventEnvelope(eventType, source string, payload any) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}

// ToMessage converts the envelope to a producible message for topic.
func (e *EventEnvelope) ToMessage(topic string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.TraceID != "" {
		headers["trace_id"] = e.TraceID
	}
	return &ProducerMessage{
		Topic:     topic,
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}, nil
}

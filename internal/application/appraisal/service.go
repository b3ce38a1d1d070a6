// Package appraisal is the application-level service tying the valuation
// pipeline together: pool assembly, similarity search, adjustments,
// aggregation, overrides with audit, and report generation.
package appraisal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/nadlantech/appraisal-engine/internal/application/reporting"
	"github.com/nadlantech/appraisal-engine/internal/config"
	"github.com/nadlantech/appraisal-engine/internal/domain/adjustment"
	"github.com/nadlantech/appraisal-engine/internal/domain/comparables"
	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/internal/domain/valuation"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/database/postgres/repositories"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/messaging/kafka"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/nadlantech/appraisal-engine/internal/intelligence/reportllm"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Collaborator interfaces
// ─────────────────────────────────────────────────────────────────────────────

// TransactionStore is the persistence surface the service needs: pool reads
// and observation writes.
type TransactionStore interface {
	FetchPool(ctx context.Context, filter repositories.PoolFilter) ([]property.FeaturePayload, error)
	SaveBatch(ctx context.Context, payloads []property.FeaturePayload) (int, error)
}

// AuditStore is the append-only override audit trail.
type AuditStore interface {
	Append(ctx context.Context, events []adjustment.ManualOverrideEvent) error
	ListByComparable(ctx context.Context, comparableID string) ([]adjustment.ManualOverrideEvent, error)
}

// ResultCache memoizes valuation results keyed by request fingerprint.
type ResultCache interface {
	GetOrSet(ctx context.Context, key string, dest any, ttl time.Duration, loader func(ctx context.Context) (any, error)) error
}

// EventPublisher pushes lifecycle events to the message bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, env *kafka.EventEnvelope) error
}

// ReportArchive persists generated reports and issues download links.
type ReportArchive interface {
	Archive(ctx context.Context, report *reporting.Report) (string, error)
	PresignedDownloadURL(ctx context.Context, key string) (string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Inputs and results
// ─────────────────────────────────────────────────────────────────────────────

// ValuateInput describes one valuation run. The pool is either supplied
// inline or fetched from the transaction store by filter.
type ValuateInput struct {
	Subject  property.Subject          `json:"subject"`
	Pool     []property.FeaturePayload `json:"comparablesPool,omitempty"`
	TopK     int                       `json:"topK,omitempty"`
	Strategy valuation.Strategy        `json:"strategy,omitempty"`

	// PoolCity and PoolMinSaleDate narrow the stored pool when no inline
	// pool is given. City defaults to the subject's city.
	PoolCity        string    `json:"poolCity,omitempty"`
	PoolMinSaleDate time.Time `json:"poolMinSaleDate,omitempty"`

	AsOf time.Time `json:"asOf,omitempty"`
}

// ValuateResult is one completed valuation run.
type ValuateResult struct {
	RequestID   string                                `json:"requestId"`
	SubjectID   string                                `json:"subjectId"`
	Comparables []adjustment.ComparableWithAdjustment `json:"comparables"`
	Valuation   valuation.Output                      `json:"valuation"`
	GeneratedAt common.Timestamp                      `json:"generatedAt"`
}

// OverrideInput applies appraiser-supplied adjustment values to one scored
// comparable and revalues the full set.
type OverrideInput struct {
	Comparables  []adjustment.ComparableWithAdjustment `json:"comparables"`
	ComparableID string                                `json:"comparableId"`
	Patch        adjustment.OverridePatch              `json:"patch"`
	Reason       string                                `json:"reason"`
	AppraiserID  common.AppraiserID                    `json:"appraiserId"`
	Strategy     valuation.Strategy                    `json:"strategy,omitempty"`
	AsOf         time.Time                             `json:"asOf,omitempty"`
}

// OverrideResult carries the revalued set and the audit events written.
type OverrideResult struct {
	Comparables []adjustment.ComparableWithAdjustment `json:"comparables"`
	Valuation   valuation.Output                      `json:"valuation"`
	Events      []adjustment.ManualOverrideEvent      `json:"events"`
}

// ReportRequest drafts a report from assembled input, optionally archiving
// the result.
type ReportRequest struct {
	Input   reporting.Input `json:"input"`
	Archive bool            `json:"archive,omitempty"`
}

// ReportResult is the drafted report plus archive metadata when archived.
type ReportResult struct {
	Report      reporting.Report `json:"report"`
	ArchiveKey  string           `json:"archiveKey,omitempty"`
	DownloadURL string           `json:"downloadUrl,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Service
// ─────────────────────────────────────────────────────────────────────────────

// Service exposes the appraisal engine's application operations.
type Service interface {
	Valuate(ctx context.Context, input *ValuateInput) (*ValuateResult, error)
	Override(ctx context.Context, input *OverrideInput) (*OverrideResult, error)
	AuditTrail(ctx context.Context, comparableID string) ([]adjustment.ManualOverrideEvent, error)
	GenerateReport(ctx context.Context, req *ReportRequest) (*ReportResult, error)
	BuildPromptBundle(ctx context.Context, in reporting.Input) (*reportllm.PromptBundle, error)
	IngestTransactions(ctx context.Context, payloads []property.FeaturePayload) (int, error)
}

type serviceImpl struct {
	cfg       config.ValuationConfig
	store     TransactionStore
	audit     AuditStore
	cache     ResultCache
	publisher EventPublisher
	archive   ReportArchive
	metrics   *prometheus.Metrics
	logger    logging.Logger
	now       func() time.Time
}

// Options collects the service collaborators. Cache, Publisher, Archive, and
// Metrics are optional; nil disables the corresponding side effect.
type Options struct {
	Config    config.ValuationConfig
	Store     TransactionStore
	Audit     AuditStore
	Cache     ResultCache
	Publisher EventPublisher
	Archive   ReportArchive
	Metrics   *prometheus.Metrics
	Logger    logging.Logger
}

// NewService wires the appraisal service.
func NewService(opts Options) Service {
	return &serviceImpl{
		cfg:       opts.Config,
		store:     opts.Store,
		audit:     opts.Audit,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		archive:   opts.Archive,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Valuation
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Valuate(ctx context.Context, input *ValuateInput) (*ValuateResult, error) {
	if input == nil {
		return nil, errors.New(errors.ErrCodeBadRequest, "valuation input required")
	}

	strategy := input.Strategy
	if strategy == "" {
		strategy = valuation.Strategy(s.cfg.DefaultStrategy)
	}
	if !strategy.IsValid() {
		return nil, errors.New(errors.ErrCodeValuationStrategyUnknown, "unknown valuation strategy: "+string(strategy))
	}
	topK := input.TopK
	if topK <= 0 {
		topK = s.cfg.DefaultTopK
	}
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}

	// Inline pools are caller-specific one-offs; only store-backed runs
	// are worth memoizing.
	if s.cache != nil && s.cfg.CacheResults && len(input.Pool) == 0 {
		key := valuationCacheKey(input, strategy, topK)
		var cached ValuateResult
		err := s.cache.GetOrSet(ctx, key, &cached, s.cfg.CacheTTL, func(ctx context.Context) (any, error) {
			return s.valuate(ctx, input, strategy, topK, asOf)
		})
		if err != nil {
			return nil, err
		}
		return &cached, nil
	}

	return s.valuate(ctx, input, strategy, topK, asOf)
}

func (s *serviceImpl) valuate(ctx context.Context, input *ValuateInput, strategy valuation.Strategy, topK int, asOf time.Time) (*ValuateResult, error) {
	start := s.now()

	pool, err := s.resolvePool(ctx, input)
	if err != nil {
		s.recordValuation(strategy, err, start, nil)
		return nil, err
	}

	req := comparables.SearchRequest{
		Subject: input.Subject,
		Pool:    pool,
		TopK:    topK,
	}
	results, err := comparables.SearchTopComparables(req)
	if err != nil {
		s.recordValuation(strategy, err, start, nil)
		return nil, err
	}

	adjusted := make([]adjustment.ComparableWithAdjustment, len(results))
	for i, r := range results {
		adjusted[i] = adjustment.ApplyAdjustments(input.Subject, r, asOf, s.cfg.MLWeights)
	}

	output, err := valuation.ValuateFromComparables(adjusted, strategy, asOf)
	if err != nil {
		s.recordValuation(strategy, err, start, nil)
		return nil, err
	}

	result := &ValuateResult{
		RequestID:   common.GenerateID("val"),
		SubjectID:   input.Subject.ID,
		Comparables: adjusted,
		Valuation:   output,
		GeneratedAt: common.Timestamp(asOf),
	}
	s.recordValuation(strategy, nil, start, result)
	s.publishValuation(ctx, result, strategy, asOf)

	s.logger.Info("valuation completed",
		logging.String("request_id", result.RequestID),
		logging.String("subject_id", result.SubjectID),
		logging.String("strategy", string(strategy)),
		logging.Int("used", output.UsedCount),
		logging.Int("rejected", len(output.RejectedIDs)),
		logging.Int("confidence", output.Confidence))
	return result, nil
}

// resolvePool returns the deduplicated candidate pool, fetched from the
// store when none was supplied inline.
func (s *serviceImpl) resolvePool(ctx context.Context, input *ValuateInput) ([]property.FeaturePayload, error) {
	pool := input.Pool
	if len(pool) == 0 {
		if s.store == nil {
			return nil, errors.New(errors.ErrCodePoolEmpty, "no comparables pool supplied and no transaction store configured")
		}
		city := input.PoolCity
		if city == "" {
			city = input.Subject.City
		}
		filter := repositories.PoolFilter{
			City:        city,
			MinSaleDate: input.PoolMinSaleDate,
			Limit:       s.cfg.MaxPoolSize,
		}
		if s.cfg.PoolRadiusMeters > 0 && (input.Subject.Lat != 0 || input.Subject.Lng != 0) {
			filter.CenterLat = input.Subject.Lat
			filter.CenterLng = input.Subject.Lng
			filter.RadiusMeters = s.cfg.PoolRadiusMeters
		}
		fetchStart := s.now()
		fetched, err := s.store.FetchPool(ctx, filter)
		if s.metrics != nil {
			s.metrics.PoolFetchDuration.WithLabelValues("store").Observe(s.now().Sub(fetchStart).Seconds())
		}
		if err != nil {
			return nil, err
		}
		pool = fetched
	}
	if s.cfg.MaxPoolSize > 0 && len(pool) > s.cfg.MaxPoolSize {
		pool = pool[:s.cfg.MaxPoolSize]
	}
	return property.DeduplicatePool(pool), nil
}

func (s *serviceImpl) recordValuation(strategy valuation.Strategy, err error, start time.Time, result *ValuateResult) {
	if s.metrics == nil {
		return
	}
	var confidence, used, rejected int
	if result != nil {
		confidence = result.Valuation.Confidence
		used = result.Valuation.UsedCount
		rejected = len(result.Valuation.RejectedIDs)
	}
	s.metrics.RecordValuation(string(strategy), err, s.now().Sub(start), confidence, used, rejected)
}

func (s *serviceImpl) publishValuation(ctx context.Context, result *ValuateResult, strategy valuation.Strategy, asOf time.Time) {
	if s.publisher == nil {
		return
	}
	payload := kafka.ValuationCompletedPayload{
		RequestID:     result.RequestID,
		SubjectID:     result.SubjectID,
		Strategy:      string(strategy),
		RangeLow:      result.Valuation.Range.Low,
		RangeMid:      result.Valuation.Range.Mid,
		RangeHigh:     result.Valuation.Range.High,
		Confidence:    result.Valuation.Confidence,
		UsedCount:     result.Valuation.UsedCount,
		RejectedCount: len(result.Valuation.RejectedIDs),
		CompletedAt:   asOf.UTC(),
	}
	env, err := kafka.NewEventEnvelope("valuation.completed", "appraisal-engine", payload)
	if err == nil {
		err = s.publisher.PublishEvent(ctx, kafka.TopicValuationCompleted, result.SubjectID, env)
	}
	if s.metrics != nil {
		s.metrics.RecordEvent(kafka.TopicValuationCompleted, err)
	}
	if err != nil {
		// Event delivery is best effort; the valuation itself stands.
		s.logger.Warn("failed to publish valuation event",
			logging.String("request_id", result.RequestID), logging.Err(err))
	}
}

// valuationCacheKey fingerprints the deterministic parts of a request.
func valuationCacheKey(input *ValuateInput, strategy valuation.Strategy, topK int) string {
	canonical := struct {
		Subject     property.Subject   `json:"subject"`
		Strategy    valuation.Strategy `json:"strategy"`
		TopK        int                `json:"topK"`
		PoolCity    string             `json:"poolCity"`
		MinSaleDate time.Time          `json:"minSaleDate"`
	}{input.Subject, strategy, topK, input.PoolCity, input.PoolMinSaleDate}

	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return "valuation:" + hex.EncodeToString(sum[:])
}

// ─────────────────────────────────────────────────────────────────────────────
// Manual overrides
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Override(ctx context.Context, input *OverrideInput) (*OverrideResult, error) {
	if input == nil || input.ComparableID == "" {
		return nil, errors.New(errors.ErrCodeOverrideInvalid, "comparable id required")
	}
	if len(input.Patch) == 0 {
		return nil, errors.New(errors.ErrCodeOverrideInvalid, "override patch is empty")
	}
	if input.AppraiserID == "" {
		return nil, errors.New(errors.ErrCodeOverrideInvalid, "appraiser id required")
	}

	strategy := input.Strategy
	if strategy == "" {
		strategy = valuation.Strategy(s.cfg.DefaultStrategy)
	}
	asOf := input.AsOf
	if asOf.IsZero() {
		asOf = s.now()
	}

	idx := -1
	for i := range input.Comparables {
		if input.Comparables[i].Comparable.ID == input.ComparableID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "comparable not found in valuation set: "+input.ComparableID)
	}

	updated, events := adjustment.ApplyManualOverride(
		input.Comparables[idx], input.Patch, input.AppraiserID, input.Reason, asOf)
	if len(events) == 0 {
		return nil, errors.New(errors.ErrCodeOverrideInvalid, "patch contains no overridable numeric fields")
	}

	revised := make([]adjustment.ComparableWithAdjustment, len(input.Comparables))
	copy(revised, input.Comparables)
	revised[idx] = updated

	output, err := valuation.ValuateFromComparables(revised, strategy, asOf)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.Append(ctx, events); err != nil {
			return nil, err
		}
	}
	s.publishOverrides(ctx, events)
	if s.metrics != nil {
		for _, ev := range events {
			s.metrics.OverridesTotal.WithLabelValues(ev.Field).Inc()
		}
	}

	s.logger.Info("manual override applied",
		logging.String("comparable_id", input.ComparableID),
		logging.String("appraiser_id", string(input.AppraiserID)),
		logging.Int("fields", len(events)))

	return &OverrideResult{Comparables: revised, Valuation: output, Events: events}, nil
}

func (s *serviceImpl) publishOverrides(ctx context.Context, events []adjustment.ManualOverrideEvent) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		payload := kafka.OverrideAppliedPayload{
			ComparableID: ev.ComparableID,
			Field:        ev.Field,
			OldValue:     ev.OldValue,
			NewValue:     ev.NewValue,
			Reason:       ev.Reason,
			AppraiserID:  string(ev.AppraiserID),
			AppliedAt:    time.Time(ev.Timestamp).UTC(),
		}
		env, err := kafka.NewEventEnvelope("override.applied", "appraisal-engine", payload)
		if err == nil {
			err = s.publisher.PublishEvent(ctx, kafka.TopicOverrideApplied, ev.ComparableID, env)
		}
		if s.metrics != nil {
			s.metrics.RecordEvent(kafka.TopicOverrideApplied, err)
		}
		if err != nil {
			s.logger.Warn("failed to publish override event",
				logging.String("comparable_id", ev.ComparableID), logging.Err(err))
		}
	}
}

func (s *serviceImpl) AuditTrail(ctx context.Context, comparableID string) ([]adjustment.ManualOverrideEvent, error) {
	if comparableID == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "comparable id required")
	}
	if s.audit == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "audit store not configured")
	}
	return s.audit.ListByComparable(ctx, comparableID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Reports
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) GenerateReport(ctx context.Context, req *ReportRequest) (*ReportResult, error) {
	if req == nil {
		return nil, errors.New(errors.ErrCodeBadRequest, "report request required")
	}

	report, err := reporting.GenerateDeterministicDraft(req.Input, s.now())
	if err != nil {
		return nil, err
	}
	result := &ReportResult{Report: report}

	if (req.Archive || s.cfg.ReportArchiveOnGen) && s.archive != nil {
		key, err := s.archive.Archive(ctx, &report)
		if err != nil {
			return nil, err
		}
		result.ArchiveKey = key
		if url, err := s.archive.PresignedDownloadURL(ctx, key); err == nil {
			result.DownloadURL = url
		} else {
			s.logger.Warn("failed to presign report download",
				logging.String("report_id", report.ID), logging.Err(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordReport(string(report.Language), report.ReadyForFinalApproval)
	}
	s.publishReport(ctx, req.Input.Property.ID, &report, result.ArchiveKey)

	s.logger.Info("report generated",
		logging.String("report_id", report.ID),
		logging.String("language", string(report.Language)),
		logging.Bool("ready_for_final_approval", report.ReadyForFinalApproval))
	return result, nil
}

func (s *serviceImpl) publishReport(ctx context.Context, subjectID string, report *reporting.Report, archiveKey string) {
	if s.publisher == nil {
		return
	}
	payload := kafka.ReportGeneratedPayload{
		ReportID:              report.ID,
		SubjectID:             subjectID,
		Language:              string(report.Language),
		SectionCount:          len(report.Sections),
		ReadyForFinalApproval: report.ReadyForFinalApproval,
		ArchiveKey:            archiveKey,
		GeneratedAt:           time.Time(report.CreatedAt).UTC(),
	}
	env, err := kafka.NewEventEnvelope("report.generated", "appraisal-engine", payload)
	if err == nil {
		err = s.publisher.PublishEvent(ctx, kafka.TopicReportGenerated, report.ID, env)
	}
	if s.metrics != nil {
		s.metrics.RecordEvent(kafka.TopicReportGenerated, err)
	}
	if err != nil {
		s.logger.Warn("failed to publish report event",
			logging.String("report_id", report.ID), logging.Err(err))
	}
}

func (s *serviceImpl) BuildPromptBundle(ctx context.Context, in reporting.Input) (*reportllm.PromptBundle, error) {
	bundle, err := reportllm.BuildGroundedPromptBundle(in)
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Ingestion
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) IngestTransactions(ctx context.Context, payloads []property.FeaturePayload) (int, error) {
	if len(payloads) == 0 {
		return 0, errors.New(errors.ErrCodeBadRequest, "no transactions supplied")
	}
	if s.store == nil {
		return 0, errors.New(errors.ErrCodeServiceUnavailable, "transaction store not configured")
	}

	written, err := s.store.SaveBatch(ctx, payloads)
	if err != nil {
		return 0, err
	}

	if s.publisher != nil {
		for _, p := range payloads {
			payload := kafka.TransactionIngestedPayload{
				TransactionID: p.ID,
				City:          p.City,
				PropertyType:  string(p.Type),
				SalePrice:     p.SalePrice,
				SaleDate:      time.Time(p.SaleDate).UTC(),
				IngestedAt:    s.now().UTC(),
			}
			env, err := kafka.NewEventEnvelope("transaction.ingested", "appraisal-engine", payload)
			if err == nil {
				err = s.publisher.PublishEvent(ctx, kafka.TopicTransactionIngested, p.ID, env)
			}
			if s.metrics != nil {
				s.metrics.RecordEvent(kafka.TopicTransactionIngested, err)
			}
			if err != nil {
				s.logger.Warn("failed to publish ingest event",
					logging.String("transaction_id", p.ID), logging.Err(err))
			}
		}
	}

	s.logger.Info("transactions ingested",
		logging.Int("received", len(payloads)),
		logging.Int("written", written))
	return written, nil
}

package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nadlantech/appraisal-engine/internal/domain/adjustment"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// AuditRepository
// ─────────────────────────────────────────────────────────────────────────────

// AuditRepository persists manual-override audit events. The table is
// append-only: there is no update or delete path, here or in the schema.
type AuditRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewAuditRepository constructs a ready-to-use AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool, logger logging.Logger) *AuditRepository {
	return &AuditRepository{pool: pool, logger: logger}
}

// Append writes the events of one override operation inside a single
// transaction, so an operation's audit trail is never partially visible.
func (r *AuditRepository) Append(ctx context.Context, events []adjustment.ManualOverrideEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin audit transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insertSQL = `
		INSERT INTO override_audit_events (
			id, comparable_id, field, old_value, new_value,
			reason, appraiser_id, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, ev := range events {
		_, err := tx.Exec(ctx, insertSQL,
			common.GenerateID("aud"), ev.ComparableID, ev.Field,
			ev.OldValue, ev.NewValue, ev.Reason,
			string(ev.AppraiserID), time.Time(ev.Timestamp),
		)
		if err != nil {
			r.logger.Error("AuditRepository.Append failed",
				logging.String("comparable_id", ev.ComparableID),
				logging.String("field", ev.Field),
				logging.Err(err))
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to append audit event")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit audit events")
	}
	return nil
}

// ListByComparable returns the full audit trail of one comparable in
// chronological order.
func (r *AuditRepository) ListByComparable(ctx context.Context, comparableID string) ([]adjustment.ManualOverrideEvent, error) {
	const querySQL = `
		SELECT comparable_id, field, old_value, new_value,
		       reason, appraiser_id, occurred_at
		FROM override_audit_events
		WHERE comparable_id = $1
		ORDER BY occurred_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, querySQL, comparableID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query audit events")
	}
	defer rows.Close()

	var out []adjustment.ManualOverrideEvent
	for rows.Next() {
		var (
			ev          adjustment.ManualOverrideEvent
			appraiserID string
			occurredAt  time.Time
		)
		if err := rows.Scan(&ev.ComparableID, &ev.Field, &ev.OldValue, &ev.NewValue,
			&ev.Reason, &appraiserID, &occurredAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan audit event")
		}
		ev.AppraiserID = common.AppraiserID(appraiserID)
		ev.Timestamp = common.Timestamp(occurredAt)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read audit event rows")
	}
	return out, nil
}

// Package repositories provides the PostgreSQL-backed persistence layer:
// observed sale transactions, valuation runs, and the append-only manual
// override audit log.
package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nadlantech/appraisal-engine/internal/domain/property"
	"github.com/nadlantech/appraisal-engine/internal/infrastructure/monitoring/logging"
	"github.com/nadlantech/appraisal-engine/pkg/errors"
	"github.com/nadlantech/appraisal-engine/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// TransactionRepository
// ─────────────────────────────────────────────────────────────────────────────

// PoolFilter narrows a comparable-pool fetch. Zero values mean "no filter".
// The geo fields are honoured by stores that index location (the OpenSearch
// mirror); the SQL store ignores them and filters by city alone.
type PoolFilter struct {
	City        string
	Type        property.Type
	MinSaleDate time.Time
	Limit       int

	CenterLat    float64
	CenterLng    float64
	RadiusMeters float64
}

// TransactionRepository persists observed sale transactions. Observations are
// immutable once stored; re-observing the same sale updates nothing thanks to
// the fingerprint uniqueness constraint.
type TransactionRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewTransactionRepository constructs a ready-to-use TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool, logger logging.Logger) *TransactionRepository {
	return &TransactionRepository{pool: pool, logger: logger}
}

const insertTransactionSQL = `
	INSERT INTO sale_transactions (
		id, fingerprint, address, city, neighborhood, lat, lng,
		property_type, size_sqm, floor, total_floors, building_age,
		condition, has_elevator, has_parking, has_balcony, has_view,
		noise_level, renovation_state, planning_potential,
		sale_date, sale_price, observed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, now()
	)
	ON CONFLICT (fingerprint) DO NOTHING`

// Save stores one observation, ignoring duplicates of an already-observed
// sale. Returns true when a new row was written.
func (r *TransactionRepository) Save(ctx context.Context, p property.FeaturePayload) (bool, error) {
	tag, err := r.pool.Exec(ctx, insertTransactionSQL,
		p.ID, property.DuplicateFingerprint(p),
		p.Address, p.City, p.Neighborhood, p.Lat, p.Lng,
		string(p.Type), p.SizeSqm, p.Floor, p.TotalFloors, p.BuildingAge,
		p.Condition, p.HasElevator, p.HasParking, p.HasBalcony, p.HasView,
		p.NoiseLevel, string(p.Renovation), p.PlanningPotential,
		time.Time(p.SaleDate), p.SalePrice,
	)
	if err != nil {
		r.logger.Error("TransactionRepository.Save failed",
			logging.String("transaction_id", p.ID), logging.Err(err))
		return false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to store sale transaction")
	}
	return tag.RowsAffected() > 0, nil
}

// SaveBatch stores a set of observations inside one transaction, returning
// the count of newly written rows.
func (r *TransactionRepository) SaveBatch(ctx context.Context, payloads []property.FeaturePayload) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	written := 0
	for _, p := range payloads {
		tag, err := tx.Exec(ctx, insertTransactionSQL,
			p.ID, property.DuplicateFingerprint(p),
			p.Address, p.City, p.Neighborhood, p.Lat, p.Lng,
			string(p.Type), p.SizeSqm, p.Floor, p.TotalFloors, p.BuildingAge,
			p.Condition, p.HasElevator, p.HasParking, p.HasBalcony, p.HasView,
			p.NoiseLevel, string(p.Renovation), p.PlanningPotential,
			time.Time(p.SaleDate), p.SalePrice,
		)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to store sale transaction batch")
		}
		written += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit sale transaction batch")
	}
	return written, nil
}

// FetchPool loads the comparable pool matching the filter, newest sales
// first. The pool is already deduplicated by the fingerprint constraint.
func (r *TransactionRepository) FetchPool(ctx context.Context, filter PoolFilter) ([]property.FeaturePayload, error) {
	const baseSQL = `
		SELECT id, address, city, neighborhood, lat, lng,
		       property_type, size_sqm, floor, total_floors, building_age,
		       condition, has_elevator, has_parking, has_balcony, has_view,
		       noise_level, renovation_state, planning_potential,
		       sale_date, sale_price
		FROM sale_transactions
		WHERE ($1 = '' OR lower(city) = lower($1))
		  AND ($2 = '' OR property_type = $2)
		  AND ($3::timestamptz IS NULL OR sale_date >= $3)
		ORDER BY sale_date DESC
		LIMIT $4`

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	var minDate *time.Time
	if !filter.MinSaleDate.IsZero() {
		minDate = &filter.MinSaleDate
	}

	rows, err := r.pool.Query(ctx, baseSQL, filter.City, string(filter.Type), minDate, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query comparable pool")
	}
	defer rows.Close()

	var out []property.FeaturePayload
	for rows.Next() {
		p, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read comparable pool rows")
	}
	return out, nil
}

func scanTransaction(row pgx.Row) (property.FeaturePayload, error) {
	var (
		p        property.FeaturePayload
		typ      string
		renov    string
		saleDate time.Time
	)
	err := row.Scan(
		&p.ID, &p.Address, &p.City, &p.Neighborhood, &p.Lat, &p.Lng,
		&typ, &p.SizeSqm, &p.Floor, &p.TotalFloors, &p.BuildingAge,
		&p.Condition, &p.HasElevator, &p.HasParking, &p.HasBalcony, &p.HasView,
		&p.NoiseLevel, &renov, &p.PlanningPotential,
		&saleDate, &p.SalePrice,
	)
	if err != nil {
		return property.FeaturePayload{}, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan sale transaction")
	}
	p.Type = property.Type(typ)
	p.Renovation = property.RenovationState(renov)
	p.SaleDate = common.Timestamp(saleDate)
	return p, nil
}

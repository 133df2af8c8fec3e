package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"regionwatch/internal/types"
)

// RegionRepository provides data access for the regions table. Derived
// fields (centroid, areas, color) are not stored; the region store
// recomputes them on load.
type RegionRepository struct {
	db DBTX
}

// NewRegionRepository creates a RegionRepository backed by the given
// database connection (pool or transaction).
func NewRegionRepository(db DBTX) *RegionRepository {
	return &RegionRepository{db: db}
}

const regionColumns = `id, name, points, dataset, color_rules, current_value, updated_at`

func scanRegion(row pgx.Row) (types.Region, error) {
	var (
		r      types.Region
		points types.PointList
		rules  types.RuleList
	)
	if err := row.Scan(&r.ID, &r.Name, &points, &r.Dataset, &rules, &r.CurrentValue, &r.UpdatedAt); err != nil {
		return types.Region{}, err
	}
	r.Points = points
	r.Rules = rules
	return r, nil
}

// List returns all regions in list order.
func (r *RegionRepository) List(ctx context.Context) ([]types.Region, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+regionColumns+` FROM regions ORDER BY position, id`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list regions", err)
	}
	defer rows.Close()

	out := make([]types.Region, 0)
	for rows.Next() {
		region, err := scanRegion(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan region", err)
		}
		out = append(out, region)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate regions", err)
	}
	return out, nil
}

// GetByID returns one region. Returns ErrCodeNotFoundRegion if absent.
func (r *RegionRepository) GetByID(ctx context.Context, id string) (*types.Region, error) {
	row := r.db.QueryRow(ctx, `SELECT `+regionColumns+` FROM regions WHERE id = $1`, id)
	region, err := scanRegion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRegion, "region not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve region", err)
	}
	return &region, nil
}

// Upsert writes a region at the given list position.
func (r *RegionRepository) Upsert(ctx context.Context, region types.Region, position int) error {
	return upsertRegion(ctx, r.db, region, position)
}

func upsertRegion(ctx context.Context, db DBTX, region types.Region, position int) error {
	_, err := db.Exec(ctx,
		`INSERT INTO regions (id, name, points, dataset, color_rules, current_value, position, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			points = EXCLUDED.points,
			dataset = EXCLUDED.dataset,
			color_rules = EXCLUDED.color_rules,
			current_value = EXCLUDED.current_value,
			position = EXCLUDED.position,
			updated_at = EXCLUDED.updated_at`,
		region.ID,
		region.Name,
		types.PointList(region.Points),
		region.Dataset,
		types.RuleList(region.Rules),
		region.CurrentValue,
		position,
		nilIfZeroTime(region.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save region", err)
	}
	return nil
}

// Delete removes a region. Returns ErrCodeNotFoundRegion if absent.
func (r *RegionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM regions WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete region", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundRegion, "region not found", nil)
	}
	return nil
}

// ReplaceAll rewrites the table to hold exactly regions, in order. It runs
// in a single transaction when the connection supports one.
func (r *RegionRepository) ReplaceAll(ctx context.Context, regions []types.Region) error {
	return inTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `DELETE FROM regions`); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to clear regions", err)
		}
		for i, region := range regions {
			if err := upsertRegion(ctx, tx, region, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

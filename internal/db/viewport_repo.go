package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"regionwatch/internal/types"
)

// ViewportRepository stores the single map camera row.
type ViewportRepository struct {
	db DBTX
}

// NewViewportRepository creates a ViewportRepository.
func NewViewportRepository(db DBTX) *ViewportRepository {
	return &ViewportRepository{db: db}
}

// Get returns the saved viewport, or nil if none was saved yet.
func (r *ViewportRepository) Get(ctx context.Context) (*types.Viewport, error) {
	var v types.Viewport
	err := r.db.QueryRow(ctx, `SELECT lat, lon, zoom FROM viewport WHERE id = 1`).
		Scan(&v.Center.Lat, &v.Center.Lon, &v.Zoom)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load viewport", err)
	}
	return &v, nil
}

// Save writes the viewport.
func (r *ViewportRepository) Save(ctx context.Context, v types.Viewport) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO viewport (id, lat, lon, zoom, updated_at)
		 VALUES (1, $1, $2, $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET
			lat = EXCLUDED.lat, lon = EXCLUDED.lon, zoom = EXCLUDED.zoom, updated_at = NOW()`,
		v.Center.Lat, v.Center.Lon, v.Zoom,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save viewport", err)
	}
	return nil
}

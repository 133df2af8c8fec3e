package db

import (
	"context"
	"fmt"

	"regionwatch/internal/series"
	"regionwatch/internal/types"
)

// SeriesSnapshotRepository persists cached provider series so a restart
// does not refetch them. Payloads are zstd-compressed JSON.
type SeriesSnapshotRepository struct {
	db DBTX
}

// NewSeriesSnapshotRepository creates a SeriesSnapshotRepository.
func NewSeriesSnapshotRepository(db DBTX) *SeriesSnapshotRepository {
	return &SeriesSnapshotRepository{db: db}
}

// SaveAll stores entries. Keys that already exist are left untouched, the
// same first-write-wins rule the cache follows. Returns the number of rows
// inserted.
func (r *SeriesSnapshotRepository) SaveAll(ctx context.Context, entries []series.Entry) (int, error) {
	inserted := 0
	err := inTx(ctx, r.db, func(tx DBTX) error {
		for _, e := range entries {
			payload, err := series.EncodeSeries(e.Series)
			if err != nil {
				return types.NewAppError(types.ErrCodeInternalCache,
					fmt.Sprintf("failed to encode series %s", e.Key), err)
			}
			tag, err := tx.Exec(ctx,
				`INSERT INTO series_snapshots (cache_key, payload, created_at)
				 VALUES ($1, $2, NOW())
				 ON CONFLICT (cache_key) DO NOTHING`,
				e.Key, payload,
			)
			if err != nil {
				return types.NewAppError(types.ErrCodeInternalDB, "failed to save series snapshot", err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// LoadAll returns every stored entry ordered by key. Rows that fail to
// decode are skipped and counted in the second return value.
func (r *SeriesSnapshotRepository) LoadAll(ctx context.Context) ([]series.Entry, int, error) {
	rows, err := r.db.Query(ctx, `SELECT cache_key, payload FROM series_snapshots ORDER BY cache_key`)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to load series snapshots", err)
	}
	defer rows.Close()

	var (
		out     []series.Entry
		corrupt int
	)
	for rows.Next() {
		var (
			key     string
			payload []byte
		)
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan series snapshot", err)
		}
		ts, err := series.DecodeSeries(payload)
		if err != nil {
			corrupt++
			continue
		}
		out = append(out, series.Entry{Key: key, Series: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate series snapshots", err)
	}
	return out, corrupt, nil
}

// Clear deletes every stored snapshot.
func (r *SeriesSnapshotRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM series_snapshots`); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to clear series snapshots", err)
	}
	return nil
}

// DeleteOlderThan removes snapshots whose key window ended before the
// given date, using the trailing "|end" component of the key.
func (r *SeriesSnapshotRepository) DeleteOlderThan(ctx context.Context, date string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM series_snapshots WHERE split_part(cache_key, '|', 4) < $1`, date)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune series snapshots", err)
	}
	return tag.RowsAffected(), nil
}

package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"regionwatch/internal/types"
)

func newTestRegion(id string) types.Region {
	v := 18.4
	return types.Region{
		ID:   id,
		Name: "Harbor " + id,
		Points: []types.GeoPoint{
			{Lat: 22.5, Lon: 88.3}, {Lat: 22.5, Lon: 88.4}, {Lat: 22.6, Lon: 88.4},
		},
		Dataset: types.DatasetWind,
		Rules: []types.ColorRule{
			{ID: "r1", Operator: types.OpGreaterThan, Threshold: 10, Color: "#10B981"},
		},
		CurrentValue: &v,
		UpdatedAt:    time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

// scanFnForRegion mirrors regionColumns.
func scanFnForRegion(r types.Region) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*string) = r.ID
		*dest[1].(*string) = r.Name
		pts, _ := json.Marshal(r.Points)
		if err := dest[2].(*types.PointList).Scan(pts); err != nil {
			return err
		}
		*dest[3].(*types.DatasetKind) = r.Dataset
		rules, _ := json.Marshal(r.Rules)
		if err := dest[4].(*types.RuleList).Scan(rules); err != nil {
			return err
		}
		*dest[5].(**float64) = r.CurrentValue
		*dest[6].(*time.Time) = r.UpdatedAt
		return nil
	}
}

func TestRegionRepository_List_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewRegionRepository(db)
	ctx := context.Background()

	a, b := newTestRegion("a"), newTestRegion("b")
	rows := newMockRows(scanFnForRegion(a), scanFnForRegion(b))
	db.On("Query", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ORDER BY position")
	}), mock.Anything).Return(rows, nil)

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, "b", got[1].ID)
	assert.True(t, rows.closed)
	db.AssertExpectations(t)
}

func TestRegionRepository_List_EmptyIsNotNil(t *testing.T) {
	db := new(mockDBTX)
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(newMockRows(), nil)

	got, err := NewRegionRepository(db).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRegionRepository_List_DBError(t *testing.T) {
	db := new(mockDBTX)
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewRegionRepository(db).List(context.Background())
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestRegionRepository_List_RowsError(t *testing.T) {
	db := new(mockDBTX)
	rows := newMockRows()
	rows.errVal = errors.New("stream reset")
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(rows, nil)

	_, err := NewRegionRepository(db).List(context.Background())
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}

func TestRegionRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	region := newTestRegion("a")

	db := new(mockDBTX)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"a"}).
		Return(&mockRow{scanFn: scanFnForRegion(region)})
	got, err := NewRegionRepository(db).GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, region, *got)

	db = new(mockDBTX)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"x"}).
		Return(&mockRow{scanErr: pgx.ErrNoRows})
	_, err = NewRegionRepository(db).GetByID(ctx, "x")
	assert.Equal(t, types.ErrCodeNotFoundRegion, types.CodeOf(err))
}

func TestRegionRepository_Upsert_Args(t *testing.T) {
	db := new(mockDBTX)
	ctx := context.Background()
	region := newTestRegion("a")

	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ON CONFLICT (id) DO UPDATE")
	}), mock.MatchedBy(func(args []any) bool {
		return len(args) == 8 &&
			args[0] == "a" &&
			args[3] == types.DatasetWind &&
			args[6] == 3
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, NewRegionRepository(db).Upsert(ctx, region, 3))
	db.AssertExpectations(t)
}

func TestRegionRepository_Delete(t *testing.T) {
	ctx := context.Background()

	db := new(mockDBTX)
	db.On("Exec", ctx, mock.Anything, []any{"a"}).Return(pgconn.NewCommandTag("DELETE 1"), nil)
	require.NoError(t, NewRegionRepository(db).Delete(ctx, "a"))

	db = new(mockDBTX)
	db.On("Exec", ctx, mock.Anything, []any{"a"}).Return(pgconn.NewCommandTag("DELETE 0"), nil)
	err := NewRegionRepository(db).Delete(ctx, "a")
	assert.Equal(t, types.ErrCodeNotFoundRegion, types.CodeOf(err))
}

func TestRegionRepository_ReplaceAll_WritesInOrder(t *testing.T) {
	db := new(mockDBTX)
	ctx := context.Background()

	var positions []any
	db.On("Exec", ctx, "DELETE FROM regions", mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 5"), nil).Once()
	db.On("Exec", ctx, mock.MatchedBy(func(sql string) bool {
		return strings.HasPrefix(strings.TrimSpace(sql), "INSERT INTO regions")
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			positions = append(positions, args.Get(2).([]any)[6])
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Times(2)

	err := NewRegionRepository(db).ReplaceAll(ctx, []types.Region{newTestRegion("a"), newTestRegion("b")})
	require.NoError(t, err)
	assert.Equal(t, []any{0, 1}, positions)
	db.AssertExpectations(t)
}

func TestRegionRepository_ReplaceAll_StopsOnError(t *testing.T) {
	db := new(mockDBTX)
	ctx := context.Background()

	db.On("Exec", ctx, "DELETE FROM regions", mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("deadlock detected"))

	err := NewRegionRepository(db).ReplaceAll(ctx, []types.Region{newTestRegion("a")})
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	db.AssertNumberOfCalls(t, "Exec", 1)
}

func TestMigrate(t *testing.T) {
	db := new(mockDBTX)
	ctx := context.Background()
	db.On("Exec", ctx, Schema(), mock.Anything).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, Migrate(ctx, db))
	assert.Contains(t, Schema(), "CREATE TABLE IF NOT EXISTS regions")
	assert.Contains(t, Schema(), "series_snapshots")
	db.AssertExpectations(t)
}

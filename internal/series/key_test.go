package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"regionwatch/internal/types"
)

func TestNewCacheKey_RoundsLocation(t *testing.T) {
	w := NewWindow(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	a := NewCacheKey(types.GeoPoint{Lat: 22.541111, Lon: 88.337777}, []types.DatasetKind{types.DatasetTemperature}, w)
	b := NewCacheKey(types.GeoPoint{Lat: 22.54112, Lon: 88.33781}, []types.DatasetKind{types.DatasetTemperature}, w)

	assert.Equal(t, a, b)
	assert.Equal(t, "22.5411,88.3378|temperature_2m|2026-01-17|2026-02-16", a.String())
}

func TestNewCacheKey_DatasetSetIsOrderFree(t *testing.T) {
	w := NewWindow(time.Now())
	loc := types.GeoPoint{Lat: 1, Lon: 2}
	a := NewCacheKey(loc, []types.DatasetKind{types.DatasetWind, types.DatasetCloud}, w)
	b := NewCacheKey(loc, []types.DatasetKind{types.DatasetCloud, types.DatasetWind, types.DatasetCloud}, w)

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "cloud_cover,wind_speed_10m", a.Fields)
}

func TestNewCacheKey_DifferentDatasetDifferentKey(t *testing.T) {
	w := NewWindow(time.Now())
	loc := types.GeoPoint{Lat: 1, Lon: 2}
	a := NewCacheKey(loc, []types.DatasetKind{types.DatasetTemperature}, w)
	b := NewCacheKey(loc, []types.DatasetKind{types.DatasetWind}, w)
	assert.NotEqual(t, a.String(), b.String())
}

func TestNewCacheKey_WindowChangesKey(t *testing.T) {
	loc := types.GeoPoint{Lat: 1, Lon: 2}
	kinds := []types.DatasetKind{types.DatasetTemperature}
	a := NewCacheKey(loc, kinds, NewWindow(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)))
	b := NewCacheKey(loc, kinds, NewWindow(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)))
	assert.NotEqual(t, a.String(), b.String())
}

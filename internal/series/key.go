package series

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"regionwatch/internal/types"
)

// LocationPrecision is the number of decimals locations are rounded to before
// they enter a cache key or a provider request.
const LocationPrecision = 4

// CacheKey identifies one cached provider response.
type CacheKey struct {
	Lat    float64
	Lon    float64
	Fields string
	Start  string
	End    string
}

// RoundLocation rounds a point to LocationPrecision decimals.
func RoundLocation(p types.GeoPoint) types.GeoPoint {
	scale := math.Pow10(LocationPrecision)
	return types.GeoPoint{
		Lat: math.Round(p.Lat*scale) / scale,
		Lon: math.Round(p.Lon*scale) / scale,
	}
}

// FieldList returns the comma-joined provider fields for kinds, sorted and
// de-duplicated so the same set always yields the same key.
func FieldList(kinds []types.DatasetKind) string {
	seen := make(map[string]bool, len(kinds))
	fields := make([]string, 0, len(kinds))
	for _, k := range kinds {
		f := k.ProviderField()
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return strings.Join(fields, ",")
}

// NewCacheKey builds the key for a location, dataset set, and window.
func NewCacheKey(loc types.GeoPoint, kinds []types.DatasetKind, w Window) CacheKey {
	r := RoundLocation(loc)
	return CacheKey{
		Lat:    r.Lat,
		Lon:    r.Lon,
		Fields: FieldList(kinds),
		Start:  w.StartDate(),
		End:    w.EndDate(),
	}
}

// String is the storage form of the key.
func (k CacheKey) String() string {
	return fmt.Sprintf("%.4f,%.4f|%s|%s|%s", k.Lat, k.Lon, k.Fields, k.Start, k.End)
}

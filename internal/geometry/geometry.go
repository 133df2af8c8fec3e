// Package geometry computes derived properties of user-drawn regions:
// centroid, planar area, spherical area, and the closed polygon ring used
// for rendering.
//
// Area is a flat-earth approximation: degree coordinates are treated as a
// plane and scaled by KmPerDegree². It is only meaningful for small,
// mid-latitude regions and overstates area away from the equator because
// longitude degrees shrink with latitude. GeodesicArea gives the spherical
// figure for comparison.
package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/twpayne/go-geom"

	"regionwatch/internal/types"
)

// KmPerDegree is the approximate length of one degree of latitude in km.
const KmPerDegree = 111.32

// EarthRadiusKm is the mean Earth radius used for spherical area.
const EarthRadiusKm = 6371.0088

// Centroid returns the arithmetic mean of the vertex coordinates.
// An empty slice yields the zero point.
func Centroid(points []types.GeoPoint) types.GeoPoint {
	if len(points) == 0 {
		return types.GeoPoint{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return types.GeoPoint{Lat: lat / n, Lon: lon / n}
}

// Area returns the planar shoelace area of the implicitly closed ring,
// converted to approximate km² and rounded to 2 decimals.
// Fewer than 3 points yield 0.
func Area(points []types.GeoPoint) float64 {
	n := len(points)
	if n < types.MinRegionPoints {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].Lat * points[j].Lon
		sum -= points[j].Lat * points[i].Lon
	}
	area := math.Abs(sum) / 2
	return Round2(area * KmPerDegree * KmPerDegree)
}

// GeodesicArea returns the spherical area of the ring in km², rounded to
// 2 decimals. The ring orientation does not matter; the smaller of the two
// regions bounded by the loop is measured.
func GeodesicArea(points []types.GeoPoint) float64 {
	pts := make([]s2.Point, 0, len(points))
	for _, p := range points {
		sp := s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon))
		if len(pts) > 0 && pts[len(pts)-1] == sp {
			continue
		}
		pts = append(pts, sp)
	}
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < types.MinRegionPoints {
		return 0
	}

	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return Round2(loop.Area() * EarthRadiusKm * EarthRadiusKm)
}

// Derive computes centroid and planar area from the same point slice.
// Callers use it so the two never diverge.
func Derive(points []types.GeoPoint) (types.GeoPoint, float64) {
	return Centroid(points), Area(points)
}

// ValidatePoints enforces the region invariants: 3 to 12 finite vertices
// with latitudes in [-90, 90] and longitudes in [-180, 180].
func ValidatePoints(points []types.GeoPoint) error {
	if len(points) < types.MinRegionPoints || len(points) > types.MaxRegionPoints {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidPoints,
			fmt.Sprintf("a region needs between %d and %d points", types.MinRegionPoints, types.MaxRegionPoints),
			nil,
			map[string]any{"count": len(points)},
		)
	}
	for i, p := range points {
		if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidLat,
				"latitude must be between -90 and 90",
				nil,
				map[string]any{"index": i},
			)
		}
		if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180 {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidLon,
				"longitude must be between -180 and 180",
				nil,
				map[string]any{"index": i},
			)
		}
	}
	return nil
}

// Ring builds the closed polygon ring in (lon, lat) order with the first
// vertex repeated at the end.
func Ring(points []types.GeoPoint) *geom.Polygon {
	if len(points) == 0 {
		return geom.NewPolygon(geom.XY).SetSRID(4326)
	}
	flat := make([]float64, 0, 2*(len(points)+1))
	for _, p := range points {
		flat = append(flat, p.Lon, p.Lat)
	}
	flat = append(flat, points[0].Lon, points[0].Lat)
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(4326)
}

// SamePoints reports whether two vertex sequences are identical.
func SamePoints(a, b []types.GeoPoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Round2 rounds v to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

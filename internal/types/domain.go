package types

import "time"

// Sentinel colors used when no rule produces a color.
const (
	// NoDataColor is returned by the classifier when the value is not finite,
	// no valid rule exists, or nothing matched. Unresolved regions use it too.
	NoDataColor = "#94A3B8"
)

// Timeline window constants. Offsets are whole hours from the start of the
// fixed 30-day window (15 days back, 15 days forward from today).
const (
	WindowDaysBack    = 15
	WindowDaysForward = 15
	WindowHours       = (WindowDaysBack + WindowDaysForward) * 24

	DefaultInstant    = 360
	DefaultRangeStart = 300
	DefaultRangeEnd   = 420
)

// Region point-count bounds.
const (
	MinRegionPoints = 3
	MaxRegionPoints = 12
)

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// ColorRule maps values satisfying "value <op> threshold" to a color.
type ColorRule struct {
	ID        string        `json:"id"`
	Operator  ColorOperator `json:"operator"`
	Threshold float64       `json:"threshold"`
	Color     string        `json:"color"`
}

// Region is a user-drawn polygon bound to a dataset and a rule set.
//
// Points are stored in drawing order and the ring is implicitly closed.
// Centroid and AreaKm2 are always derived together from Points.
type Region struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Points  []GeoPoint  `json:"points"`
	Dataset DatasetKind `json:"dataset"`
	Rules   []ColorRule `json:"color_rules"`

	Centroid        GeoPoint  `json:"centroid"`
	AreaKm2         float64   `json:"area_km2"`
	GeodesicAreaKm2 float64   `json:"geodesic_area_km2"`
	CurrentValue    *float64  `json:"current_value,omitempty"`
	Color           string    `json:"color"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Unit returns the display unit of the region's dataset.
func (r Region) Unit() string {
	return r.Dataset.Unit()
}

// Clone returns a deep copy of the region.
func (r Region) Clone() Region {
	out := r
	out.Points = append([]GeoPoint(nil), r.Points...)
	out.Rules = append([]ColorRule(nil), r.Rules...)
	if r.CurrentValue != nil {
		v := *r.CurrentValue
		out.CurrentValue = &v
	}
	return out
}

// TimelineState is the scrubbable timeline position.
//
// Both Instant and Range are retained across mode switches; Mode decides
// which one is authoritative for resolution.
type TimelineState struct {
	Mode    TimelineMode `json:"mode"`
	Instant int          `json:"instant"`
	Range   [2]int       `json:"range"`
	Playing bool         `json:"playing"`
}

// DefaultTimeline returns the timeline state used at load and on reset.
func DefaultTimeline() TimelineState {
	return TimelineState{
		Mode:    TimelineSingle,
		Instant: DefaultInstant,
		Range:   [2]int{DefaultRangeStart, DefaultRangeEnd},
	}
}

// Viewport is the persisted map camera position.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
}

// DefaultViewport returns the initial map camera.
func DefaultViewport() Viewport {
	return Viewport{
		Center: GeoPoint{Lat: 22.54111111, Lon: 88.33777778},
		Zoom:   10,
	}
}

// TimeSeries is a provider response: hourly samples per dataset aligned by
// index with Times. Missing samples are nil.
//
// A TimeSeries stored in a cache is immutable; callers must not modify it.
type TimeSeries struct {
	Latitude  float64                    `json:"latitude"`
	Longitude float64                    `json:"longitude"`
	Times     []string                   `json:"time"`
	Values    map[DatasetKind][]*float64 `json:"values"`
}

// Series returns the samples for kind and whether they were present.
func (ts *TimeSeries) Series(kind DatasetKind) ([]*float64, bool) {
	if ts == nil || ts.Values == nil {
		return nil, false
	}
	v, ok := ts.Values[kind]
	return v, ok
}

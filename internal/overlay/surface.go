// Package overlay keeps a map rendering surface in step with the region
// store: one GeoJSON source and three layers (fill, border, label) per
// region.
package overlay

import (
	"errors"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// ErrNotFound is returned by a Surface for an unknown source or layer.
var ErrNotFound = errors.New("overlay: not found")

// ErrExists is returned by a Surface when adding a duplicate source or layer.
var ErrExists = errors.New("overlay: already exists")

// Fixed paint values.
const (
	FillOpacity = 0.4
	BorderColor = "#1E40AF"
	BorderWidth = 2.0
	LabelColor  = "#111827"
	LabelHalo   = "#ffffff"
	LabelSize   = 14.0

	PropFillColor = "fill-color"
)

// LabelFonts is the font stack used by label layers.
var LabelFonts = []string{"Open Sans Bold", "Arial Unicode MS Bold"}

// FillPaint styles a region's fill layer.
type FillPaint struct {
	Color   string  `json:"fill-color"`
	Opacity float64 `json:"fill-opacity"`
}

// LinePaint styles a region's border layer.
type LinePaint struct {
	Color string  `json:"line-color"`
	Width float64 `json:"line-width"`
}

// LabelStyle styles a region's label layer. TextField is a map style
// expression evaluated against the source feature's properties.
type LabelStyle struct {
	TextField []any    `json:"text-field"`
	Font      []string `json:"text-font"`
	Size      float64  `json:"text-size"`
	Color     string   `json:"text-color"`
	HaloColor string   `json:"text-halo-color"`
	HaloWidth float64  `json:"text-halo-width"`
}

// Surface is the subset of a map rendering API the reconciler drives.
// Implementations need not be safe for concurrent use; the reconciler
// serializes its calls.
type Surface interface {
	AddSource(id string, data *geojson.Feature) error
	AddFillLayer(id, source string, paint FillPaint) error
	AddBorderLayer(id, source string, paint LinePaint) error
	AddLabelLayer(id, source string, style LabelStyle) error
	SetSourceData(id string, data *geojson.Feature) error
	SetPaintProperty(layerID, property string, value any) error
	SourceExists(id string) bool
	RemoveLayer(id string) error
	RemoveSource(id string) error
	// Ready is closed once the surface accepts sources and layers.
	Ready() <-chan struct{}
}

// SourceID returns the GeoJSON source identifier of a region.
func SourceID(regionID string) string { return "region-source-" + regionID }

// FillLayerID returns the fill layer identifier of a region.
func FillLayerID(regionID string) string { return "region-" + regionID }

// BorderLayerID returns the border layer identifier of a region.
func BorderLayerID(regionID string) string { return "region-" + regionID + "-border" }

// LabelLayerID returns the label layer identifier of a region.
func LabelLayerID(regionID string) string { return "region-" + regionID + "-label" }

// DefaultFillPaint returns the fill paint for a region color.
func DefaultFillPaint(color string) FillPaint {
	return FillPaint{Color: color, Opacity: FillOpacity}
}

// DefaultLinePaint returns the border paint shared by all regions.
func DefaultLinePaint() LinePaint {
	return LinePaint{Color: BorderColor, Width: BorderWidth}
}

// DefaultLabelStyle returns the label style shared by all regions. The
// text renders as "name\ndataset: valueunit".
func DefaultLabelStyle() LabelStyle {
	return LabelStyle{
		TextField: []any{
			"concat",
			[]any{"get", "name"},
			"\n",
			[]any{"get", "datasetName"},
			": ",
			[]any{"to-string", []any{"get", "currentValue"}},
			[]any{"get", "datasetUnit"},
		},
		Font:      LabelFonts,
		Size:      LabelSize,
		Color:     LabelColor,
		HaloColor: LabelHalo,
		HaloWidth: 1,
	}
}

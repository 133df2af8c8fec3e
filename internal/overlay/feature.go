package overlay

import (
	"strconv"

	"github.com/twpayne/go-geom/encoding/geojson"

	"regionwatch/internal/geometry"
	"regionwatch/internal/types"
)

// Feature encodes a region as the GeoJSON feature backing its source.
func Feature(r types.Region) *geojson.Feature {
	props := map[string]any{
		"id":           r.ID,
		"name":         r.Name,
		"datasetName":  string(r.Dataset),
		"datasetUnit":  r.Dataset.Unit(),
		"currentValue": nil,
	}
	if r.CurrentValue != nil {
		props["currentValue"] = *r.CurrentValue
	}
	return &geojson.Feature{
		ID:         r.ID,
		Geometry:   geometry.Ring(r.Points),
		Properties: props,
	}
}

// LabelText evaluates the label expression for a region the way a map
// client would.
func LabelText(r types.Region) string {
	value := ""
	if r.CurrentValue != nil {
		value = strconv.FormatFloat(*r.CurrentValue, 'f', -1, 64)
	}
	return r.Name + "\n" + string(r.Dataset) + ": " + value + r.Dataset.Unit()
}

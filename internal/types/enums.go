package types

// DatasetKind identifies the weather dataset a region is bound to.
type DatasetKind string

const (
	DatasetTemperature   DatasetKind = "temperature"
	DatasetWind          DatasetKind = "wind"
	DatasetCloud         DatasetKind = "cloud"
	DatasetPrecipitation DatasetKind = "precipitation"
)

// DatasetKinds lists every supported dataset in display order.
var DatasetKinds = []DatasetKind{
	DatasetTemperature,
	DatasetWind,
	DatasetCloud,
	DatasetPrecipitation,
}

// datasetMeta holds the fixed display unit and provider field of a dataset.
type datasetMeta struct {
	unit  string
	field string
	label string
}

var datasetTable = map[DatasetKind]datasetMeta{
	DatasetTemperature:   {unit: "°C", field: "temperature_2m", label: "Temperature"},
	DatasetWind:          {unit: "km/h", field: "wind_speed_10m", label: "Wind"},
	DatasetCloud:         {unit: "%", field: "cloud_cover", label: "Cloud"},
	DatasetPrecipitation: {unit: "mm", field: "precipitation", label: "Precipitation"},
}

// Valid reports whether k is one of the supported dataset kinds.
func (k DatasetKind) Valid() bool {
	_, ok := datasetTable[k]
	return ok
}

// Unit returns the display unit for the dataset, or "" for unknown kinds.
func (k DatasetKind) Unit() string {
	return datasetTable[k].unit
}

// ProviderField returns the hourly field identifier used by the time-series
// provider for this dataset.
func (k DatasetKind) ProviderField() string {
	return datasetTable[k].field
}

// Label returns the human-readable dataset name.
func (k DatasetKind) Label() string {
	return datasetTable[k].label
}

// ColorOperator is the comparison operator of a ColorRule.
type ColorOperator string

const (
	OpLessThan      ColorOperator = "<"
	OpLessThanEq    ColorOperator = "<="
	OpEqual         ColorOperator = "="
	OpGreaterThanEq ColorOperator = ">="
	OpGreaterThan   ColorOperator = ">"
)

// Valid reports whether op is a recognized comparison operator.
func (op ColorOperator) Valid() bool {
	switch op {
	case OpLessThan, OpLessThanEq, OpEqual, OpGreaterThanEq, OpGreaterThan:
		return true
	}
	return false
}

// TimelineMode selects which part of TimelineState drives resolution.
type TimelineMode string

const (
	TimelineSingle TimelineMode = "single"
	TimelineRange  TimelineMode = "range"
)

// Valid reports whether m is a known timeline mode.
func (m TimelineMode) Valid() bool {
	return m == TimelineSingle || m == TimelineRange
}

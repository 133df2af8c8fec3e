package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions. Scan is on pointer receivers; Value is
// on value receivers.
var (
	_ sql.Scanner   = (*PointList)(nil)
	_ driver.Valuer = PointList(nil)
	_ sql.Scanner   = (*RuleList)(nil)
	_ driver.Valuer = RuleList(nil)
)

// scanJSONB scans a JSONB column value into dest. Drivers hand back either
// []byte or string.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

func valueJSONB(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// PointList is the JSONB form of a region's vertex sequence.
type PointList []GeoPoint

// Scan implements sql.Scanner.
func (p *PointList) Scan(value any) error {
	return scanJSONB(p, value)
}

// Value implements driver.Valuer. A nil list is stored as an empty array.
func (p PointList) Value() (driver.Value, error) {
	if p == nil {
		return valueJSONB([]GeoPoint{})
	}
	return valueJSONB([]GeoPoint(p))
}

// RuleList is the JSONB form of a region's color rules.
type RuleList []ColorRule

// Scan implements sql.Scanner.
func (r *RuleList) Scan(value any) error {
	return scanJSONB(r, value)
}

// Value implements driver.Valuer. A nil list is stored as an empty array.
func (r RuleList) Value() (driver.Value, error) {
	if r == nil {
		return valueJSONB([]ColorRule{})
	}
	return valueJSONB([]ColorRule(r))
}

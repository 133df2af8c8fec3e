// Package classify maps a resolved dataset value to a fill color using a
// region's color rules.
//
// Rule evaluation does not depend on list order. Equality rules win first,
// then the tightest upper bound (smallest threshold among < and <=), then the
// tightest lower bound (largest threshold among > and >=). A value matching
// nothing, a non-finite value, or an empty rule set yields types.NoDataColor.
package classify

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"regionwatch/internal/types"
)

// EqualityTolerance is the absolute tolerance used by "=" rules.
const EqualityTolerance = 0.001

// Default rule colors.
const (
	ColorCold = "#EF4444"
	ColorMild = "#F59E0B"
	ColorWarm = "#10B981"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// Classify returns exactly one color for value under rules.
func Classify(value float64, rules []types.ColorRule) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return types.NoDataColor
	}

	var equal, upper, lower []types.ColorRule
	for _, r := range rules {
		if !ValidRule(r) {
			continue
		}
		switch r.Operator {
		case types.OpEqual:
			equal = append(equal, r)
		case types.OpLessThan, types.OpLessThanEq:
			upper = append(upper, r)
		case types.OpGreaterThan, types.OpGreaterThanEq:
			lower = append(lower, r)
		}
	}

	for _, r := range equal {
		if math.Abs(value-r.Threshold) < EqualityTolerance {
			return r.Color
		}
	}

	sort.SliceStable(upper, func(i, j int) bool { return upper[i].Threshold < upper[j].Threshold })
	for _, r := range upper {
		if matches(value, r) {
			return r.Color
		}
	}

	sort.SliceStable(lower, func(i, j int) bool { return lower[i].Threshold > lower[j].Threshold })
	for _, r := range lower {
		if matches(value, r) {
			return r.Color
		}
	}

	return types.NoDataColor
}

func matches(value float64, r types.ColorRule) bool {
	switch r.Operator {
	case types.OpLessThan:
		return value < r.Threshold
	case types.OpLessThanEq:
		return value <= r.Threshold
	case types.OpGreaterThan:
		return value > r.Threshold
	case types.OpGreaterThanEq:
		return value >= r.Threshold
	case types.OpEqual:
		return math.Abs(value-r.Threshold) < EqualityTolerance
	}
	return false
}

// ValidRule reports whether the classifier will consider r. Malformed rules
// are skipped silently during classification.
func ValidRule(r types.ColorRule) bool {
	if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
		return false
	}
	return r.Operator.Valid() && strings.TrimSpace(r.Color) != ""
}

// IsHexColor reports whether s is a #RGB or #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColor.MatchString(s)
}

// ValidateRule checks user-supplied rules more strictly than ValidRule:
// the color must also be a hex color.
func ValidateRule(r types.ColorRule) error {
	if !ValidRule(r) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidColorRule,
			"color rule needs a known operator, a finite threshold and a color",
			nil,
			map[string]any{"rule_id": r.ID, "operator": string(r.Operator)},
		)
	}
	if !IsHexColor(r.Color) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidColorRule,
			"color must be a hex color like #RRGGBB",
			nil,
			map[string]any{"rule_id": r.ID, "color": r.Color},
		)
	}
	return nil
}

// ValidateRules validates every rule and returns the first failure.
func ValidateRules(rules []types.ColorRule) error {
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRules returns the rule set attached to newly drawn regions.
func DefaultRules(newID func() string) []types.ColorRule {
	return []types.ColorRule{
		{ID: newID(), Operator: types.OpLessThan, Threshold: 10, Color: ColorCold},
		{ID: newID(), Operator: types.OpGreaterThanEq, Threshold: 10, Color: ColorMild},
		{ID: newID(), Operator: types.OpGreaterThan, Threshold: 20, Color: ColorWarm},
	}
}

// ColorFor returns the fill color of a region: the no-data color until a
// value has been resolved, the classified color afterwards.
func ColorFor(r types.Region) string {
	if r.CurrentValue == nil {
		return types.NoDataColor
	}
	return Classify(*r.CurrentValue, r.Rules)
}

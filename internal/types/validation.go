package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Coordinate bounds.
const (
	MinLat = -90.0
	MaxLat = 90.0
	MinLon = -180.0
	MaxLon = 180.0
)

// MaxNameLength bounds region display names.
const MaxNameLength = 100

// Map zoom bounds accepted for the persisted viewport.
const (
	MinZoom = 0.0
	MaxZoom = 22.0
)

// ValidateName trims and checks a region display name.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", NewAppError(ErrCodeValidationInvalidName, "name must not be empty", nil)
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return "", NewAppError(
			ErrCodeValidationInvalidName,
			fmt.Sprintf("name must be at most %d characters", MaxNameLength),
			nil,
		)
	}
	return trimmed, nil
}

// ValidateDataset rejects unknown dataset kinds.
func ValidateDataset(kind DatasetKind) error {
	if !kind.Valid() {
		return NewAppErrorWithDetails(
			ErrCodeValidationInvalidDataset,
			"unknown dataset",
			nil,
			map[string]any{"dataset": string(kind)},
		)
	}
	return nil
}

// ValidateViewport checks center coordinates and zoom level.
func ValidateViewport(v Viewport) error {
	// Written as negated ranges so NaN is rejected too.
	if !(v.Center.Lat >= MinLat && v.Center.Lat <= MaxLat) || !(v.Center.Lon >= MinLon && v.Center.Lon <= MaxLon) {
		return NewAppError(ErrCodeValidationInvalidViewport, "viewport center out of range", nil)
	}
	if !(v.Zoom >= MinZoom && v.Zoom <= MaxZoom) {
		return NewAppErrorWithDetails(
			ErrCodeValidationInvalidViewport,
			fmt.Sprintf("zoom must be between %g and %g", MinZoom, MaxZoom),
			nil,
			map[string]any{"zoom": v.Zoom},
		)
	}
	return nil
}

// ValidateHour checks a timeline hour offset against the window.
func ValidateHour(hour int) error {
	if hour < 0 || hour > WindowHours {
		return NewAppErrorWithDetails(
			ErrCodeValidationInvalidTimeline,
			fmt.Sprintf("hour offset must be between 0 and %d", WindowHours),
			nil,
			map[string]any{"hour": hour},
		)
	}
	return nil
}

package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"regionwatch/internal/classify"
	"regionwatch/internal/types"
)

// ValidationError describes a single failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult separates blocking errors from advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether no blocking errors were recorded.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator and registers the domain tags:
//
//	dataset_kind   - one of the supported datasets
//	color_operator - one of < <= = >= >
//	hex_color      - #RGB or #RRGGBB
//	timeline_mode  - single or range
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator with the custom tags registered. Field
// names in errors are taken from json tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "dataset_kind", func(fl validator.FieldLevel) bool {
		return types.DatasetKind(fl.Field().String()).Valid()
	})
	mustRegister(v, "color_operator", func(fl validator.FieldLevel) bool {
		return types.ColorOperator(fl.Field().String()).Valid()
	})
	mustRegister(v, "hex_color", func(fl validator.FieldLevel) bool {
		return classify.IsHexColor(fl.Field().String())
	})
	mustRegister(v, "timeline_mode", func(fl validator.FieldLevel) bool {
		return types.TimelineMode(fl.Field().String()).Valid()
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// ValidateStruct validates s and returns an *types.AppError whose code is
// derived from the first failure. All failures are listed under
// Details["validation_errors"].
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}

	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings returns every failure instead of stopping at
// the first. Non-validation errors (e.g. a nil or non-struct argument) are
// reported as a single invalid request entry.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	var result ValidationResult

	err := v.validate.Struct(s)
	if err == nil {
		return result
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Warn("struct validation failed", "error", err)
		result.Errors = append(result.Errors, ValidationError{
			Code:    string(types.ErrCodeValidationInvalidRequest),
			Message: err.Error(),
		})
		return result
	}

	for _, fe := range verrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fieldPath(fe),
			Code:    errorCodeFor(fe),
			Message: messageFor(fe),
		})
	}
	return result
}

// fieldPath strips the root struct name from the namespace, leaving
// e.g. "points[2].lat".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// tagToErrorCode maps tags with a fixed meaning to their error code and
// returns "" for generic tags.
func tagToErrorCode(tag string) string {
	switch tag {
	case "required", "required_if", "required_without":
		return string(types.ErrCodeValidationMissingField)
	case "latitude":
		return string(types.ErrCodeValidationInvalidLat)
	case "longitude":
		return string(types.ErrCodeValidationInvalidLon)
	case "dataset_kind":
		return string(types.ErrCodeValidationInvalidDataset)
	case "color_operator", "hex_color":
		return string(types.ErrCodeValidationInvalidColorRule)
	case "timeline_mode":
		return string(types.ErrCodeValidationInvalidTimeline)
	}
	return ""
}

// errorCodeFor resolves generic tags (min, max, gte...) by the field they
// failed on.
func errorCodeFor(fe validator.FieldError) string {
	if code := tagToErrorCode(fe.Tag()); code != "" {
		return code
	}

	path := fieldPath(fe)
	switch {
	case strings.HasPrefix(path, "points"):
		return string(types.ErrCodeValidationInvalidPoints)
	case strings.HasPrefix(path, "color_rules"), strings.HasPrefix(path, "rules"):
		return string(types.ErrCodeValidationInvalidColorRule)
	case strings.HasPrefix(path, "dataset"):
		return string(types.ErrCodeValidationInvalidDataset)
	case strings.HasPrefix(path, "name"):
		return string(types.ErrCodeValidationInvalidName)
	case strings.HasPrefix(path, "instant"), strings.HasPrefix(path, "range"),
		strings.HasPrefix(path, "start"), strings.HasPrefix(path, "end"),
		strings.HasPrefix(path, "mode"):
		return string(types.ErrCodeValidationInvalidTimeline)
	case strings.HasPrefix(path, "center"), strings.HasPrefix(path, "zoom"):
		return string(types.ErrCodeValidationInvalidViewport)
	}
	return string(types.ErrCodeValidationInvalidRequest)
}

func messageFor(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "latitude":
		return fmt.Sprintf("%s must be within [-90, 90]", field)
	case "longitude":
		return fmt.Sprintf("%s must be within [-180, 180]", field)
	case "dataset_kind":
		return fmt.Sprintf("%s must be one of temperature, wind, cloud, precipitation", field)
	case "color_operator":
		return fmt.Sprintf("%s must be one of <, <=, =, >=, >", field)
	case "hex_color":
		return fmt.Sprintf("%s must be a hex color like #RRGGBB", field)
	case "timeline_mode":
		return fmt.Sprintf("%s must be single or range", field)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

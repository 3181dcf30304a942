// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

// Package validation checks and normalizes marker input using
// go-playground/validator v10.
//
// Every failing field is reported; validation never stops at the first error.
// Custom tags registered on the shared validator:
//   - palette: value is one of models.Palette
//   - imagemime: value is an accepted image content type
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/markit/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is a single field failure.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the input field name (the json name, e.g. "text").
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the tag parameter, e.g. "150" for "max=150".
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} {
	return e.value
}

// Error returns a human-readable message.
func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError collects every field failure of one request.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the collected field failures.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

// Error joins all field messages with "; ".
func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// HasField reports whether field is among the failures.
func (ve *RequestValidationError) HasField(field string) bool {
	for _, err := range ve.errors {
		if err.field == field {
			return true
		}
	}
	return false
}

// FieldError is the serializable form of a ValidationError.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// FieldErrors converts the failures for an API response.
func (ve *RequestValidationError) FieldErrors() []FieldError {
	out := make([]FieldError, len(ve.errors))
	for i, err := range ve.errors {
		out[i] = FieldError{Field: err.field, Tag: err.tag, Message: err.message}
	}
	return out
}

func (ve *RequestValidationError) add(field, tag string, value interface{}, message string) {
	ve.errors = append(ve.errors, ValidationError{field: field, tag: tag, value: value, message: message})
}

// orNil lets callers return a typed nil when nothing failed.
func (ve *RequestValidationError) orNil() *RequestValidationError {
	if ve == nil || len(ve.errors) == 0 {
		return nil
	}
	return ve
}

// GetValidator returns the shared validator with the custom tags registered.
// Field names in errors come from the json struct tag.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation("palette", func(fl validator.FieldLevel) bool {
			return models.IsPaletteColor(fl.Field().String())
		})
		_ = validate.RegisterValidation("imagemime", func(fl validator.FieldLevel) bool {
			return IsAllowedImageMIME(fl.Field().String())
		})
	})
	return validate
}

// ValidateStruct validates s with the shared validator.
// Returns nil when every field passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	return toRequestError(GetValidator().Struct(s))
}

func toRequestError(err error) *RequestValidationError {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		ve := &RequestValidationError{}
		ve.add("unknown", "unknown", nil, err.Error())
		return ve
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"latitude":  "%s must be a latitude between -90 and 90",
	"longitude": "%s must be a longitude between -180 and 180",
	"palette":   "%s must be one of the marker palette colors",
	"imagemime": "%s must be a JPEG or PNG image",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, field)
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

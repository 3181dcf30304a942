// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package validation

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/markit/internal/models"
)

// MaxTextLength is the longest marker text accepted, in characters, after trimming.
const MaxTextLength = 150

// AllowedImageMIME lists the accepted declared content types of an attached image.
var AllowedImageMIME = []string{"image/jpeg", "image/jpg", "image/png"}

// IsAllowedImageMIME reports whether mime is an accepted image content type.
// Matching ignores case and surrounding whitespace.
func IsAllowedImageMIME(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, allowed := range AllowedImageMIME {
		if mime == allowed {
			return true
		}
	}
	return false
}

// htmlEscaper escapes & " ' < > / \ and backtick.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#x27;",
	"<", "&lt;",
	">", "&gt;",
	"/", "&#x2F;",
	`\`, "&#x5C;",
	"`", "&#96;",
)

// EscapeText HTML-escapes marker text.
func EscapeText(s string) string {
	return htmlEscaper.Replace(s)
}

type textColorInput struct {
	Text  string `json:"text" validate:"required,max=150"`
	Color string `json:"color" validate:"required,palette"`
}

type coordinateInput struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// ValidateSubmission checks a raw submission and returns its normalized form.
// All failing fields are reported together in the returned error, which is
// nil on success.
func ValidateSubmission(raw *models.Submission) (*models.NormalizedSubmission, *RequestValidationError) {
	text := strings.TrimSpace(raw.Text)
	color := strings.TrimSpace(raw.Color)

	ve := &RequestValidationError{}
	if err := ValidateStruct(&textColorInput{Text: text, Color: color}); err != nil {
		ve.errors = append(ve.errors, err.errors...)
	}

	loc, locErr := parseLocation(raw.LngLat)
	if locErr != nil {
		ve.errors = append(ve.errors, locErr.errors...)
	}

	if raw.HasImage() && !IsAllowedImageMIME(raw.ImageMIME) {
		ve.add("image", "imagemime", raw.ImageMIME, "image must be a JPEG or PNG image")
	}

	if err := ve.orNil(); err != nil {
		return nil, err
	}

	out := &models.NormalizedSubmission{
		Text:     EscapeText(text),
		Location: *loc,
		Color:    color,
	}
	if raw.HasImage() {
		out.Image = raw.Image
		out.ImageMIME = strings.ToLower(strings.TrimSpace(raw.ImageMIME))
	}
	return out, nil
}

// parseLocation decodes the lnglat field, a JSON object with numeric lat and
// lng members, and range-checks it. Out-of-range values are rejected, never
// clamped.
func parseLocation(raw string) (*models.Location, *RequestValidationError) {
	ve := &RequestValidationError{}
	if strings.TrimSpace(raw) == "" {
		ve.add("lnglat", "required", raw, "lnglat is required")
		return nil, ve
	}

	var parsed struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.Lat == nil || parsed.Lng == nil {
		ve.add("lnglat", "lnglat", raw, "lnglat must be an object with numeric lat and lng")
		return nil, ve
	}

	coords := coordinateInput{Lat: *parsed.Lat, Lng: *parsed.Lng}
	if err := ValidateStruct(&coords); err != nil {
		return nil, err
	}
	return &models.Location{Lat: coords.Lat, Lng: coords.Lng}, nil
}

type changesInput struct {
	Text  *string `json:"text" validate:"omitnil,required,max=150"`
	Color *string `json:"color" validate:"omitnil,required,palette"`
}

// ValidateChanges applies the submission rules to a moderator edit so that
// the text bound, escaping and palette hold after edits too. Nil fields are
// not checked. The returned changes carry trimmed, escaped text.
func ValidateChanges(changes *models.MarkerChanges) (*models.MarkerChanges, *RequestValidationError) {
	in := changesInput{}
	if changes.Text != nil {
		t := strings.TrimSpace(*changes.Text)
		in.Text = &t
	}
	if changes.Color != nil {
		c := strings.TrimSpace(*changes.Color)
		in.Color = &c
	}

	if err := ValidateStruct(&in); err != nil {
		return nil, err
	}

	out := &models.MarkerChanges{Color: in.Color, ClearImage: changes.ClearImage}
	if in.Text != nil {
		escaped := EscapeText(*in.Text)
		out.Text = &escaped
	}
	return out, nil
}

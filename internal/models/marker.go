// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

// Package models holds the marker types shared by the store, the workflows and the HTTP layer.
package models

// Palette is the fixed set of marker colors. No other value is ever persisted.
var Palette = []string{
	"#3498db", // blue
	"#2ecc71", // green
	"#f39c12", // orange
	"#f1c40f", // yellow
	"#7f5539", // brown
	"#95a5a6", // gray
}

// IsPaletteColor reports whether c is one of the Palette colors.
func IsPaletteColor(c string) bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Marker is a persisted map annotation.
type Marker struct {
	ID       int64    `json:"id"`
	Location Location `json:"lnglat"`
	Text     string   `json:"text"` // HTML-escaped
	Color    string   `json:"color"`
	ImageURL *string  `json:"url,omitempty"` // nil when no image is attached
	// CreatedDate is the insert day in YYYY-MM-DD form (UTC).
	CreatedDate string `json:"date"`
}

// HasImage reports whether the marker carries a thumbnail URL.
func (m *Marker) HasImage() bool {
	return m.ImageURL != nil && *m.ImageURL != ""
}

// Submission is the raw, unvalidated input of a create request.
type Submission struct {
	Text   string
	LngLat string // JSON object {"lat":..,"lng":..}
	Color  string

	// Image is nil when no file was attached.
	Image     []byte
	ImageMIME string
}

// HasImage reports whether a file was attached to the submission.
func (s *Submission) HasImage() bool {
	return len(s.Image) > 0
}

// NormalizedSubmission is a submission that passed validation: text is
// trimmed and escaped, the location is parsed and in range, the color is
// in the palette.
type NormalizedSubmission struct {
	Text     string
	Location Location
	Color    string

	Image     []byte
	ImageMIME string
}

// MarkerChanges describes a moderator edit. Nil fields are left untouched.
type MarkerChanges struct {
	Text  *string `json:"text,omitempty"`
	Color *string `json:"color,omitempty"`

	// ClearImage forces the image URL to absent regardless of its prior value.
	ClearImage bool `json:"clear_image,omitempty"`
}

// IsEmpty reports whether the edit changes nothing.
func (c *MarkerChanges) IsEmpty() bool {
	return c.Text == nil && c.Color == nil && !c.ClearImage
}

// Principal is the authenticated identity behind a request. A nil
// *Principal means the request is anonymous.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

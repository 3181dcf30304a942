// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/markit/internal/models"
)

// imageField is the multipart field carrying the optional photo.
const imageField = "image"

// multipartMemory is how much of a multipart body is held in memory
// before spilling to temporary files.
const multipartMemory = 1 << 20

// formOverheadBytes is the body allowance for everything but the image:
// the text, lnglat and color fields plus multipart framing. It is also the
// whole body cap of an edit, which never carries an image.
const formOverheadBytes = 64 << 10

var (
	errBodyTooLarge = errors.New("request body too large")
	errInvalidID    = errors.New("invalid marker id")
)

// parseSubmission reads a marker submission from a multipart form, a
// urlencoded form, or a JSON body. The image is capped at maxImageBytes and
// the whole body at that plus formOverheadBytes, before anything is parsed.
func parseSubmission(w http.ResponseWriter, r *http.Request, maxImageBytes int64) (*models.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+formOverheadBytes)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "application/json":
		return parseJSONSubmission(r)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyError(err)
		}
		if r.MultipartForm != nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
	}

	sub := &models.Submission{
		Text:   r.PostFormValue("text"),
		LngLat: r.PostFormValue("lnglat"),
		Color:  r.PostFormValue("color"),
	}

	if r.MultipartForm == nil {
		return sub, nil
	}

	file, header, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return sub, nil
	}
	if err != nil {
		return nil, bodyError(err)
	}
	defer func() { _ = file.Close() }()

	if header.Size > maxImageBytes {
		return nil, errBodyTooLarge
	}

	// Browsers send an empty part when no file was chosen.
	if header.Filename == "" && header.Size == 0 {
		return sub, nil
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, bodyError(err)
	}
	if len(data) > 0 {
		sub.Image = data
		sub.ImageMIME = header.Header.Get("Content-Type")
	}
	return sub, nil
}

type jsonSubmission struct {
	Text   string          `json:"text"`
	LngLat json.RawMessage `json:"lnglat"`
	Color  string          `json:"color"`
}

// parseJSONSubmission accepts lnglat either as an object or as the
// string-encoded object the form posts.
func parseJSONSubmission(r *http.Request) (*models.Submission, error) {
	var in jsonSubmission
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		return nil, bodyError(err)
	}

	lnglat := string(in.LngLat)
	if trimmed := bytes.TrimSpace(in.LngLat); len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("invalid lnglat: %w", err)
		}
		lnglat = s
	}

	return &models.Submission{Text: in.Text, LngLat: lnglat, Color: in.Color}, nil
}

// parseChangesJSON decodes a PATCH body.
func parseChangesJSON(w http.ResponseWriter, r *http.Request, maxBytes int64) (*models.MarkerChanges, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var changes models.MarkerChanges
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		if errors.Is(err, io.EOF) {
			return &changes, nil
		}
		return nil, bodyError(err)
	}
	return &changes, nil
}

// parseChangesForm reads the form-encoded edit. Fields that are not posted
// stay untouched; checkbox=on clears the image.
func parseChangesForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*models.MarkerChanges, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseForm(); err != nil {
		return nil, bodyError(err)
	}

	changes := &models.MarkerChanges{ClearImage: r.PostForm.Get("checkbox") == "on"}
	if _, ok := r.PostForm["text"]; ok {
		text := r.PostForm.Get("text")
		changes.Text = &text
	}
	if _, ok := r.PostForm["color"]; ok {
		color := r.PostForm.Get("color")
		changes.Color = &color
	}
	return changes, nil
}

// markerID parses the {id} route parameter.
func markerID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	// Some parsers flatten the cause into their own message.
	if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
		return errBodyTooLarge
	}
	return fmt.Errorf("malformed request body: %w", err)
}

// writeRequestError renders a parse failure.
func writeRequestError(rw *ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		rw.PayloadTooLarge("Request body exceeds the upload limit")
		return
	}
	rw.BadRequest(err.Error())
}

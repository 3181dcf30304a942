// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/tomtom215/markit/internal/models"
	"github.com/tomtom215/markit/internal/validation"
)

func TestListMarkers_Anonymous(t *testing.T) {
	s := setupTestServer(t)
	s.seed(t, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/markers", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var view map[string]interface{}
	resp := decodeResponse(t, rec, &view)
	if !resp.Success {
		t.Error("Expected success response")
	}
	if got, ok := view["authenticated"]; !ok || got != false {
		t.Errorf("Expected authenticated=false, got %v", view)
	}
	if len(view) != 1 {
		t.Errorf("Anonymous view leaked fields: %v", view)
	}
}

func TestListMarkers_SignedIn(t *testing.T) {
	s := setupTestServer(t)
	s.seed(t, nil)
	s.seed(t, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/markers", nil), "Bob Visitor")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var list []models.Marker
	decodeResponse(t, rec, &list)
	if len(list) != 2 {
		t.Errorf("Expected 2 markers, got %d", len(list))
	}
}

func TestCreateMarker(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		fields     map[string]string
		image      []byte
		imageType  string
		wantStatus int
		wantCount  int
		wantFields []string
	}{
		{
			name:       "anonymous rejected before parsing",
			fields:     validFields(),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid without image",
			user:       "Bob Visitor",
			fields:     validFields(),
			wantStatus: http.StatusCreated,
			wantCount:  1,
		},
		{
			name:       "valid with image",
			user:       "Bob Visitor",
			fields:     validFields(),
			image:      []byte("jpeg bytes"),
			imageType:  "image/jpeg",
			wantStatus: http.StatusCreated,
			wantCount:  1,
		},
		{
			name:       "bad color and location",
			user:       "Bob Visitor",
			fields:     map[string]string{"text": "Hello", "lnglat": "nowhere", "color": "red"},
			wantStatus: http.StatusBadRequest,
			wantFields: []string{"lnglat", "color"},
		},
		{
			name:       "gif image",
			user:       "Bob Visitor",
			fields:     validFields(),
			image:      []byte("GIF89a"),
			imageType:  "image/gif",
			wantStatus: http.StatusBadRequest,
			wantFields: []string{"image"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)

			req := multipartRequest(t, "/api/v1/markers", tt.fields, tt.image, tt.imageType)
			rec := s.do(t, req, tt.user)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if got := s.count(t); got != tt.wantCount {
				t.Errorf("Expected %d stored markers, got %d", tt.wantCount, got)
			}

			if len(tt.wantFields) > 0 {
				var raw struct {
					Error struct {
						Code    string                  `json:"code"`
						Details []validation.FieldError `json:"details"`
					} `json:"error"`
				}
				decodeInto(t, rec, &raw)
				if raw.Error.Code != ErrCodeValidationFailed {
					t.Errorf("Expected code %s, got %s", ErrCodeValidationFailed, raw.Error.Code)
				}
				seen := make(map[string]bool)
				for _, fe := range raw.Error.Details {
					seen[fe.Field] = true
				}
				for _, field := range tt.wantFields {
					if !seen[field] {
						t.Errorf("Expected a %s field error, got %+v", field, raw.Error.Details)
					}
				}
			}
		})
	}
}

func TestCreateMarker_StoresUploadedURL(t *testing.T) {
	s := setupTestServer(t)

	req := multipartRequest(t, "/api/v1/markers", validFields(), []byte("png bytes"), "image/png")
	rec := s.do(t, req, "Bob Visitor")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	var m models.Marker
	decodeResponse(t, rec, &m)
	if m.ImageURL == nil || *m.ImageURL != testImageURL {
		t.Errorf("Expected url %q, got %v", testImageURL, m.ImageURL)
	}
	if m.Location.Lat != 10 || m.Location.Lng != 20 {
		t.Errorf("Unexpected location %+v", m.Location)
	}
}

func TestCreateMarker_JSONBody(t *testing.T) {
	s := setupTestServer(t)

	for _, lnglat := range []string{`{"lat":1,"lng":2}`, `"{\"lat\":1,\"lng\":2}"`} {
		body := fmt.Sprintf(`{"text":"<b>hi</b>","lnglat":%s,"color":"#2ecc71"}`, lnglat)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/markers", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		rec := s.do(t, req, "Bob Visitor")
		if rec.Code != http.StatusCreated {
			t.Fatalf("lnglat %s: expected 201, got %d (%s)", lnglat, rec.Code, rec.Body.String())
		}

		var m models.Marker
		decodeResponse(t, rec, &m)
		if m.Text != "&lt;b&gt;hi&lt;&#x2F;b&gt;" {
			t.Errorf("Expected escaped text, got %q", m.Text)
		}
	}
}

func TestCreateMarker_ImageJustUnderCap(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxUploadBytes = 10 << 20
	s := setupTestServerWithConfig(t, cfg)

	image := append([]byte{0xFF, 0xD8, 0xFF}, bytes.Repeat([]byte{0}, int(cfg.Server.MaxUploadBytes)-4)...)
	req := multipartRequest(t, "/api/v1/markers", validFields(), image, "image/jpeg")
	rec := s.do(t, req, "Bob Visitor")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 for an image one byte under the cap, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := s.count(t); got != 1 {
		t.Errorf("Expected 1 stored marker, got %d", got)
	}
}

func TestCreateMarker_UploadFailure(t *testing.T) {
	s := setupTestServer(t)
	s.uploader.err = errors.New("bucket unavailable")

	req := multipartRequest(t, "/api/v1/markers", validFields(), []byte("jpeg bytes"), "image/jpeg")
	rec := s.do(t, req, "Bob Visitor")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := s.count(t); got != 0 {
		t.Errorf("Expected no stored markers after upload failure, got %d", got)
	}
	if strings.Contains(rec.Body.String(), "bucket unavailable") {
		t.Error("Response leaked the upload error")
	}
}

func TestCreateMarker_BodyTooLarge(t *testing.T) {
	tests := []struct {
		name  string
		extra int
	}{
		{"image over cap, body within allowance", 1024},
		{"body over cap and allowance", formOverheadBytes + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)

			image := bytes.Repeat([]byte{0xFF}, int(s.cfg.Server.MaxUploadBytes)+tt.extra)
			req := multipartRequest(t, "/api/v1/markers", validFields(), image, "image/jpeg")
			rec := s.do(t, req, "Bob Visitor")
			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("Expected 413, got %d (%s)", rec.Code, rec.Body.String())
			}
			if got := s.count(t); got != 0 {
				t.Errorf("Expected no stored markers, got %d", got)
			}
		})
	}
}

func TestModeration_DeniedRedirectsHome(t *testing.T) {
	s := setupTestServer(t)
	m := s.seed(t, nil)
	target := fmt.Sprintf("/api/v1/moderation/markers/%d", m.ID)

	tests := []struct {
		name string
		req  *http.Request
		user string
	}{
		{"anonymous list", httptest.NewRequest(http.MethodGet, "/api/v1/moderation/markers", nil), ""},
		{"visitor list", httptest.NewRequest(http.MethodGet, "/api/v1/moderation/markers", nil), "Bob Visitor"},
		{"visitor get", httptest.NewRequest(http.MethodGet, target, nil), "Bob Visitor"},
		{"visitor edit", httptest.NewRequest(http.MethodPatch, target, strings.NewReader(`{"text":"x"}`)), "Bob Visitor"},
		{"visitor delete", httptest.NewRequest(http.MethodDelete, target, nil), "Bob Visitor"},
		{"form list page", httptest.NewRequest(http.MethodGet, "/mdr", nil), "Bob Visitor"},
		{"form delete", httptest.NewRequest(http.MethodPost, fmt.Sprintf("/delete/%d", m.ID), nil), ""},
		{"anonymous malformed edit", httptest.NewRequest(http.MethodPatch, target, strings.NewReader(`{not json`)), ""},
		{"anonymous bad id", httptest.NewRequest(http.MethodGet, "/api/v1/moderation/markers/abc", nil), ""},
		{"visitor malformed form edit", formRequest("/edit/abc", url.Values{"text": {strings.Repeat("x", 200)}}), "Bob Visitor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.req, tt.user)
			assertRedirect(t, rec, "/")
			if strings.Contains(rec.Body.String(), "Seeded") {
				t.Error("Denied response leaked marker data")
			}
		})
	}

	if got := s.count(t); got != 1 {
		t.Errorf("Denied requests changed the store: %d markers", got)
	}
	got, err := s.db.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Text != "Seeded" {
		t.Errorf("Denied edit changed text to %q", got.Text)
	}
}

func TestModerationList_NewestFirst(t *testing.T) {
	s := setupTestServer(t)
	first := s.seed(t, nil)
	second := s.seed(t, nil)
	third := s.seed(t, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/moderation/markers", nil), moderatorName)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var list []models.Marker
	decodeResponse(t, rec, &list)
	want := []int64{third.ID, second.ID, first.ID}
	if len(list) != len(want) {
		t.Fatalf("Expected %d markers, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("Position %d: expected id %d, got %d", i, id, list[i].ID)
		}
	}
}

func TestModerationGet(t *testing.T) {
	s := setupTestServer(t)
	m := s.seed(t, nil)

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"existing", fmt.Sprintf("/api/v1/moderation/markers/%d", m.ID), http.StatusOK},
		{"missing", "/api/v1/moderation/markers/9999", http.StatusNotFound},
		{"non-numeric id", "/api/v1/moderation/markers/abc", http.StatusBadRequest},
		{"zero id", "/api/v1/moderation/markers/0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, httptest.NewRequest(http.MethodGet, tt.path, nil), moderatorName)
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestModerationEdit(t *testing.T) {
	s := setupTestServer(t)
	imageURL := testImageURL
	m := s.seed(t, &imageURL)
	target := fmt.Sprintf("/api/v1/moderation/markers/%d", m.ID)

	rec := s.do(t, httptest.NewRequest(http.MethodPatch, target,
		strings.NewReader(`{"text":"Updated","color":"#f39c12","clear_image":true}`)), moderatorName)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d (%s)", rec.Code, rec.Body.String())
	}

	got, err := s.db.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Text != "Updated" || got.Color != "#f39c12" {
		t.Errorf("Edit not applied: %+v", got)
	}
	if got.ImageURL != nil {
		t.Errorf("Expected image cleared, got %q", *got.ImageURL)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodPatch, target, strings.NewReader(`{"color":"blue"}`)), moderatorName)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid color, got %d", rec.Code)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodPatch, "/api/v1/moderation/markers/9999",
		strings.NewReader(`{"text":"x"}`)), moderatorName)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing marker, got %d", rec.Code)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodPatch, target, strings.NewReader(`{not json`)), moderatorName)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestModerationDelete(t *testing.T) {
	s := setupTestServer(t)
	m := s.seed(t, nil)
	target := fmt.Sprintf("/api/v1/moderation/markers/%d", m.ID)

	rec := s.do(t, httptest.NewRequest(http.MethodDelete, target, nil), moderatorName)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := s.count(t); got != 0 {
		t.Errorf("Expected empty store, got %d markers", got)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, target, nil), moderatorName)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", rec.Code)
	}
}

func TestFormSubmit(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		fields     map[string]string
		uploadErr  error
		image      []byte
		wantStatus int
		wantTarget string
		wantCount  int
	}{
		{
			name:       "accepted",
			user:       "Bob Visitor",
			fields:     validFields(),
			wantStatus: http.StatusSeeOther,
			wantTarget: "/",
			wantCount:  1,
		},
		{
			name:       "anonymous",
			fields:     validFields(),
			wantStatus: http.StatusSeeOther,
			wantTarget: "/",
		},
		{
			name:       "upload failure",
			user:       "Bob Visitor",
			fields:     validFields(),
			uploadErr:  errors.New("boom"),
			image:      []byte("jpeg bytes"),
			wantStatus: http.StatusSeeOther,
			wantTarget: "/error",
		},
		{
			name:       "rejected",
			user:       "Bob Visitor",
			fields:     map[string]string{"text": "", "lnglat": "", "color": ""},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestServer(t)
			s.uploader.err = tt.uploadErr

			req := multipartRequest(t, "/map", tt.fields, tt.image, "image/jpeg")
			rec := s.do(t, req, tt.user)
			if tt.wantStatus == http.StatusSeeOther {
				assertRedirect(t, rec, tt.wantTarget)
			} else if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := s.count(t); got != tt.wantCount {
				t.Errorf("Expected %d stored markers, got %d", tt.wantCount, got)
			}
		})
	}
}

func TestFormSubmit_URLEncoded(t *testing.T) {
	s := setupTestServer(t)

	req := formRequest("/map", url.Values{
		"text":   {"Hello"},
		"lnglat": {`{"lat":5,"lng":6}`},
		"color":  {"#95a5a6"},
	})
	assertRedirect(t, s.do(t, req, "Bob Visitor"), "/")
	if got := s.count(t); got != 1 {
		t.Errorf("Expected 1 stored marker, got %d", got)
	}
}

func TestFormDelete_RedirectsEvenWhenMissing(t *testing.T) {
	s := setupTestServer(t)
	m := s.seed(t, nil)
	target := fmt.Sprintf("/delete/%d", m.ID)

	assertRedirect(t, s.do(t, httptest.NewRequest(http.MethodPost, target, nil), moderatorName), "/mdr")
	assertRedirect(t, s.do(t, httptest.NewRequest(http.MethodPost, target, nil), moderatorName), "/mdr")

	if got := s.count(t); got != 0 {
		t.Errorf("Expected empty store, got %d markers", got)
	}
}

func TestFormEdit_CheckboxClearsImage(t *testing.T) {
	s := setupTestServer(t)
	imageURL := testImageURL
	m := s.seed(t, &imageURL)

	req := formRequest(fmt.Sprintf("/edit/%d", m.ID), url.Values{
		"text":     {"Edited"},
		"color":    {"#f1c40f"},
		"checkbox": {"on"},
	})
	assertRedirect(t, s.do(t, req, moderatorName), "/mdr")

	got, err := s.db.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Text != "Edited" || got.Color != "#f1c40f" {
		t.Errorf("Edit not applied: %+v", got)
	}
	if got.ImageURL != nil {
		t.Errorf("Expected image cleared, got %q", *got.ImageURL)
	}
}

func TestFormEdit_KeepsImageWithoutCheckbox(t *testing.T) {
	s := setupTestServer(t)
	imageURL := testImageURL
	m := s.seed(t, &imageURL)

	req := formRequest(fmt.Sprintf("/edit/%d", m.ID), url.Values{"text": {"Edited"}})
	assertRedirect(t, s.do(t, req, moderatorName), "/mdr")

	got, err := s.db.GetByID(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ImageURL == nil || *got.ImageURL != testImageURL {
		t.Errorf("Expected image kept, got %v", got.ImageURL)
	}
	if got.Color != "#3498db" {
		t.Errorf("Color changed without being submitted: %q", got.Color)
	}
}

func TestErrorPage(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/error", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec, nil)
	if resp.Success {
		t.Error("Expected success=false")
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeSubmissionFailed {
		t.Errorf("Expected %s error, got %+v", ErrCodeSubmissionFailed, resp.Error)
	}
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var health HealthStatus
	decodeResponse(t, rec, &health)
	if health.Status != "healthy" || !health.DatabaseConnected {
		t.Errorf("Unexpected health %+v", health)
	}

	if err := s.db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 after close, got %d", rec.Code)
	}
	decodeResponse(t, rec, &health)
	if health.Status != "degraded" || health.DatabaseConnected {
		t.Errorf("Unexpected health %+v", health)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/markers", nil)
	req.Header.Set("X-Request-ID", "test-request-42")
	rec := s.do(t, req, "")

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-42" {
		t.Errorf("Expected echoed request id, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), `"request_id":"test-request-42"`) {
		t.Errorf("Expected request id in meta, got %s", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/markers", nil), "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("Expected nosniff, got %q", got)
	}
}

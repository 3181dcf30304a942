// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/markit/internal/auth"
	"github.com/tomtom215/markit/internal/authz"
	"github.com/tomtom215/markit/internal/config"
	"github.com/tomtom215/markit/internal/database"
	"github.com/tomtom215/markit/internal/markers"
	"github.com/tomtom215/markit/internal/models"
)

const (
	testSecret    = "api_test_secret_that_is_at_least_32_characters"
	testImageURL  = "https://storage.example.com/MarkitMaps/photo.jpg"
	moderatorName = "Alice Moderator"
)

// fakeUploader returns a fixed URL or error.
type fakeUploader struct {
	url string
	err error
}

func (f *fakeUploader) Upload(context.Context, []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

// testServer bundles the router with the pieces tests poke at directly.
type testServer struct {
	handler  http.Handler
	db       *database.DB
	jwt      *auth.JWTManager
	uploader *fakeUploader
	cfg      *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxUploadBytes: 64 << 10},
		Database: config.DatabaseConfig{
			Driver: config.DriverSQLite,
			Path:   database.MemoryPath,
		},
		Storage: config.StorageConfig{Backend: config.BackendGCS},
		Security: config.SecurityConfig{
			JWTSecret:            testSecret,
			SessionTimeout:       time.Hour,
			CookieName:           auth.DefaultCookieName,
			Moderators:           []string{moderatorName},
			RequireAuthForSubmit: true,
		},
	}
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithConfig(t, testConfig())
}

func setupTestServerWithConfig(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	authorizer, err := authz.NewAuthorizer(cfg.Security.Moderators)
	if err != nil {
		t.Fatalf("authz.NewAuthorizer() error = %v", err)
	}
	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("auth.NewJWTManager() error = %v", err)
	}

	uploader := &fakeUploader{url: testImageURL}
	handler := NewHandler(cfg, db,
		markers.NewSubmissionWorkflow(db, uploader),
		markers.NewModerationWorkflow(db, authorizer),
		markers.NewPublicView(db),
	)
	router := NewRouter(handler, auth.NewMiddleware(jwtManager, cfg.Security.CookieName), cfg)

	return &testServer{
		handler:  router.Setup(),
		db:       db,
		jwt:      jwtManager,
		uploader: uploader,
		cfg:      cfg,
	}
}

// do serves req, signed in as displayName when it is not empty.
func (s *testServer) do(t *testing.T, req *http.Request, displayName string) *httptest.ResponseRecorder {
	t.Helper()
	if displayName != "" {
		token, err := s.jwt.GenerateToken(&models.Principal{ID: "id-" + displayName, DisplayName: displayName})
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		req.AddCookie(&http.Cookie{Name: s.cfg.Security.CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) count(t *testing.T) int {
	t.Helper()
	all, err := s.db.ListAll(context.Background(), database.OrderUnspecified)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	return len(all)
}

func (s *testServer) seed(t *testing.T, imageURL *string) *models.Marker {
	t.Helper()
	m, err := s.db.Insert(context.Background(), &models.NormalizedSubmission{
		Text:     "Seeded",
		Location: models.Location{Lat: 1, Lng: 2},
		Color:    "#3498db",
	}, imageURL)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	return m
}

// multipartRequest builds a multipart POST. image may be nil.
func multipartRequest(t *testing.T, target string, fields map[string]string, image []byte, imageType string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="photo.jpg"`)
		h.Set("Content-Type", imageType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := part.Write(image); err != nil {
			t.Fatalf("part.Write() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"text":   "Hello",
		"lnglat": `{"lat":10,"lng":20}`,
		"color":  "#3498db",
	}
}

// decodeResponse decodes the envelope and, when data is not nil, its
// payload.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()

	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("Expected 303, got %d (%s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("Expected redirect to %q, got %q", location, got)
	}
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

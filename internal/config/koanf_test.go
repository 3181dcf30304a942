// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.MaxUploadBytes != 10*1024*1024 {
		t.Errorf("Server.MaxUploadBytes = %d, want 10 MiB", cfg.Server.MaxUploadBytes)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Storage.Folder != "MarkitMaps" {
		t.Errorf("Storage.Folder = %q, want MarkitMaps", cfg.Storage.Folder)
	}
	if cfg.Storage.CropSize != 150 {
		t.Errorf("Storage.CropSize = %d, want 150", cfg.Storage.CropSize)
	}
	if !cfg.Security.RequireAuthForSubmit {
		t.Error("Security.RequireAuthForSubmit should default to true")
	}
	if len(cfg.Security.Moderators) != 0 {
		t.Errorf("Security.Moderators = %v, want empty", cfg.Security.Moderators)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"DB_DRIVER", "database.driver"},
		{"GCS_BUCKET", "storage.bucket"},
		{"IMAGE_CROP_SIZE", "storage.crop_size"},
		{"MODERATORS", "security.moderators"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MODERATORS", "Aleksander Šveikin, Jane Doe ,")
	t.Setenv("UPLOAD_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Storage.UploadTimeout != 5*time.Second {
		t.Errorf("Storage.UploadTimeout = %v, want 5s", cfg.Storage.UploadTimeout)
	}
	want := []string{"Aleksander Šveikin", "Jane Doe"}
	if strings.Join(cfg.Security.Moderators, "|") != strings.Join(want, "|") {
		t.Errorf("Security.Moderators = %v, want %v", cfg.Security.Moderators, want)
	}

	// Unset values keep their defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Storage.Folder != "MarkitMaps" {
		t.Errorf("Storage.Folder = %q, want MarkitMaps (default)", cfg.Storage.Folder)
	}
}

func TestLoadConfigFile(t *testing.T) {
	configContent := `
server:
  port: 8888
  host: "127.0.0.1"
database:
  driver: "sqlite"
  path: "/tmp/markers.db"
storage:
  backend: "gcs"
  bucket: "markit-images"
security:
  jwt_secret: "` + testSecret + `"
  moderators:
    - "Alice"
    - "Bob"
logging:
  level: "warn"
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)
	// t.Setenv restores the originals; the unset lets the file values apply.
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MODERATORS", "")
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("MODERATORS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/markers.db" {
		t.Errorf("Database.Path = %q, want /tmp/markers.db", cfg.Database.Path)
	}
	if cfg.Storage.Backend != BackendGCS || cfg.Storage.Bucket != "markit-images" {
		t.Errorf("Storage = %+v, want gcs/markit-images", cfg.Storage)
	}
	if len(cfg.Security.Moderators) != 2 || cfg.Security.Moderators[1] != "Bob" {
		t.Errorf("Security.Moderators = %v, want [Alice Bob]", cfg.Security.Moderators)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: 8888\nsecurity:\n  jwt_secret: \"" + testSecret + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("HTTP_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000 (env beats file)", cfg.Server.Port)
	}
}

func TestLoadValidationFailure(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for short JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("error %q should name JWT_SECRET", err)
	}
}

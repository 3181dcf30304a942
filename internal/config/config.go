// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

// Package config loads Markit configuration from defaults, an optional YAML
// file, and environment variables, in that order of precedence.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxUploadBytes caps the attached image of a submission. The request
	// body may exceed it by a fixed allowance for the other form fields and
	// the multipart framing. Oversized requests are refused before
	// validation runs.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

// DatabaseConfig holds marker store configuration.
type DatabaseConfig struct {
	// Driver is sqlite (default) or duckdb.
	Driver string `koanf:"driver"`

	// Path is the database file. ":memory:" opens a private in-memory store.
	Path string `koanf:"path"`

	MaxOpenConns int           `koanf:"max_open_conns"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// Storage backends.
const (
	BackendGCS   = "gcs"
	BackendLocal = "local"
)

// StorageConfig holds object storage and image transform configuration.
type StorageConfig struct {
	Backend string `koanf:"backend"`
	Bucket  string `koanf:"bucket"`

	// Folder is the object name prefix every uploaded image is stored under.
	Folder string `koanf:"folder"`

	// PublicBaseURL is prepended to object names to form the durable URL.
	// Defaults to https://storage.googleapis.com/<bucket> for gcs and
	// /uploads for local.
	PublicBaseURL string `koanf:"public_base_url"`

	// LocalDir is where the local backend writes objects.
	LocalDir string `koanf:"local_dir"`

	// CropSize is the edge length, in pixels, of the square thumbnail.
	CropSize int `koanf:"crop_size"`

	UploadTimeout  time.Duration `koanf:"upload_timeout"`
	BreakerEnabled bool          `koanf:"breaker_enabled"`
}

// SecurityConfig holds identity and moderation settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	CookieName     string        `koanf:"cookie_name"`

	// Moderators is the allow-list of principal display names permitted to
	// list, edit and delete any marker.
	Moderators []string `koanf:"moderators"`

	CORSOrigins []string `koanf:"cors_origins"`

	// RequireAuthForSubmit rejects anonymous marker submissions at the
	// transport.
	RequireAuthForSubmit bool `koanf:"require_auth_for_submit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

/*
Package main is the entry point for the Markit server.

Markit accepts geotagged map markers from signed-in visitors, optionally with
a photo that is cropped to a square thumbnail and stored in an object store,
and lets a fixed set of moderators list, edit and delete them.

# Application Architecture

	RootSupervisor ("markit")
	├── DataSupervisor ("data-layer")
	│   └── StoreMonitorService (checks the marker store)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Component initialization order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment variables)
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Marker store: SQLite (default) or DuckDB
 4. Object store: Google Cloud Storage or a local directory
 5. Authorization: Casbin enforcer seeded with the moderator allow-list
 6. HTTP: chi router, JWT authentication, Prometheus metrics

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server then gets
server.shutdown_timeout to drain in-flight requests before the marker store
is closed.
*/
package main

// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

/*
Package supervisor runs the long-lived parts of Markit under a suture v4
supervisor tree.

	RootSupervisor ("markit")
	├── DataSupervisor ("data-layer")
	│   └── StoreMonitorService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with backoff. Failures in the data layer
do not stop the API layer, which keeps answering health checks with a
degraded status while the store is unreachable.

Supervisor events are logged through sutureslog, fed by the zerolog
bridge from internal/logging.
*/
package supervisor

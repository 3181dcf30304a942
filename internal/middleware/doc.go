// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

/*
Package middleware provides HTTP middleware shared by every route.

  - RequestID: accepts or generates an X-Request-ID and seeds the logging
    context with request and correlation IDs.
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by the chi route pattern so marker ids do not explode label cardinality.

Both are plain func(http.Handler) http.Handler and are installed with chi's
r.Use.
*/
package middleware

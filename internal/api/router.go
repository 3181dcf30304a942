// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/markit/internal/auth"
	"github.com/tomtom215/markit/internal/config"
	"github.com/tomtom215/markit/internal/middleware"
)

// UploadsPath is where the local object store is served.
const UploadsPath = "/uploads"

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
	config        *config.Config
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, authMiddleware *auth.Middleware, cfg *config.Config) *Router {
	mwConfig := DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Security.CORSOrigins

	return &Router{
		handler:       handler,
		auth:          authMiddleware,
		chiMiddleware: NewChiMiddleware(mwConfig),
		config:        cfg,
	}
}

// Setup builds the HTTP handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer) // a panicking handler never takes the process down
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.auth.Authenticate)

	// ========================
	// Operational Endpoints
	// ========================
	r.Get("/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	if router.config.Storage.Backend == config.BackendLocal {
		r.Handle(UploadsPath+"/*", uploadsHandler(router.config.Storage.LocalDir))
	}

	// ========================
	// JSON API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/markers", router.handler.ListMarkers)
		r.Post("/markers", router.handler.CreateMarker)

		r.Route("/moderation/markers", func(r chi.Router) {
			r.Get("/", router.handler.ModerationList)
			r.Get("/{id}", router.handler.ModerationGet)
			r.Patch("/{id}", router.handler.ModerationEdit)
			r.Delete("/{id}", router.handler.ModerationDelete)
		})
	})

	// ========================
	// Form Routes
	// ========================
	// Paths and redirects match the browser forms of the map and
	// moderation pages.
	r.Group(func(r chi.Router) {
		r.Use(APISecurityHeaders())

		r.Get("/", router.handler.ListMarkers)
		r.Post("/map", router.handler.FormSubmit)
		r.Get("/error", router.handler.ErrorPage)
		r.Get("/mdr", router.handler.ModerationList)
		r.Get("/edit/{id}", router.handler.ModerationGet)
		r.Post("/edit/{id}", router.handler.FormEdit)
		r.Post("/delete/{id}", router.handler.FormDelete)
	})

	return r
}

// uploadsHandler serves stored thumbnails without directory listings.
func uploadsHandler(dir string) http.Handler {
	files := http.StripPrefix(UploadsPath+"/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}

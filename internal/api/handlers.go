// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/markit/internal/auth"
	"github.com/tomtom215/markit/internal/authz"
	"github.com/tomtom215/markit/internal/config"
	"github.com/tomtom215/markit/internal/markers"
)

// Pinger reports store liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds the workflows the HTTP routes delegate to.
type Handler struct {
	submissions *markers.SubmissionWorkflow
	moderation  *markers.ModerationWorkflow
	public      *markers.PublicView
	db          Pinger
	config      *config.Config
	startTime   time.Time
}

// NewHandler creates a new API handler with all required dependencies.
func NewHandler(
	cfg *config.Config,
	db Pinger,
	submissions *markers.SubmissionWorkflow,
	moderation *markers.ModerationWorkflow,
	public *markers.PublicView,
) *Handler {
	return &Handler{
		submissions: submissions,
		moderation:  moderation,
		public:      public,
		db:          db,
		config:      cfg,
		startTime:   time.Now(),
	}
}

// writeResult maps a workflow result to a JSON response. onOK renders the
// success case. A denied moderation call is redirected to the public view
// without any detail, so the response never reveals who the moderators
// are.
func writeResult(w http.ResponseWriter, r *http.Request, res markers.Result, onOK func(rw *ResponseWriter)) {
	rw := NewResponseWriter(w, r)

	switch res.Outcome {
	case markers.OutcomeOK:
		onOK(rw)
	case markers.OutcomeRejected:
		var details interface{}
		if res.Errors != nil {
			details = res.Errors.FieldErrors()
		}
		rw.ValidationError("Validation failed", details)
	case markers.OutcomeDenied:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case markers.OutcomeNotFound:
		rw.NotFound("Marker not found")
	default:
		if res.Failure == markers.FailureUpload {
			rw.ExternalServiceError("object storage", res.Err)
			return
		}
		rw.DatabaseError(res.Err)
	}
}

// requireModerator redirects to the public view unless the caller may
// perform action. It runs before the id or body is parsed.
func (h *Handler) requireModerator(w http.ResponseWriter, r *http.Request, action authz.Action) bool {
	if h.moderation.Permits(r.Context(), auth.PrincipalFromContext(r.Context()), action) {
		return true
	}
	http.Redirect(w, r, pathHome, http.StatusSeeOther)
	return false
}

// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package api

import (
	"net/http"

	"github.com/tomtom215/markit/internal/auth"
	"github.com/tomtom215/markit/internal/authz"
)

// anonymousView is returned to callers without a principal in place of
// the map.
type anonymousView struct {
	Authenticated bool `json:"authenticated"`
}

// ListMarkers returns every marker for the public map.
func (h *Handler) ListMarkers(w http.ResponseWriter, r *http.Request) {
	if auth.PrincipalFromContext(r.Context()) == nil {
		NewResponseWriter(w, r).Success(anonymousView{Authenticated: false})
		return
	}

	res := h.public.List(r.Context())
	writeResult(w, r, res, func(rw *ResponseWriter) {
		rw.SuccessList(res.Markers, len(res.Markers))
	})
}

// CreateMarker accepts a submission with an optional image.
func (h *Handler) CreateMarker(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.config.Security.RequireAuthForSubmit && auth.PrincipalFromContext(r.Context()) == nil {
		rw.Unauthorized("Sign in to add markers")
		return
	}

	sub, err := parseSubmission(w, r, h.config.Server.MaxUploadBytes)
	if err != nil {
		writeRequestError(rw, err)
		return
	}

	res := h.submissions.Submit(r.Context(), sub)
	writeResult(w, r, res, func(rw *ResponseWriter) {
		rw.Created(res.Marker)
	})
}

// ModerationList returns all markers, newest first.
func (h *Handler) ModerationList(w http.ResponseWriter, r *http.Request) {
	res := h.moderation.List(r.Context(), auth.PrincipalFromContext(r.Context()))
	writeResult(w, r, res, func(rw *ResponseWriter) {
		rw.SuccessList(res.Markers, len(res.Markers))
	})
}

// ModerationGet returns one marker for the edit form.
func (h *Handler) ModerationGet(w http.ResponseWriter, r *http.Request) {
	if !h.requireModerator(w, r, authz.ActionRead) {
		return
	}

	id, err := markerID(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}

	res := h.moderation.Get(r.Context(), auth.PrincipalFromContext(r.Context()), id)
	writeResult(w, r, res, func(rw *ResponseWriter) {
		rw.Success(res.Marker)
	})
}

// ModerationEdit applies a JSON change set.
func (h *Handler) ModerationEdit(w http.ResponseWriter, r *http.Request) {
	if !h.requireModerator(w, r, authz.ActionEdit) {
		return
	}

	rw := NewResponseWriter(w, r)

	id, err := markerID(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	changes, err := parseChangesJSON(w, r, formOverheadBytes)
	if err != nil {
		writeRequestError(rw, err)
		return
	}

	res := h.moderation.Edit(r.Context(), auth.PrincipalFromContext(r.Context()), id, changes)
	writeResult(w, r, res, func(rw *ResponseWriter) {
		rw.NoContent()
	})
}

// ModerationDelete removes a marker.
func (h *Handler) ModerationDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireModerator(w, r, authz.ActionDelete) {
		return
	}

	id, err := markerID(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}

	res := h.moderation.Delete(r.Context(), auth.PrincipalFromContext(r.Context()), id)
	writeResult(w, r, res, func(rw *ResponseWriter) {
		rw.NoContent()
	})
}

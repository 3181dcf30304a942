// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package api

import (
	"net/http"

	"github.com/tomtom215/markit/internal/auth"
	"github.com/tomtom215/markit/internal/authz"
	"github.com/tomtom215/markit/internal/markers"
)

// Redirect targets of the form routes.
const (
	pathHome       = "/"
	pathModeration = "/mdr"
	pathError      = "/error"
)

// FormSubmit handles POST /map. Success and upload or storage failures
// redirect like the browser form expects; a rejection returns the field
// errors.
func (h *Handler) FormSubmit(w http.ResponseWriter, r *http.Request) {
	if h.config.Security.RequireAuthForSubmit && auth.PrincipalFromContext(r.Context()) == nil {
		http.Redirect(w, r, pathHome, http.StatusSeeOther)
		return
	}

	sub, err := parseSubmission(w, r, h.config.Server.MaxUploadBytes)
	if err != nil {
		http.Redirect(w, r, pathError, http.StatusSeeOther)
		return
	}

	res := h.submissions.Submit(r.Context(), sub)
	switch {
	case res.OK():
		http.Redirect(w, r, pathHome, http.StatusSeeOther)
	case res.Outcome == markers.OutcomeRejected:
		writeResult(w, r, res, nil)
	default:
		http.Redirect(w, r, pathError, http.StatusSeeOther)
	}
}

// FormDelete handles POST /delete/{id}. A marker that is already gone is
// not an error for the moderator; both cases return to the list.
func (h *Handler) FormDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireModerator(w, r, authz.ActionDelete) {
		return
	}

	id, err := markerID(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}

	res := h.moderation.Delete(r.Context(), auth.PrincipalFromContext(r.Context()), id)
	if res.Outcome == markers.OutcomeNotFound {
		http.Redirect(w, r, pathModeration, http.StatusSeeOther)
		return
	}
	writeResult(w, r, res, func(*ResponseWriter) {
		http.Redirect(w, r, pathModeration, http.StatusSeeOther)
	})
}

// FormEdit handles POST /edit/{id}.
func (h *Handler) FormEdit(w http.ResponseWriter, r *http.Request) {
	if !h.requireModerator(w, r, authz.ActionEdit) {
		return
	}

	rw := NewResponseWriter(w, r)

	id, err := markerID(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	changes, err := parseChangesForm(w, r, formOverheadBytes)
	if err != nil {
		writeRequestError(rw, err)
		return
	}

	res := h.moderation.Edit(r.Context(), auth.PrincipalFromContext(r.Context()), id, changes)
	writeResult(w, r, res, func(*ResponseWriter) {
		http.Redirect(w, r, pathModeration, http.StatusSeeOther)
	})
}

// ErrorPage is the redirect target of a failed form submission.
func (h *Handler) ErrorPage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.writeJSON(http.StatusOK, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    ErrCodeSubmissionFailed,
			Message: "The marker could not be saved. Please try again.",
		},
		Meta: rw.meta(),
	})
}

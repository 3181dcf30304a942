// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package markers

import (
	"context"

	"github.com/tomtom215/markit/internal/authz"
	"github.com/tomtom215/markit/internal/database"
	"github.com/tomtom215/markit/internal/logging"
	"github.com/tomtom215/markit/internal/metrics"
	"github.com/tomtom215/markit/internal/models"
	"github.com/tomtom215/markit/internal/validation"
)

// ModerationWorkflow lists, reads, edits and deletes any marker on behalf
// of a moderator. Every operation is authorized first; a denied call
// touches no data.
type ModerationWorkflow struct {
	repo       Repository
	authorizer Authorizer
}

// NewModerationWorkflow creates a ModerationWorkflow.
func NewModerationWorkflow(repo Repository, authorizer Authorizer) *ModerationWorkflow {
	return &ModerationWorkflow{repo: repo, authorizer: authorizer}
}

// List returns all markers, newest first.
func (w *ModerationWorkflow) List(ctx context.Context, principal *models.Principal) Result {
	return w.run(ctx, principal, authz.ActionList, 0, func() Result {
		all, err := w.repo.ListAll(ctx, database.OrderNewestFirst)
		if err != nil {
			return fromRepoError(err)
		}
		return Result{Outcome: OutcomeOK, Markers: all}
	})
}

// Get returns one marker, for the edit form.
func (w *ModerationWorkflow) Get(ctx context.Context, principal *models.Principal, id int64) Result {
	return w.run(ctx, principal, authz.ActionRead, id, func() Result {
		m, err := w.repo.GetByID(ctx, id)
		if err != nil {
			return fromRepoError(err)
		}
		return Result{Outcome: OutcomeOK, Marker: m}
	})
}

// Edit applies changes to a marker. Text and color are validated the same
// way as a submission. ClearImage only drops the URL; the stored object is
// left in place.
func (w *ModerationWorkflow) Edit(ctx context.Context, principal *models.Principal, id int64, changes *models.MarkerChanges) Result {
	return w.run(ctx, principal, authz.ActionEdit, id, func() Result {
		if changes == nil {
			changes = &models.MarkerChanges{}
		}
		normalized, verr := validation.ValidateChanges(changes)
		if verr != nil {
			return rejected(verr)
		}
		if err := w.repo.Update(ctx, id, normalized); err != nil {
			return fromRepoError(err)
		}
		return Result{Outcome: OutcomeOK}
	})
}

// Delete removes a marker permanently. Deleting a missing id reports
// OutcomeNotFound.
func (w *ModerationWorkflow) Delete(ctx context.Context, principal *models.Principal, id int64) Result {
	return w.run(ctx, principal, authz.ActionDelete, id, func() Result {
		if err := w.repo.Delete(ctx, id); err != nil {
			return fromRepoError(err)
		}
		return Result{Outcome: OutcomeOK}
	})
}

// Permits reports whether principal may perform action. Transports call it
// before reading a request body so a denied caller gets the same answer
// whatever it sent. A denial is logged and counted here.
func (w *ModerationWorkflow) Permits(ctx context.Context, principal *models.Principal, action authz.Action) bool {
	if w.authorizer.Authorize(principal, action) == authz.Allowed {
		return true
	}
	logging.Ctx(ctx).Debug().Str("action", string(action)).Msg("Moderation denied")
	metrics.RecordModeration(string(action), OutcomeDenied.String())
	return false
}

// run authorizes, executes op, then logs and records the terminal state.
func (w *ModerationWorkflow) run(ctx context.Context, principal *models.Principal, action authz.Action, id int64, op func() Result) Result {
	if !w.Permits(ctx, principal, action) {
		return denied()
	}
	log := logging.Ctx(ctx)

	res := op()

	event := log.Info()
	if res.Outcome == OutcomeFailed {
		event = log.Error().Err(res.Err)
	}
	if id != 0 {
		event = event.Int64("marker_id", id)
	}
	event.Str("action", string(action)).
		Str("moderator", principal.DisplayName).
		Str("outcome", res.Outcome.String()).
		Msg("Moderation action")

	metrics.RecordModeration(string(action), res.Outcome.String())
	return res
}

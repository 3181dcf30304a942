// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package markers

import (
	"context"
	"errors"

	"github.com/tomtom215/markit/internal/database"
	"github.com/tomtom215/markit/internal/logging"
	"github.com/tomtom215/markit/internal/metrics"
	"github.com/tomtom215/markit/internal/models"
	"github.com/tomtom215/markit/internal/validation"
)

// errNoUploader is returned when an image arrives but no object store is
// configured.
var errNoUploader = errors.New("image uploads are not configured")

// SubmissionWorkflow creates markers.
//
// A submission moves Received -> Validated -> (ImageUploaded | NoImage) ->
// Persisted, or stops at Rejected or Failed. The image is uploaded before
// the row is written so a marker never points at a missing object. A
// storage failure after a successful upload leaves the object orphaned.
type SubmissionWorkflow struct {
	repo     Repository
	uploader Uploader
}

// NewSubmissionWorkflow creates a SubmissionWorkflow. uploader may be nil,
// in which case submissions with an image fail.
func NewSubmissionWorkflow(repo Repository, uploader Uploader) *SubmissionWorkflow {
	return &SubmissionWorkflow{repo: repo, uploader: uploader}
}

// Submit runs one submission to a terminal state.
func (w *SubmissionWorkflow) Submit(ctx context.Context, raw *models.Submission) Result {
	log := logging.Ctx(ctx)

	sub, verr := validation.ValidateSubmission(raw)
	if verr != nil {
		log.Info().Strs("fields", fieldNames(verr)).Msg("Marker submission rejected")
		metrics.RecordSubmission(OutcomeRejected.String())
		return rejected(verr)
	}

	var imageURL *string
	if sub.Image != nil {
		url, err := w.uploadImage(ctx, sub.Image)
		if err != nil {
			log.Warn().Err(err).Str("failure", string(FailureUpload)).Msg("Marker submission failed")
			metrics.RecordSubmission(OutcomeFailed.String())
			return Result{Outcome: OutcomeFailed, Failure: FailureUpload, Err: err}
		}
		imageURL = &url
	}

	marker, err := w.repo.Insert(ctx, sub, imageURL)
	if err != nil {
		if !database.IsStorageError(err) {
			err = &database.StorageError{Op: "insert", Err: err}
		}
		log.Error().Err(err).Str("failure", string(FailureStorage)).Msg("Marker submission failed")
		metrics.RecordSubmission(OutcomeFailed.String())
		return Result{Outcome: OutcomeFailed, Failure: FailureStorage, Err: err}
	}

	log.Info().Int64("marker_id", marker.ID).Bool("image", marker.HasImage()).Msg("Marker persisted")
	metrics.RecordSubmission("persisted")
	return Result{Outcome: OutcomeOK, Marker: marker}
}

func (w *SubmissionWorkflow) uploadImage(ctx context.Context, data []byte) (string, error) {
	if w.uploader == nil {
		return "", errNoUploader
	}
	url, err := w.uploader.Upload(ctx, data)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errors.New("object store returned an empty URL")
	}
	return url, nil
}

// PublicView lists markers for the public map.
type PublicView struct {
	repo Repository
}

// NewPublicView creates a PublicView.
func NewPublicView(repo Repository) *PublicView {
	return &PublicView{repo: repo}
}

// List returns every marker in no particular order.
func (v *PublicView) List(ctx context.Context) Result {
	all, err := v.repo.ListAll(ctx, database.OrderUnspecified)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Public marker listing failed")
		return Result{Outcome: OutcomeFailed, Failure: FailureStorage, Err: err}
	}
	return Result{Outcome: OutcomeOK, Markers: all}
}

func fieldNames(verr *validation.RequestValidationError) []string {
	errs := verr.Errors()
	names := make([]string, 0, len(errs))
	for i := range errs {
		names = append(names, errs[i].Field())
	}
	return names
}

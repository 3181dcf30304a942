// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

// Package markers holds the workflows that create, list, edit and delete
// markers. Each entry point returns a Result instead of an error; the
// transport decides how each Outcome is rendered.
package markers

import (
	"context"
	"errors"

	"github.com/tomtom215/markit/internal/authz"
	"github.com/tomtom215/markit/internal/database"
	"github.com/tomtom215/markit/internal/models"
	"github.com/tomtom215/markit/internal/validation"
)

// ErrDenied is carried by results whose principal lacks moderator rights.
var ErrDenied = errors.New("moderation denied")

// Outcome is the terminal state of a workflow call.
type Outcome int

const (
	// OutcomeOK means the operation completed. For a submission this is
	// the Persisted state.
	OutcomeOK Outcome = iota
	// OutcomeRejected means input failed validation; nothing was written.
	OutcomeRejected
	// OutcomeDenied means the principal is not a moderator; nothing was
	// read or written.
	OutcomeDenied
	// OutcomeNotFound means the referenced id does not exist.
	OutcomeNotFound
	// OutcomeFailed means an upload or storage failure aborted the call.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDenied:
		return "denied"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind classifies an OutcomeFailed result.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureUpload  FailureKind = "upload"
	FailureStorage FailureKind = "storage"
)

// Result is returned by every workflow entry point.
type Result struct {
	Outcome Outcome

	// Marker is set by submit and get.
	Marker *models.Marker
	// Markers is set by the list operations and is never nil on OutcomeOK.
	Markers []models.Marker

	// Errors holds every field failure of a rejected input.
	Errors *validation.RequestValidationError

	Failure FailureKind
	Err     error
}

// OK reports whether the call completed.
func (r Result) OK() bool {
	return r.Outcome == OutcomeOK
}

// Repository is the marker persistence the workflows depend on.
// *database.DB implements it.
type Repository interface {
	Insert(ctx context.Context, sub *models.NormalizedSubmission, imageURL *string) (*models.Marker, error)
	ListAll(ctx context.Context, order database.ListOrder) ([]models.Marker, error)
	GetByID(ctx context.Context, id int64) (*models.Marker, error)
	Update(ctx context.Context, id int64, changes *models.MarkerChanges) error
	Delete(ctx context.Context, id int64) error
}

// Uploader stores an image and returns its durable URL.
// *upload.Orchestrator implements it.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Authorizer gates moderation. *authz.Authorizer implements it.
type Authorizer interface {
	Authorize(principal *models.Principal, action authz.Action) authz.Decision
}

func rejected(errs *validation.RequestValidationError) Result {
	return Result{Outcome: OutcomeRejected, Errors: errs, Err: errs}
}

func denied() Result {
	return Result{Outcome: OutcomeDenied, Err: ErrDenied}
}

// fromRepoError maps a repository error. Anything that is not ErrNotFound
// is treated as a storage failure.
func fromRepoError(err error) Result {
	if errors.Is(err, database.ErrNotFound) {
		return Result{Outcome: OutcomeNotFound, Err: err}
	}
	return Result{Outcome: OutcomeFailed, Failure: FailureStorage, Err: err}
}

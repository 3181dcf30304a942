// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

// Package upload turns an attached marker image into a durable URL.
//
// The Orchestrator sniffs and decodes the payload, applies the fixed
// Transform, and stores the result through an ObjectStore. It makes exactly
// one store call per image and never retries. Any failure is reported as a
// *Failure. Stored objects are never deleted by this package, including when
// the marker that references them is deleted.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/markit/internal/logging"
	"github.com/tomtom215/markit/internal/metrics"
)

// Failure stages.
const (
	StageDecode    = "decode"
	StageTransform = "transform"
	StageStore     = "store"
)

// Failure is the single error kind returned by Upload.
type Failure struct {
	Stage string
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("upload failed at %s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ObjectStore persists a blob under name and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// Config configures an Orchestrator.
type Config struct {
	Transform Transform

	// Timeout bounds a single upload. Zero means 30s.
	Timeout time.Duration

	// BreakerEnabled wraps the store in a circuit breaker so that a failing
	// object store rejects submissions immediately instead of holding each
	// request for the full timeout.
	BreakerEnabled bool
}

// Orchestrator uploads marker images.
type Orchestrator struct {
	store     ObjectStore
	transform Transform
	timeout   time.Duration
	breaker   *gobreaker.CircuitBreaker[string]
	newName   func(ext string) string
}

// NewOrchestrator creates an Orchestrator writing to store.
func NewOrchestrator(store ObjectStore, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	o := &Orchestrator{
		store:     store,
		transform: cfg.Transform,
		timeout:   cfg.Timeout,
	}
	o.newName = func(ext string) string {
		return path.Join(o.transform.Folder, uuid.New().String()+ext)
	}

	if cfg.BreakerEnabled {
		o.breaker = newStoreBreaker("object-store")
	}
	return o
}

// Upload transforms data and stores it, returning the durable URL.
//
// The upload is detached from ctx cancellation: a client that disconnects
// mid-upload does not abort the store call, which completes or fails on its
// own within the configured timeout. Request-scoped values such as the
// request ID are kept for logging.
func (o *Orchestrator) Upload(ctx context.Context, data []byte) (string, error) {
	start := time.Now()
	url, err := o.upload(ctx, data)

	stage := ""
	var failure *Failure
	if errors.As(err, &failure) {
		stage = failure.Stage
		logging.Ctx(ctx).Warn().Err(failure.Err).Str("stage", stage).Msg("Image upload failed")
	}
	metrics.RecordUpload(time.Since(start), stage)
	return url, err
}

func (o *Orchestrator) upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", &Failure{Stage: StageDecode, Err: errors.New("empty payload")}
	}

	img, err := render(data, o.transform)
	if err != nil {
		return "", err
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()

	name := o.newName(img.ext)
	put := func() (string, error) {
		return o.store.Put(storeCtx, name, img.contentType, img.data)
	}

	var url string
	if o.breaker != nil {
		url, err = o.breaker.Execute(put)
	} else {
		url, err = put()
	}
	if err != nil {
		return "", &Failure{Stage: StageStore, Err: err}
	}

	logging.Ctx(ctx).Debug().Str("object", name).Int("bytes", len(img.data)).Msg("Image stored")
	return url, nil
}

func newStoreBreaker(name string) *gobreaker.CircuitBreaker[string] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Object store circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

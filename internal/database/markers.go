// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/markit/internal/database/query"
	"github.com/tomtom215/markit/internal/metrics"
	"github.com/tomtom215/markit/internal/models"
)

// createdDateLayout is day granularity, matching the persisted TEXT column.
const createdDateLayout = "2006-01-02"

const markerColumns = "id, location, text, color, image_url, created_date"

// ListOrder selects the ordering of ListAll.
type ListOrder int

const (
	// OrderUnspecified is used by the public map, which does not care.
	OrderUnspecified ListOrder = iota
	// OrderNewestFirst sorts by id descending for the moderation view.
	OrderNewestFirst
)

// Insert persists a normalized submission in a single transaction and
// returns the stored marker. imageURL is nil when no image was uploaded.
func (db *DB) Insert(ctx context.Context, sub *models.NormalizedSubmission, imageURL *string) (m *models.Marker, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("insert", time.Now(), &err)

	location, err := json.Marshal(sub.Location)
	if err != nil {
		return nil, &StorageError{Op: "insert", Err: fmt.Errorf("failed to encode location: %w", err)}
	}
	createdDate := db.now().UTC().Format(createdDateLayout)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "insert", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // rollback after failure is best-effort
		}
	}()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO markers (location, text, color, image_url, created_date)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		string(location), sub.Text, sub.Color, nullableString(imageURL), createdDate,
	).Scan(&id)
	if err != nil {
		return nil, &StorageError{Op: "insert", Err: fmt.Errorf("failed to insert marker: %w", err)}
	}

	if err = tx.Commit(); err != nil {
		return nil, &StorageError{Op: "insert", Err: fmt.Errorf("failed to commit marker: %w", err)}
	}

	return &models.Marker{
		ID:          id,
		Location:    sub.Location,
		Text:        sub.Text,
		Color:       sub.Color,
		ImageURL:    copyString(imageURL),
		CreatedDate: createdDate,
	}, nil
}

// ListAll returns every marker. The result is never nil.
func (db *DB) ListAll(ctx context.Context, order ListOrder) (markers []models.Marker, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("list", time.Now(), &err)

	q := "SELECT " + markerColumns + " FROM markers"
	if order == OrderNewestFirst {
		q += " ORDER BY id DESC"
	}

	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: fmt.Errorf("failed to query markers: %w", err)}
	}
	defer closeQuietly(rows)

	markers = make([]models.Marker, 0)
	for rows.Next() {
		m, scanErr := scanMarker(rows)
		if scanErr != nil {
			return nil, &StorageError{Op: "list", Err: scanErr}
		}
		markers = append(markers, *m)
	}
	if err = rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: fmt.Errorf("error iterating markers: %w", err)}
	}

	return markers, nil
}

// GetByID fetches one marker, or ErrNotFound.
func (db *DB) GetByID(ctx context.Context, id int64) (m *models.Marker, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("get", time.Now(), &err)

	row := db.conn.QueryRowContext(ctx, "SELECT "+markerColumns+" FROM markers WHERE id = ?", id)
	m, err = scanMarker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	return m, nil
}

// Update applies changes to one marker. The image URL is only ever cleared
// here, never replaced. An empty change set still reports ErrNotFound for
// a missing id.
func (db *DB) Update(ctx context.Context, id int64, changes *models.MarkerChanges) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("update", time.Now(), &err)

	sb := query.NewSetBuilder()
	if changes != nil {
		sb.SetIf(changes.Text != nil, "text", deref(changes.Text)).
			SetIf(changes.Color != nil, "color", deref(changes.Color))
		if changes.ClearImage {
			sb.SetNull("image_url")
		}
	}

	if sb.IsEmpty() {
		return db.exists(ctx, id)
	}

	stmt, args := query.Update("markers", sb, query.NewWhereBuilder().AddClause("id = ?", id))
	result, err := db.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return &StorageError{Op: "update", Err: fmt.Errorf("failed to update marker %d: %w", id, err)}
	}
	return checkAffected(result, "update")
}

// Delete removes one marker permanently.
func (db *DB) Delete(ctx context.Context, id int64) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer db.observe("delete", time.Now(), &err)

	result, err := db.conn.ExecContext(ctx, "DELETE FROM markers WHERE id = ?", id)
	if err != nil {
		return &StorageError{Op: "delete", Err: fmt.Errorf("failed to delete marker %d: %w", id, err)}
	}
	return checkAffected(result, "delete")
}

func (db *DB) exists(ctx context.Context, id int64) error {
	var one int
	err := db.conn.QueryRowContext(ctx, "SELECT 1 FROM markers WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return &StorageError{Op: "update", Err: err}
	}
	return nil
}

// observe records query latency. ErrNotFound is an answer, not a failure.
func (db *DB) observe(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	metrics.RecordDBQuery(op, time.Since(start), err)
}

func checkAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return &StorageError{Op: op, Err: fmt.Errorf("failed to read affected rows: %w", err)}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarker(row rowScanner) (*models.Marker, error) {
	var (
		m        models.Marker
		location string
		imageURL sql.NullString
	)
	if err := row.Scan(&m.ID, &location, &m.Text, &m.Color, &imageURL, &m.CreatedDate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(location), &m.Location); err != nil {
		return nil, fmt.Errorf("failed to decode location of marker %d: %w", m.ID, err)
	}
	if imageURL.Valid && imageURL.String != "" {
		url := imageURL.String
		m.ImageURL = &url
	}
	return &m, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func copyString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	c := *s
	return &c
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

// Package query provides SQL fragment builders for the database package.
// Values are always bound as parameters; only column names are
// interpolated, and those come from code, never from requests.
package query

import (
	"strings"
)

// SetBuilder constructs the SET list of an UPDATE statement.
//
// Example usage:
//
//	sb := query.NewSetBuilder()
//	sb.Set("text", text).SetNull("image_url")
//	setClause, args := sb.Build()
//	// text = ?, image_url = NULL
type SetBuilder struct {
	assignments []string
	args        []interface{}
}

// NewSetBuilder creates an empty SetBuilder.
func NewSetBuilder() *SetBuilder {
	return &SetBuilder{}
}

// Set assigns a bound value to column.
func (sb *SetBuilder) Set(column string, value interface{}) *SetBuilder {
	sb.assignments = append(sb.assignments, column+" = ?")
	sb.args = append(sb.args, value)
	return sb
}

// SetIf assigns value to column only when ok is true.
func (sb *SetBuilder) SetIf(ok bool, column string, value interface{}) *SetBuilder {
	if ok {
		sb.Set(column, value)
	}
	return sb
}

// SetNull assigns SQL NULL to column.
func (sb *SetBuilder) SetNull(column string) *SetBuilder {
	sb.assignments = append(sb.assignments, column+" = NULL")
	return sb
}

// Build returns the comma-joined assignments and their arguments.
// The clause is empty when nothing was set.
func (sb *SetBuilder) Build() (string, []interface{}) {
	return strings.Join(sb.assignments, ", "), sb.args
}

// IsEmpty returns true if no assignments have been added.
func (sb *SetBuilder) IsEmpty() bool {
	return len(sb.assignments) == 0
}

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddClause adds a raw WHERE clause with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// Build joins the clauses with AND. Returns ("1=1", nil) if no clauses
// were added.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause with "WHERE " prefix.
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	whereClause, args := wb.Build()
	return "WHERE " + whereClause, args
}

// Update assembles "UPDATE table SET ... WHERE ..." from the two builders.
// It returns an empty statement when sb has no assignments.
func Update(table string, sb *SetBuilder, wb *WhereBuilder) (string, []interface{}) {
	if sb.IsEmpty() {
		return "", nil
	}
	setClause, setArgs := sb.Build()
	whereClause, whereArgs := wb.BuildWithPrefix()

	args := make([]interface{}, 0, len(setArgs)+len(whereArgs))
	args = append(args, setArgs...)
	args = append(args, whereArgs...)
	return "UPDATE " + table + " SET " + setClause + " " + whereClause, args
}

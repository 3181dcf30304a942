// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package authz

import (
	"github.com/tomtom215/markit/internal/logging"
	"github.com/tomtom215/markit/internal/models"
)

// Action is a moderation operation on markers.
type Action string

const (
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// Authorizer gates the moderation workflow. Every call evaluates the
// policy afresh; decisions are never cached across requests.
type Authorizer struct {
	enforcer *Enforcer
}

// NewAuthorizer builds an Authorizer over a static moderator allow-list.
func NewAuthorizer(moderators []string) (*Authorizer, error) {
	e, err := NewEnforcer(moderators)
	if err != nil {
		return nil, err
	}
	return &Authorizer{enforcer: e}, nil
}

// Authorize decides whether principal may perform action. An anonymous
// principal or one with an empty display name is always denied, as is
// any enforcement error.
func (a *Authorizer) Authorize(principal *models.Principal, action Action) Decision {
	if principal == nil || principal.DisplayName == "" {
		return Denied
	}

	allowed, err := a.enforcer.Enforce(principal.DisplayName, ObjectMarkers, string(action))
	if err != nil {
		logging.Error().Err(err).Str("action", string(action)).Msg("Authorization check failed")
		return Denied
	}
	if !allowed {
		return Denied
	}
	return Allowed
}

// IsModerator reports whether principal may list markers for moderation.
func (a *Authorizer) IsModerator(principal *models.Principal) bool {
	return a.Authorize(principal, ActionList) == Allowed
}

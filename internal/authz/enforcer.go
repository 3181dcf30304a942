// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

// Package authz decides whether a principal may perform a moderation
// action. The policy is a small Casbin RBAC model: a static allow-list of
// display names is bound to the moderator role at construction time.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

const (
	// ModeratorRole is the role the allow-list is bound to.
	ModeratorRole = "role:moderator"

	// ObjectMarkers is the only protected object.
	ObjectMarkers = "markers"

	// Subjects are namespaced so a display name can never collide with
	// a role name.
	userPrefix = "user:"
)

// Enforcer wraps the Casbin enforcer with the embedded model and policy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer creates an enforcer and grants the moderator role to each
// display name in moderators. Blank entries are ignored.
func NewEnforcer(moderators []string) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}

	for _, name := range moderators {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := enforcer.AddGroupingPolicy(userPrefix+name, ModeratorRole); err != nil {
			return nil, fmt.Errorf("failed to grant moderator role: %w", err)
		}
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		if parts[0] != "p" || len(parts) < 4 {
			continue
		}
		if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
			return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
		}
	}
	return nil
}

// Enforce checks if the named user can perform action on object.
func (e *Enforcer) Enforce(displayName, object, action string) (bool, error) {
	allowed, err := e.enforcer.Enforce(userPrefix+displayName, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

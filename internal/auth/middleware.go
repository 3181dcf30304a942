// Markit - Geotagged Map Markers with Moderation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/markit

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/markit/internal/logging"
	"github.com/tomtom215/markit/internal/models"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "markit_token"

// Middleware resolves the request principal from a signed token.
type Middleware struct {
	jwtManager *JWTManager
	cookieName string
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(jwtManager *JWTManager, cookieName string) *Middleware {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Middleware{
		jwtManager: jwtManager,
		cookieName: cookieName,
	}
}

// Authenticate attaches the principal to the request context when a valid
// token is presented. Missing or invalid tokens leave the request
// anonymous; gating is left to the handlers and the authorizer.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := m.extractToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Ignoring invalid token")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), claims.Principal())))
	})
}

// extractToken prefers a Bearer header and falls back to the session cookie.
func (m *Middleware) extractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}

	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// ContextWithPrincipal returns a copy of ctx carrying principal.
func ContextWithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, principal)
}

// PrincipalFromContext returns the request principal, or nil when the
// request is anonymous.
func PrincipalFromContext(ctx context.Context) *models.Principal {
	p, ok := ctx.Value(PrincipalContextKey).(*models.Principal)
	if !ok {
		return nil
	}
	return p
}
